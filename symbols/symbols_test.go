package symbols

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/kolibri-node/kolibri/genome"
)

// recordedEvent captures appends without a real journal.
type recordedEvent struct {
	event   string
	payload string
}

type fakeRecorder struct {
	events []recordedEvent
}

func (r *fakeRecorder) Append(eventType string, payload []byte) error {
	r.events = append(r.events, recordedEvent{eventType, string(payload)})
	return nil
}

func TestEncodeAllocatesSequentialSlots(t *testing.T) {
	rec := &fakeRecorder{}
	tbl := New(rec)

	slot, err := tbl.Encode('а')
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if slot != [3]byte{0, 0, 0} {
		t.Errorf("first slot = %v, want 000", slot)
	}
	slot, _ = tbl.Encode('б')
	if slot != [3]byte{0, 0, 1} {
		t.Errorf("second slot = %v, want 001", slot)
	}

	// Re-encoding returns the existing slot without a new event.
	slot, _ = tbl.Encode('а')
	if slot != [3]byte{0, 0, 0} {
		t.Errorf("re-encode slot = %v, want 000", slot)
	}
	if len(rec.events) != 2 {
		t.Errorf("recorded %d events, want 2", len(rec.events))
	}
	// Cyrillic а is U+0430 = 1072.
	if rec.events[0].payload != "001072|000" {
		t.Errorf("event payload = %q, want 001072|000", rec.events[0].payload)
	}
	if rec.events[0].event != genome.EventSymbolMap {
		t.Errorf("event type = %q, want SYMBOL_MAP", rec.events[0].event)
	}
}

func TestDecode(t *testing.T) {
	tbl := New(nil)
	tbl.Encode('x')
	tbl.Encode('y')

	cp, err := tbl.Decode([3]byte{0, 0, 1})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cp != 'y' {
		t.Errorf("Decode(001) = %q, want y", cp)
	}
	if _, err := tbl.Decode([3]byte{9, 9, 9}); !errors.Is(err, ErrUnknownSlot) {
		t.Errorf("Decode(999) = %v, want ErrUnknownSlot", err)
	}
}

func TestTableFull(t *testing.T) {
	tbl := New(nil)
	for i := 0; i < Capacity; i++ {
		if _, err := tbl.Encode(rune(0x2000 + i)); err != nil {
			t.Fatalf("Encode[%d]: %v", i, err)
		}
	}
	if _, err := tbl.Encode(rune(0x3000)); !errors.Is(err, ErrTableFull) {
		t.Errorf("Encode past capacity = %v, want ErrTableFull", err)
	}
}

func TestVersionBumpsOnInsert(t *testing.T) {
	tbl := New(nil)
	v0 := tbl.Version()
	tbl.Encode('a')
	if tbl.Version() != v0+1 {
		t.Errorf("Version after insert = %d, want %d", tbl.Version(), v0+1)
	}
	tbl.Encode('a')
	if tbl.Version() != v0+1 {
		t.Errorf("Version after re-encode = %d, want %d", tbl.Version(), v0+1)
	}
}

func TestParseRowLegacyShape(t *testing.T) {
	cp, slot, ok := parseRow("065007")
	if !ok || cp != 'A' || slot != [3]byte{0, 0, 7} {
		t.Errorf("parseRow legacy = %q %v %v", cp, slot, ok)
	}
	// Malformed rows are skipped.
	for _, row := range []string{"", "abc", "99x007", "|123", "12|12"} {
		if _, _, ok := parseRow(row); ok {
			t.Errorf("parseRow(%q) accepted, want reject", row)
		}
	}
}

func TestLoadRebuildsTableAfterReopen(t *testing.T) {
	key := []byte("symtest")
	path := filepath.Join(t.TempDir(), "genome.bin")

	j, err := genome.Open(path, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tbl := New(j)
	if err := tbl.SeedDefaults(); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	tbl.Encode('∑') // beyond the seeded set
	count := tbl.Count()
	j.Close()

	j2, err := genome.Open(path, key)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()
	tbl2 := New(j2)
	if err := tbl2.Load(j2); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl2.Count() != count {
		t.Fatalf("reloaded count = %d, want %d", tbl2.Count(), count)
	}
	// Replay order equals allocation order, so slots must agree.
	for _, r := range []rune{'.', '0', 'Ё', 'ж', '∑'} {
		want, err1 := tbl.Encode(r)
		got, err2 := tbl2.Encode(r)
		if err1 != nil || err2 != nil {
			t.Fatalf("Encode(%q): %v / %v", r, err1, err2)
		}
		if got != want {
			t.Errorf("slot for %q = %v after reload, want %v", r, got, want)
		}
	}
}

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	tbl := New(nil)
	if err := tbl.SeedDefaults(); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	n := tbl.Count()
	if err := tbl.SeedDefaults(); err != nil {
		t.Fatalf("SeedDefaults again: %v", err)
	}
	if tbl.Count() != n {
		t.Errorf("Count after reseed = %d, want %d", tbl.Count(), n)
	}
}
