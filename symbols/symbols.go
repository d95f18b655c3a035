// Package symbols maintains the persisted mapping from Unicode codepoints
// to 3-digit slots. The table itself is never written to disk: it is
// reconstructed by replaying SYMBOL_MAP events from the genome, and every
// new allocation emits one.
package symbols

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kolibri-node/kolibri/genome"
)

// Capacity is the fixed maximum number of table entries.
const Capacity = 256

var (
	// ErrTableFull indicates the table is at capacity.
	ErrTableFull = errors.New("symbols: table full")
	// ErrUnknownSlot indicates a digit triple with no entry.
	ErrUnknownSlot = errors.New("symbols: unknown slot")
)

// Recorder receives SYMBOL_MAP events for new allocations. The genome
// journal satisfies this; tests inject their own.
type Recorder interface {
	Append(eventType string, payload []byte) error
}

type entry struct {
	codepoint rune
	slot      [3]byte
}

// Table is the in-memory symbol table. Codepoints are unique; slots are
// unique by construction (the slot digits are the insertion index).
type Table struct {
	entries []entry
	byRune  map[rune]int
	version uint64
	rec     Recorder
}

// New creates an empty table that records allocations through rec.
// A nil recorder is allowed; allocations then go unrecorded.
func New(rec Recorder) *Table {
	return &Table{
		byRune: make(map[rune]int),
		rec:    rec,
	}
}

// Count returns the number of entries.
func (t *Table) Count() int { return len(t.entries) }

// Version returns a counter bumped on every insertion, for callers that
// cache lookups.
func (t *Table) Version() uint64 { return t.version }

// slotFor computes the zero-padded base-10 slot for insertion index i.
func slotFor(i int) [3]byte {
	return [3]byte{byte(i / 100), byte((i / 10) % 10), byte(i % 10)}
}

// insert adds an entry without recording. Returns false when full or when
// the codepoint already exists.
func (t *Table) insert(cp rune, slot [3]byte) bool {
	if _, ok := t.byRune[cp]; ok {
		return false
	}
	if len(t.entries) >= Capacity {
		return false
	}
	t.byRune[cp] = len(t.entries)
	t.entries = append(t.entries, entry{codepoint: cp, slot: slot})
	t.version++
	return true
}

// Encode returns the 3-digit slot for a codepoint, allocating the next
// index and logging a SYMBOL_MAP event when the codepoint is new.
func (t *Table) Encode(cp rune) ([3]byte, error) {
	if i, ok := t.byRune[cp]; ok {
		return t.entries[i].slot, nil
	}
	if len(t.entries) >= Capacity {
		return [3]byte{}, ErrTableFull
	}
	slot := slotFor(len(t.entries))
	t.insert(cp, slot)
	if t.rec != nil {
		payload := fmt.Sprintf("%06d|%d%d%d", cp, slot[0], slot[1], slot[2])
		if err := t.rec.Append(genome.EventSymbolMap, []byte(payload)); err != nil {
			return slot, fmt.Errorf("symbols: record allocation: %w", err)
		}
	}
	return slot, nil
}

// Decode returns the codepoint stored under a digit triple.
func (t *Table) Decode(slot [3]byte) (rune, error) {
	for _, e := range t.entries {
		if e.slot == slot {
			return e.codepoint, nil
		}
	}
	return 0, fmt.Errorf("%w: %d%d%d", ErrUnknownSlot, slot[0], slot[1], slot[2])
}

// Load replays SYMBOL_MAP events from the journal, adding pairs that are
// not already present. Malformed rows are skipped, not fatal.
func (t *Table) Load(j *genome.Journal) error {
	return j.Replay(func(b *genome.Block) error {
		if b.EventType != genome.EventSymbolMap {
			return nil
		}
		cp, slot, ok := parseRow(string(b.Payload))
		if !ok {
			return nil
		}
		t.insert(cp, slot)
		return nil
	})
}

// parseRow decodes a SYMBOL_MAP payload. The current shape is
// "CCCCCC|DDD"; the legacy shape is six digit characters "AAADDD" with AAA
// an 8-bit ASCII codepoint.
func parseRow(row string) (rune, [3]byte, bool) {
	if pipe := strings.IndexByte(row, '|'); pipe >= 0 {
		cpPart, slotPart := row[:pipe], row[pipe+1:]
		if cpPart == "" || len(slotPart) != 3 {
			return 0, [3]byte{}, false
		}
		cp, err := strconv.Atoi(cpPart)
		if err != nil || cp < 0 {
			return 0, [3]byte{}, false
		}
		slot, ok := parseSlot(slotPart)
		return rune(cp), slot, ok
	}

	if len(row) != 6 {
		return 0, [3]byte{}, false
	}
	cp, err := strconv.Atoi(row[:3])
	if err != nil || cp > 255 {
		return 0, [3]byte{}, false
	}
	slot, ok := parseSlot(row[3:])
	return rune(cp), slot, ok
}

func parseSlot(s string) ([3]byte, bool) {
	var slot [3]byte
	for i := 0; i < 3; i++ {
		if s[i] < '0' || s[i] > '9' {
			return slot, false
		}
		slot[i] = s[i] - '0'
	}
	return slot, true
}

// SeedDefaults inserts the ASCII punctuation set, the decimal digits and
// the Cyrillic alphabet (both cases, including the dotted letter). Each
// new insertion goes through Encode and is therefore recorded.
func (t *Table) SeedDefaults() error {
	seed := []rune(" !\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~")
	for r := '0'; r <= '9'; r++ {
		seed = append(seed, r)
	}
	for r := 'А'; r <= 'Я'; r++ {
		seed = append(seed, r)
	}
	seed = append(seed, 'Ё')
	for r := 'а'; r <= 'я'; r++ {
		seed = append(seed, r)
	}
	seed = append(seed, 'ё')

	for _, r := range seed {
		if _, err := t.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
