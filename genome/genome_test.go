package genome

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTemp(t *testing.T, key []byte) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genome.bin")
	j, err := Open(path, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return j, path
}

func TestFirstBlockLayout(t *testing.T) {
	key := []byte("k")
	j, path := openTemp(t, key)
	if err := j.Append("BOOT", nil); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != BlockSize {
		t.Fatalf("file size = %d, want %d", len(data), BlockSize)
	}

	if idx := binary.BigEndian.Uint64(data[0:8]); idx != 0 {
		t.Errorf("index = %d, want 0", idx)
	}
	if !bytes.Equal(data[16:48], make([]byte, 32)) {
		t.Errorf("prev_hash of block 0 is not zero")
	}
	wantEvent := append([]byte("BOOT"), make([]byte, 12)...)
	if !bytes.Equal(data[80:96], wantEvent) {
		t.Errorf("event_type field = %q", data[80:96])
	}
	if !bytes.Equal(data[96:1120], make([]byte, 1024)) {
		t.Errorf("payload field of empty payload is not zero")
	}

	// Recompute the HMAC over index || ts || prev || event || payload.
	var msg []byte
	msg = append(msg, data[0:16]...)    // index, timestamp
	msg = append(msg, data[16:48]...)   // prev hash
	msg = append(msg, data[80:96]...)   // event type, padded
	msg = append(msg, data[96:1120]...) // payload, padded
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	if !bytes.Equal(mac.Sum(nil), data[48:80]) {
		t.Errorf("stored HMAC does not match recomputation")
	}

	if got := VerifyFile(path, key); got != VerifyOK {
		t.Errorf("VerifyFile = %v, want ok", got)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	key := []byte("secret")
	j, path := openTemp(t, key)
	for _, ev := range []string{"BOOT", "ASK", "TEACH"} {
		if err := j.Append(ev, []byte("123456")); err != nil {
			t.Fatalf("Append(%s): %v", ev, err)
		}
	}
	j.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	// Flip one bit in the HMAC region of block 1.
	tampered := append([]byte(nil), data...)
	tampered[BlockSize+48] ^= 0x01
	tmp := filepath.Join(t.TempDir(), "tampered.bin")
	os.WriteFile(tmp, tampered, 0o644)
	if got := VerifyFile(tmp, key); got != VerifyInvalid {
		t.Errorf("VerifyFile after HMAC flip = %v, want invalid", got)
	}

	// Zero the prev_hash field of block 2: chain break.
	broken := append([]byte(nil), data...)
	copy(broken[2*BlockSize+16:2*BlockSize+48], make([]byte, 32))
	tmp2 := filepath.Join(t.TempDir(), "broken.bin")
	os.WriteFile(tmp2, broken, 0o644)
	if got := VerifyFile(tmp2, key); got != VerifyInvalid {
		t.Errorf("VerifyFile after chain break = %v, want invalid", got)
	}

	if got := VerifyFile(path, key); got != VerifyOK {
		t.Errorf("VerifyFile on untouched file = %v, want ok", got)
	}
}

func TestVerifyMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.bin")
	if got := VerifyFile(path, []byte("k")); got != VerifyMissing {
		t.Errorf("VerifyFile on missing file = %v, want missing", got)
	}
}

func TestVerifyTruncatedFile(t *testing.T) {
	key := []byte("k")
	j, path := openTemp(t, key)
	j.Append("BOOT", nil)
	j.Close()

	data, _ := os.ReadFile(path)
	tmp := filepath.Join(t.TempDir(), "trunc.bin")
	os.WriteFile(tmp, data[:len(data)-7], 0o644)
	if got := VerifyFile(tmp, key); got != VerifyInvalid {
		t.Errorf("VerifyFile on truncated file = %v, want invalid", got)
	}

	// Open must refuse the truncated tail rather than repair it.
	if _, err := Open(tmp, key); !errors.Is(err, ErrBadBlock) {
		t.Errorf("Open on truncated file = %v, want ErrBadBlock", err)
	}
}

func TestReopenContinuesChain(t *testing.T) {
	key := []byte("reopen")
	j, path := openTemp(t, key)
	j.Append("BOOT", nil)
	j.Append("NOTE", []byte("042"))
	j.Close()

	j2, err := Open(path, key)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()
	if j2.NextIndex() != 2 {
		t.Errorf("NextIndex after reopen = %d, want 2", j2.NextIndex())
	}
	if err := j2.Append("EVOLVE", []byte("777")); err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if got := VerifyFile(path, key); got != VerifyOK {
		t.Errorf("VerifyFile = %v, want ok", got)
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	j, path := openTemp(t, []byte("right"))
	j.Append("BOOT", nil)
	j.Close()

	if _, err := Open(path, []byte("wrong")); !errors.Is(err, ErrIntegrity) {
		t.Errorf("Open with wrong key = %v, want ErrIntegrity", err)
	}
}

func TestAppendPayloadBounds(t *testing.T) {
	j, _ := openTemp(t, []byte("k"))
	defer j.Close()

	ok := strings.Repeat("7", 1023)
	if err := j.Append("NOTE", []byte(ok)); err != nil {
		t.Errorf("Append(1023 digits) = %v, want nil", err)
	}
	over := strings.Repeat("7", 1024)
	if err := j.Append("NOTE", []byte(over)); !errors.Is(err, ErrPayloadTooLong) {
		t.Errorf("Append(1024 digits) = %v, want ErrPayloadTooLong", err)
	}
	if err := j.Append("NOTE", []byte("12a")); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Append(non-digit) = %v, want ErrInvalidPayload", err)
	}
	if err := j.Append(strings.Repeat("X", 16), []byte("1")); !errors.Is(err, ErrEventTooLong) {
		t.Errorf("Append(long event) = %v, want ErrEventTooLong", err)
	}
}

func TestSymbolMapPayloadShape(t *testing.T) {
	j, _ := openTemp(t, []byte("k"))
	defer j.Close()

	if err := j.Append(EventSymbolMap, []byte("001071|004")); err != nil {
		t.Errorf("Append(SYMBOL_MAP row) = %v, want nil", err)
	}
	// The pipe shape is only allowed for SYMBOL_MAP.
	if err := j.Append("NOTE", []byte("001071|004")); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Append(NOTE with pipe) = %v, want ErrInvalidPayload", err)
	}
	if err := j.Append(EventSymbolMap, []byte("|004")); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Append(SYMBOL_MAP empty codepoint) = %v, want ErrInvalidPayload", err)
	}
}

func TestReplayOrder(t *testing.T) {
	j, _ := openTemp(t, []byte("k"))
	defer j.Close()
	events := []string{"BOOT", "ASK", "TEACH", "EVOLVE"}
	for _, ev := range events {
		j.Append(ev, []byte("1"))
	}

	var seen []string
	err := j.Replay(func(b *Block) error {
		seen = append(seen, b.EventType)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(seen) != len(events) {
		t.Fatalf("Replay visited %d blocks, want %d", len(seen), len(events))
	}
	for i := range events {
		if seen[i] != events[i] {
			t.Errorf("Replay[%d] = %s, want %s", i, seen[i], events[i])
		}
	}
}

func TestLoadKey(t *testing.T) {
	key, err := LoadKey("inline-key", "")
	if err != nil || string(key) != "inline-key" {
		t.Errorf("LoadKey inline = %q, %v", key, err)
	}

	path := filepath.Join(t.TempDir(), "key.txt")
	os.WriteFile(path, []byte("file-key\r\n"), 0o600)
	key, err = LoadKey("", path)
	if err != nil || string(key) != "file-key" {
		t.Errorf("LoadKey file = %q, %v", key, err)
	}

	key, err = LoadKey("", "")
	if err != nil || len(key) == 0 {
		t.Errorf("LoadKey default = %q, %v", key, err)
	}

	long := strings.Repeat("a", 40)
	key, err = LoadKey(long, "")
	if err != nil || len(key) != MaxKeyLen {
		t.Errorf("LoadKey long = %d bytes, %v; want %d", len(key), err, MaxKeyLen)
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	os.WriteFile(empty, []byte("\r\n"), 0o600)
	if _, err := LoadKey("", empty); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("LoadKey empty file = %v, want ErrEmptyKey", err)
	}
}
