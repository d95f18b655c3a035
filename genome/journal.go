package genome

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Journal is an open append-only genome file. It is exclusively owned by
// one node for its lifetime; there is no cross-goroutine sharing.
type Journal struct {
	f         *os.File
	path      string
	key       []byte
	nextIndex uint64
	lastHash  [HashSize]byte
	lastBlock *Block
}

// Open opens or creates the journal at path, streaming and verifying every
// existing block. Any invariant violation aborts with a distinguishable
// error. On success the file is positioned at the end, ready for Append.
func Open(path string, key []byte) (*Journal, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("genome: cannot open %s: %w", path, err)
	}

	j := &Journal{f: f, path: path, key: append([]byte(nil), key...)}
	buf := make([]byte, BlockSize)
	for {
		n, err := io.ReadFull(f, buf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			f.Close()
			return nil, fmt.Errorf("%w: truncated block at index %d (%d bytes)", ErrBadBlock, j.nextIndex, n)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("genome: read %s: %w", path, err)
		}
		b, err := UnmarshalBlock(buf)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := j.checkChain(b); err != nil {
			f.Close()
			return nil, err
		}
		j.advance(b)
	}
	return j, nil
}

// checkChain validates index continuity, prev-hash linkage and the HMAC of
// a block that claims to extend the current tail.
func (j *Journal) checkChain(b *Block) error {
	if b.Index != j.nextIndex {
		return fmt.Errorf("%w: block index %d, want %d", ErrIntegrity, b.Index, j.nextIndex)
	}
	if b.PrevHash != j.lastHash {
		return fmt.Errorf("%w: chain break at block %d", ErrIntegrity, b.Index)
	}
	if !b.VerifyHMAC(j.key) {
		return fmt.Errorf("%w: HMAC mismatch at block %d", ErrIntegrity, b.Index)
	}
	return nil
}

// advance updates the in-memory tail after accepting a block.
func (j *Journal) advance(b *Block) {
	j.lastBlock = b
	j.lastHash = b.Hash()
	j.nextIndex = b.Index + 1
}

// NextIndex returns the index the next appended block will get.
func (j *Journal) NextIndex() uint64 { return j.nextIndex }

// LastBlock returns the current tail block, or nil for an empty journal.
func (j *Journal) LastBlock() *Block { return j.lastBlock }

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

// Append validates, seals and durably writes one event. A successful
// return means the block has been flushed to the file.
func (j *Journal) Append(eventType string, payload []byte) error {
	if len(eventType) >= EventTypeSize {
		return fmt.Errorf("%w: %q", ErrEventTooLong, eventType)
	}
	if len(payload) >= PayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLong, len(payload))
	}
	if !validPayload(eventType, payload) {
		return fmt.Errorf("%w: event %q", ErrInvalidPayload, eventType)
	}

	b := &Block{
		Index:       j.nextIndex,
		TimestampNS: uint64(time.Now().UnixNano()),
		PrevHash:    j.lastHash,
		EventType:   eventType,
		Payload:     append([]byte(nil), payload...),
	}
	b.Seal(j.key)

	if _, err := j.f.Write(b.Marshal()); err != nil {
		return fmt.Errorf("genome: write block %d: %w", b.Index, err)
	}
	if err := j.f.Sync(); err != nil {
		return fmt.Errorf("genome: sync block %d: %w", b.Index, err)
	}
	j.advance(b)
	return nil
}

// Replay walks the journal file read-only from the start, invoking fn for
// each block in order. The append position is unaffected.
func (j *Journal) Replay(fn func(*Block) error) error {
	f, err := os.Open(j.path)
	if err != nil {
		return fmt.Errorf("genome: cannot open %s: %w", j.path, err)
	}
	defer f.Close()

	buf := make([]byte, BlockSize)
	for {
		_, err := io.ReadFull(f, buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("genome: replay read: %w", err)
		}
		b, err := UnmarshalBlock(buf)
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
	}
}

// Close flushes the file and zeros the key in memory.
func (j *Journal) Close() error {
	for i := range j.key {
		j.key[i] = 0
	}
	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}
