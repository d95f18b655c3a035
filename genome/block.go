// Package genome implements the journal: an append-only log of fixed-size
// blocks chained by SHA-256 and authenticated with HMAC-SHA256. Every
// cognitive event of the node becomes one block.
package genome

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/kolibri-node/kolibri/digits"
)

// Block geometry. All multi-byte integers are big-endian.
const (
	IndexSize     = 8
	TimestampSize = 8
	HashSize      = sha256.Size
	EventTypeSize = 16
	PayloadSize   = 1024

	// BlockSize is the full serialized size of one block: 1120 bytes.
	BlockSize = IndexSize + TimestampSize + HashSize + HashSize + EventTypeSize + PayloadSize
)

// Field offsets within a serialized block.
const (
	offIndex     = 0
	offTimestamp = offIndex + IndexSize
	offPrevHash  = offTimestamp + TimestampSize
	offHMAC      = offPrevHash + HashSize
	offEventType = offHMAC + HashSize
	offPayload   = offEventType + EventTypeSize
)

var (
	// ErrIntegrity indicates an HMAC mismatch or a broken chain.
	ErrIntegrity = errors.New("genome: integrity failure")
	// ErrBadBlock indicates a block that does not parse.
	ErrBadBlock = errors.New("genome: malformed block")
	// ErrInvalidPayload indicates a payload that is not a digit string.
	ErrInvalidPayload = errors.New("genome: payload is not a digit string")
	// ErrEventTooLong indicates an event type exceeding 15 bytes.
	ErrEventTooLong = errors.New("genome: event type too long")
	// ErrPayloadTooLong indicates a payload exceeding 1023 bytes.
	ErrPayloadTooLong = errors.New("genome: payload too long")
)

// Block is one 1120-byte record in the journal.
type Block struct {
	Index       uint64
	TimestampNS uint64
	PrevHash    [HashSize]byte
	HMAC        [HashSize]byte
	EventType   string // at most 15 bytes, ASCII
	Payload     []byte // at most 1023 bytes, digit string (or SYMBOL_MAP row)
}

// Marshal serializes the block to its fixed on-disk layout.
func (b *Block) Marshal() []byte {
	out := make([]byte, BlockSize)
	binary.BigEndian.PutUint64(out[offIndex:], b.Index)
	binary.BigEndian.PutUint64(out[offTimestamp:], b.TimestampNS)
	copy(out[offPrevHash:], b.PrevHash[:])
	copy(out[offHMAC:], b.HMAC[:])
	copy(out[offEventType:], b.EventType)
	copy(out[offPayload:], b.Payload)
	return out
}

// UnmarshalBlock parses one serialized block. Both the event type and the
// payload must contain a NUL terminator within their field.
func UnmarshalBlock(data []byte) (*Block, error) {
	if len(data) != BlockSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrBadBlock, len(data), BlockSize)
	}
	b := &Block{
		Index:       binary.BigEndian.Uint64(data[offIndex:]),
		TimestampNS: binary.BigEndian.Uint64(data[offTimestamp:]),
	}
	copy(b.PrevHash[:], data[offPrevHash:offPrevHash+HashSize])
	copy(b.HMAC[:], data[offHMAC:offHMAC+HashSize])

	event := data[offEventType : offEventType+EventTypeSize]
	nul := bytes.IndexByte(event, 0)
	if nul < 0 {
		return nil, fmt.Errorf("%w: event type lacks NUL terminator", ErrBadBlock)
	}
	b.EventType = string(event[:nul])

	payload := data[offPayload : offPayload+PayloadSize]
	nul = bytes.IndexByte(payload, 0)
	if nul < 0 {
		return nil, fmt.Errorf("%w: payload lacks NUL terminator", ErrBadBlock)
	}
	b.Payload = append([]byte(nil), payload[:nul]...)

	if !validPayload(b.EventType, b.Payload) {
		return nil, fmt.Errorf("%w: event %q", ErrInvalidPayload, b.EventType)
	}
	return b, nil
}

// Hash returns the SHA-256 of the full serialized block.
func (b *Block) Hash() [HashSize]byte {
	return sha256.Sum256(b.Marshal())
}

// hmacMessage builds the authenticated message: index, timestamp, prev hash,
// the padded event-type field, and the padded payload field, concatenated.
func (b *Block) hmacMessage() []byte {
	msg := make([]byte, 0, BlockSize-HashSize)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], b.Index)
	msg = append(msg, n[:]...)
	binary.BigEndian.PutUint64(n[:], b.TimestampNS)
	msg = append(msg, n[:]...)
	msg = append(msg, b.PrevHash[:]...)

	var event [EventTypeSize]byte
	copy(event[:], b.EventType)
	msg = append(msg, event[:]...)

	var payload [PayloadSize]byte
	copy(payload[:], b.Payload)
	msg = append(msg, payload[:]...)
	return msg
}

// Seal computes and stores the block's HMAC under the given key.
func (b *Block) Seal(key []byte) {
	mac := hmac.New(sha256.New, key)
	mac.Write(b.hmacMessage())
	copy(b.HMAC[:], mac.Sum(nil))
}

// VerifyHMAC checks the stored HMAC against the given key.
func (b *Block) VerifyHMAC(key []byte) bool {
	mac := hmac.New(sha256.New, key)
	mac.Write(b.hmacMessage())
	return hmac.Equal(mac.Sum(nil), b.HMAC[:])
}

// validPayload accepts digit strings for all events, plus the SYMBOL_MAP
// row shape "CCCCCC|DDD" (codepoint digits, pipe, three slot digits).
func validPayload(eventType string, payload []byte) bool {
	s := string(payload)
	if digits.IsDigitString(s) {
		return true
	}
	if eventType != EventSymbolMap {
		return false
	}
	pipe := bytes.IndexByte(payload, '|')
	if pipe < 1 || pipe > 6 {
		return false
	}
	return digits.IsDigitString(s[:pipe]) && len(s)-pipe-1 == 3 && digits.IsDigitString(s[pipe+1:])
}
