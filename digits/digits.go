// Package digits implements the digit stream: a fixed-capacity
// append-and-rewind buffer of decimal digits with the byte<->triplet codec
// used for every text payload in the node.
package digits

import (
	"errors"
	"fmt"
)

// DigitsPerByte is the number of decimal digits one byte expands to.
const DigitsPerByte = 3

var (
	// ErrOverflow indicates the stream is at capacity.
	ErrOverflow = errors.New("digits: stream overflow")
	// ErrInvalidDigit indicates a value outside [0,9].
	ErrInvalidDigit = errors.New("digits: invalid digit")
	// ErrEmpty indicates the read cursor reached the end of the stream.
	ErrEmpty = errors.New("digits: stream exhausted")
	// ErrNotTriplet indicates a decode on a length not divisible by three.
	ErrNotTriplet = errors.New("digits: length not a multiple of three")
)

// ---------------------------------------------------------------------------
// Stream: fixed-capacity digit buffer
// ---------------------------------------------------------------------------

// Stream is a pre-sized append-read buffer of decimal digits.
// Invariants: every stored value is in [0,9] and cursor <= length <= capacity.
type Stream struct {
	buf    []byte
	length int
	cursor int
}

// NewStream creates a stream with the given capacity in digits.
func NewStream(capacity int) *Stream {
	if capacity < 0 {
		capacity = 0
	}
	return &Stream{buf: make([]byte, capacity)}
}

// Reset zeroes both length and cursor.
func (s *Stream) Reset() {
	s.length = 0
	s.cursor = 0
}

// Rewind zeroes the cursor only.
func (s *Stream) Rewind() {
	s.cursor = 0
}

// Len returns the number of appended digits.
func (s *Stream) Len() int { return s.length }

// Cap returns the stream capacity.
func (s *Stream) Cap() int { return len(s.buf) }

// Cursor returns the current read position.
func (s *Stream) Cursor() int { return s.cursor }

// Push appends a single digit.
func (s *Stream) Push(d byte) error {
	if d > 9 {
		return fmt.Errorf("%w: %d", ErrInvalidDigit, d)
	}
	if s.length >= len(s.buf) {
		return ErrOverflow
	}
	s.buf[s.length] = d
	s.length++
	return nil
}

// Read consumes one digit at the cursor. Returns ErrEmpty when exhausted.
func (s *Stream) Read() (byte, error) {
	if s.cursor >= s.length {
		return 0, ErrEmpty
	}
	d := s.buf[s.cursor]
	s.cursor++
	return d, nil
}

// TransduceUTF8 appends three digits per input byte: hundreds, tens, ones.
func (s *Stream) TransduceUTF8(data []byte) error {
	for _, b := range data {
		if err := s.Push(b / 100); err != nil {
			return err
		}
		if err := s.Push((b / 10) % 10); err != nil {
			return err
		}
		if err := s.Push(b % 10); err != nil {
			return err
		}
	}
	return nil
}

// EmitUTF8 decodes the whole stream back to bytes, one byte per triplet.
// The decode is atomic: on any failure nothing is returned.
func (s *Stream) EmitUTF8() ([]byte, error) {
	if s.length%DigitsPerByte != 0 {
		return nil, ErrNotTriplet
	}
	out := make([]byte, 0, s.length/DigitsPerByte)
	for i := 0; i < s.length; i += DigitsPerByte {
		h, t, o := s.buf[i], s.buf[i+1], s.buf[i+2]
		v := int(h)*100 + int(t)*10 + int(o)
		if v > 255 {
			return nil, fmt.Errorf("%w: triplet %d%d%d out of byte range", ErrInvalidDigit, h, t, o)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

// String renders the stream contents as an ASCII digit string.
func (s *Stream) String() string {
	out := make([]byte, s.length)
	for i := 0; i < s.length; i++ {
		out[i] = '0' + s.buf[i]
	}
	return string(out)
}

// ---------------------------------------------------------------------------
// Text codec helpers
// ---------------------------------------------------------------------------

// EncodeText transduces a UTF-8 string into its ASCII digit representation.
// The result has length 3*len(text) bytes.
func EncodeText(text string) (string, error) {
	s := NewStream(len(text) * DigitsPerByte)
	if err := s.TransduceUTF8([]byte(text)); err != nil {
		return "", err
	}
	return s.String(), nil
}

// DecodeText reverses EncodeText. The input must be an ASCII digit string
// whose length is a multiple of three.
func DecodeText(ds string) (string, error) {
	if len(ds)%DigitsPerByte != 0 {
		return "", ErrNotTriplet
	}
	s := NewStream(len(ds))
	for i := 0; i < len(ds); i++ {
		c := ds[i]
		if c < '0' || c > '9' {
			return "", fmt.Errorf("%w: %q at offset %d", ErrInvalidDigit, c, i)
		}
		if err := s.Push(c - '0'); err != nil {
			return "", err
		}
	}
	raw, err := s.EmitUTF8()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// IsDigitString reports whether every byte of s is an ASCII decimal digit.
func IsDigitString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
