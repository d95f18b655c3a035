package swarm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds one message on the wire. Rule migrations are tiny;
// anything larger is a protocol violation.
const MaxFrameSize = 64 * 1024

// ErrFrameTooLarge indicates a frame exceeding MaxFrameSize.
var ErrFrameTooLarge = errors.New("swarm: frame too large")

// WriteFrame writes one message as a big-endian length prefix, a type byte
// and the CBOR body.
func WriteFrame(w io.Writer, t MessageType, body []byte) error {
	if len(body)+1 > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var header [5]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(body)+1))
	header[4] = byte(t)
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("swarm: write frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("swarm: write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one message and returns its type and CBOR body.
func ReadFrame(r io.Reader) (MessageType, []byte, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	size := binary.BigEndian.Uint32(header[:4])
	if size == 0 || size > MaxFrameSize {
		return 0, nil, ErrFrameTooLarge
	}
	body := make([]byte, size-1)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("swarm: read frame body: %w", err)
	}
	return MessageType(header[4]), body, nil
}
