// Package swarm implements the peer rule-exchange protocol. Nodes greet
// each other, migrate distilled genes and acknowledge imports as CBOR
// messages over length-prefixed frames.
package swarm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode holds CBOR encoding options with canonical mode for
// deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("swarm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MessageType identifies the kind of a swarm message.
type MessageType uint8

const (
	MessageHello   MessageType = 1
	MessageMigrate MessageType = 2
	MessageAck     MessageType = 3
)

// Hello is the greeting exchanged when two nodes connect.
type Hello struct {
	NodeID       string  `cbor:"1,keyasint"`
	GenomeBlocks uint64  `cbor:"2,keyasint"`
	BestFitness  float64 `cbor:"3,keyasint"`
}

// MigrateRule carries one distilled gene to a peer.
type MigrateRule struct {
	Gene    string  `cbor:"1,keyasint"` // digit string, fixed gene length
	Fitness float64 `cbor:"2,keyasint"`
	Origin  string  `cbor:"3,keyasint"`
}

// AckStatus indicates the result of a migration.
type AckStatus uint8

const (
	AckAccepted AckStatus = 0
	AckRejected AckStatus = 1
)

// Ack is the reply to a MigrateRule.
type Ack struct {
	Status AckStatus `cbor:"1,keyasint"`
	Reason string    `cbor:"2,keyasint,omitempty"`
}

// MarshalHello serializes a Hello to CBOR bytes.
func MarshalHello(h *Hello) ([]byte, error) {
	return cborEncMode.Marshal(h)
}

// UnmarshalHello deserializes a Hello from CBOR bytes.
func UnmarshalHello(data []byte) (*Hello, error) {
	var h Hello
	if err := cbor.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("swarm: unmarshal hello: %w", err)
	}
	return &h, nil
}

// MarshalMigrateRule serializes a MigrateRule to CBOR bytes.
func MarshalMigrateRule(m *MigrateRule) ([]byte, error) {
	return cborEncMode.Marshal(m)
}

// UnmarshalMigrateRule deserializes a MigrateRule from CBOR bytes.
func UnmarshalMigrateRule(data []byte) (*MigrateRule, error) {
	var m MigrateRule
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("swarm: unmarshal migrate rule: %w", err)
	}
	return &m, nil
}

// MarshalAck serializes an Ack to CBOR bytes.
func MarshalAck(a *Ack) ([]byte, error) {
	return cborEncMode.Marshal(a)
}

// UnmarshalAck deserializes an Ack from CBOR bytes.
func UnmarshalAck(data []byte) (*Ack, error) {
	var a Ack
	if err := cbor.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("swarm: unmarshal ack: %w", err)
	}
	return &a, nil
}
