package swarm

import (
	"fmt"
	"net"
	"time"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("kolibri.swarm")

// dialTimeout bounds outbound connection setup.
const dialTimeout = 5 * time.Second

// Store is the node-side surface the exchange protocol drives. The node
// type satisfies this.
type Store interface {
	ImportRule(geneDigits string, fitness float64, origin string) error
	DistillRule() (geneDigits string, fitness float64, err error)
}

// Identity describes the local node in Hello greetings.
type Identity struct {
	NodeID       string
	GenomeBlocks func() uint64
	BestFitness  func() float64
}

func (id Identity) hello() *Hello {
	return &Hello{
		NodeID:       id.NodeID,
		GenomeBlocks: id.GenomeBlocks(),
		BestFitness:  id.BestFitness(),
	}
}

// Server accepts peer connections and imports migrated rules.
type Server struct {
	id    Identity
	store Store
	ln    net.Listener
}

// NewServer creates a swarm server bound to the given listener.
func NewServer(id Identity, store Store, ln net.Listener) *Server {
	return &Server{id: id, store: store, ln: ln}
}

// Addr returns the bound listen address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve accepts connections until the listener closes.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

// Close stops the listener.
func (s *Server) Close() error { return s.ln.Close() }

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	peer, err := s.greet(conn)
	if err != nil {
		log.Errorf("greeting failed: %v", err)
		return
	}
	log.Infof("peer %s connected (%d blocks, best %.4f)",
		peer.NodeID, peer.GenomeBlocks, peer.BestFitness)

	for {
		t, body, err := ReadFrame(conn)
		if err != nil {
			return
		}
		if t != MessageMigrate {
			continue
		}
		m, err := UnmarshalMigrateRule(body)
		if err != nil {
			s.ack(conn, AckRejected, err.Error())
			continue
		}
		if err := s.store.ImportRule(m.Gene, m.Fitness, m.Origin); err != nil {
			s.ack(conn, AckRejected, err.Error())
			continue
		}
		s.ack(conn, AckAccepted, "")
	}
}

// greet exchanges Hello messages: the server answers first, then reads the
// client's greeting.
func (s *Server) greet(conn net.Conn) (*Hello, error) {
	body, err := MarshalHello(s.id.hello())
	if err != nil {
		return nil, err
	}
	if err := WriteFrame(conn, MessageHello, body); err != nil {
		return nil, err
	}

	t, body, err := ReadFrame(conn)
	if err != nil {
		return nil, err
	}
	if t != MessageHello {
		return nil, fmt.Errorf("swarm: expected hello, got message type %d", t)
	}
	return UnmarshalHello(body)
}

func (s *Server) ack(conn net.Conn, status AckStatus, reason string) {
	body, err := MarshalAck(&Ack{Status: status, Reason: reason})
	if err != nil {
		return
	}
	_ = WriteFrame(conn, MessageAck, body)
}

// SendRule dials a peer, completes the greeting and migrates the local
// best rule. Returns the peer's acknowledgement.
func SendRule(addr string, id Identity, store Store) (*Ack, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("swarm: dial %s: %w", addr, err)
	}
	defer conn.Close()

	// Server speaks first.
	t, body, err := ReadFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("swarm: read greeting: %w", err)
	}
	if t != MessageHello {
		return nil, fmt.Errorf("swarm: expected hello, got message type %d", t)
	}
	peer, err := UnmarshalHello(body)
	if err != nil {
		return nil, err
	}

	body, err = MarshalHello(id.hello())
	if err != nil {
		return nil, err
	}
	if err := WriteFrame(conn, MessageHello, body); err != nil {
		return nil, err
	}

	gene, fitness, err := store.DistillRule()
	if err != nil {
		return nil, err
	}
	body, err = MarshalMigrateRule(&MigrateRule{Gene: gene, Fitness: fitness, Origin: id.NodeID})
	if err != nil {
		return nil, err
	}
	if err := WriteFrame(conn, MessageMigrate, body); err != nil {
		return nil, err
	}

	t, body, err = ReadFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("swarm: read ack: %w", err)
	}
	if t != MessageAck {
		return nil, fmt.Errorf("swarm: expected ack, got message type %d", t)
	}
	ack, err := UnmarshalAck(body)
	if err != nil {
		return nil, err
	}
	log.Infof("migrated rule to %s (status %d)", peer.NodeID, ack.Status)
	return ack, nil
}
