package hostproxy

import (
	"net"
	"sync"

	"github.com/merusira/rival/internal/hook"
	"github.com/merusira/rival/internal/wire"
	"go.uber.org/zap"
)

// OpcodeNames maps a raw opcode byte (frame byte 0) to the packet name the
// hook pipeline dispatches on. Supplied by the caller at session
// construction — hostproxy carries no built-in opcode table of its own,
// matching its role as a thin dev/test relay rather than a full protocol
// implementation.
type OpcodeNames map[byte]wire.Name

// Session relays one client connection to one upstream server connection,
// running every frame through a hook.Pipeline so the interception core can
// observe, mutate, or suppress it in transit.
//
// Grounded on the teacher's internal/net.Session (per-connection reader
// and writer goroutines over channel-backed queues, graceful Close via
// sync.Once) generalized from a one-sided game-server session to a
// two-sided relay, since this module's job is to sit between the real
// client and server rather than terminate either connection. The
// teacher's own hand-rolled XOR cipher is replaced by Cipher (see
// cipher.go); framing is unchanged.
type Session struct {
	client net.Conn
	server net.Conn

	clientCipher *Cipher
	serverCipher *Cipher

	pipeline *hook.Pipeline
	names    OpcodeNames

	toServer chan []byte
	toClient chan []byte

	closeCh   chan struct{}
	closeOnce sync.Once
	log       *zap.Logger
}

// NewSession builds a relay session. seed drives both ciphers, mirroring
// the single handshake seed the teacher's protocol establishes once per
// connection.
func NewSession(client, server net.Conn, seed int32, names OpcodeNames, pipeline *hook.Pipeline, log *zap.Logger) (*Session, error) {
	cc, err := NewCipher(seed)
	if err != nil {
		return nil, err
	}
	sc, err := NewCipher(seed)
	if err != nil {
		return nil, err
	}
	return &Session{
		client:       client,
		server:       server,
		clientCipher: cc,
		serverCipher: sc,
		pipeline:     pipeline,
		names:        names,
		toServer:     make(chan []byte, 64),
		toClient:     make(chan []byte, 64),
		closeCh:      make(chan struct{}),
		log:          log,
	}, nil
}

// Start launches the four goroutines that carry the relay: one reader and
// one writer per side.
func (s *Session) Start() {
	go s.readLoop(s.client, s.clientCipher, s.toServer)
	go s.readLoop(s.server, s.serverCipher, s.toClient)
	go s.writeLoop(s.server, s.serverCipher, s.toServer)
	go s.writeLoop(s.client, s.clientCipher, s.toClient)
}

// SendToClient queues an already-encoded payload for delivery to the
// client side, bypassing the server entirely — used by Host.Send for
// locally synthesized ("fake") packets.
func (s *Session) SendToClient(data []byte) bool {
	if s.isClosed() {
		return false
	}
	select {
	case s.toClient <- data:
		return true
	default:
		return false
	}
}

func (s *Session) readLoop(conn net.Conn, cipher *Cipher, forward chan<- []byte) {
	defer s.Close()
	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		raw, err := ReadFrame(conn)
		if err != nil {
			if !s.isClosed() {
				s.log.Debug("hostproxy: read error", zap.Error(err))
			}
			return
		}

		decrypted := make([]byte, len(raw))
		cipher.Decrypt(decrypted, raw)

		if len(decrypted) > 0 {
			if name, ok := s.names[decrypted[0]]; ok && name != "" {
				env := &hook.Envelope{Name: name, Fake: false, Payload: decrypted}
				if !s.pipeline.Dispatch(env) {
					continue // suppressed: never reaches the other side
				}
				if b, ok := env.Payload.([]byte); ok {
					decrypted = b
				}
			}
		}

		select {
		case forward <- decrypted:
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeLoop(conn net.Conn, cipher *Cipher, queue <-chan []byte) {
	defer s.Close()
	for {
		select {
		case data := <-queue:
			encrypted := make([]byte, len(data))
			cipher.Encrypt(encrypted, data)
			if err := WriteFrame(conn, encrypted); err != nil {
				if !s.isClosed() {
					s.log.Debug("hostproxy: write error", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// Close shuts both sides of the relay down.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.client.Close()
		s.server.Close()
	})
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closeCh:
		return true
	default:
		return false
	}
}
