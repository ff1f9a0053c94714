package hostproxy

import (
	"math/rand"
	"net"

	"github.com/merusira/rival/internal/hook"
	"go.uber.org/zap"
)

// Listener accepts client connections on a local address and, for each
// one, dials the real upstream server and wires the two together as a
// Session. Grounded on the teacher's internal/net.Server (AcceptLoop over
// a net.Listener, one Session per accepted connection), generalized from
// "accept and terminate" to "accept and relay onward".
type Listener struct {
	ln           net.Listener
	upstreamAddr string
	names        OpcodeNames
	newSession   func(*Session) *Session // test seam; nil in production
	log          *zap.Logger
}

// NewListener binds bindAddr and prepares to relay every accepted
// connection to upstreamAddr.
func NewListener(bindAddr, upstreamAddr string, names OpcodeNames, log *zap.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, upstreamAddr: upstreamAddr, names: names, log: log}, nil
}

// Addr returns the bound listen address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// AcceptLoop accepts connections until the listener is closed, dialing
// upstream and starting a relay Session for each one. onSession is called
// with the pipeline-backed Host for every new connection so the caller can
// wire the interception core's hooks onto it.
func (l *Listener) AcceptLoop(onSession func(*Host)) {
	for {
		client, err := l.ln.Accept()
		if err != nil {
			return
		}
		go l.handle(client, onSession)
	}
}

func (l *Listener) handle(client net.Conn, onSession func(*Host)) {
	server, err := net.Dial("tcp", l.upstreamAddr)
	if err != nil {
		l.log.Error("hostproxy: upstream dial failed", zap.Error(err))
		client.Close()
		return
	}

	seed := rand.Int31n(0x7FFFFFFE) + 1
	pipeline := hook.New(l.log)

	sess, err := NewSession(client, server, seed, l.names, pipeline, l.log)
	if err != nil {
		l.log.Error("hostproxy: session cipher setup failed", zap.Error(err))
		client.Close()
		server.Close()
		return
	}

	host := NewHost(sess, pipeline)
	if onSession != nil {
		onSession(host)
	}
	sess.Start()
}
