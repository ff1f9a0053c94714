package livestats

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Server binds a loopback HTTP listener serving only /ws. Serve blocks
// until the listener is closed, matching the teacher's blocking
// Server.Serve — callers run it in their own goroutine, same as
// cmd/rival-harness already does for internal/hostproxy.Listener.
type Server struct {
	addr        string
	broadcaster *Broadcaster
	httpSrv     *http.Server
	log         *zap.Logger

	mu sync.Mutex
	ln net.Listener
}

func NewServer(addr string, log *zap.Logger) *Server {
	b := NewBroadcaster(log)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.HandleWebsocket)
	return &Server{
		addr:        addr,
		broadcaster: b,
		httpSrv:     &http.Server{Addr: addr, Handler: mux},
		log:         log,
	}
}

// Serve blocks, accepting websocket connections until Close is called.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the listener's bound address, or nil before Serve has
// accepted its listener (useful for tests binding to ":0").
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Push forwards one snapshot to every connected client.
func (s *Server) Push(snapshot Snapshot) { s.broadcaster.Push(snapshot) }

// ClientCount reports how many websocket clients are currently attached.
func (s *Server) ClientCount() int { return s.broadcaster.ClientCount() }

// Close shuts the HTTP listener down and drops every connected client.
func (s *Server) Close() error {
	s.broadcaster.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}
