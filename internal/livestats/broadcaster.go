// Package livestats is the websocket debug broadcaster: it pushes the
// same numbers `rival tracker`/`rival ping` print in chat out to a local
// loopback websocket, so an operator-facing companion window can render
// a live delay/jitter/chain-excess chart without polling chat text.
//
// Grounded on niceyeti-tabular's server.Server: an http.Upgrader-backed
// /ws handler, one goroutine per client fanning a single publish loop
// out to every open connection, and a write-deadline-guarded WriteJSON
// rather than a raw text push. Unlike that teacher, there is no shared
// "last update" page render here — this package only ever serves the
// websocket, since there is no svg/html view to template.
package livestats

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/merusira/rival/internal/emulation"
	"github.com/merusira/rival/internal/pingmeter"
)

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Snapshot is one pushed frame: the same readout `rival tracker` and
// `rival ping` format as chat text, shaped for JSON instead.
type Snapshot struct {
	Tracker emulation.TrackerStats `json:"tracker"`
	Ping    pingmeter.Stats        `json:"ping"`
}

// Broadcaster fans Push calls out to every currently-open websocket
// client. The zero value is not usable; construct with NewBroadcaster.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	log     *zap.Logger
}

func NewBroadcaster(log *zap.Logger) *Broadcaster {
	return &Broadcaster{clients: make(map[*websocket.Conn]struct{}), log: log}
}

// HandleWebsocket upgrades the request and registers the connection for
// future Push calls. It does not block — the connection is read from
// only to detect its closure, in a dedicated goroutine per client,
// matching the teacher's one-goroutine-per-socket shape.
func (b *Broadcaster) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if b.log != nil {
			b.log.Warn("livestats: websocket upgrade failed", zap.Error(err))
		}
		return
	}

	b.mu.Lock()
	b.clients[conn] = struct{}{}
	b.mu.Unlock()

	go b.watchForClose(conn)
}

// watchForClose drops a client once its connection errors or the peer
// closes it; ReadMessage's return value itself is discarded, the
// teacher's fastview loop only cares that reads stop succeeding.
func (b *Broadcaster) watchForClose(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			b.remove(conn)
			return
		}
	}
}

func (b *Broadcaster) remove(conn *websocket.Conn) {
	b.mu.Lock()
	delete(b.clients, conn)
	b.mu.Unlock()
	conn.Close()
}

// Push sends snapshot to every connected client, dropping any client
// whose write fails or times out.
func (b *Broadcaster) Push(snapshot Snapshot) {
	b.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for c := range b.clients {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(snapshot); err != nil {
			b.remove(conn)
		}
	}
}

// ClientCount reports how many websocket clients are currently attached.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close drops every connected client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for c := range b.clients {
		conns = append(conns, c)
	}
	b.clients = make(map[*websocket.Conn]struct{})
	b.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}
