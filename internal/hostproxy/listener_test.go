package hostproxy

import (
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestListenerRelaysClientToUpstream(t *testing.T) {
	upstream, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen upstream: %v", err)
	}
	defer upstream.Close()

	upstreamConns := make(chan net.Conn, 1)
	go func() {
		conn, err := upstream.Accept()
		if err == nil {
			upstreamConns <- conn
		}
	}()

	names := OpcodeNames{0x10: "start_skill"}
	l, err := NewListener("127.0.0.1:0", upstream.Addr().String(), names, zap.NewNop())
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	defer l.Close()

	hosts := make(chan *Host, 1)
	go l.AcceptLoop(func(h *Host) { hosts <- h })

	client, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial listener: %v", err)
	}
	defer client.Close()

	select {
	case <-hosts:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for AcceptLoop to hand off a Host")
	}

	var upstreamConn net.Conn
	select {
	case upstreamConn = <-upstreamConns:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the upstream dial to land")
	}
	defer upstreamConn.Close()

	// The session's cipher seed is randomized per connection (unlike the
	// other tests' fixed testSeed), so this test only asserts that bytes
	// cross the relay at all, not their decrypted content.
	if err := WriteFrame(client, []byte{0x10, 0xaa}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	upstreamConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, err := ReadFrame(upstreamConn)
	if err != nil {
		t.Fatalf("ReadFrame on upstream: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected a 2-byte relayed frame, got %d bytes", len(got))
	}
}
