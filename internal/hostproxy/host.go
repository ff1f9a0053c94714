package hostproxy

import (
	"fmt"

	"github.com/merusira/rival/internal/hook"
	"github.com/merusira/rival/internal/hostapi"
	"github.com/merusira/rival/internal/wire"
)

// Host adapts a relay Session and its hook.Pipeline to the hostapi.Host
// interface the interception core depends on, so the same core code runs
// unmodified against this dev/test relay and against the real game-client
// host integration (per hostapi's own doc comment on hostproxy's role).
type Host struct {
	session  *Session
	pipeline *hook.Pipeline
	data     map[string]any
}

// NewHost wraps an already-started Session as a hostapi.Host.
func NewHost(session *Session, pipeline *hook.Pipeline) *Host {
	return &Host{session: session, pipeline: pipeline, data: make(map[string]any)}
}

// Hook registers fn on the underlying pipeline with FilterBoth, since
// hostapi.PacketHandler already receives the fake/real origin as an
// argument and decides for itself whether to act on it.
func (h *Host) Hook(name wire.Name, order int, fn hostapi.PacketHandler) hostapi.HookHandle {
	return h.pipeline.Subscribe(name, order, hook.FilterBoth, func(e *hook.Envelope) {
		if fn(e.Fake, e.Payload) {
			e.Suppress()
		}
	})
}

// Send queues payload for delivery to the client side. payload must be a
// []byte already encoded by the caller via wire.Writer — hostproxy does
// not know how to marshal arbitrary packet structs itself.
func (h *Host) Send(name wire.Name, payload any, fake bool) error {
	b, ok := payload.([]byte)
	if !ok {
		return fmt.Errorf("hostproxy: Send(%s) requires a []byte payload, got %T", name, payload)
	}
	if !h.session.SendToClient(b) {
		return fmt.Errorf("hostproxy: Send(%s): client queue full or closed", name)
	}
	return nil
}

// QueryData looks up a value seeded via SetData.
func (h *Host) QueryData(key string) (any, bool) {
	v, ok := h.data[key]
	return v, ok
}

// SetData lets the relay harness seed QueryData responses for manual
// testing (e.g. a fixed ping sample or a server-time offset the emulation
// engine would otherwise read from the real client).
func (h *Host) SetData(key string, value any) { h.data[key] = value }

// ParseSystemMessage decodes a raw system/chat payload's UTF-16LE text.
// Byte 0 is the opcode, as in every other wire payload this relay handles.
func (h *Host) ParseSystemMessage(raw []byte) string {
	return wire.NewReader(raw).String()
}

// BuildSystemMessage encodes text as a null-terminated UTF-16LE string
// behind a placeholder opcode byte, the same shape ParseSystemMessage
// expects back.
func (h *Host) BuildSystemMessage(text string) []byte {
	w := wire.NewWriterWithOpcode(0)
	w.String(text)
	return w.Raw()
}
