package main

import (
	"errors"
	"sync"

	"github.com/merusira/rival/internal/hostapi"
	"github.com/merusira/rival/internal/wire"
)

// routerHost is a stable hostapi.Host forwarding every call to whichever
// session host is currently active. The domain modules (cc.Handler,
// emulation.Engine, antidesync.Corrector, lockon.Manager) each capture a
// Host at construction time in hostapi.New, but the actual relay host
// only exists once a client connects — and a prior session's pipeline
// goes away on disconnect. routerHost lets hostapi.New build those
// modules once against a host that outlives any single connection,
// while the accept callback in main.go re-targets it at the live
// session's host (setTarget) on every new connection before calling
// hostapi.Deps.Wire.
type routerHost struct {
	mu     sync.RWMutex
	target hostapi.Host
}

func newRouterHost() *routerHost { return &routerHost{} }

func (r *routerHost) setTarget(h hostapi.Host) {
	r.mu.Lock()
	r.target = h
	r.mu.Unlock()
}

func (r *routerHost) current() (hostapi.Host, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.target == nil {
		return nil, errors.New("rival-harness: no session connected")
	}
	return r.target, nil
}

func (r *routerHost) Hook(name wire.Name, order int, fn hostapi.PacketHandler) hostapi.HookHandle {
	h, err := r.current()
	if err != nil {
		return noopHandle{}
	}
	return h.Hook(name, order, fn)
}

func (r *routerHost) Send(name wire.Name, payload any, fake bool) error {
	h, err := r.current()
	if err != nil {
		return err
	}
	return h.Send(name, payload, fake)
}

func (r *routerHost) QueryData(key string) (any, bool) {
	h, err := r.current()
	if err != nil {
		return nil, false
	}
	return h.QueryData(key)
}

func (r *routerHost) ParseSystemMessage(raw []byte) string {
	h, err := r.current()
	if err != nil {
		return ""
	}
	return h.ParseSystemMessage(raw)
}

func (r *routerHost) BuildSystemMessage(text string) []byte {
	h, err := r.current()
	if err != nil {
		return nil
	}
	return h.BuildSystemMessage(text)
}

type noopHandle struct{}

func (noopHandle) Unhook() {}
