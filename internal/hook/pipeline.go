// Package hook implements the packet hook pipeline of §4.1: subscribers
// register with (packet_name, stage, {order, fake_filter}); execution is
// stable-sorted by order, ties broken by registration order; a subscriber
// may mutate the packet and/or suppress it.
//
// Grounded on the teacher's internal/net/packet.Registry (opcode-keyed
// dispatch with panic recovery, §7) generalized from "one handler per
// opcode" to "an ordered list of subscribers per packet name", and on
// internal/core/system.Runner for the stable-sort-by-priority discipline
// reused here for subscriber order instead of system phase.
package hook

import (
	"sort"

	"github.com/merusira/rival/internal/wire"
	"go.uber.org/zap"
)

// Canonical stage order constants (§4.1). Only Order is load-bearing at
// runtime; these are documentation conveniences matching the spec's
// naming.
const (
	OrderReadReal            = -100
	OrderReadAll             = -100
	OrderModifyInternal      = -10
	OrderModify              = -5
	OrderReadDestinationClass = 95
	OrderReadDestination     = 100
)

// FakeFilter selects which packets (by origin) a subscriber receives.
type FakeFilter int

const (
	// FilterRealOnly is the default: only wire-received packets.
	FilterRealOnly FakeFilter = iota
	FilterFakeOnly
	FilterBoth
)

// Envelope wraps a structured packet with its origin and mutable-state
// bookkeeping as it flows through the pipeline.
type Envelope struct {
	Name     wire.Name
	Fake     bool // true: synthesized locally; false: arrived over the wire
	Payload  any
	suppress bool
}

// Suppress drops the packet from further downstream delivery (it is not
// forwarded to the client/server past this point in the pipeline).
func (e *Envelope) Suppress() { e.suppress = true }

// Suppressed reports whether a subscriber has suppressed this envelope.
func (e *Envelope) Suppressed() bool { return e.suppress }

// Handler processes one envelope. It may mutate e.Payload in place and/or
// call e.Suppress().
type Handler func(e *Envelope)

type subscription struct {
	order   int
	seq     int
	filter  FakeFilter
	handler Handler
}

// Pipeline dispatches envelopes to ordered, filtered subscriber lists per
// packet name.
type Pipeline struct {
	subs map[wire.Name][]subscription
	seq  int
	log  *zap.Logger
}

func New(log *zap.Logger) *Pipeline {
	return &Pipeline{subs: make(map[wire.Name][]subscription), log: log}
}

// Handle is returned by Subscribe; Unhook removes the subscription.
type Handle struct {
	name wire.Name
	seq  int
	p    *Pipeline
}

// Unhook removes the subscription this handle refers to.
func (h Handle) Unhook() {
	if h.p == nil {
		return
	}
	h.p.unhook(h.name, h.seq)
}

// Subscribe registers fn for packets named name, at the given order, with
// the given origin filter. Equal-order subscribers run in registration
// order (stable sort).
func (p *Pipeline) Subscribe(name wire.Name, order int, filter FakeFilter, fn Handler) Handle {
	p.seq++
	sub := subscription{order: order, seq: p.seq, filter: filter, handler: fn}
	list := append(p.subs[name], sub)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].order != list[j].order {
			return list[i].order < list[j].order
		}
		return list[i].seq < list[j].seq
	})
	p.subs[name] = list
	return Handle{name: name, seq: sub.seq, p: p}
}

func (p *Pipeline) unhook(name wire.Name, seq int) {
	list := p.subs[name]
	for i, s := range list {
		if s.seq == seq {
			p.subs[name] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Dispatch runs every subscriber registered for e.Name, in order, honoring
// each subscriber's fake filter, until the envelope is suppressed or the
// list is exhausted. Returns true if the envelope survived (should still
// be delivered downstream of the pipeline).
func (p *Pipeline) Dispatch(e *Envelope) bool {
	for _, s := range p.subs[e.Name] {
		if !filterMatches(s.filter, e.Fake) {
			continue
		}
		p.safeCall(s.handler, e)
		if e.suppress {
			return false
		}
	}
	return true
}

func filterMatches(f FakeFilter, fake bool) bool {
	switch f {
	case FilterBoth:
		return true
	case FilterFakeOnly:
		return fake
	default: // FilterRealOnly
		return !fake
	}
}

// safeCall recovers a panicking subscriber so one bad handler cannot break
// the pipeline for the packet; the packet continues unmodified, per §7's
// "unexpected exceptions inside a handler are logged with stack and the
// packet is allowed to continue unmodified".
func (p *Pipeline) safeCall(fn Handler, e *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("hook: subscriber panic recovered",
				zap.String("packet", string(e.Name)),
				zap.Any("panic", r))
		}
	}()
	fn(e)
}

// String renders a filter for logging.
func (f FakeFilter) String() string {
	switch f {
	case FilterFakeOnly:
		return "fake"
	case FilterBoth:
		return "both"
	default:
		return "real"
	}
}
