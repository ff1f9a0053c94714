// Package pingmeter samples round-trip ping, tracks short-term jitter,
// and correlates outstanding ping requests with a generated id — the
// concrete component SPEC_FULL.md gives the "external collaborator"
// named only in passing in §1, since its output is load-bearing for the
// packet-buffer delay math used throughout §4.6/§4.7.
//
// Outstanding request tracking is grounded on §9's "weak identity maps
// ... map to insertion-ordered mappings keyed by a generated correlation
// id with TTL eviction": a plain map keyed by a uuid, swept for
// expiry rather than relying on GC-observable weak references.
package pingmeter

import (
	"time"

	"github.com/google/uuid"
)

// Stats is the `{min, avg, max, samples}` summary `rival ping` prints.
type Stats struct {
	Min     time.Duration
	Avg     time.Duration
	Max     time.Duration
	Samples int
}

const (
	maxSamples = 64
	requestTTL = 10 * time.Second
)

type pendingRequest struct {
	sentAt time.Time
}

// Meter samples ping over time and exposes the ping/jitter values
// consumed by Buffer.
type Meter struct {
	samples []time.Duration // ring, most recent last
	pending map[uuid.UUID]pendingRequest
}

func New() *Meter {
	return &Meter{pending: make(map[uuid.UUID]pendingRequest)}
}

// BeginRequest records a new outstanding ping request and returns its
// correlation id.
func (m *Meter) BeginRequest(now time.Time) uuid.UUID {
	id := uuid.New()
	m.pending[id] = pendingRequest{sentAt: now}
	m.sweep(now)
	return id
}

// CompleteRequest resolves a pending request by id, recording its
// round-trip time as a new sample. Returns false if id is unknown or
// already expired.
func (m *Meter) CompleteRequest(id uuid.UUID, now time.Time) (time.Duration, bool) {
	req, ok := m.pending[id]
	if !ok {
		return 0, false
	}
	delete(m.pending, id)
	rtt := now.Sub(req.sentAt)
	m.record(rtt)
	return rtt, true
}

func (m *Meter) sweep(now time.Time) {
	for id, req := range m.pending {
		if now.Sub(req.sentAt) > requestTTL {
			delete(m.pending, id)
		}
	}
}

func (m *Meter) record(d time.Duration) {
	m.samples = append(m.samples, d)
	if len(m.samples) > maxSamples {
		m.samples = m.samples[len(m.samples)-maxSamples:]
	}
}

// Ping returns the most recent sample, or 0 if none yet.
func (m *Meter) Ping() time.Duration {
	if len(m.samples) == 0 {
		return 0
	}
	return m.samples[len(m.samples)-1]
}

// Jitter returns the mean absolute deviation between consecutive
// samples — the short-term ping variance named in the glossary.
func (m *Meter) Jitter() time.Duration {
	if len(m.samples) < 2 {
		return 0
	}
	var total time.Duration
	for i := 1; i < len(m.samples); i++ {
		diff := m.samples[i] - m.samples[i-1]
		if diff < 0 {
			diff = -diff
		}
		total += diff
	}
	return total / time.Duration(len(m.samples)-1)
}

// Stats returns the min/avg/max/samples summary over the current
// sample window.
func (m *Meter) Stats() Stats {
	if len(m.samples) == 0 {
		return Stats{}
	}
	min, max := m.samples[0], m.samples[0]
	var sum time.Duration
	for _, s := range m.samples {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
		sum += s
	}
	return Stats{Min: min, Max: max, Avg: sum / time.Duration(len(m.samples)), Samples: len(m.samples)}
}

// Buffer implements the `packet_buffer_ms` function named but undefined
// in the source: half the current round-trip estimate plus the jitter
// sample plus a caller-supplied offset, per the Open Question decision
// that keeps every §4.6/§4.7 call site internally consistent.
func (m *Meter) Buffer(offset time.Duration) time.Duration {
	return m.Jitter() + m.Ping()/2 + offset
}

// Reset clears sample history and pending requests, per §3's S_LOGIN
// reset rule.
func (m *Meter) Reset() {
	m.samples = nil
	m.pending = make(map[uuid.UUID]pendingRequest)
}
