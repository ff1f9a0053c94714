// Package lastevent is the time-indexed cache of the most recent skill
// packets and movement updates, keyed by packet type and skill id — §2's
// "Last-event cache" row, consumed by reconciliation logic throughout
// §4.5/§4.6/§4.7 that needs "the most recent X for skill Y".
package lastevent

import (
	"time"

	"github.com/merusira/rival/internal/wire"
)

// Entry wraps a cached packet with its arrival time, the §9 "strict
// {name, received_at} wrapper" that replaces the source's dynamically
// typed _name/_time metadata fields.
type Entry struct {
	Name       wire.Name
	ReceivedAt time.Time
	Payload    any
}

type key struct {
	name    wire.Name
	skillID int32
}

// Cache stores the most recent entry per (name, skillID). A skillID of 0
// is used for movement updates and other non-skill-keyed packets.
type Cache struct {
	entries map[key]Entry
}

func New() *Cache {
	return &Cache{entries: make(map[key]Entry)}
}

// Put records the most recent packet of (name, skillID).
func (c *Cache) Put(name wire.Name, skillID int32, payload any, at time.Time) {
	c.entries[key{name: name, skillID: skillID}] = Entry{Name: name, ReceivedAt: at, Payload: payload}
}

// Get returns the most recent entry for (name, skillID), and whether one
// exists.
func (c *Cache) Get(name wire.Name, skillID int32) (Entry, bool) {
	e, ok := c.entries[key{name: name, skillID: skillID}]
	return e, ok
}

// Reset clears the cache, per §3's S_LOGIN reset rule (the cache holds no
// data that should outlive a character session).
func (c *Cache) Reset() {
	c.entries = make(map[key]Entry)
}
