// Package hostapi is the boundary between the interception logic and the
// externally-provided game-client host runtime: hook/unhook, send,
// query_data, parse_system_message, build_system_message, generalizing
// the teacher's internal/handler.Deps manager-interface pattern from a
// fixed set of concrete managers to a single small interface the host
// process implements once.
//
// Every package above this one (emulation, cc, antidesync, lockon,
// abnormality, ...) talks to the host exclusively through Host — never
// through internal/hostproxy, which exists only to drive this interface
// in local manual testing (§3's acyclic-ownership invariant: the
// interception core never imports a concrete transport).
package hostapi

import "github.com/merusira/rival/internal/wire"

// PacketHandler is invoked by the host for every packet of a hooked
// name. fake reports whether the packet was synthesized locally rather
// than received from the real server. Returning suppress=true stops the
// packet from reaching its original destination.
type PacketHandler func(fake bool, payload any) (suppress bool)

// HookHandle lets a caller cancel a registered hook.
type HookHandle interface {
	Unhook()
}

// Host is the externally-provided runtime the interceptor drives. It is
// implemented once per deployment target: hostproxy's local TCP relay
// for manual testing, and the real game-client hook layer in production.
type Host interface {
	// Hook registers fn to run for every packet named name, in ascending
	// order, and returns a handle that unregisters it.
	Hook(name wire.Name, order int, fn PacketHandler) HookHandle

	// Send transmits a packet to the client (fake=true) or server
	// (fake=false need not apply; Send always targets the client side
	// the interceptor sits in front of).
	Send(name wire.Name, payload any, fake bool) error

	// QueryData reads a host-side value by key (e.g. current ping,
	// server time offset) not otherwise available from tracked packets.
	QueryData(key string) (any, bool)

	// ParseSystemMessage decodes a raw system/chat message payload into
	// its text, used by internal/cli to recognize command input.
	ParseSystemMessage(raw []byte) string

	// BuildSystemMessage encodes text into the wire shape of a system
	// message, used by internal/cli to print command output.
	BuildSystemMessage(text string) []byte
}
