// Package smoothblock strips the super-armor flag from inbound
// skill-result packets when enabled, so the client plays its hit
// reaction instead of being held rigid by a flag the real server set —
// a single-purpose toggle with no teacher analogue, grounded on the
// rest of the module's small single-struct handler shape.
package smoothblock

import "github.com/merusira/rival/internal/wire"

// Stripper strips the super-armor flag from inbound skill-result
// packets while enabled.
type Stripper struct {
	enabled bool
}

func New() *Stripper { return &Stripper{} }

// SetEnabled toggles stripping on or off.
func (s *Stripper) SetEnabled(on bool) { s.enabled = on }

// Enabled reports the current toggle state.
func (s *Stripper) Enabled() bool { return s.enabled }

// Apply strips pkt.SuperArmor when enabled, leaving the packet
// untouched otherwise.
func (s *Stripper) Apply(pkt *wire.SkillResultPacket) {
	if s.enabled {
		pkt.SuperArmor = false
	}
}
