// Package antidesync detects client/server position divergence during
// skill usage and corrects it, per §4.9: for every outbound skill-start,
// player-location, or in-action location packet, compare the client's
// claimed location against the location the server's own action-stage
// animSeq would have produced, and rewrite or suppress the outbound
// packet — or the self-emulated action end — accordingly.
//
// Grounded on internal/position's Dist2D/ReplayAnimSeq/DirectionModifier
// helpers and internal/action's dual client/server Tracker views; the
// detector itself has no teacher analogue (the source server never
// second-guesses its own authority), so its shape follows the same
// single-struct, host-Send-at-the-edge pattern as internal/cc and
// internal/emulation.
package antidesync

import (
	"time"

	"github.com/merusira/rival/internal/action"
	"github.com/merusira/rival/internal/gamedata"
	"github.com/merusira/rival/internal/hostapi"
	"github.com/merusira/rival/internal/position"
	"github.com/merusira/rival/internal/wire"
)

// excludedTypeCode is the server action type-code §4.9 exempts from
// divergence checks outright.
const excludedTypeCode = 42

// maxServerActionAge is the ceiling on how stale the server's action
// stage may be before it stops being trusted as a divergence reference.
const maxServerActionAge = 2500 * time.Millisecond

// BackCorrectionFunc lets a host-wiring layer substitute a user-authored
// back-correction curve (internal/rulescript's desync_back_correction
// predicate) for the plain configured distance. It receives the
// currently configured distance and returns the distance to actually
// apply.
type BackCorrectionFunc func(dist float64) float64

// Corrector is the §4.9 anti-desync detector/corrector.
type Corrector struct {
	skills  *gamedata.SkillTable
	actions *action.Tracker
	host    hostapi.Host

	// RuleOverride, when set, transforms backCorrection before it's
	// applied in RewriteNotifyLocation.
	RuleOverride BackCorrectionFunc

	backCorrection     float64
	directionModifiers map[int32]map[int]float32
}

func New(skills *gamedata.SkillTable, actions *action.Tracker, host hostapi.Host) *Corrector {
	return &Corrector{skills: skills, actions: actions, host: host}
}

// SetBackCorrection sets the configurable back-correction distance used
// by C_NOTIFY_LOCATION_IN_ACTION rewrites, settable via the `desync`
// diagnostic CLI command (§6).
func (c *Corrector) SetBackCorrection(d float64) { c.backCorrection = d }

// SetDirectionModifiers installs the per-skill/stage facing-adjustment
// table consulted by position.DirectionModifier.
func (c *Corrector) SetDirectionModifiers(m map[int32]map[int]float32) {
	c.directionModifiers = m
}

// serverExpected computes the server's expected location by replaying
// its current action stage's animSeq, or reports ok=false when the
// server stage doesn't qualify for a divergence check at all.
func (c *Corrector) serverExpected(now time.Time) (wire.Loc, bool) {
	server := c.actions.Server()
	if server.Stage == nil || !server.InAction {
		return wire.Loc{}, false
	}
	stage := server.Stage

	age := now.Sub(stage.StartTime)
	if age < 0 || age > maxServerActionAge {
		return wire.Loc{}, false
	}
	if len(stage.AnimSeq) == 0 {
		return wire.Loc{}, false
	}
	if tmpl := c.skills.Get(stage.Skill); tmpl != nil && tmpl.TypeCode == excludedTypeCode {
		return wire.Loc{}, false
	}

	mod := position.DirectionModifier(stage.Skill, stage.Stage, c.directionModifiers)
	expected := position.ReplayAnimSeq(stage.Loc, stage.Loc.W+mod, stage.AnimSeq)
	return expected, true
}

// desynced reports the server-expected location and whether clientLoc
// diverges from it beyond the client's own current movement distance,
// per §4.9's dist2D comparison.
func (c *Corrector) desynced(clientLoc wire.Loc, now time.Time) (wire.Loc, bool) {
	expected, ok := c.serverExpected(now)
	if !ok {
		return wire.Loc{}, false
	}

	client := c.actions.Client()
	clientStageLoc := wire.Loc{}
	if client.Stage != nil {
		clientStageLoc = client.Stage.Loc
	}

	if position.Dist2D(clientLoc, expected) > position.Dist2D(clientStageLoc, clientLoc) {
		return expected, true
	}
	return wire.Loc{}, false
}

// RewriteSkillStart rewrites an outbound skill-start packet's location to
// the server-expected location when desynchronized, per §4.9's skill-start
// policy.
func (c *Corrector) RewriteSkillStart(pkt *wire.StartSkillPacket, now time.Time) {
	if expected, ok := c.desynced(pkt.Loc, now); ok {
		pkt.Loc = expected
	}
}

// SuppressPlayerLocation reports whether an outbound C_PLAYER_LOCATION
// should be dropped entirely, per §4.9's player-location policy.
func (c *Corrector) SuppressPlayerLocation(pkt wire.PlayerLocationPacket, now time.Time) bool {
	_, ok := c.desynced(pkt.Loc, now)
	return ok
}

// RewriteNotifyLocation applies the configurable back-correction distance
// along the server-expected facing vector, per §4.9's
// C_NOTIFY_LOCATION_IN_ACTION policy.
func (c *Corrector) RewriteNotifyLocation(pkt *wire.NotifyLocationPacket, now time.Time) {
	expected, ok := c.desynced(pkt.Loc, now)
	if !ok {
		return
	}
	dist := c.backCorrection
	if c.RuleOverride != nil {
		dist = c.RuleOverride(dist)
	}
	pkt.Loc = position.ApplyDistance(expected, float32(dist))
}

// RewriteSelfEmulatedEnd rewrites a self-emulated S_ACTION_END's location
// to the server-expected location and additionally emits S_INSTANT_MOVE,
// per §4.9's action-end policy.
func (c *Corrector) RewriteSelfEmulatedEnd(entityID uint64, pkt *wire.ActionEndPacket, now time.Time) {
	expected, ok := c.desynced(pkt.Loc, now)
	if !ok {
		return
	}
	pkt.Loc = expected
	c.host.Send(wire.NameSInstantMove, wire.InstantMovePacket{EntityID: entityID, Loc: expected}, true)
}
