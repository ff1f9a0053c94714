// Package position tracks the self-player's current facing and location
// and provides the distance and animSeq replay helpers — §2's "Position
// tracker" row. It schedules no periodic reaction-position tick.
package position

import (
	"math"

	"github.com/merusira/rival/internal/wire"
)

// Tracker holds the self-player's last known location and facing.
type Tracker struct {
	current wire.Loc
}

func New() *Tracker { return &Tracker{} }

// Set records the latest known location.
func (t *Tracker) Set(loc wire.Loc) { t.current = loc }

// Current returns the latest known location.
func (t *Tracker) Current() wire.Loc { return t.current }

// Reset clears tracked position, per §3's S_LOGIN reset rule.
func (t *Tracker) Reset() { t.current = wire.Loc{} }

// Dist2D returns the 2D (X/Y) Euclidean distance between two locations —
// the distance metric used throughout §4.6/§4.9's corrective logic.
func Dist2D(a, b wire.Loc) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// ApplyDistance offsets loc by d along facing w, and is its own inverse
// under negation (§8 round-trip law: ApplyDistance(loc, d) then
// ApplyDistance(result, -d) returns loc within float epsilon).
func ApplyDistance(loc wire.Loc, d float32) wire.Loc {
	loc.X += d * float32(math.Cos(float64(loc.W)))
	loc.Y += d * float32(math.Sin(float64(loc.W)))
	return loc
}

// DirectionModifier returns a per-skill/stage facing adjustment applied
// when replaying a server animSeq offset (§4.9). Skills with no
// configured modifier return 0.
func DirectionModifier(skillID int32, stage int, modifiers map[int32]map[int]float32) float32 {
	if byStage, ok := modifiers[skillID]; ok {
		return byStage[stage]
	}
	return 0
}

// ReplayAnimSeq computes the server-expected location by walking seq's
// distance offsets starting from origin along direction `w` (origin's
// facing plus any direction modifier), per §4.9: "compute the server's
// expected location by replaying its animSeq offsets from
// server_stage.loc along server_stage.w + directionModifier(...)".
// An empty seq returns origin unchanged, per §8's boundary behavior.
func ReplayAnimSeq(origin wire.Loc, w float32, seq []wire.AnimSeqEntry) wire.Loc {
	if len(seq) == 0 {
		return origin
	}
	loc := origin
	loc.W = w
	for _, step := range seq {
		loc = ApplyDistance(loc, step.Distance)
	}
	return loc
}
