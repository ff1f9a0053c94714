// Package skillmeta holds the behavioral tables the emulation engine
// consults when deciding whether and how fast a skill-start request may
// proceed: the can_cast result-code enumeration, per-skill delay/retry
// lookups, and chain resolution (§4.7, §9 Open Questions).
package skillmeta

import "github.com/merusira/rival/internal/gamedata"

// CanCast is the integer result of evaluating whether a skill-start
// request may proceed, per §4.7.2 step 2. The fixed enumeration below is
// the complete set of codes named across §4.7 and §7's error-policy
// table — nothing beyond what those sections name is invented.
type CanCast int

const (
	CanCastFuture          CanCast = -2
	CanCastNotLearned      CanCast = -3
	CanCastSpecialSilent   CanCast = -4
	CanCastBlockedByCC     CanCast = -11
	CanCastOnCooldown      CanCast = -12
	CanCastInsufficientRes CanCast = -17
	CanCastDisabled        CanCast = -999
	CanCastServerVetoed    CanCast = -3737
)

// OK reports whether code represents a castable result (≥0 per §4.7.2).
func (c CanCast) OK() bool { return c >= 0 }

// Excluded reports whether code is one of the "excluded" codes that
// §4.7.3 step 3 treats as never releasing the outbound to the server:
// {-11,-17,-3737,-999}.
func (c CanCast) Excluded() bool {
	switch c {
	case CanCastBlockedByCC, CanCastInsufficientRes, CanCastServerVetoed, CanCastDisabled:
		return true
	default:
		return false
	}
}

// Options bundles the evaluation context can_cast needs beyond the
// skill's own static data.
type Options struct {
	CanCastFn func(skillID int32) (bool, error) // false + nil error => not learned; external check (inventory/level/etc.)
	CC        bool                              // blocked by crowd control
	Resources bool                              // sufficient mp/hp/stamina
	Disabled  bool                              // disabled by settings
	Future    bool                              // request targets a future/buffered state
}

// Evaluator answers can_cast for a resolved skill, consulting the
// cooldown and game-data dependencies it needs.
type Evaluator struct {
	skills       *gamedata.SkillTable
	isOnCooldown func(skillID int32) bool
}

func NewEvaluator(skills *gamedata.SkillTable, isOnCooldown func(skillID int32) bool) *Evaluator {
	return &Evaluator{skills: skills, isOnCooldown: isOnCooldown}
}

// CanCastSkill implements §4.7.2 step 2's can_cast evaluation order:
// disabled-by-settings, future, not-learned, cooldown, cc, resources,
// else ok.
func (e *Evaluator) CanCastSkill(skillID int32, opts Options) CanCast {
	if opts.Disabled {
		return CanCastDisabled
	}
	if opts.Future {
		return CanCastFuture
	}
	if e.skills.Get(skillID) == nil {
		return CanCastNotLearned
	}
	if opts.CanCastFn != nil {
		if ok, err := opts.CanCastFn(skillID); !ok && err == nil {
			return CanCastNotLearned
		}
	}
	if e.isOnCooldown != nil && e.isOnCooldown(skillID) {
		return CanCastOnCooldown
	}
	if opts.CC {
		return CanCastBlockedByCC
	}
	if !opts.Resources {
		return CanCastInsufficientRes
	}
	return CanCast(0)
}
