package skillmeta

import (
	"time"

	"github.com/merusira/rival/internal/gamedata"
	"github.com/merusira/rival/internal/wire"
)

// NewSkillData is the resolved outcome of §4.7.2 step 2's
// get_new_skill_data: the actual skill a grant/press/chain-adjusted
// request resolves to.
type NewSkillData struct {
	SkillID int32
	Type    gamedata.SkillType
	Failed  bool // the requested id has no template
	Cancel  bool // the request does not chain from the current action
	Future  bool // caller-supplied: request targets a not-yet-reached state
	TimeMs  int64
}

// ChainContext is the current-action context GetNewSkillData needs to
// decide whether a request chains from the skill in progress.
type ChainContext struct {
	InAction    bool
	CurrentType gamedata.SkillType
}

// GetNewSkillData resolves a raw wire skill id (masking the grant bit
// when byGrant is set) to its template, and determines whether it
// chains from the current action, per §4.7.2 step 2 / §3's chain map.
func (e *Evaluator) GetNewSkillData(rawSkillID int32, byGrant, press bool, ctx ChainContext) NewSkillData {
	parsed := wire.ParseSkillID(rawSkillID, byGrant)
	tmpl := e.skills.Get(parsed.ID)
	if tmpl == nil {
		return NewSkillData{SkillID: parsed.ID, Failed: true}
	}

	cancel := false
	if ctx.InAction {
		allowed, ok := tmpl.Chain[string(ctx.CurrentType)]
		if !ok {
			cancel = true
		} else {
			matched := false
			for _, state := range allowed {
				if (state == "press") == press {
					matched = true
					break
				}
			}
			cancel = !matched
		}
	}

	return NewSkillData{SkillID: parsed.ID, Type: tmpl.Type, Cancel: cancel}
}

// SkillDelay returns the skill's configured execution lead-in delay.
func (e *Evaluator) SkillDelay(skillID int32) time.Duration {
	tmpl := e.skills.Get(skillID)
	if tmpl == nil {
		return 0
	}
	return time.Duration(tmpl.SkillDelayMs) * time.Millisecond
}

// RawAnimationLength returns stage 0's configured duration, used by
// §4.7.3 step 4's "raw_animation_length(skill_id)==0" check.
func (e *Evaluator) RawAnimationLength(skillID int32) time.Duration {
	tmpl := e.skills.Get(skillID)
	if tmpl == nil || len(tmpl.Stages) == 0 {
		return 0
	}
	return time.Duration(tmpl.Stages[0].DurationMs) * time.Millisecond
}

// AnimationLength returns stage's duration scaled by speed, or -1 if
// stage is the skill's last stage (§4.7.4's "schedule next stage iff
// animation_length ≥ 0" check).
func (e *Evaluator) AnimationLength(skillID int32, stage int, speed float64) time.Duration {
	tmpl := e.skills.Get(skillID)
	if tmpl == nil || stage < 0 || stage >= len(tmpl.Stages)-1 {
		return -1
	}
	if speed == 0 {
		speed = 1
	}
	return time.Duration(float64(tmpl.Stages[stage].DurationMs)/speed) * time.Millisecond
}

// RetryCount returns the skill's configured retry iteration count.
func (e *Evaluator) RetryCount(skillID int32) int {
	tmpl := e.skills.Get(skillID)
	if tmpl == nil {
		return 0
	}
	return tmpl.RetryCount
}

// RetryDelay returns the skill's configured per-iteration retry delay.
func (e *Evaluator) RetryDelay(skillID int32) time.Duration {
	tmpl := e.skills.Get(skillID)
	if tmpl == nil {
		return 0
	}
	return time.Duration(tmpl.RetryDelayMs) * time.Millisecond
}

// AllowThroughFutureRetry reports the skill's retry-bypass flag.
func (e *Evaluator) AllowThroughFutureRetry(skillID int32) bool {
	tmpl := e.skills.Get(skillID)
	return tmpl != nil && tmpl.AllowThroughFutureRetry
}

// StageCount returns the skill's configured stage count.
func (e *Evaluator) StageCount(skillID int32) int {
	tmpl := e.skills.Get(skillID)
	if tmpl == nil {
		return 0
	}
	return tmpl.StageCount()
}

// IsMovingChargeAbnormality reports whether an abnormality with
// category-type value 327 applies to skillID's categories — the
// moving-charge branch test of §4.7.3 step 6.
func (e *Evaluator) IsMovingChargeAbnormality(skillID int32, isActive func(abnormalityID int32) bool, abnormalities *gamedata.AbnormalityTable) bool {
	tmpl := e.skills.Get(skillID)
	if tmpl == nil || abnormalities == nil {
		return false
	}
	const categoryType327 = 327
	for _, def := range abnormalities.ByCategory(tmpl.Categories) {
		if def.Type == categoryType327 && isActive(def.ID) {
			return true
		}
	}
	return false
}
