// Package gamedata is the immutable, per-session game-data store: skill
// templates, abnormality definitions, and NPC info, loaded once at
// client-ready and never mutated thereafter (§3 "Lifecycle").
//
// Grounded on the teacher's internal/data/{skill,npc}.go YAML-table
// loaders (map[id]*Template, a byName index, Get/Count/All accessors);
// field sets are replaced to match the action-MMO skill template shape
// of §3, and the loader gains the nested stage/chain/abnormality tables
// that §3 requires and the Lineage skill sheet never had.
package gamedata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SkillType discriminates the behavioral families named in §3.
type SkillType string

const (
	TypeNormal        SkillType = "normal"
	TypeProjectile     SkillType = "projectile"
	TypeDrain          SkillType = "drain"
	TypeLockon         SkillType = "lockon"
	TypeMovingSkill    SkillType = "movingSkill"
	TypeMovingCharge   SkillType = "movingCharge"
	TypeDash           SkillType = "dash"
	TypeDefence        SkillType = "defence"
	TypeMovingDefence  SkillType = "movingDefence"
	TypePressHit       SkillType = "pressHit"
	TypeHold           SkillType = "hold"
	TypeReaction       SkillType = "reaction"
)

// IsSpecial reports whether t is one of the cooldown-group-excluded
// "special" types from the glossary: {projectile, drain, lockon, movingSkill}.
func (t SkillType) IsSpecial() bool {
	switch t {
	case TypeProjectile, TypeDrain, TypeLockon, TypeMovingSkill:
		return true
	default:
		return false
	}
}

// Stage is one action-stage entry of a skill template.
type Stage struct {
	DurationMs int64   `yaml:"duration_ms"`
	AnimRate   float64 `yaml:"anim_rate"`
	Movable    bool    `yaml:"movable"`
}

// AbnormalityConsumeEntry schedules the end of an abnormality relative to a
// stage or to action-end, per §4.6.
type AbnormalityConsumeEntry struct {
	AbnormalityID int32 `yaml:"abnormality_id"`
	DelayMs       int64 `yaml:"delay_ms"`
	Fixed         bool  `yaml:"fixed"`   // true: use speed.fixed; false: speed.variable
	NoTimer       bool  `yaml:"no_timer"` // end-only: schedule with a fresh timeout, don't overwrite the tracked one
}

// AbnormalityApplyEntry schedules the start of an abnormality relative to
// stage 0, per §4.6.
type AbnormalityApplyEntry struct {
	AbnormalityID   int32  `yaml:"abnormality_id"`
	DelayMs         int64  `yaml:"delay_ms"`
	Fixed           bool   `yaml:"fixed"`
	DurationOverride *int64 `yaml:"duration_override,omitempty"`
}

// LockonRuleKind selects which target-admission predicate a lockon rule
// uses, per §4.10.
type LockonRuleKind string

const (
	LockonEnemyOrPvp    LockonRuleKind = "enemyOrPvp"
	LockonAllyExceptMe  LockonRuleKind = "allyExceptMe"
	LockonRaid          LockonRuleKind = "raid"
	LockonRaidExceptMe  LockonRuleKind = "raidExceptMe"
)

// LockonRule is one admission rule tried, in order, by the lockon manager.
type LockonRule struct {
	Kind  LockonRuleKind `yaml:"kind"`
	Count int            `yaml:"count"`
}

// SkillTemplate is the immutable per-skill behavioral descriptor of §3.
type SkillTemplate struct {
	SkillID int32     `yaml:"skill_id"`
	Name    string    `yaml:"name"`
	Type    SkillType `yaml:"type"`

	Stages []Stage `yaml:"stages"`

	CooldownMs int64 `yaml:"cooldown_ms"`
	MpCost     int   `yaml:"mp_cost"`
	HpCost     int   `yaml:"hp_cost"`

	// MaxLockonByClass maps a target-class key (e.g. "default", "boss") to
	// the max simultaneous lockon targets for that class.
	MaxLockonByClass map[string]int `yaml:"max_lockon_by_class"`
	LockonRules      []LockonRule   `yaml:"lockon_rules"`

	// Chain maps a predecessor skill's terminal type to the set of stage-0
	// states this skill may continue into.
	Chain map[string][]string `yaml:"chain"`

	AbnormalityApply        []AbnormalityApplyEntry  `yaml:"abnormality_apply"`
	AbnormalityConsumeStage []AbnormalityConsumeEntry `yaml:"abnormality_consume_stage"`
	AbnormalityConsumeEnd   []AbnormalityConsumeEntry `yaml:"abnormality_consume_end"`

	// NextSkill is non-zero when this skill is multi-stage (§3).
	NextSkill int32 `yaml:"next_skill"`

	RetryCount             int   `yaml:"retry_count"`
	RetryDelayMs           int64 `yaml:"retry_delay_ms"`
	AllowThroughFutureRetry bool `yaml:"allow_through_future_retry"`

	// SkillDelayMs is the execution lead-in delay skillmeta.SkillDelay
	// folds into §4.7.2 step 4's delay computation.
	SkillDelayMs int64 `yaml:"skill_delay_ms"`

	OnlyAfterDefenceSuccess bool `yaml:"only_after_defence_success"`
	HoldIfNotMoving         bool `yaml:"hold_if_not_moving"`

	// Categories drives bySkillCategory abnormality matching in §4.5.
	Categories []string `yaml:"categories"`

	// AppliedEffects is the skill's own contribution table (abnormal,
	// passivity, skill-polishing, talent sources), combined in §4.5 with
	// any matching active abnormality's bySkillCategory contribution.
	AppliedEffects []AppliedEffectEntry `yaml:"applied_effects"`

	// MaxStack and NextStackCooldownMs describe a stack-charge skill's
	// cooldown data, consulted by cooldown.Ledger.IsOnCooldown (§4.4).
	// MaxStack of 0 means the skill carries no stack data.
	MaxStack            int   `yaml:"max_stack"`
	NextStackCooldownMs int64 `yaml:"next_stack_cooldown_ms"`

	// TypeCode is the skill's raw numeric type tag, distinct from Type's
	// behavioral family string — §4.8's "current skill type 27" retaliate
	// check reads this field rather than the behavioral Type.
	TypeCode int `yaml:"type_code"`
}

// AppliedEffectSource names where a modifier contribution in §4.5's
// applied-effects table originates.
type AppliedEffectSource string

const (
	SourceAbnormal   AppliedEffectSource = "abnormal"
	SourcePassivity  AppliedEffectSource = "passivity"
	SourcePolishing  AppliedEffectSource = "polishing"
	SourceTalent     AppliedEffectSource = "talent"
)

// AppliedEffectEntry is one modifier contribution in a skill's
// appliedEffects table, per §4.5.
type AppliedEffectEntry struct {
	Source AppliedEffectSource `yaml:"source"`
	Stat   string              `yaml:"stat"` // field name in effect.Modifiers, e.g. "abnorm_speed"
	Value  float64             `yaml:"value"`
}

// GetSpeed returns the skill's stage-0 animation rate as its nominal
// playback speed, or 1.0 when the skill has no stage data — the value
// captured into an action stage's `speed` field on stage 0 (§4.3).
func (t *SkillTable) GetSpeed(skillID int32) float64 {
	s := t.Get(skillID)
	if s == nil || len(s.Stages) == 0 {
		return 1.0
	}
	if s.Stages[0].AnimRate == 0 {
		return 1.0
	}
	return s.Stages[0].AnimRate
}

// IsMultiStage reports whether the skill's template chains into another
// skill (§3, §4.4 rule 2).
func (s *SkillTemplate) IsMultiStage() bool { return s.NextSkill != 0 }

// StageCount returns the number of stages, defensively treating a missing
// stage list as a single implicit stage.
func (s *SkillTemplate) StageCount() int {
	if len(s.Stages) == 0 {
		return 1
	}
	return len(s.Stages)
}

// StageAt returns stage i, or the zero Stage if out of range.
func (s *SkillTemplate) StageAt(i int) Stage {
	if i < 0 || i >= len(s.Stages) {
		return Stage{}
	}
	return s.Stages[i]
}

type skillFile struct {
	Skills []SkillTemplate `yaml:"skills"`
}

// SkillTable is the immutable, loaded-once registry of skill templates.
type SkillTable struct {
	byID   map[int32]*SkillTemplate
	byName map[string]*SkillTemplate
}

// LoadSkillTable loads skill templates from a YAML file, grounded on the
// teacher's data.LoadSkillTable.
func LoadSkillTable(path string) (*SkillTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gamedata: read skills: %w", err)
	}
	var f skillFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("gamedata: parse skills: %w", err)
	}
	t := &SkillTable{
		byID:   make(map[int32]*SkillTemplate, len(f.Skills)),
		byName: make(map[string]*SkillTemplate, len(f.Skills)),
	}
	for i := range f.Skills {
		s := &f.Skills[i]
		t.byID[s.SkillID] = s
		if s.Name != "" {
			t.byName[s.Name] = s
		}
	}
	return t, nil
}

// Get returns a skill template by id, or nil if not found.
func (t *SkillTable) Get(skillID int32) *SkillTemplate { return t.byID[skillID] }

// GetByName returns a skill template by exact name, or nil if not found.
func (t *SkillTable) GetByName(name string) *SkillTemplate { return t.byName[name] }

// Count returns the number of loaded templates.
func (t *SkillTable) Count() int { return len(t.byID) }
