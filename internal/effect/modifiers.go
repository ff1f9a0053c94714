// Package effect is the self-player's effect store: active abnormalities
// (client and server view), glyphs, held buffs, talents, skill polishing,
// category toggles, and armor rolls — §4.5's `{client_abnormality,
// server_abnormality, glyphs, held_buffs, talents, skill_polishing,
// category_enabled, armor_rolls}` — plus the GetAppliedEffects modifier
// fold consumed by the action tracker (§4.3) and emulation engine (§4.7).
package effect

import (
	"time"

	"github.com/merusira/rival/internal/gamedata"
)

// Modifiers is the combined contribution bundle returned by
// GetAppliedEffects, seeded to the initial values named in §4.5.
type Modifiers struct {
	AbnormSpeed  float64
	PassiveSpeed float64
	ChargeSpeed  float64
	Lockon       float64
	Block        bool
	Stamina      float64
	AttackSpeed  float64
	Reset        bool
	Dist         float64
	Noct         float64
	Transform    float64
	EffectScale  float64
}

// Initial returns the seed bundle §4.5 specifies before any contribution
// is folded in.
func Initial() Modifiers {
	return Modifiers{
		AbnormSpeed:  1,
		PassiveSpeed: 1,
		ChargeSpeed:  0,
		Lockon:       0,
		Block:        false,
		Stamina:      0,
		AttackSpeed:  1,
		Reset:        false,
		Dist:         1,
		Noct:         1,
		Transform:    0,
		EffectScale:  1,
	}
}

// abnormality category-type values that contribute distance/charge-speed
// bonuses when an active abnormality's bySkillCategory matches the
// casting skill, per §4.5.
const (
	typeDistanceA   = 28
	typeDistanceB   = 29
	typeChargeSpeed = 236
)

// AbnormalityRecord is one active buff/debuff entry, per §3's
// Abnormality record type and §4.5's begin/refresh write shape.
type AbnormalityRecord struct {
	ID             int32
	Stacks         int
	DurationMs     int64
	StartTime      time.Time
	StatusSnapshot string
}

// Store holds every piece of self-player effect state named in §4.5.
type Store struct {
	skills        *gamedata.SkillTable
	abnormalities *gamedata.AbnormalityTable

	clientAbnormality map[int32]AbnormalityRecord
	serverAbnormality map[int32]AbnormalityRecord

	glyphs          map[int32]bool
	heldBuffs       map[int32]bool
	talents         map[int32]bool
	skillPolishing  map[int32]bool
	categoryEnabled map[string]bool
	armorRolls      map[int32]int
}

func New(skills *gamedata.SkillTable, abnormalities *gamedata.AbnormalityTable) *Store {
	return &Store{
		abnormalities:     abnormalities,
		skills:            skills,
		clientAbnormality: make(map[int32]AbnormalityRecord),
		serverAbnormality: make(map[int32]AbnormalityRecord),
		glyphs:            make(map[int32]bool),
		heldBuffs:         make(map[int32]bool),
		talents:           make(map[int32]bool),
		skillPolishing:    make(map[int32]bool),
		categoryEnabled:   make(map[string]bool),
		armorRolls:        make(map[int32]int),
	}
}

// BeginClient writes a client-view abnormality record (begin or refresh
// use the same write shape per §4.5).
func (s *Store) BeginClient(rec AbnormalityRecord) { s.clientAbnormality[rec.ID] = rec }

// EndClient deletes a client-view abnormality record.
func (s *Store) EndClient(id int32) { delete(s.clientAbnormality, id) }

// GetClient returns the client-view record for id, if active.
func (s *Store) GetClient(id int32) (AbnormalityRecord, bool) {
	rec, ok := s.clientAbnormality[id]
	return rec, ok
}

// BeginServer writes a server-view abnormality record.
func (s *Store) BeginServer(rec AbnormalityRecord) { s.serverAbnormality[rec.ID] = rec }

// EndServer deletes a server-view abnormality record.
func (s *Store) EndServer(id int32) { delete(s.serverAbnormality, id) }

// GetServer returns the server-view record for id, if active.
func (s *Store) GetServer(id int32) (AbnormalityRecord, bool) {
	rec, ok := s.serverAbnormality[id]
	return rec, ok
}

// Has reports whether id is active in the client view — the presence
// check GetAppliedEffects uses for bySkillCategory matching.
func (s *Store) Has(id int32) bool {
	_, ok := s.clientAbnormality[id]
	return ok
}

// ActiveClient returns every active client-view abnormality record,
// unordered — used by the crowd-control handler to find the oldest active
// abnormality driving a stun/sleep early-end (§4.8).
func (s *Store) ActiveClient() []AbnormalityRecord {
	out := make([]AbnormalityRecord, 0, len(s.clientAbnormality))
	for _, rec := range s.clientAbnormality {
		out = append(out, rec)
	}
	return out
}

// AbnormalityType returns the loaded numeric type tag for an abnormality
// id, or -1 if unknown — used for type-code checks like §4.8's fear (232).
func (s *Store) AbnormalityType(id int32) int {
	if s.abnormalities == nil {
		return -1
	}
	def := s.abnormalities.Get(id)
	if def == nil {
		return -1
	}
	return def.Type
}

// OnDeath clears both abnormality maps on self death
// (S_CREATURE_LIFE, alive=false for self); every other map persists,
// per §4.5.
func (s *Store) OnDeath() {
	s.clientAbnormality = make(map[int32]AbnormalityRecord)
	s.serverAbnormality = make(map[int32]AbnormalityRecord)
}

// Reset clears the entire store, per §3's S_LOGIN reset rule.
func (s *Store) Reset() {
	s.clientAbnormality = make(map[int32]AbnormalityRecord)
	s.serverAbnormality = make(map[int32]AbnormalityRecord)
	s.glyphs = make(map[int32]bool)
	s.heldBuffs = make(map[int32]bool)
	s.talents = make(map[int32]bool)
	s.skillPolishing = make(map[int32]bool)
	s.categoryEnabled = make(map[string]bool)
	s.armorRolls = make(map[int32]int)
}

func (s *Store) SetGlyph(id int32, on bool)     { setFlag(s.glyphs, id, on) }
func (s *Store) HasGlyph(id int32) bool         { return s.glyphs[id] }
func (s *Store) SetHeldBuff(id int32, on bool)  { setFlag(s.heldBuffs, id, on) }
func (s *Store) HasHeldBuff(id int32) bool      { return s.heldBuffs[id] }
func (s *Store) SetTalent(id int32, on bool)    { setFlag(s.talents, id, on) }
func (s *Store) HasTalent(id int32) bool        { return s.talents[id] }

func (s *Store) SetSkillPolishing(id int32, on bool) { setFlag(s.skillPolishing, id, on) }
func (s *Store) HasSkillPolishing(id int32) bool     { return s.skillPolishing[id] }

func (s *Store) SetCategoryEnabled(category string, on bool) { s.categoryEnabled[category] = on }
func (s *Store) IsCategoryEnabled(category string) bool      { return s.categoryEnabled[category] }

func (s *Store) SetArmorRoll(slot int32, roll int) { s.armorRolls[slot] = roll }
func (s *Store) ArmorRoll(slot int32) int          { return s.armorRolls[slot] }

func setFlag(m map[int32]bool, id int32, on bool) {
	if on {
		m[id] = true
	} else {
		delete(m, id)
	}
}

// GetAppliedEffects folds a skill's own appliedEffects table together
// with every currently active (client-view) abnormality whose
// bySkillCategory matches the skill's categories, per §4.5.
func (s *Store) GetAppliedEffects(skillID int32) Modifiers {
	m := Initial()

	tmpl := s.skills.Get(skillID)
	if tmpl == nil {
		return m
	}

	for _, e := range tmpl.AppliedEffects {
		applyStat(&m, e.Stat, e.Value)
	}

	if s.abnormalities == nil || len(tmpl.Categories) == 0 {
		return m
	}
	for _, def := range s.abnormalities.ByCategory(tmpl.Categories) {
		if !s.Has(def.ID) {
			continue
		}
		switch def.Type {
		case typeDistanceA, typeDistanceB:
			m.Dist += def.EffectValue
		case typeChargeSpeed:
			m.ChargeSpeed += def.EffectValue
		}
	}
	return m
}

func applyStat(m *Modifiers, stat string, value float64) {
	switch stat {
	case "abnorm_speed":
		m.AbnormSpeed += value
	case "passive_speed":
		m.PassiveSpeed += value
	case "charge_speed":
		m.ChargeSpeed += value
	case "lockon":
		m.Lockon += value
	case "block":
		m.Block = m.Block || value != 0
	case "stamina":
		m.Stamina += value
	case "attack_speed":
		m.AttackSpeed += value
	case "reset":
		m.Reset = m.Reset || value != 0
	case "dist":
		m.Dist += value
	case "noct":
		m.Noct += value
	case "transform":
		m.Transform += value
	case "effect_scale":
		m.EffectScale += value
	}
}
