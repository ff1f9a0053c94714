package gamedata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AbnormalityDef is the immutable definition of a buff/debuff, loaded from
// the game-data store (§4.6 "Look up abnormality data from game-data store").
type AbnormalityDef struct {
	ID       int32  `yaml:"id"`
	Name     string `yaml:"name"`
	TimeMs   int64  `yaml:"time_ms"` // default duration, used when no override is supplied
	Type     int    `yaml:"type"`    // e.g. 28/29/236 distance/charge-speed, 232 fear, 327 moving-charge

	// BySkillCategory lists skill categories this abnormality's modifier
	// contributions apply to, per §4.5.
	BySkillCategory []string `yaml:"by_skill_category"`

	// EffectValue is the magnitude contributed to dist/charge_speed when
	// Type is one of {28,29,236} and BySkillCategory matches, per §4.5.
	EffectValue float64 `yaml:"effect_value"`
}

type abnormalityFile struct {
	Abnormalities []AbnormalityDef `yaml:"abnormalities"`
}

// AbnormalityTable is the immutable, loaded-once registry of abnormality
// definitions.
type AbnormalityTable struct {
	byID map[int32]*AbnormalityDef
}

// LoadAbnormalityTable loads abnormality definitions from a YAML file.
func LoadAbnormalityTable(path string) (*AbnormalityTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gamedata: read abnormalities: %w", err)
	}
	var f abnormalityFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("gamedata: parse abnormalities: %w", err)
	}
	t := &AbnormalityTable{byID: make(map[int32]*AbnormalityDef, len(f.Abnormalities))}
	for i := range f.Abnormalities {
		a := &f.Abnormalities[i]
		t.byID[a.ID] = a
	}
	return t, nil
}

// Get returns an abnormality definition by id, or nil if not found.
func (t *AbnormalityTable) Get(id int32) *AbnormalityDef { return t.byID[id] }

// Count returns the number of loaded definitions.
func (t *AbnormalityTable) Count() int { return len(t.byID) }

// ByCategory returns every abnormality definition whose BySkillCategory
// list intersects categories — used by effect.GetAppliedEffects (§4.5).
func (t *AbnormalityTable) ByCategory(categories []string) []*AbnormalityDef {
	if len(categories) == 0 {
		return nil
	}
	want := make(map[string]bool, len(categories))
	for _, c := range categories {
		want[c] = true
	}
	var out []*AbnormalityDef
	for _, a := range t.byID {
		for _, c := range a.BySkillCategory {
			if want[c] {
				out = append(out, a)
				break
			}
		}
	}
	return out
}
