package gamedata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NpcInfo is the immutable template data for an NPC/mob type, grounded on
// the teacher's data.NpcTemplate but trimmed to the fields the entity
// registry needs to classify a visible entity (§3 EntityRecord.template_id).
type NpcInfo struct {
	TemplateID int32  `yaml:"template_id"`
	Name       string `yaml:"name"`
	MaxHP      int32  `yaml:"max_hp"`
	IsBoss     bool   `yaml:"is_boss"`
}

type npcFile struct {
	Npcs []NpcInfo `yaml:"npcs"`
}

// NpcTable is the immutable, loaded-once registry of NPC templates.
type NpcTable struct {
	byID map[int32]*NpcInfo
}

// LoadNpcTable loads NPC templates from a YAML file, grounded on the
// teacher's data.LoadNpcTable.
func LoadNpcTable(path string) (*NpcTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gamedata: read npcs: %w", err)
	}
	var f npcFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("gamedata: parse npcs: %w", err)
	}
	t := &NpcTable{byID: make(map[int32]*NpcInfo, len(f.Npcs))}
	for i := range f.Npcs {
		n := &f.Npcs[i]
		t.byID[n.TemplateID] = n
	}
	return t, nil
}

// Get returns an NPC template by id, or nil if not found.
func (t *NpcTable) Get(templateID int32) *NpcInfo { return t.byID[templateID] }

// Count returns the number of loaded templates.
func (t *NpcTable) Count() int { return len(t.byID) }

// Store bundles the three immutable game-data tables loaded once at
// client-ready (§3 "Lifecycle": "the game-data store is loaded once on
// client-ready and is immutable thereafter").
type Store struct {
	Skills        *SkillTable
	Abnormalities *AbnormalityTable
	Npcs          *NpcTable
}

// Load loads all three tables from the given directory's conventional
// file names.
func Load(dir string) (*Store, error) {
	skills, err := LoadSkillTable(dir + "/skills.yaml")
	if err != nil {
		return nil, err
	}
	abnormalities, err := LoadAbnormalityTable(dir + "/abnormalities.yaml")
	if err != nil {
		return nil, err
	}
	npcs, err := LoadNpcTable(dir + "/npcs.yaml")
	if err != nil {
		return nil, err
	}
	return &Store{Skills: skills, Abnormalities: abnormalities, Npcs: npcs}, nil
}
