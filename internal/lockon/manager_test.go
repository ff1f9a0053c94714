package lockon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/merusira/rival/internal/action"
	"github.com/merusira/rival/internal/effect"
	"github.com/merusira/rival/internal/entity"
	"github.com/merusira/rival/internal/eventbus"
	"github.com/merusira/rival/internal/gamedata"
	"github.com/merusira/rival/internal/hostapi"
	"github.com/merusira/rival/internal/wire"
)

const lockonSkillsYAML = `
skills:
  - skill_id: 100
    name: multi_lockon
    type: lockon
    max_lockon_by_class:
      default: 2
    lockon_rules:
      - kind: enemyOrPvp
        count: 2
  - skill_id: 200
    name: no_rules
    type: lockon
`

type recordedResult struct {
	targetID uint64
	success  bool
}

type fakeHost struct{ results []recordedResult }

func (h *fakeHost) Hook(wire.Name, int, hostapi.PacketHandler) hostapi.HookHandle { return nil }
func (h *fakeHost) Send(name wire.Name, payload any, fake bool) error {
	if name == wire.NameSCanLockonTarget {
		p := payload.(wire.LockonResultPacket)
		h.results = append(h.results, recordedResult{p.TargetID, p.Success})
	}
	return nil
}
func (h *fakeHost) QueryData(string) (any, bool)     { return nil, false }
func (h *fakeHost) ParseSystemMessage([]byte) string { return "" }
func (h *fakeHost) BuildSystemMessage(string) []byte { return nil }

func newFixtures(t *testing.T) (*Manager, *entity.Registry, *fakeHost, *action.Tracker) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "skills.yaml")
	os.WriteFile(path, []byte(lockonSkillsYAML), 0o644)
	skills, err := gamedata.LoadSkillTable(path)
	if err != nil {
		t.Fatalf("load skills: %v", err)
	}

	entities := entity.NewRegistry()
	effects := effect.New(skills, nil)
	bus := eventbus.New()
	actions := action.New(skills, effects, bus)
	actions.SetSelf(1)

	host := &fakeHost{}
	m := New(entities, skills, effects, actions, host)
	return m, entities, host, actions
}

func TestOnRequestAdmitsEnemyTarget(t *testing.T) {
	m, entities, host, actions := newFixtures(t)
	now := time.Unix(0, 0)
	actions.OnClientStage(wire.ActionStagePacket{EntityID: 1, Skill: 100, Stage: 0}, now)
	entities.Upsert(entity.Record{ID: 2, Relation: entity.RelationEnemy})

	m.OnRequest(wire.LockonRequestPacket{SkillID: 100, TargetID: 2}, 1, now)

	if len(host.results) != 1 || !host.results[0].success {
		t.Fatalf("expected enemy target to be admitted, got %+v", host.results)
	}
}

func TestOnRequestRejectsUnmatchedRelation(t *testing.T) {
	m, entities, host, actions := newFixtures(t)
	now := time.Unix(0, 0)
	actions.OnClientStage(wire.ActionStagePacket{EntityID: 1, Skill: 100, Stage: 0}, now)
	entities.Upsert(entity.Record{ID: 2, Relation: entity.RelationNeutral})

	m.OnRequest(wire.LockonRequestPacket{SkillID: 100, TargetID: 2}, 1, now)

	if len(host.results) != 1 || host.results[0].success {
		t.Fatalf("expected neutral target to be rejected, got %+v", host.results)
	}
}

func TestOnRequestDropsDuplicateSilently(t *testing.T) {
	m, entities, host, actions := newFixtures(t)
	now := time.Unix(0, 0)
	actions.OnClientStage(wire.ActionStagePacket{EntityID: 1, Skill: 100, Stage: 0}, now)
	entities.Upsert(entity.Record{ID: 2, Relation: entity.RelationEnemy})

	m.OnRequest(wire.LockonRequestPacket{SkillID: 100, TargetID: 2}, 1, now)
	m.OnRequest(wire.LockonRequestPacket{SkillID: 100, TargetID: 2}, 1, now)

	if len(host.results) != 1 {
		t.Fatalf("expected the second identical request to be dropped silently, got %+v", host.results)
	}
}

func TestResetsTargetListWhenStageAdvances(t *testing.T) {
	m, entities, host, actions := newFixtures(t)
	now := time.Unix(0, 0)
	actions.OnClientStage(wire.ActionStagePacket{EntityID: 1, Skill: 100, Stage: 0}, now)
	entities.Upsert(entity.Record{ID: 2, Relation: entity.RelationEnemy})
	m.OnRequest(wire.LockonRequestPacket{SkillID: 100, TargetID: 2}, 1, now)

	later := now.Add(time.Second)
	actions.OnClientStage(wire.ActionStagePacket{EntityID: 1, Skill: 100, Stage: 0}, later)
	m.OnRequest(wire.LockonRequestPacket{SkillID: 100, TargetID: 2}, 1, later)

	if len(host.results) != 2 || !host.results[1].success {
		t.Fatalf("expected target re-admitted after stage reset, got %+v", host.results)
	}
}

func TestOnRequestRejectsWhenNoMatchingTemplate(t *testing.T) {
	m, entities, host, actions := newFixtures(t)
	now := time.Unix(0, 0)
	actions.OnClientStage(wire.ActionStagePacket{EntityID: 1, Skill: 999, Stage: 0}, now)
	entities.Upsert(entity.Record{ID: 2, Relation: entity.RelationEnemy})

	m.OnRequest(wire.LockonRequestPacket{SkillID: 999, TargetID: 2}, 1, now)

	if len(host.results) != 1 || host.results[0].success {
		t.Fatalf("expected rejection for unknown skill, got %+v", host.results)
	}
}

func TestAdmitOverrideTakesPrecedenceOverBuiltinRules(t *testing.T) {
	m, entities, host, actions := newFixtures(t)
	now := time.Unix(0, 0)
	actions.OnClientStage(wire.ActionStagePacket{EntityID: 1, Skill: 100, Stage: 0}, now)
	entities.Upsert(entity.Record{ID: 2, Relation: entity.RelationNeutral})

	m.AdmitOverride = func(kind, relation string, pvpFlagged, isSelf bool) (bool, bool) {
		return true, true
	}

	m.OnRequest(wire.LockonRequestPacket{SkillID: 100, TargetID: 2}, 1, now)

	if len(host.results) != 1 || !host.results[0].success {
		t.Fatalf("expected the override to force admission despite the unmatched relation, got %+v", host.results)
	}
}

func TestAdmitOverrideFallsThroughWhenUndecided(t *testing.T) {
	m, entities, host, actions := newFixtures(t)
	now := time.Unix(0, 0)
	actions.OnClientStage(wire.ActionStagePacket{EntityID: 1, Skill: 100, Stage: 0}, now)
	entities.Upsert(entity.Record{ID: 2, Relation: entity.RelationEnemy})

	m.AdmitOverride = func(kind, relation string, pvpFlagged, isSelf bool) (bool, bool) {
		return false, false
	}

	m.OnRequest(wire.LockonRequestPacket{SkillID: 100, TargetID: 2}, 1, now)

	if len(host.results) != 1 || !host.results[0].success {
		t.Fatalf("expected fall-through to the built-in rule table to admit the enemy target, got %+v", host.results)
	}
}

func TestSuppressServerResultAlwaysTrue(t *testing.T) {
	m, _, _, _ := newFixtures(t)
	if !m.SuppressServerResult() {
		t.Fatal("expected server lockon results to always be suppressed")
	}
}
