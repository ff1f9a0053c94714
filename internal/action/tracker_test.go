package action

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/merusira/rival/internal/effect"
	"github.com/merusira/rival/internal/eventbus"
	"github.com/merusira/rival/internal/gamedata"
	"github.com/merusira/rival/internal/wire"
)

const trackerSkillsYAML = `
skills:
  - skill_id: 101100
    name: slash_combo
    type: normal
    stages:
      - duration_ms: 500
        anim_rate: 1.5
  - skill_id: 200100
    name: charge_skill
    type: movingCharge
    stages:
      - duration_ms: 300
        anim_rate: 1
      - duration_ms: 300
        anim_rate: 1
`

func newTestSkills(t *testing.T) *gamedata.SkillTable {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skills.yaml")
	if err := os.WriteFile(path, []byte(trackerSkillsYAML), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	st, err := gamedata.LoadSkillTable(path)
	if err != nil {
		t.Fatalf("load skills: %v", err)
	}
	return st
}

func TestClientStageZeroStartsNewActionWithNow(t *testing.T) {
	skills := newTestSkills(t)
	effects := effect.New(skills, nil)
	tr := New(skills, effects, eventbus.New())

	now := time.Now()
	tr.OnClientStage(wire.ActionStagePacket{Skill: 101100, Stage: 0}, now)

	view := tr.Client()
	if !view.InAction || view.InSpecialAction {
		t.Fatalf("expected in_action=true, in_special_action=false, got %+v", view)
	}
	if !view.Stage.StartTime.Equal(now) {
		t.Fatalf("expected start time %v, got %v", now, view.Stage.StartTime)
	}
	if view.Stage.Speed != 1.5 {
		t.Fatalf("expected speed 1.5, got %v", view.Stage.Speed)
	}
}

func TestClientStageNonZeroInheritsStartTime(t *testing.T) {
	skills := newTestSkills(t)
	effects := effect.New(skills, nil)
	tr := New(skills, effects, eventbus.New())

	start := time.Now()
	tr.OnClientStage(wire.ActionStagePacket{Skill: 101100, Stage: 0}, start)
	later := start.Add(200 * time.Millisecond)
	tr.OnClientStage(wire.ActionStagePacket{Skill: 101100, Stage: 1}, later)

	view := tr.Client()
	if !view.Stage.StartTime.Equal(start) {
		t.Fatalf("expected inherited start time %v, got %v", start, view.Stage.StartTime)
	}
	if !view.Stage.StageTime.Equal(later) {
		t.Fatalf("expected stage time %v, got %v", later, view.Stage.StageTime)
	}
}

func TestMovingChargeRecordsKeptStage(t *testing.T) {
	skills := newTestSkills(t)
	effects := effect.New(skills, nil)
	tr := New(skills, effects, eventbus.New())

	now := time.Now()
	tr.OnClientStage(wire.ActionStagePacket{Skill: 200100, Stage: 0}, now)
	tr.OnClientStage(wire.ActionStagePacket{Skill: 200100, Stage: 1}, now.Add(time.Second))

	if got := tr.Client().Stage.KeptMovingCharge; got != 0 {
		t.Fatalf("expected kept_moving_charge=0 on transition from stage 0, got %v", got)
	}
	tr.OnClientStage(wire.ActionStagePacket{Skill: 200100, Stage: 2}, now.Add(2*time.Second))
	if got := tr.Client().Stage.KeptMovingCharge; got != 1 {
		t.Fatalf("expected kept_moving_charge=1, got %v", got)
	}
}

func TestServerViewIsIndependentOfClientView(t *testing.T) {
	skills := newTestSkills(t)
	effects := effect.New(skills, nil)
	tr := New(skills, effects, eventbus.New())

	tr.OnClientStage(wire.ActionStagePacket{Skill: 101100, Stage: 0}, time.Now())
	if tr.Server().InAction {
		t.Fatal("expected server view unaffected by client stage")
	}
	tr.OnServerStage(wire.ActionStagePacket{Skill: 101100, Stage: 0}, time.Now())
	if !tr.Server().InAction {
		t.Fatal("expected server view in_action after server stage")
	}
	if !tr.Client().InAction {
		t.Fatal("expected client view still in_action independently")
	}
}

func TestOnSkillResultEmitsReactionAndSetsSpecialAction(t *testing.T) {
	skills := newTestSkills(t)
	effects := effect.New(skills, nil)
	bus := eventbus.New()
	tr := New(skills, effects, bus)
	tr.SetSelf(1)

	var got ReactionEvent
	var fired bool
	eventbus.Subscribe(bus, func(e ReactionEvent) { got = e; fired = true })

	now := time.Now()
	tr.OnSkillResult(wire.SkillResultPacket{
		SourceID: 2,
		TargetID: 1,
		Skill:    101100,
		Reaction: wire.ReactionInfo{Enable: true, ActionID: 55},
	}, now)

	if !fired {
		t.Fatal("expected reaction event to fire")
	}
	if got.ActionID != 55 {
		t.Fatalf("expected action id 55, got %v", got.ActionID)
	}
	view := tr.Client()
	if !view.InSpecialAction || view.Stage.Stage != StageReaction {
		t.Fatalf("expected in_special_action=true and stage=reaction, got %+v", view)
	}
}

func TestOnSkillResultIgnoresNonSelfTargetAndSelfSource(t *testing.T) {
	skills := newTestSkills(t)
	effects := effect.New(skills, nil)
	bus := eventbus.New()
	tr := New(skills, effects, bus)
	tr.SetSelf(1)

	fired := false
	eventbus.Subscribe(bus, func(ReactionEvent) { fired = true })

	tr.OnSkillResult(wire.SkillResultPacket{SourceID: 2, TargetID: 3, Reaction: wire.ReactionInfo{Enable: true}}, time.Now())
	tr.OnSkillResult(wire.SkillResultPacket{SourceID: 1, TargetID: 1, Reaction: wire.ReactionInfo{Enable: true}}, time.Now())

	if fired {
		t.Fatal("expected no reaction event for non-self-target or self-source results")
	}
}

func TestResetClearsBothViews(t *testing.T) {
	skills := newTestSkills(t)
	effects := effect.New(skills, nil)
	tr := New(skills, effects, eventbus.New())

	tr.OnClientStage(wire.ActionStagePacket{Skill: 101100, Stage: 0}, time.Now())
	tr.OnServerStage(wire.ActionStagePacket{Skill: 101100, Stage: 0}, time.Now())
	tr.Reset()

	if tr.Client().InAction || tr.Server().InAction {
		t.Fatal("expected both views cleared after reset")
	}
}
