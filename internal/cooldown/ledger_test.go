package cooldown

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/merusira/rival/internal/eventbus"
	"github.com/merusira/rival/internal/gamedata"
	"github.com/merusira/rival/internal/wire"
)

const ledgerSkillsYAML = `
skills:
  - skill_id: 101100
    name: combo_1
    type: normal
    next_skill: 101200
  - skill_id: 101200
    name: combo_2
    type: normal
  - skill_id: 300100
    name: arrow_shot
    type: projectile
    next_skill: 300200
  - skill_id: 400100
    name: charge_strike
    type: normal
    max_stack: 2
    next_stack_cooldown_ms: 1000
`

func newLedgerSkills(t *testing.T) *gamedata.SkillTable {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skills.yaml")
	if err := os.WriteFile(path, []byte(ledgerSkillsYAML), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	st, err := gamedata.LoadSkillTable(path)
	if err != nil {
		t.Fatalf("load skills: %v", err)
	}
	return st
}

func TestOnCooldownWritesRawNormalizedAndGroupForMultiStage(t *testing.T) {
	skills := newLedgerSkills(t)
	l := New(skills, eventbus.New())
	now := time.Now()

	l.OnCooldown(wire.CooldownPacket{SkillID: 101100, CooldownMs: 5000}, now)

	if _, ok := l.clientSkill[101100]; !ok {
		t.Fatal("expected raw entry")
	}
	norm := normalizedID(101100)
	if _, ok := l.clientSkill[norm]; !ok {
		t.Fatal("expected normalized entry")
	}
	if _, ok := l.clientGroup[wire.GroupID(101100)]; !ok {
		t.Fatal("expected group entry for multi-stage non-special skill")
	}
}

func TestOnCooldownSkipsGroupForSpecialType(t *testing.T) {
	skills := newLedgerSkills(t)
	l := New(skills, eventbus.New())
	l.OnCooldown(wire.CooldownPacket{SkillID: 300100, CooldownMs: 5000}, time.Now())

	if _, ok := l.clientGroup[wire.GroupID(300100)]; ok {
		t.Fatal("expected no group entry for special (projectile) type even though multi-stage")
	}
}

func TestOnCooldownMirrorsToServerWhenNotFromServer(t *testing.T) {
	skills := newLedgerSkills(t)
	l := New(skills, eventbus.New())
	l.OnCooldown(wire.CooldownPacket{SkillID: 101100, CooldownMs: 5000, FromServer: false}, time.Now())

	if _, ok := l.serverSkill[101100]; !ok {
		t.Fatal("expected server mirror when not from_server")
	}
}

func TestOnCooldownDoesNotMirrorToServerWhenFromServer(t *testing.T) {
	skills := newLedgerSkills(t)
	l := New(skills, eventbus.New())
	l.OnCooldown(wire.CooldownPacket{SkillID: 101100, CooldownMs: 5000, FromServer: true}, time.Now())

	if _, ok := l.serverSkill[101100]; ok {
		t.Fatal("expected no server mirror when from_server=true")
	}
}

func TestOnResetZeroesAndEmits(t *testing.T) {
	skills := newLedgerSkills(t)
	bus := eventbus.New()
	l := New(skills, bus)
	now := time.Now()
	l.OnCooldown(wire.CooldownPacket{SkillID: 101100, CooldownMs: 5000}, now)

	var got ResetEvent
	fired := false
	eventbus.Subscribe(bus, func(e ResetEvent) { got = e; fired = true })

	l.OnReset(101100, false, now.Add(time.Second))

	if !fired || got.SkillID != 101100 {
		t.Fatalf("expected reset event for skill 101100, got fired=%v %+v", fired, got)
	}
	if l.clientSkill[101100].CooldownMs != 0 || l.clientSkill[normalizedID(101100)].CooldownMs != 0 {
		t.Fatal("expected raw and normalized cooldown entries zeroed after reset")
	}
}

func TestIsOnCooldownSimpleTimeCheck(t *testing.T) {
	skills := newLedgerSkills(t)
	l := New(skills, eventbus.New())
	now := time.Now()
	l.OnCooldown(wire.CooldownPacket{SkillID: 101200, CooldownMs: 1000}, now)

	if !l.IsOnCooldown(101200, 0, now.Add(500*time.Millisecond), false, 0) {
		t.Fatal("expected on cooldown within window")
	}
	if l.IsOnCooldown(101200, 0, now.Add(1500*time.Millisecond), false, 0) {
		t.Fatal("expected cooldown expired")
	}
}

func TestIsOnCooldownCombinesWithGroupWhenNotInAction(t *testing.T) {
	skills := newLedgerSkills(t)
	l := New(skills, eventbus.New())
	now := time.Now()
	l.OnCooldown(wire.CooldownPacket{SkillID: 101100, CooldownMs: 5000}, now)

	// 101200 itself has no direct entry, but shares group "10-0" with 101100.
	if !l.IsOnCooldown(101200, 0, now.Add(time.Second), false, 0) {
		t.Fatal("expected group-combined cooldown to apply while not in action")
	}
}

func TestIsOnCooldownSkipsGroupWhenInActionOnDifferentGroup(t *testing.T) {
	skills := newLedgerSkills(t)
	l := New(skills, eventbus.New())
	now := time.Now()
	l.OnCooldown(wire.CooldownPacket{SkillID: 101100, CooldownMs: 5000}, now)

	if l.IsOnCooldown(101200, 0, now.Add(time.Second), true, 400100) {
		t.Fatal("expected no group combination while in action on an unrelated skill")
	}
}

func TestIsOnCooldownStackSkillUsesMaxStack(t *testing.T) {
	skills := newLedgerSkills(t)
	l := New(skills, eventbus.New())
	now := time.Now()

	l.RecordStackUse(400100, now)
	if l.IsOnCooldown(400100, 400100, now, false, 0) {
		t.Fatal("expected not on cooldown with 1 of 2 stacks used")
	}
	l.RecordStackUse(400100, now)
	if !l.IsOnCooldown(400100, 400100, now, false, 0) {
		t.Fatal("expected on cooldown once used_stacks reaches max_stack")
	}
}

func TestIsOnCooldownStackRecoversAfterNextStackCooldown(t *testing.T) {
	skills := newLedgerSkills(t)
	l := New(skills, eventbus.New())
	now := time.Now()
	l.RecordStackUse(400100, now)
	l.RecordStackUse(400100, now)

	if !l.IsOnCooldown(400100, 400100, now.Add(500*time.Millisecond), false, 0) {
		t.Fatal("expected still on cooldown before next_stack_cooldown_ms elapses")
	}
	if l.IsOnCooldown(400100, 400100, now.Add(1500*time.Millisecond), false, 0) {
		t.Fatal("expected effective stacks to drop below max after next_stack_cooldown_ms")
	}
}

func TestResetClearsAllEntries(t *testing.T) {
	skills := newLedgerSkills(t)
	l := New(skills, eventbus.New())
	now := time.Now()
	l.OnCooldown(wire.CooldownPacket{SkillID: 101100, CooldownMs: 5000}, now)
	l.Reset()

	if l.IsOnCooldown(101100, 0, now, false, 0) {
		t.Fatal("expected ledger cleared after reset")
	}
}
