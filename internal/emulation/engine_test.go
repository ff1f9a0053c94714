package emulation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/merusira/rival/internal/action"
	"github.com/merusira/rival/internal/antidesync"
	"github.com/merusira/rival/internal/cooldown"
	"github.com/merusira/rival/internal/effect"
	"github.com/merusira/rival/internal/eventbus"
	"github.com/merusira/rival/internal/gamedata"
	"github.com/merusira/rival/internal/hostapi"
	"github.com/merusira/rival/internal/scheduler"
	"github.com/merusira/rival/internal/skillmeta"
	"github.com/merusira/rival/internal/wire"
	"go.uber.org/zap"
)

const engineSkillsYAML = `
skills:
  - skill_id: 100
    name: quick_strike
    type: normal
    stages:
      - duration_ms: 200
      - duration_ms: 0
  - skill_id: 200
    name: dash_attack
    type: dash
    stages:
      - duration_ms: 300
      - duration_ms: 0
  - skill_id: 300
    name: on_cooldown_skill
    type: normal
    cooldown_ms: 5000
    stages:
      - duration_ms: 100
`

func newEngineFixtures(t *testing.T) (*Engine, *fakeEngineHost, *fakeClock) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "skills.yaml")
	if err := os.WriteFile(path, []byte(engineSkillsYAML), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	skills, err := gamedata.LoadSkillTable(path)
	if err != nil {
		t.Fatalf("load skills: %v", err)
	}
	abPath := filepath.Join(dir, "abnormalities.yaml")
	os.WriteFile(abPath, []byte("abnormalities: []\n"), 0o644)
	abnormalities, err := gamedata.LoadAbnormalityTable(abPath)
	if err != nil {
		t.Fatalf("load abnormalities: %v", err)
	}
	gd := &gamedata.Store{Skills: skills, Abnormalities: abnormalities}

	bus := eventbus.New()
	effects := effect.New(skills, abnormalities)
	actions := action.New(skills, effects, bus)
	actions.SetSelf(1)
	ledger := cooldown.New(skills, bus)

	clk := &fakeClock{now: time.Unix(0, 0)}
	meta := skillmeta.NewEvaluator(skills, func(id int32) bool {
		return ledger.IsOnCooldown(id, 0, clk.now, false, 0)
	})

	sched := scheduler.New(clk, zap.NewNop())
	host := &fakeEngineHost{}

	eng := New(gd, effects, actions, ledger, meta, sched, host, clk, Hooks{}, zap.NewNop())
	eng.SetSelf(1)
	return eng, host, clk
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type recordedSend struct {
	name wire.Name
	pkt  any
}

type fakeEngineHost struct {
	sent []recordedSend
}

func (h *fakeEngineHost) Hook(wire.Name, int, hostapi.PacketHandler) hostapi.HookHandle { return nil }
func (h *fakeEngineHost) Send(name wire.Name, payload any, fake bool) error {
	h.sent = append(h.sent, recordedSend{name: name, pkt: payload})
	return nil
}
func (h *fakeEngineHost) QueryData(string) (any, bool)     { return nil, false }
func (h *fakeEngineHost) ParseSystemMessage([]byte) string { return "" }
func (h *fakeEngineHost) BuildSystemMessage(string) []byte { return nil }

func (h *fakeEngineHost) has(name wire.Name) bool {
	for _, s := range h.sent {
		if s.name == name {
			return true
		}
	}
	return false
}

func TestHandleStartSkillExecutesAfterRetryFloor(t *testing.T) {
	eng, host, clk := newEngineFixtures(t)

	suppress := eng.HandleStartSkill(wire.NameCStartSkill, wire.StartSkillPacket{SkillID: 100}, false, clk.now)
	if !suppress {
		t.Fatal("expected the original outbound to be suppressed")
	}
	if host.has(wire.NameCStartSkill) {
		t.Fatal("expected execution to be scheduled behind the SKILL_RETRY_MS floor, not inline")
	}

	clk.now = clk.now.Add(SkillRetryMs)
	eng.sched.Drive(clk.now)

	if !host.has(wire.NameCStartSkill) {
		t.Fatalf("expected engine to release the outbound itself, got %+v", host.sent)
	}
	if !host.has(wire.NameSActionStage) {
		t.Fatalf("expected a synthetic action stage, got %+v", host.sent)
	}
}

func TestHandleStartSkillRejectsWhenOnCooldown(t *testing.T) {
	eng, host, clk := newEngineFixtures(t)

	// Prime the ledger so skill 300 reads on cooldown.
	cd := eng.cooldowns
	cd.OnCooldown(wire.CooldownPacket{SkillID: 300, CooldownMs: 5000}, clk.now)

	suppress := eng.HandleStartSkill(wire.NameCStartSkill, wire.StartSkillPacket{SkillID: 300}, false, clk.now)
	if !suppress {
		t.Fatal("expected suppression on cooldown")
	}
	if !host.has(wire.NameSCannotStartSkill) {
		t.Fatalf("expected S_CANNOT_START_SKILL, got %+v", host.sent)
	}
	if host.has(wire.NameCStartSkill) {
		t.Fatal("expected the outbound never to be released while on cooldown")
	}
}

func TestHandleStartSkillPassesThroughWhenDisabled(t *testing.T) {
	eng, host, clk := newEngineFixtures(t)
	eng.hooks.IsDisabled = func(int32) bool { return true }

	suppress := eng.HandleStartSkill(wire.NameCStartSkill, wire.StartSkillPacket{SkillID: 100}, false, clk.now)
	if suppress {
		t.Fatal("expected pass-through (no suppression) when disabled")
	}
	if len(host.sent) != 0 {
		t.Fatalf("expected no synthetic traffic, got %+v", host.sent)
	}
}

func TestSendActionStageTerminalDashEndsWithType39(t *testing.T) {
	eng, host, clk := newEngineFixtures(t)
	eng.sendActionStage(200, false, 1, clk.now)

	found := false
	for _, s := range host.sent {
		if s.name == wire.NameSActionEnd {
			if end, ok := s.pkt.(wire.ActionEndPacket); ok && end.Type == EndTypeDash {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected terminal dash stage to end with type 39, got %+v", host.sent)
	}
}

func TestOnCancelSkillEmitsEndAndSchedulesCancel(t *testing.T) {
	eng, host, clk := newEngineFixtures(t)
	eng.actions.OnClientStage(wire.ActionStagePacket{EntityID: 1, Skill: 100, Stage: 0}, clk.now)

	suppress := eng.OnCancelSkill(wire.CancelSkillPacket{Type: 5}, clk.now)
	if !suppress {
		t.Fatal("expected cancel to be suppressed and re-issued")
	}
	if !host.has(wire.NameSActionEnd) {
		t.Fatalf("expected synthetic end, got %+v", host.sent)
	}
	if host.has(wire.NameCCancelSkill) {
		t.Fatal("expected the outbound cancel to be scheduled, not sent immediately")
	}
	eng.sched.Drive(clk.now.Add(time.Second))
	if !host.has(wire.NameCCancelSkill) {
		t.Fatal("expected the outbound cancel to fire after the scheduled jitter delay")
	}
}

func TestOnDeathEmitsEndType699(t *testing.T) {
	eng, host, clk := newEngineFixtures(t)
	eng.actions.OnClientStage(wire.ActionStagePacket{EntityID: 1, Skill: 100, Stage: 0}, clk.now)

	eng.OnDeath(wire.CreatureLifePacket{EntityID: 1, IsSelf: true, Alive: false}, clk.now)

	found := false
	for _, s := range host.sent {
		if end, ok := s.pkt.(wire.ActionEndPacket); ok && end.Type == EndTypeDeath {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected death to emit a type=699 end, got %+v", host.sent)
	}
}

func TestOnServerActionEndTrustsUnacceptedType(t *testing.T) {
	eng, host, clk := newEngineFixtures(t)
	eng.actions.OnClientStage(wire.ActionStagePacket{EntityID: 1, Skill: 100, Stage: 0}, clk.now)

	eng.OnServerActionEnd(wire.ActionEndPacket{EntityID: 1, Skill: 100, Type: 99}, clk.now)

	if !host.has(wire.NameSActionEnd) {
		t.Fatalf("expected the server's non-accepted end type to be trusted and forwarded, got %+v", host.sent)
	}
	if !host.has(wire.NameSInstantMove) {
		t.Fatalf("expected a corrective instant-move for a non-28 end type, got %+v", host.sent)
	}
}

func TestSuppressionWindowsGateOnTimestamp(t *testing.T) {
	eng, _, clk := newEngineFixtures(t)
	eng.connectArrowUntil = clk.now.Add(time.Second)
	if !eng.SuppressConnectSkillArrow(clk.now) {
		t.Fatal("expected suppression while connectArrowUntil is in the future")
	}
	clk.now = clk.now.Add(2 * time.Second)
	if eng.SuppressConnectSkillArrow(clk.now) {
		t.Fatal("expected no suppression once the window has elapsed")
	}
}

func TestTrackerStatsEmptyBeforeAnySkill(t *testing.T) {
	eng, _, _ := newEngineFixtures(t)
	stats := eng.TrackerStats()
	if stats.Samples != 0 {
		t.Fatalf("expected no samples yet, got %+v", stats)
	}
}

func TestTrackerStatsAveragesHistoryRing(t *testing.T) {
	eng, _, _ := newEngineFixtures(t)
	eng.pushHistory(historyEntry{Delay: 10 * time.Millisecond, Jitter: 2 * time.Millisecond, ExcessTime: 100})
	eng.pushHistory(historyEntry{Delay: 20 * time.Millisecond, Jitter: 4 * time.Millisecond, ExcessTime: 300})

	stats := eng.TrackerStats()
	if stats.Samples != 2 {
		t.Fatalf("expected 2 samples, got %d", stats.Samples)
	}
	if stats.AvgDelay != 15*time.Millisecond {
		t.Fatalf("expected avg delay 15ms, got %v", stats.AvgDelay)
	}
	if stats.AvgJitter != 3*time.Millisecond {
		t.Fatalf("expected avg jitter 3ms, got %v", stats.AvgJitter)
	}
	if stats.AvgChainExcess != 200 {
		t.Fatalf("expected avg chain excess 200, got %d", stats.AvgChainExcess)
	}
}

// TestOnServerActionStageSuppressesMatchingPredictedStage covers Scenario
// S1(d): a real S_ACTION_STAGE that merely confirms the stage the client
// already synthesized and played must be suppressed, not replayed.
func TestOnServerActionStageSuppressesMatchingPredictedStage(t *testing.T) {
	eng, _, clk := newEngineFixtures(t)
	eng.actions.OnClientStage(wire.ActionStagePacket{EntityID: 1, Skill: 100, Stage: 0}, clk.now)

	suppress := eng.OnServerActionStage(wire.ActionStagePacket{EntityID: 1, Skill: 100, Stage: 0}, clk.now)
	if !suppress {
		t.Fatal("expected a confirming server stage to be suppressed")
	}
}

func TestOnServerActionStagePassesThroughNonMatchingStage(t *testing.T) {
	eng, _, clk := newEngineFixtures(t)
	eng.actions.OnClientStage(wire.ActionStagePacket{EntityID: 1, Skill: 100, Stage: 0}, clk.now)

	suppress := eng.OnServerActionStage(wire.ActionStagePacket{EntityID: 1, Skill: 100, Stage: 1}, clk.now)
	if suppress {
		t.Fatal("expected a non-matching server stage to pass through")
	}
}

// TestSameEmulatedEndDistinguishesDifferingType exercises §4.7.6's
// duplicate guard directly: a recent emulated end for the same skill only
// counts as a duplicate when its type also matches, per the reviewed fix.
func TestSameEmulatedEndDistinguishesDifferingType(t *testing.T) {
	now := time.Unix(0, 0)
	client := action.View{
		Stage:   &action.Stage{Skill: 100},
		Ended:   true,
		EndTime: now,
		EndType: EndTypeNormal,
	}

	if sameEmulatedEnd(client, wire.ActionEndPacket{Skill: 100, Type: 45}, 100*time.Millisecond, now.Add(50*time.Millisecond)) {
		t.Fatal("expected a genuinely differing end type not to be treated as a duplicate")
	}
	if !sameEmulatedEnd(client, wire.ActionEndPacket{Skill: 100, Type: EndTypeNormal}, 100*time.Millisecond, now.Add(50*time.Millisecond)) {
		t.Fatal("expected a matching type/skill within the buffer window to be treated as a duplicate")
	}
	if sameEmulatedEnd(client, wire.ActionEndPacket{Skill: 200, Type: EndTypeNormal}, 100*time.Millisecond, now.Add(50*time.Millisecond)) {
		t.Fatal("expected a different skill not to be treated as a duplicate even with a matching type")
	}
}

// TestEmitSyntheticEndAppliesDesyncCorrection wires a §4.9 corrector into
// the engine and proves a self-emulated end actually runs through it,
// rather than the correction being dead code reachable only from its own
// package's tests.
func TestEmitSyntheticEndAppliesDesyncCorrection(t *testing.T) {
	eng, host, clk := newEngineFixtures(t)
	corrector := antidesync.New(eng.gd.Skills, eng.actions, host)
	eng.SetDesync(corrector)

	eng.actions.OnServerStage(wire.ActionStagePacket{
		EntityID: 1, Skill: 100, Stage: 0,
		Loc:     wire.Loc{X: 0, Y: 0, W: 0},
		AnimSeq: []wire.AnimSeqEntry{{DurationMs: 100, Distance: 10}},
	}, clk.now)
	eng.actions.OnClientStage(wire.ActionStagePacket{
		EntityID: 1, Skill: 100, Stage: 0,
		Loc: wire.Loc{X: 0, Y: 0, W: 0},
	}, clk.now)

	clk.now = clk.now.Add(50 * time.Millisecond)
	eng.OnDeath(wire.CreatureLifePacket{EntityID: 1, IsSelf: true, Alive: false}, clk.now)

	if !host.has(wire.NameSInstantMove) {
		t.Fatalf("expected the self-emulated end to trigger a corrective instant move, got %+v", host.sent)
	}
	for _, s := range host.sent {
		if end, ok := s.pkt.(wire.ActionEndPacket); ok && end.Type == EndTypeDeath {
			if end.Loc.X == 0 && end.Loc.Y == 0 {
				t.Fatalf("expected the synthetic end's location to be rewritten to the server-expected location, got %+v", end)
			}
		}
	}
}
