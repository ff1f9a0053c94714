// Package action tracks the self-player's current action stage from two
// independent vantage points — the client's own view (fake-inclusive) and
// the server's authoritative view (real only) — per §4.3, and emits
// reaction events onto the event bus when an inbound skill result lands a
// reaction on the self-player.
package action

import (
	"time"

	"github.com/merusira/rival/internal/effect"
	"github.com/merusira/rival/internal/eventbus"
	"github.com/merusira/rival/internal/gamedata"
	"github.com/merusira/rival/internal/wire"
)

// StageReaction is the synthetic stage number assigned to a reaction,
// which is "treated as the current stage" per §4.3 without itself being
// a server-assigned stage index.
const StageReaction = -1

// Stage is one client or server action-stage snapshot, per §3's Action
// stage type.
type Stage struct {
	Skill     int32
	Stage     int
	Loc       wire.Loc
	AnimSeq   []wire.AnimSeqEntry
	StartTime time.Time // `_time`: stage-0 arrival, inherited by later stages
	StageTime time.Time // arrival time of this specific stage packet
	ActionID  uint32
	Speed     float64
	Applied   effect.Modifiers

	// KeptMovingCharge is the previous stage's stage number, recorded
	// when the skill is movingCharge and a prior stage exists (§4.3).
	KeptMovingCharge int
}

// View is a read-only snapshot of one tracked vantage (client or server).
type View struct {
	Stage           *Stage
	InAction        bool
	InSpecialAction bool
	Ended           bool
	EndTime         time.Time
	EndLoc          wire.Loc
	EndType         int
}

// ReactionEvent is emitted on the event bus when an inbound skill result
// lands a reaction on the self-player (§4.3, §4.7.8).
type ReactionEvent struct {
	SourceID uint64
	TargetID uint64
	Skill    int32
	AnimSeq  []wire.AnimSeqEntry
	ActionID uint32
	At       time.Time
}

type view struct {
	stage           *Stage
	inAction        bool
	inSpecialAction bool
	ended           bool
	endTime         time.Time
	endLoc          wire.Loc
	endType         int
}

func (v *view) snapshot() View {
	return View{Stage: v.stage, InAction: v.inAction, InSpecialAction: v.inSpecialAction, Ended: v.ended, EndTime: v.endTime, EndLoc: v.endLoc, EndType: v.endType}
}

// Tracker is the dual client/server action-stage tracker of §4.3.
type Tracker struct {
	skills  *gamedata.SkillTable
	effects *effect.Store
	bus     *eventbus.Bus
	selfID  uint64

	client view
	server view
}

func New(skills *gamedata.SkillTable, effects *effect.Store, bus *eventbus.Bus) *Tracker {
	return &Tracker{skills: skills, effects: effects, bus: bus}
}

// SetSelf records the self-player's entity id, used by OnSkillResult to
// recognize reactions landed on the self-player.
func (t *Tracker) SetSelf(id uint64) { t.selfID = id }

// SelfID returns the self-player's entity id last set by SetSelf.
func (t *Tracker) SelfID() uint64 { return t.selfID }

// Client returns the client (fake-inclusive) view.
func (t *Tracker) Client() View { return t.client.snapshot() }

// Server returns the server (real-only) authoritative view.
func (t *Tracker) Server() View { return t.server.snapshot() }

// OnClientStage records a client-observed S_ACTION_STAGE, per §4.3's
// client-view rule.
func (t *Tracker) OnClientStage(pkt wire.ActionStagePacket, now time.Time) {
	t.onStage(&t.client, pkt, now)
	t.client.inSpecialAction = false
}

// OnServerStage records a server-observed (real-only) S_ACTION_STAGE, per
// §4.3's mirrored server-view rule.
func (t *Tracker) OnServerStage(pkt wire.ActionStagePacket, now time.Time) {
	t.onStage(&t.server, pkt, now)
}

func (t *Tracker) onStage(v *view, pkt wire.ActionStagePacket, now time.Time) {
	startTime := now
	if pkt.Stage != 0 && v.stage != nil {
		startTime = v.stage.StartTime
	}

	keptMovingCharge := 0
	if tmpl := t.skills.Get(pkt.Skill); tmpl != nil && tmpl.Type == gamedata.TypeMovingCharge && v.stage != nil {
		keptMovingCharge = v.stage.Stage
	}

	var speed float64 = 1
	var applied effect.Modifiers
	if t.skills != nil {
		speed = t.skills.GetSpeed(pkt.Skill)
	}
	if t.effects != nil {
		applied = t.effects.GetAppliedEffects(pkt.Skill)
	}

	v.stage = &Stage{
		Skill:            pkt.Skill,
		Stage:            pkt.Stage,
		Loc:              pkt.Loc,
		AnimSeq:          pkt.AnimSeq,
		StartTime:        startTime,
		StageTime:        now,
		ActionID:         pkt.ActionID,
		Speed:            speed,
		Applied:          applied,
		KeptMovingCharge: keptMovingCharge,
	}
	v.inAction = true
	v.ended = false
}

// OnClientEnd records a client-observed S_ACTION_END.
func (t *Tracker) OnClientEnd(pkt wire.ActionEndPacket, now time.Time) {
	t.client.inAction = false
	t.client.ended = true
	t.client.endTime = now
	t.client.endLoc = pkt.Loc
	t.client.endType = pkt.Type
}

// OnServerEnd records a server-observed S_ACTION_END.
func (t *Tracker) OnServerEnd(pkt wire.ActionEndPacket, now time.Time) {
	t.server.inAction = false
	t.server.ended = true
	t.server.endTime = now
	t.server.endLoc = pkt.Loc
	t.server.endType = pkt.Type
}

// OnSkillResult inspects an inbound S_EACH_SKILL_RESULT for a reaction
// landed on the self-player and, when present, emits a ReactionEvent and
// treats the reaction as the client view's current stage, per §4.3.
func (t *Tracker) OnSkillResult(pkt wire.SkillResultPacket, now time.Time) {
	if !pkt.Reaction.Enable || pkt.SourceID == t.selfID || pkt.TargetID != t.selfID {
		return
	}

	t.client.inSpecialAction = true
	t.client.inAction = true
	t.client.ended = false
	t.client.stage = &Stage{
		Skill:     pkt.Skill,
		Stage:     StageReaction,
		AnimSeq:   pkt.Reaction.AnimSeq,
		StartTime: now,
		StageTime: now,
		ActionID:  pkt.Reaction.ActionID,
	}

	if t.bus != nil {
		eventbus.Emit(t.bus, ReactionEvent{
			SourceID: pkt.SourceID,
			TargetID: pkt.TargetID,
			Skill:    pkt.Skill,
			AnimSeq:  pkt.Reaction.AnimSeq,
			ActionID: pkt.Reaction.ActionID,
			At:       now,
		})
	}
}

// Reset clears both views, per §3's S_LOGIN reset rule.
func (t *Tracker) Reset() {
	t.client = view{}
	t.server = view{}
}
