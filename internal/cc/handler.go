// Package cc is the crowd-control reaction handler of §4.8: it converts
// an inbound landed-reaction result into a pre-emptive synthetic
// action-end so the client doesn't wait out the full stun/knockdown
// animation before the server's own end arrives, and recognizes the
// stun/sleep sentinel animation sequence and the fear abnormality as
// their own early-end cases.
//
// Grounded on the teacher's internal/system handler shape (one exported
// method per inbound packet), reusing internal/effect and internal/action
// for the abnormality/skill-type lookups §4.8 depends on.
package cc

import (
	"time"

	"github.com/merusira/rival/internal/action"
	"github.com/merusira/rival/internal/effect"
	"github.com/merusira/rival/internal/gamedata"
	"github.com/merusira/rival/internal/hostapi"
	"github.com/merusira/rival/internal/scheduler"
	"github.com/merusira/rival/internal/wire"
)

// RetaliateTypeCode is the skill type-code §4.8 checks to suppress a
// reaction while the self-player is mid-retaliate.
const RetaliateTypeCode = 27

// FearAbnormalityType is the abnormality type-code that triggers an
// immediate synthetic end, per §4.8.
const FearAbnormalityType = 232

// StunSleepSentinelDuration and StunSleepSentinelDistance are the literal
// animSeq[0] values that mark a stun/sleep action stage, preserved
// literally per the source's explicit instruction not to guess at their
// origin (see DESIGN.md Open Question decisions).
const (
	StunSleepSentinelDuration = 89_000_000
	StunSleepSentinelDistance = -1
)

const endTypeReactionPreempt = 9
const endTypeFear = 16

// Handler is the §4.8 crowd-control reaction handler.
type Handler struct {
	skills  *gamedata.SkillTable
	effects *effect.Store
	actions *action.Tracker
	host    hostapi.Host
	sched   *scheduler.Scheduler
	clock   scheduler.Clock
	pingFn  func() time.Duration

	suppressActionID uint32
	suppressUntil    time.Time
}

func New(skills *gamedata.SkillTable, effects *effect.Store, actions *action.Tracker, host hostapi.Host, sched *scheduler.Scheduler, clock scheduler.Clock, pingFn func() time.Duration) *Handler {
	if clock == nil {
		clock = scheduler.SystemClock{}
	}
	return &Handler{skills: skills, effects: effects, actions: actions, host: host, sched: sched, clock: clock, pingFn: pingFn}
}

func (h *Handler) ping() time.Duration {
	if h.pingFn == nil {
		return 0
	}
	return h.pingFn()
}

func (h *Handler) currentSkillTypeCode() int {
	client := h.actions.Client()
	if client.Stage == nil {
		return 0
	}
	tmpl := h.skills.Get(client.Stage.Skill)
	if tmpl == nil {
		return 0
	}
	return tmpl.TypeCode
}

// OnSkillResult implements §4.8's reaction-landed rule: a reaction the
// self-player takes from another entity either gets suppressed outright
// (mid-retaliate) or scheduled as a pre-emptive synthetic end.
func (h *Handler) OnSkillResult(pkt wire.SkillResultPacket, selfID uint64, now time.Time) {
	if !pkt.Reaction.Enable || pkt.SourceID == selfID || pkt.TargetID != selfID {
		return
	}

	if h.currentSkillTypeCode() == RetaliateTypeCode {
		return
	}

	var total time.Duration
	for _, seg := range pkt.Reaction.AnimSeq {
		total += time.Duration(seg.DurationMs) * time.Millisecond
	}

	ping := h.ping()
	delay := total - ping
	if delay < 0 {
		delay = 0
	}

	h.suppressActionID = pkt.Reaction.ActionID
	h.suppressUntil = now.Add(delay).Add(ping)

	client := h.actions.Client()
	loc := wire.Loc{}
	skill := pkt.Skill
	if client.Stage != nil {
		loc = client.Stage.Loc
		skill = client.Stage.Skill
	}
	h.sched.After(delay, func() {
		h.host.Send(wire.NameSActionEnd, wire.ActionEndPacket{EntityID: selfID, Skill: skill, Type: endTypeReactionPreempt, Loc: loc}, true)
	})
}

// ShouldSuppressRealEnd reports whether an incoming real S_ACTION_END for
// actionID should be dropped because this handler already pre-empted it.
func (h *Handler) ShouldSuppressRealEnd(actionID uint32, now time.Time) bool {
	return actionID != 0 && actionID == h.suppressActionID && now.Before(h.suppressUntil)
}

// Suppressing reports whether a pre-emptive end is currently pending,
// regardless of action id. S_ACTION_END's wire shape carries no action
// id of its own (only S_EACH_SKILL_RESULT's reaction does), so a host
// hooking the raw inbound packet has nothing to match against
// ShouldSuppressRealEnd — it has only "is the self-player's single
// in-flight action currently pre-empted right now".
func (h *Handler) Suppressing(now time.Time) bool {
	return now.Before(h.suppressUntil)
}

// IsStunSleepSentinel reports whether seq's first entry matches the
// literal stun/sleep sentinel values.
func IsStunSleepSentinel(seq []wire.AnimSeqEntry) bool {
	return len(seq) > 0 && seq[0].DurationMs == StunSleepSentinelDuration && seq[0].Distance == StunSleepSentinelDistance
}

// OnSelfActionStage implements §4.8's stun/sleep handling: when a self
// action stage's animation sequence carries the sentinel, schedule an
// early end driven by the oldest active abnormality's remaining duration
// instead of the sentinel's nominal (and meaningless) duration.
func (h *Handler) OnSelfActionStage(pkt wire.ActionStagePacket, selfID uint64, now time.Time) {
	if pkt.EntityID != selfID || !IsStunSleepSentinel(pkt.AnimSeq) {
		return
	}

	oldest, ok := h.oldestActive(now)
	if !ok {
		return
	}
	remaining := time.Duration(oldest.DurationMs)*time.Millisecond - now.Sub(oldest.StartTime)
	if remaining < 0 {
		remaining = 0
	}

	skill, loc := pkt.Skill, pkt.Loc
	h.sched.After(remaining, func() {
		h.host.Send(wire.NameSActionEnd, wire.ActionEndPacket{EntityID: selfID, Skill: skill, Type: endTypeReactionPreempt, Loc: loc}, true)
	})
}

func (h *Handler) oldestActive(now time.Time) (effect.AbnormalityRecord, bool) {
	active := h.effects.ActiveClient()
	var oldest effect.AbnormalityRecord
	found := false
	for _, rec := range active {
		if !found || rec.StartTime.Before(oldest.StartTime) {
			oldest = rec
			found = true
		}
	}
	return oldest, found
}

// OnAbnormalityBegin implements §4.8's fear rule: landing a type-232
// abnormality on the self-player ends the current action immediately with
// type 16, independent of the stun/sleep sentinel path.
func (h *Handler) OnAbnormalityBegin(pkt wire.AbnormalityPacket, selfID uint64, now time.Time) {
	if pkt.TargetID != selfID {
		return
	}
	if h.effects.AbnormalityType(pkt.ID) != FearAbnormalityType {
		return
	}
	client := h.actions.Client()
	if client.Stage == nil || !client.InAction {
		return
	}
	h.host.Send(wire.NameSActionEnd, wire.ActionEndPacket{EntityID: selfID, Skill: client.Stage.Skill, Type: endTypeFear, Loc: client.Stage.Loc}, true)
}
