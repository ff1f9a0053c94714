// Package emulation is the skill state machine of §4.7: it intercepts
// outbound skill-start requests, predicts the server's eventual
// acknowledgement, and synthesizes the intervening action-stage/end
// traffic so the client animates immediately instead of waiting on a
// round trip. It also reconciles the synthesized timeline against the
// server's real S_ACTION_STAGE/S_ACTION_END traffic as it arrives, and
// folds in the death/defence/reaction and suppression-window rules that
// share its state.
//
// Grounded on the teacher's internal/system package's handler-per-packet
// dispatch shape, generalized from "apply one authoritative mutation" to
// "predict, then reconcile against the authoritative mutation when it
// arrives".
package emulation

import (
	"fmt"
	"time"

	"github.com/merusira/rival/internal/action"
	"github.com/merusira/rival/internal/antidesync"
	"github.com/merusira/rival/internal/cooldown"
	"github.com/merusira/rival/internal/effect"
	"github.com/merusira/rival/internal/gamedata"
	"github.com/merusira/rival/internal/hostapi"
	"github.com/merusira/rival/internal/scheduler"
	"github.com/merusira/rival/internal/skillmeta"
	"github.com/merusira/rival/internal/wire"

	"go.uber.org/zap"
)

// SkillRetryMs is the fixed floor added to every computed start delay,
// per §4.7.2 step 4.
const SkillRetryMs = 2 * time.Millisecond

// End-type constants named across §4.7 and §4.8.
const (
	EndTypeNormal          = 0
	EndTypeServerDesync    = 4
	EndTypeMovingChargeAb  = 6
	EndTypeReaction        = 9
	EndTypeFear            = 16
	EndTypeArcherRapidFire = 25
	EndTypeDash            = 39
	EndTypeDisabled        = 60
	EndTypeDeath           = 699
)

// acceptedEndTypes is the set of inbound S_ACTION_END types §4.7.6 accepts
// without question.
var acceptedEndTypes = map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 10: true, 11: true, 34: true, 36: true, 51: true}

const maxHistory = 500

type historyEntry struct {
	Delay      time.Duration
	Jitter     time.Duration
	ExcessTime int64
}

type pendingStart struct {
	name    wire.Name
	pkt     wire.StartSkillPacket
	byGrant bool
}

// Hooks bundles the host-provided predicates the engine cannot derive from
// its own tables: settings toggles, resource/CC checks, and the
// send_connect_skill_arrow decision the source leaves as an opaque helper.
// A nil func defaults to the permissive/neutral answer named in its comment.
type Hooks struct {
	IsDisabled              func(skillID int32) bool               // default: false
	CannotCastBase          func() bool                             // dead/mounted/loading; default: false
	HasResources            func(skillID int32) bool                // default: true
	IsBlockedByCC           func() bool                             // default: false
	PingJitter              func() time.Duration                    // default: 0
	SettingsDelay           func() time.Duration                    // default: 0
	PacketBuffer            func() time.Duration                    // default: 0
	ActionStageDelay        func(skillID int32) time.Duration       // default: 0
	ShouldConnectSkillArrow func(skillID int32, byGrant bool) bool  // default: false; host decides based on target/lockon state
	OnlyAfterDefenceSuccess func(skillID int32) bool                // default: derived from gamedata
}

// Engine is the §4.7 skill state machine.
type Engine struct {
	gd        *gamedata.Store
	effects   *effect.Store
	actions   *action.Tracker
	cooldowns *cooldown.Ledger
	meta      *skillmeta.Evaluator
	sched     *scheduler.Scheduler
	host      hostapi.Host
	clock     scheduler.Clock
	log       *zap.Logger
	hooks     Hooks
	selfID    uint64
	desync    *antidesync.Corrector

	// §4.7.1 state.
	expectedSkillID    int32
	expectedEndType    int
	arrived            time.Time
	estimate           time.Time
	counter            int
	blockSend          bool
	actionStageTimeout *scheduler.Handle
	lastMoveLocation   wire.Loc
	connectArrowUntil  time.Time
	grantSkillUntil    time.Time
	isCharging         bool
	lastSkillString    string
	pending            *pendingStart
	history            []historyEntry

	lastOutboundSkill int32
	lastOutboundTime  time.Time
}

func New(gd *gamedata.Store, effects *effect.Store, actions *action.Tracker, cooldowns *cooldown.Ledger, meta *skillmeta.Evaluator, sched *scheduler.Scheduler, host hostapi.Host, clock scheduler.Clock, hooks Hooks, log *zap.Logger) *Engine {
	if clock == nil {
		clock = scheduler.SystemClock{}
	}
	return &Engine{gd: gd, effects: effects, actions: actions, cooldowns: cooldowns, meta: meta, sched: sched, host: host, clock: clock, hooks: hooks, log: log}
}

// SetSelf records the self-player entity id.
func (e *Engine) SetSelf(id uint64) { e.selfID = id }

// SetDesync wires the §4.9 anti-desync corrector into the engine so
// emitSyntheticEnd can apply the self-emulated-end rewrite/S_INSTANT_MOVE
// policy. Left nil, synthetic ends are sent uncorrected.
func (e *Engine) SetDesync(d *antidesync.Corrector) { e.desync = d }

func (e *Engine) now() time.Time { return e.clock.Now() }

func (e *Engine) isDisabled(skillID int32) bool {
	return e.hooks.IsDisabled != nil && e.hooks.IsDisabled(skillID)
}
func (e *Engine) cannotCastBase() bool {
	return e.hooks.CannotCastBase != nil && e.hooks.CannotCastBase()
}
func (e *Engine) hasResources(skillID int32) bool {
	return e.hooks.HasResources == nil || e.hooks.HasResources(skillID)
}
func (e *Engine) blockedByCC() bool {
	return e.hooks.IsBlockedByCC != nil && e.hooks.IsBlockedByCC()
}
func (e *Engine) pingJitter() time.Duration {
	if e.hooks.PingJitter == nil {
		return 0
	}
	return e.hooks.PingJitter()
}
func (e *Engine) settingsDelay() time.Duration {
	if e.hooks.SettingsDelay == nil {
		return 0
	}
	return e.hooks.SettingsDelay()
}
func (e *Engine) packetBuffer() time.Duration {
	if e.hooks.PacketBuffer == nil {
		return 0
	}
	return e.hooks.PacketBuffer()
}
func (e *Engine) actionStageDelay(skillID int32) time.Duration {
	if e.hooks.ActionStageDelay == nil {
		return 0
	}
	return e.hooks.ActionStageDelay(skillID)
}
func (e *Engine) shouldConnectSkillArrow(skillID int32, byGrant bool) bool {
	return e.hooks.ShouldConnectSkillArrow != nil && e.hooks.ShouldConnectSkillArrow(skillID, byGrant)
}

func (e *Engine) chainContext() skillmeta.ChainContext {
	client := e.actions.Client()
	ctx := skillmeta.ChainContext{InAction: client.InAction}
	if client.InAction && client.Stage != nil {
		if tmpl := e.gd.Skills.Get(client.Stage.Skill); tmpl != nil {
			ctx.CurrentType = tmpl.Type
		}
	}
	return ctx
}

func (e *Engine) sendCannotStart(skillID int32) {
	e.host.Send(wire.NameSCannotStartSkill, wire.CannotStartSkillPacket{SkillID: skillID}, true)
}

// dedupKey builds the canonical duplicate-detection string of §4.7.2 step
// 6: every identifying field of the request except position.
func dedupKey(name wire.Name, pkt wire.StartSkillPacket) string {
	return fmt.Sprintf("%s|%d|%d|%t|%t", name, pkt.SkillID, pkt.TargetID, pkt.Continuation, pkt.Press)
}

func (e *Engine) pushHistory(h historyEntry) {
	e.history = append(e.history, h)
	if len(e.history) > maxHistory {
		e.history = e.history[len(e.history)-maxHistory:]
	}
}

// TrackerStats is the `rival tracker` readout: average delay, jitter, and
// chain-excess time over the skill-history ring HandleStartSkill already
// maintains.
type TrackerStats struct {
	Samples        int
	AvgDelay       time.Duration
	AvgJitter      time.Duration
	AvgChainExcess int64
}

// TrackerStats averages every recorded field over the current history
// ring, per §6's tracker command.
func (e *Engine) TrackerStats() TrackerStats {
	if len(e.history) == 0 {
		return TrackerStats{}
	}
	var delaySum, jitterSum time.Duration
	var excessSum int64
	for _, h := range e.history {
		delaySum += h.Delay
		jitterSum += h.Jitter
		excessSum += h.ExcessTime
	}
	n := time.Duration(len(e.history))
	return TrackerStats{
		Samples:        len(e.history),
		AvgDelay:       delaySum / n,
		AvgJitter:      jitterSum / n,
		AvgChainExcess: excessSum / int64(len(e.history)),
	}
}

// HandleStartSkill implements §4.7.2, the skill-start handler invoked for
// every member of the C_START_*/C_PRESS_SKILL/C_NOTIMELINE_SKILL family.
// It returns true when the original outbound packet should be suppressed
// (the emulation engine will re-release it itself, later, from
// executeSkill).
func (e *Engine) HandleStartSkill(name wire.Name, pkt wire.StartSkillPacket, byGrant bool, now time.Time) (suppress bool) {
	if e.blockSend || e.isDisabled(pkt.SkillID) || e.cannotCastBase() {
		return false
	}

	newData := e.meta.GetNewSkillData(pkt.SkillID, byGrant, pkt.Press, e.chainContext())
	opts := skillmeta.Options{
		CC:        e.blockedByCC(),
		Resources: e.hasResources(newData.SkillID),
		Future:    newData.Future,
	}
	canCast := e.meta.CanCastSkill(newData.SkillID, opts)

	client := e.actions.Client()
	inActionSkill := int32(0)
	if client.Stage != nil {
		inActionSkill = client.Stage.Skill
	}
	if canCast == skillmeta.CanCastOnCooldown || e.cooldowns.IsOnCooldown(newData.SkillID, 0, now, client.InAction, inActionSkill) {
		e.sendCannotStart(newData.SkillID)
		return true
	}

	jitter := e.pingJitter()
	delay := jitter + e.settingsDelay() + e.meta.SkillDelay(newData.SkillID)
	if newData.TimeMs > 0 && !e.isCharging {
		delay -= time.Duration(newData.TimeMs) * time.Millisecond
	}
	if !client.InAction && !client.EndTime.IsZero() {
		delay -= now.Sub(client.EndTime)
	}
	if delay < 0 {
		delay = 0
	}
	delay += SkillRetryMs

	if delay > 100*time.Millisecond && newData.Failed {
		e.sendCannotStart(newData.SkillID)
		return true
	}

	dedup := dedupKey(name, pkt)
	if e.counter > 0 && e.lastSkillString == dedup {
		e.sendCannotStart(newData.SkillID)
		return true
	}

	candidate := now.Add(delay)
	if !e.estimate.IsZero() {
		serialized := e.estimate.Add(now.Sub(e.arrived))
		if serialized.After(candidate) {
			candidate = serialized
		}
	}
	delay = candidate.Sub(now)
	if delay < 0 {
		delay = 0
	}

	e.arrived = now
	e.estimate = now.Add(delay)
	e.pushHistory(historyEntry{Delay: delay, Jitter: jitter, ExcessTime: newData.TimeMs})
	e.lastSkillString = dedup

	if delay == 0 && e.counter == 0 {
		e.executeSkill(name, pkt, byGrant, newData, now)
	} else {
		e.counter++
		e.sched.After(delay, func() {
			e.counter--
			e.executeSkill(name, pkt, byGrant, newData, e.now())
		})
	}
	return true
}
