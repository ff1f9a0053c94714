// Package abnormality schedules buff/debuff begin/refresh/end emulation
// off the action tracker's stage and end events, reconciles inbound real
// abnormality packets against recent self-emulation, and reverts an
// emulated transition the server contradicts — §4.6.
package abnormality

import (
	"time"

	"github.com/merusira/rival/internal/effect"
	"github.com/merusira/rival/internal/gamedata"
	"github.com/merusira/rival/internal/hostapi"
	"github.com/merusira/rival/internal/scheduler"
	"github.com/merusira/rival/internal/wire"
	"go.uber.org/zap"
)

// maxSigned32 bounds the duration an end timer may be scheduled for, per
// §4.6's `duration ≤ MAX_SIGNED_32` guard (a duration above this is
// treated as "does not end on its own").
const maxSigned32 = 1<<31 - 1

// durationTolerance is the window within which an inbound real
// begin/refresh is considered to "match" a recent self-emulation, per
// §4.6's dedup rule.
const durationTolerance = 50 * time.Millisecond

// revertDelayOffset is the ≈100ms named in §4.6's reversion-check delay
// ("packet_buffer+100ms").
const revertDelayOffset = 100 * time.Millisecond

// BufferFunc computes packet_buffer_ms for an optional caller offset,
// implemented by internal/pingmeter.
type BufferFunc func(offset time.Duration) time.Duration

type skillState struct {
	startTime time.Time
	endTime   time.Time
	timeout   *scheduler.Handle
}

// Scheduler is the abnormality begin/refresh/end scheduler of §4.6.
//
// OnClientStageZero/OnClientActionEnd take the caller's already-resolved
// fixed/variable speed values rather than consulting the action tracker
// directly: the emulation engine (§4.7) is the one component that already
// holds the current client stage and its effect.Modifiers, so it derives
// `speed.fixed`/`speed.variable` once and passes them down here.
type Scheduler struct {
	gd      *gamedata.Store
	effects *effect.Store
	sched   *scheduler.Scheduler
	host    hostapi.Host
	buffer  BufferFunc
	log     *zap.Logger
	selfID  uint64

	states map[int32]*skillState // per-abnormality id

	skillStarts map[int32][]int32 // skill_id -> abnormality ids started from it
	skillEnds   map[int32][]int32 // skill_id -> abnormality ids ended from it
}

func New(gd *gamedata.Store, effects *effect.Store, sched *scheduler.Scheduler, host hostapi.Host, buffer BufferFunc, log *zap.Logger) *Scheduler {
	return &Scheduler{
		gd:          gd,
		effects:     effects,
		sched:       sched,
		host:        host,
		buffer:      buffer,
		log:         log,
		states:      make(map[int32]*skillState),
		skillStarts: make(map[int32][]int32),
		skillEnds:   make(map[int32][]int32),
	}
}

func (s *Scheduler) SetSelf(id uint64) { s.selfID = id }

func (s *Scheduler) state(id int32) *skillState {
	st, ok := s.states[id]
	if !ok {
		st = &skillState{}
		s.states[id] = st
	}
	return st
}

func scaledDelay(delayMs int64, fixed bool, fixedSpeed, variableSpeed float64) time.Duration {
	speed := variableSpeed
	if fixed {
		speed = fixedSpeed
	}
	if speed == 0 {
		speed = 1
	}
	return time.Duration(float64(delayMs)/speed) * time.Millisecond
}

// OnClientStageZero handles a self client action-stage=0 for an enabled
// skill: schedules the skill's abnormalityConsume.stage and
// abnormalityApply entries, per §4.6.
func (s *Scheduler) OnClientStageZero(skillID int32, fixedSpeed, variableSpeed float64, now time.Time) {
	tmpl := s.gd.Skills.Get(skillID)
	if tmpl == nil {
		return
	}

	for _, entry := range tmpl.AbnormalityConsumeStage {
		entry := entry
		scaled := scaledDelay(entry.DelayMs, entry.Fixed, fixedSpeed, variableSpeed)
		if scaled <= 0 {
			s.endAbnormality(entry.AbnormalityID, now)
			continue
		}
		s.sched.After(scaled, func() { s.endAbnormality(entry.AbnormalityID, now.Add(scaled)) })
		s.skillEnds[skillID] = append(s.skillEnds[skillID], entry.AbnormalityID)
	}

	for _, entry := range tmpl.AbnormalityApply {
		entry := entry
		scaled := scaledDelay(entry.DelayMs, entry.Fixed, fixedSpeed, variableSpeed)
		s.sched.After(scaled, func() {
			s.startAbnormality(entry.AbnormalityID, skillID, entry.DurationOverride, now.Add(scaled))
		})
		s.skillStarts[skillID] = append(s.skillStarts[skillID], entry.AbnormalityID)
	}
}

// OnClientActionEnd handles a self client action-end: schedules the
// skill's abnormalityConsume.end entries, per §4.6.
func (s *Scheduler) OnClientActionEnd(skillID int32, fixedSpeed, variableSpeed float64, now time.Time) {
	tmpl := s.gd.Skills.Get(skillID)
	if tmpl == nil {
		return
	}
	for _, entry := range tmpl.AbnormalityConsumeEnd {
		entry := entry
		scaled := scaledDelay(entry.DelayMs, entry.Fixed, fixedSpeed, variableSpeed)
		if entry.NoTimer {
			s.sched.After(scaled, func() { s.endAbnormalityNoTimer(entry.AbnormalityID) })
			continue
		}
		s.sched.After(scaled, func() { s.endAbnormality(entry.AbnormalityID, now.Add(scaled)) })
	}
}

// startAbnormality implements §4.6's start_abnormality(id, source_skill,
// duration_override?).
func (s *Scheduler) startAbnormality(id int32, sourceSkill int32, durationOverride *int64, now time.Time) {
	def := s.gd.Abnormalities.Get(id)
	if def == nil {
		s.log.Warn("abnormality: unknown id, cannot start", zap.Int32("id", id))
		return
	}

	duration := def.TimeMs
	if durationOverride != nil {
		duration = *durationOverride
	}

	existing, hadExisting := s.effects.GetClient(id)
	stacks := 1
	if hadExisting {
		stacks = existing.Stacks
	}

	name := wire.NameSAbnormalityBegin
	if hadExisting {
		name = wire.NameSAbnormalityRefresh
	}
	s.send(name, wire.AbnormalityPacket{TargetID: s.selfID, SourceID: 0, ID: id, DurationMs: duration, Stacks: stacks})

	st := s.state(id)
	st.startTime = now.Add(s.buffer(0))
	if st.timeout != nil {
		st.timeout.Clear()
		st.timeout = nil
	}

	s.effects.BeginClient(effect.AbnormalityRecord{ID: id, Stacks: stacks, DurationMs: duration, StartTime: now})

	if duration <= maxSigned32 {
		st.timeout = s.sched.After(time.Duration(duration)*time.Millisecond, func() { s.endAbnormality(id, now.Add(time.Duration(duration)*time.Millisecond)) })
	}
}

// endAbnormality implements §4.6's end_abnormality(id).
func (s *Scheduler) endAbnormality(id int32, now time.Time) {
	s.send(wire.NameSAbnormalityEnd, wire.AbnormalityPacket{TargetID: s.selfID, ID: id})
	st := s.state(id)
	st.endTime = now.Add(s.buffer(0))
	s.effects.EndClient(id)
}

// endAbnormalityNoTimer ends an abnormality with a fresh one-shot that
// does not disturb the tracked timeout handle, per §4.6's
// abnormalityConsume.end `noTimer=true` rule.
func (s *Scheduler) endAbnormalityNoTimer(id int32) {
	s.send(wire.NameSAbnormalityEnd, wire.AbnormalityPacket{TargetID: s.selfID, ID: id})
	s.effects.EndClient(id)
}

func (s *Scheduler) send(name wire.Name, pkt wire.AbnormalityPacket) {
	if s.host == nil {
		return
	}
	if err := s.host.Send(name, pkt, true); err != nil {
		s.log.Warn("abnormality: send failed", zap.String("packet", string(name)), zap.Error(err))
	}
}

// OnInboundReal handles a real, self-targeted S_ABNORMALITY_BEGIN/
// REFRESH/END, per §4.6's dedup/forward rule.
func (s *Scheduler) OnInboundReal(kind wire.Name, pkt wire.AbnormalityPacket, now time.Time, ping, jitter time.Duration) (forward bool, forwardPkt wire.AbnormalityPacket) {
	if pkt.TargetID != s.selfID {
		return true, pkt
	}

	st, tracked := s.states[pkt.ID]
	existing, hasClient := s.effects.GetClient(pkt.ID)

	if kind != wire.NameSAbnormalityEnd && tracked && st.startTime.After(now) && hasClient {
		withinTolerance := durationWithinTolerance(existing.DurationMs, pkt.DurationMs) && existing.Stacks == pkt.Stacks
		if withinTolerance {
			return false, pkt
		}
	}

	adjusted := pkt
	if kind == wire.NameSAbnormalityEnd {
		s.effects.EndServer(pkt.ID)
		return true, adjusted
	}

	adjusted.DurationMs -= (ping + jitter).Milliseconds()
	if adjusted.DurationMs < 0 {
		adjusted.DurationMs = 0
	}

	s.effects.BeginServer(effect.AbnormalityRecord{ID: pkt.ID, Stacks: pkt.Stacks, DurationMs: adjusted.DurationMs, StartTime: now})
	tst := s.state(pkt.ID)
	if tst.timeout != nil {
		tst.timeout.Clear()
	}
	tst.timeout = s.sched.After(time.Duration(adjusted.DurationMs)*time.Millisecond, func() { s.endAbnormality(pkt.ID, now) })

	return true, adjusted
}

func durationWithinTolerance(a, b int64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return time.Duration(diff)*time.Millisecond <= durationTolerance
}

// ConvertedKind reports whether an inbound begin should be delivered as
// a refresh (client already considers the abnormality active) or vice
// versa, per §4.6's "convert to a REFRESH and vice versa" rule.
func (s *Scheduler) ConvertedKind(kind wire.Name, id int32) wire.Name {
	_, active := s.effects.GetClient(id)
	switch {
	case kind == wire.NameSAbnormalityBegin && active:
		return wire.NameSAbnormalityRefresh
	case kind == wire.NameSAbnormalityRefresh && !active:
		return wire.NameSAbnormalityBegin
	default:
		return kind
	}
}

// ScheduleReversionCheck schedules revert_abnormality_state(id, ending)
// at ≈packet_buffer+100ms, per §4.6.
func (s *Scheduler) ScheduleReversionCheck(id int32, ending bool, initialClient, initialServer effect.AbnormalityRecord, now time.Time) {
	delay := s.buffer(revertDelayOffset)
	s.sched.After(delay, func() { s.revert(id, ending, initialClient, initialServer, now.Add(delay)) })
}

func (s *Scheduler) revert(id int32, ending bool, initialClient, initialServer effect.AbnormalityRecord, now time.Time) {
	_, serverActive := s.effects.GetServer(id)
	_, clientActive := s.effects.GetClient(id)

	if !ending {
		// Emulated a start; server must agree it's active.
		if !serverActive {
			s.send(wire.NameSAbnormalityEnd, wire.AbnormalityPacket{TargetID: s.selfID, ID: id})
			s.effects.EndClient(id)
		}
		return
	}

	// Emulated an end; server must agree it's gone.
	if serverActive && clientActive {
		return
	}
	if serverActive {
		remaining := initialServer.DurationMs - now.Sub(initialServer.StartTime).Milliseconds()
		if remaining < 0 {
			remaining = 0
		}
		s.startAbnormality(id, 0, &remaining, now)
	}
}

// Reset clears all scheduler-tracked state, per §3's S_LOGIN reset rule.
func (s *Scheduler) Reset() {
	for _, st := range s.states {
		if st.timeout != nil {
			st.timeout.Clear()
		}
	}
	s.states = make(map[int32]*skillState)
	s.skillStarts = make(map[int32][]int32)
	s.skillEnds = make(map[int32][]int32)
}
