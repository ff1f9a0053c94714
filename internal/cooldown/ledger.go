// Package cooldown is the per-skill, per-stack, and per-group cooldown
// ledger of §4.4: it records cooldown start times from S_START_COOLTIME_SKILL
// / S_DECREASE_COOLTIME_SKILL, answers IsOnCooldown predictively for the
// emulation engine, and emits reset events on S_CREST_MESSAGE type=6.
package cooldown

import (
	"time"

	"github.com/merusira/rival/internal/eventbus"
	"github.com/merusira/rival/internal/gamedata"
	"github.com/merusira/rival/internal/wire"
)

// Entry is one cooldown record, per §3's Cooldown entry type.
type Entry struct {
	StartTime           time.Time
	CooldownMs          int64
	UsedStacks          int
	NextStackCooldownMs int64
}

func (e Entry) active(now time.Time) bool {
	return now.Before(e.StartTime.Add(time.Duration(e.CooldownMs) * time.Millisecond))
}

// ResetEvent is emitted on the `reset(skill_id, from_server)` channel
// named in §4.4.
type ResetEvent struct {
	SkillID    int32
	FromServer bool
}

// Ledger tracks client-view and server-view cooldown entries keyed by
// raw skill id, normalized skill id, and — for multi-stage non-special
// skills — group id, per §3's ledger invariant.
type Ledger struct {
	skills *gamedata.SkillTable
	bus    *eventbus.Bus

	clientSkill map[int32]Entry
	clientGroup map[string]Entry
	serverSkill map[int32]Entry
	serverGroup map[string]Entry
}

func New(skills *gamedata.SkillTable, bus *eventbus.Bus) *Ledger {
	return &Ledger{
		skills:      skills,
		bus:         bus,
		clientSkill: make(map[int32]Entry),
		clientGroup: make(map[string]Entry),
		serverSkill: make(map[int32]Entry),
		serverGroup: make(map[string]Entry),
	}
}

func normalizedID(raw int32) int32 {
	p := wire.ParseSkillID(raw, true)
	return wire.GetBaseID(p.Skill, p.Level, 0)
}

// OnCooldown records a cooldown start from S_START_COOLTIME_SKILL or
// S_DECREASE_COOLTIME_SKILL, per §4.4's write rule.
func (l *Ledger) OnCooldown(pkt wire.CooldownPacket, now time.Time) {
	raw := pkt.SkillID
	norm := normalizedID(raw)
	entry := Entry{StartTime: now, CooldownMs: pkt.CooldownMs}

	l.clientSkill[raw] = entry
	l.clientSkill[norm] = entry

	if l.isMultiStageNonSpecial(raw) {
		l.clientGroup[wire.GroupID(raw)] = entry
	}

	if !pkt.FromServer {
		l.serverSkill[raw] = entry
		l.serverSkill[norm] = entry
		if l.isMultiStageNonSpecial(raw) {
			l.serverGroup[wire.GroupID(raw)] = entry
		}
	}
}

func (l *Ledger) isMultiStageNonSpecial(skillID int32) bool {
	tmpl := l.skills.Get(skillID)
	return tmpl != nil && tmpl.IsMultiStage() && !tmpl.Type.IsSpecial()
}

// OnReset handles S_CREST_MESSAGE type=6: zeroes the raw and normalized
// cooldown entries and emits a ResetEvent, per §4.4.
func (l *Ledger) OnReset(skillID int32, fromServer bool, now time.Time) {
	norm := normalizedID(skillID)
	zero := Entry{StartTime: now, CooldownMs: 0}

	l.clientSkill[skillID] = zero
	l.clientSkill[norm] = zero
	if !fromServer {
		l.serverSkill[skillID] = zero
		l.serverSkill[norm] = zero
	}

	if l.bus != nil {
		eventbus.Emit(l.bus, ResetEvent{SkillID: skillID, FromServer: fromServer})
	}
}

// RecordStackUse advances a stack-charge skill's stack counter, consumed
// by a future IsOnCooldown check against stackSkillID.
func (l *Ledger) RecordStackUse(stackSkillID int32, now time.Time) {
	tmpl := l.skills.Get(stackSkillID)
	if tmpl == nil || tmpl.MaxStack == 0 {
		return
	}
	e := l.clientSkill[stackSkillID]
	e.UsedStacks++
	e.StartTime = now
	e.NextStackCooldownMs = tmpl.NextStackCooldownMs
	l.clientSkill[stackSkillID] = e
}

// IsOnCooldown answers §4.4's predictive cooldown check against the
// client-view ledger. inAction/inActionSkill describe the skill the
// player is currently performing, if any, for the group-combination rule.
func (l *Ledger) IsOnCooldown(skillID, stackSkillID int32, now time.Time, inAction bool, inActionSkill int32) bool {
	if stackSkillID != 0 {
		if tmpl := l.skills.Get(stackSkillID); tmpl != nil && tmpl.MaxStack > 0 {
			e, ok := l.clientSkill[stackSkillID]
			if !ok {
				return false
			}
			effective := e.UsedStacks
			if !now.Before(e.StartTime.Add(time.Duration(e.NextStackCooldownMs) * time.Millisecond)) {
				effective--
			}
			return effective == tmpl.MaxStack
		}
	}

	e, ok := l.clientSkill[skillID]
	onCooldown := ok && e.active(now)

	tmpl := l.skills.Get(skillID)
	special := tmpl != nil && tmpl.Type.IsSpecial()
	if special {
		return onCooldown
	}

	groupKey := wire.GroupID(skillID)
	sameGroup := inAction && wire.GroupID(inActionSkill) == groupKey
	if !inAction || sameGroup {
		if ge, ok := l.clientGroup[groupKey]; ok && ge.active(now) {
			onCooldown = true
		}
	}
	return onCooldown
}

// Reset clears every tracked entry, per §3's S_LOGIN reset rule.
func (l *Ledger) Reset() {
	l.clientSkill = make(map[int32]Entry)
	l.clientGroup = make(map[string]Entry)
	l.serverSkill = make(map[int32]Entry)
	l.serverGroup = make(map[string]Entry)
}
