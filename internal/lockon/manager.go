// Package lockon is the target-admission manager of §4.10: it suppresses
// the server's own S_CAN_LOCKON_TARGET responses for the self-player and
// instead synthesizes admission decisions from the skill's lockon rules,
// the self-player's lockon effect bonus, and each candidate target's
// relation to the self-player.
//
// Grounded on internal/entity's Relation enumeration for the
// enemyOrPvp/allyExceptMe/raid predicates and internal/gamedata's
// LockonRule/LockonRuleKind table; the admission loop itself has no
// teacher analogue (the source server is the sole lockon authority), so
// its shape follows the rest of the module's host-Send-at-the-edge
// pattern.
package lockon

import (
	"time"

	"github.com/merusira/rival/internal/action"
	"github.com/merusira/rival/internal/effect"
	"github.com/merusira/rival/internal/entity"
	"github.com/merusira/rival/internal/gamedata"
	"github.com/merusira/rival/internal/hostapi"
	"github.com/merusira/rival/internal/wire"
)

// defaultLockonEffect is the baseline lockon-count bonus used when the
// self-player carries no active lockon-affecting abnormality, per §4.10's
// "action.effects.lockon (default 50)".
const defaultLockonEffect = 50

// AdmitOverrideFunc lets a host-wiring layer substitute a user-authored
// rule (internal/rulescript's lockon_admit predicate) for the built-in
// LockonRules match loop. ok=false means "no opinion, use the built-in
// rule table"; kind/relation are passed as plain strings rather than
// gamedata/entity types so this package stays decoupled from
// rulescript's Lua-context shape, the same boundary internal/emulation's
// Hooks closures draw.
type AdmitOverrideFunc func(kind, relation string, pvpFlagged, isSelf bool) (admit bool, ok bool)

// Manager is the §4.10 lockon admission manager.
type Manager struct {
	entities *entity.Registry
	skills   *gamedata.SkillTable
	effects  *effect.Store
	actions  *action.Tracker
	host     hostapi.Host

	// AdmitOverride, when set, is consulted before the built-in
	// LockonRules match loop for every request that otherwise passed
	// the duplicate/template/capacity checks.
	AdmitOverride AdmitOverrideFunc

	targets       []uint64
	lastResetTime time.Time
}

func New(entities *entity.Registry, skills *gamedata.SkillTable, effects *effect.Store, actions *action.Tracker, host hostapi.Host) *Manager {
	return &Manager{entities: entities, skills: skills, effects: effects, actions: actions, host: host}
}

// SuppressServerResult reports that every server-originated
// S_CAN_LOCKON_TARGET for the self-player must be dropped — the manager
// is the sole source of admission decisions, per §4.10.
func (m *Manager) SuppressServerResult() bool { return true }

// Reset clears the tracked target list, per §3's S_LOGIN reset rule.
func (m *Manager) Reset() {
	m.targets = nil
	m.lastResetTime = time.Time{}
}

func (m *Manager) maybeReset(now time.Time) {
	client := m.actions.Client()
	if client.Stage == nil {
		return
	}
	if client.Stage.StartTime.After(m.lastResetTime) {
		m.targets = nil
		m.lastResetTime = client.Stage.StartTime
	}
	_ = now
}

func (m *Manager) contains(id uint64) bool {
	for _, t := range m.targets {
		if t == id {
			return true
		}
	}
	return false
}

func (m *Manager) maxTargets(skillID int32) int {
	total := 0
	if tmpl := m.skills.Get(skillID); tmpl != nil {
		for _, count := range tmpl.MaxLockonByClass {
			total += count
		}
	}
	lockonEffect := m.effects.GetAppliedEffects(skillID).Lockon
	if lockonEffect == 0 {
		lockonEffect = defaultLockonEffect
	}
	return total + int(lockonEffect)
}

func matches(kind gamedata.LockonRuleKind, target *entity.Record, selfID uint64) bool {
	switch kind {
	case gamedata.LockonEnemyOrPvp:
		return target.Relation == entity.RelationEnemy || target.PvPFlagged
	case gamedata.LockonAllyExceptMe:
		return target.Relation == entity.RelationAlly && target.ID != selfID
	case gamedata.LockonRaid:
		return target.Relation == entity.RelationRaid
	case gamedata.LockonRaidExceptMe:
		return target.Relation == entity.RelationRaid && target.ID != selfID
	default:
		return false
	}
}

func kindString(kind gamedata.LockonRuleKind) string {
	switch kind {
	case gamedata.LockonEnemyOrPvp:
		return "enemyOrPvp"
	case gamedata.LockonAllyExceptMe:
		return "allyExceptMe"
	case gamedata.LockonRaid:
		return "raid"
	case gamedata.LockonRaidExceptMe:
		return "raidExceptMe"
	default:
		return ""
	}
}

func relationString(r entity.Relation) string {
	switch r {
	case entity.RelationSelf:
		return "self"
	case entity.RelationParty:
		return "party"
	case entity.RelationRaid:
		return "raid"
	case entity.RelationAlly:
		return "ally"
	case entity.RelationEnemy:
		return "enemy"
	case entity.RelationNeutral:
		return "neutral"
	default:
		return "unknown"
	}
}

func (m *Manager) sendResult(targetID uint64, success bool) {
	m.host.Send(wire.NameSCanLockonTarget, wire.LockonResultPacket{TargetID: targetID, Success: success}, true)
}

// OnRequest implements §4.10's C_CAN_LOCKON_TARGET admission rule.
func (m *Manager) OnRequest(pkt wire.LockonRequestPacket, selfID uint64, now time.Time) {
	m.maybeReset(now)

	if m.contains(pkt.TargetID) {
		return
	}

	tmpl := m.skills.Get(pkt.SkillID)
	if tmpl == nil {
		m.sendResult(pkt.TargetID, false)
		return
	}

	if len(m.targets) >= m.maxTargets(pkt.SkillID) {
		m.sendResult(pkt.TargetID, false)
		return
	}

	target := m.entities.Get(pkt.TargetID)
	if target == nil {
		m.sendResult(pkt.TargetID, false)
		return
	}

	if m.AdmitOverride != nil {
		kind := ""
		if len(tmpl.LockonRules) > 0 {
			kind = kindString(tmpl.LockonRules[0].Kind)
		}
		if admit, ok := m.AdmitOverride(kind, relationString(target.Relation), target.PvPFlagged, target.ID == selfID); ok {
			if admit {
				m.targets = append(m.targets, pkt.TargetID)
			}
			m.sendResult(pkt.TargetID, admit)
			return
		}
	}

	for _, rule := range tmpl.LockonRules {
		if matches(rule.Kind, target, selfID) {
			m.targets = append(m.targets, pkt.TargetID)
			m.sendResult(pkt.TargetID, true)
			return
		}
	}
	m.sendResult(pkt.TargetID, false)
}
