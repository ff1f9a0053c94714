package emulation

import (
	"strings"
	"time"

	"github.com/merusira/rival/internal/action"
	"github.com/merusira/rival/internal/gamedata"
	"github.com/merusira/rival/internal/position"
	"github.com/merusira/rival/internal/wire"
)

// OnServerActionStage implements §4.7.5: inbound S_ACTION_STAGE
// reconciliation against the client's predicted timeline. It reports
// whether the inbound packet should be suppressed because it merely
// confirms a stage the client has already synthesized and played
// (§1, Scenario S1(d)): delivering it anyway would replay the same
// animation a second time.
func (e *Engine) OnServerActionStage(pkt wire.ActionStagePacket, now time.Time) (suppress bool) {
	if pkt.EntityID != e.selfID {
		return false
	}
	server := e.actions.Server()
	e.actions.OnServerStage(pkt, now)

	if e.isDisabled(pkt.Skill) {
		client := e.actions.Client()
		if client.Stage != nil {
			e.emitSyntheticEnd(client.Stage.Skill, EndTypeDisabled, client.Stage.Loc, now)
		}
		return false
	}

	if client := e.actions.Client(); client.InAction && client.Stage != nil && client.Stage.Skill == pkt.Skill && client.Stage.Stage == pkt.Stage {
		return true
	}

	if pkt.Stage != 0 {
		return false
	}
	if !server.Ended || server.EndType != EndTypeServerDesync || server.Stage == nil || server.Stage.Skill == pkt.Skill {
		return false
	}
	if !chainsInto(e, server.Stage.Skill, pkt.Skill) && !recentlyEndedSameSkill(server, pkt.Skill) {
		client := e.actions.Client()
		if client.Stage != nil {
			e.emitSyntheticEnd(client.Stage.Skill, EndTypeServerDesync, client.Stage.Loc, now)
		}
		e.actions.OnClientStage(pkt, now)
	}
	return false
}

// chainsInto reports whether toSkill continues fromSkill's chain map,
// used to distinguish a genuine chain continuation from an unrelated
// skill landing on stage 0 (§4.7.5).
func chainsInto(e *Engine, fromSkill, toSkill int32) bool {
	toTmpl := e.gd.Skills.Get(toSkill)
	fromTmpl := e.gd.Skills.Get(fromSkill)
	if toTmpl == nil || fromTmpl == nil {
		return false
	}
	_, ok := toTmpl.Chain[string(fromTmpl.Type)]
	return ok
}

// recentlyEndedSameSkill reports whether the server's last recorded end
// was already for this same skill, matching the "differs from our last
// end of the same skill" guard of §4.7.5.
func recentlyEndedSameSkill(server action.View, skillID int32) bool {
	return server.Ended && server.Stage != nil && server.Stage.Skill == skillID
}

// sameEmulatedEnd reports whether the client's own recently-emulated end
// matches the inbound packet's end type and skill, the "differs from our
// recent emulated end" guard of §4.7.6: recency alone isn't enough, since
// the client can recently have ended with one type/skill while the server
// reports a genuinely different one that must still be trusted.
func sameEmulatedEnd(client action.View, pkt wire.ActionEndPacket, buffer time.Duration, now time.Time) bool {
	if !client.Ended || client.EndTime.IsZero() || !client.EndTime.After(now.Add(-buffer)) {
		return false
	}
	return client.EndType == pkt.Type && client.Stage != nil && client.Stage.Skill == pkt.Skill
}

// OnServerActionEnd implements §4.7.6: inbound S_ACTION_END reconciliation.
func (e *Engine) OnServerActionEnd(pkt wire.ActionEndPacket, now time.Time) {
	if pkt.EntityID != e.selfID {
		return
	}

	client := e.actions.Client()
	if client.InAction && !e.isDisabled(pkt.Skill) {
		special := pkt.Type == EndTypeDash && client.InAction && client.Stage != nil && client.Stage.Skill != pkt.Skill
		if !acceptedEndTypes[pkt.Type] && !sameEmulatedEnd(client, pkt, e.packetBuffer(), now) && !special {
			e.host.Send(wire.NameSActionEnd, pkt, true)
			if pkt.Type != 28 {
				e.host.Send(wire.NameSInstantMove, wire.InstantMovePacket{EntityID: pkt.EntityID, Loc: pkt.Loc}, true)
			}
		}
	}

	e.actions.OnServerEnd(pkt, now)

	after := e.actions.Client()
	if after.Ended && !after.InAction && !isMovingSkill(e.gd.Skills.Get(pkt.Skill)) {
		if after.Stage != nil && position.Dist2D(pkt.Loc, after.Stage.Loc) > 100 {
			e.host.Send(wire.NameSInstantMove, wire.InstantMovePacket{EntityID: pkt.EntityID, Loc: after.Stage.Loc}, true)
		}
	}
}

func isMovingSkill(tmpl *gamedata.SkillTemplate) bool {
	return tmpl != nil && strings.HasPrefix(string(tmpl.Type), "moving")
}

// OnCancelSkill implements §4.7.7, the C_CANCEL_SKILL handler.
func (e *Engine) OnCancelSkill(pkt wire.CancelSkillPacket, now time.Time) (suppress bool) {
	client := e.actions.Client()
	if client.Stage == nil || !client.InAction {
		return false
	}
	tmpl := e.gd.Skills.Get(client.Stage.Skill)
	if tmpl == nil {
		return false
	}

	endType := pkt.Type
	if isArcherRapidFireSkill(tmpl) {
		endType = EndTypeArcherRapidFire
	}
	e.emitSyntheticEnd(client.Stage.Skill, endType, client.Stage.Loc, now)

	jitter := e.pingJitter()
	e.sched.After(jitter, func() {
		e.host.Send(wire.NameCCancelSkill, pkt, false)
	})
	return true
}

// isArcherRapidFireSkill keys off a "rapid_fire" category tag: the source
// names the override by class/skill combination without enumerating it,
// so this is the narrowest data-driven stand-in that doesn't hardcode a
// specific skill id.
func isArcherRapidFireSkill(tmpl *gamedata.SkillTemplate) bool {
	for _, c := range tmpl.Categories {
		if c == "rapid_fire" {
			return true
		}
	}
	return false
}

// OnDeath implements §4.7.8's death rule: a self death while in action
// ends the action with type 699.
func (e *Engine) OnDeath(pkt wire.CreatureLifePacket, now time.Time) {
	if !pkt.IsSelf || pkt.Alive {
		return
	}
	client := e.actions.Client()
	if client.InAction && client.Stage != nil {
		e.emitSyntheticEnd(client.Stage.Skill, EndTypeDeath, client.Stage.Loc, now)
	}
}

// OnDefendSuccess implements §4.7.8's defence-retry rule: a successful
// defence re-executes the last outbound skill immediately when that skill
// requires onlyAfterDefenceSuccess and the timing window still holds.
func (e *Engine) OnDefendSuccess(now time.Time) {
	if e.lastOutboundSkill == 0 {
		return
	}
	tmpl := e.gd.Skills.Get(e.lastOutboundSkill)
	onlyAfterDefence := tmpl != nil && tmpl.OnlyAfterDefenceSuccess
	if e.hooks.OnlyAfterDefenceSuccess != nil {
		onlyAfterDefence = e.hooks.OnlyAfterDefenceSuccess(e.lastOutboundSkill)
	}
	if !onlyAfterDefence {
		return
	}
	ping := e.pingJitter()
	if !e.lastOutboundTime.Add(ping / 2).After(now.Add(-ping / 2)) {
		return
	}
	e.blockSend = true
	e.host.Send(wire.NameCStartSkill, wire.StartSkillPacket{SkillID: e.lastOutboundSkill}, false)
	e.blockSend = false
}

// OnReaction implements §4.7.8's reaction rule: a non-push reaction with
// an animation sequence, while in action, ends the current action with
// type 9 at the reaction's location.
func (e *Engine) OnReaction(ev action.ReactionEvent, isPush bool, now time.Time) {
	if isPush || len(ev.AnimSeq) == 0 {
		return
	}
	client := e.actions.Client()
	if !client.InAction || client.Stage == nil {
		return
	}
	e.emitSyntheticEnd(client.Stage.Skill, EndTypeReaction, client.Stage.Loc, now)
}

// SuppressConnectSkillArrow implements §4.7.9's suppression window for
// inbound S_CONNECT_SKILL_ARROW.
func (e *Engine) SuppressConnectSkillArrow(now time.Time) bool {
	return now.Before(e.connectArrowUntil)
}

// SuppressGrantSkill implements §4.7.9's suppression window for inbound
// S_GRANT_SKILL.
func (e *Engine) SuppressGrantSkill(now time.Time) bool {
	return now.Before(e.grantSkillUntil)
}
