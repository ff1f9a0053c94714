package emulation

import (
	"time"

	"github.com/merusira/rival/internal/gamedata"
	"github.com/merusira/rival/internal/wire"
)

// terminalEndType maps a skill's terminal type to the end-type code its
// synthetic S_ACTION_END carries, per §4.7.4: movingCharge never ends
// itself here (it awaits an external release), dash ends with 39,
// everything else with 0. Callers that need the movingCharge "does
// nothing" behavior check the type directly before calling this.
func terminalEndType(t gamedata.SkillType) int {
	if t == gamedata.TypeDash {
		return EndTypeDash
	}
	return EndTypeNormal
}

// emitSyntheticEnd sends a locally-synthesized S_ACTION_END for skillID,
// applying §4.9's self-emulated-end anti-desync rewrite first, records it
// on the client view, and sends it via the host's injected inbound path
// (fake=true marks it as engine-originated, not server traffic).
func (e *Engine) emitSyntheticEnd(skillID int32, endType int, loc wire.Loc, now time.Time) {
	pkt := wire.ActionEndPacket{EntityID: e.selfID, Skill: skillID, Type: endType, Loc: loc}
	if e.desync != nil {
		e.desync.RewriteSelfEmulatedEnd(e.selfID, &pkt, now)
	}
	e.actions.OnClientEnd(pkt, now)
	e.host.Send(wire.NameSActionEnd, pkt, true)
}

// endCurrentAction ends the client's current action with its terminal end
// type, if any, used by the connect-skill-arrow branch of §4.7.3 step 8.
func (e *Engine) endCurrentAction(now time.Time) {
	client := e.actions.Client()
	if client.Stage == nil || !client.InAction {
		return
	}
	tmpl := e.gd.Skills.Get(client.Stage.Skill)
	endType := EndTypeNormal
	if tmpl != nil {
		endType = terminalEndType(tmpl.Type)
	}
	e.emitSyntheticEnd(client.Stage.Skill, endType, client.Stage.Loc, now)
}

// sendActionStage implements §4.7.4, the chain pump that advances a
// skill's synthetic stage sequence one hop at a time, scheduling the next
// hop from animation_length until the skill's terminal stage is reached.
func (e *Engine) sendActionStage(skillID int32, continuation bool, stage int, now time.Time) {
	if e.actionStageTimeout != nil {
		e.actionStageTimeout.Clear()
		e.actionStageTimeout = nil
	}

	if continuation {
		client := e.actions.Client()
		if client.Stage == nil || !client.InAction || client.Stage.Stage != stage-1 {
			return
		}
	}

	tmpl := e.gd.Skills.Get(skillID)
	if tmpl == nil {
		return
	}

	isLast := stage >= tmpl.StageCount()-1
	if isLast {
		switch tmpl.Type {
		case gamedata.TypeMovingCharge:
			// Terminal movingCharge does nothing; it awaits release.
		case gamedata.TypeDash:
			e.emitSyntheticEnd(skillID, EndTypeDash, e.lastMoveLocation, now)
		default:
			e.emitSyntheticEnd(skillID, EndTypeNormal, e.lastMoveLocation, now)
		}
	}

	speed := e.gd.Skills.GetSpeed(skillID)
	pkt := wire.ActionStagePacket{EntityID: e.selfID, Skill: skillID, Stage: stage, Speed: speed}
	e.host.Send(wire.NameSActionStage, pkt, true)
	e.lastMoveLocation = wire.Loc{}

	length := e.meta.AnimationLength(skillID, stage, speed)
	if length >= 0 {
		next := stage + 1
		e.actionStageTimeout = e.sched.After(length, func() {
			e.sendActionStage(skillID, true, next, e.now())
		})
	}
}
