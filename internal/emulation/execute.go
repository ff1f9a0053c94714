package emulation

import (
	"time"

	"github.com/merusira/rival/internal/gamedata"
	"github.com/merusira/rival/internal/skillmeta"
	"github.com/merusira/rival/internal/wire"
)

// executeSkill implements §4.7.3: flush any buffered outbound, re-derive
// the resolved skill against current state, release the outbound to the
// server when permitted, and synthesize the first action stage.
func (e *Engine) executeSkill(name wire.Name, pkt wire.StartSkillPacket, byGrant bool, prev skillmeta.NewSkillData, now time.Time) {
	if e.pending != nil {
		pend := e.pending
		e.pending = nil
		e.blockSend = true
		e.host.Send(pend.name, pend.pkt, false)
		e.blockSend = false
	}

	newData := e.meta.GetNewSkillData(pkt.SkillID, byGrant, pkt.Press, e.chainContext())
	if newData.Type != prev.Type || newData.SkillID != prev.SkillID || newData.Failed != prev.Failed {
		delay := e.pingJitter() + e.settingsDelay() + e.meta.SkillDelay(newData.SkillID)
		if delay > 0 {
			e.sched.After(delay, func() { e.executeSkill(name, pkt, byGrant, newData, e.now()) })
			return
		}
		if newData.Failed != prev.Failed && prev.TimeMs < 0 {
			e.sendCannotStart(newData.SkillID)
			e.blockSend = true
			e.host.Send(name, pkt, false)
			e.blockSend = false
		}
	}

	opts := skillmeta.Options{
		CC:        e.blockedByCC(),
		Resources: e.hasResources(newData.SkillID),
		Future:    newData.Future,
	}
	canCast := e.meta.CanCastSkill(newData.SkillID, opts)

	if !canCast.Excluded() {
		e.lastOutboundSkill = newData.SkillID
		e.lastOutboundTime = now
		e.host.Send(name, pkt, false)
	}

	if e.meta.RawAnimationLength(newData.SkillID) == 0 || canCast == skillmeta.CanCastOnCooldown {
		return
	}
	if canCast < skillmeta.CanCastSpecialSilent {
		e.sendCannotStart(newData.SkillID)
		return
	}
	if canCast == skillmeta.CanCastSpecialSilent {
		return
	}

	tmpl := e.gd.Skills.Get(newData.SkillID)
	if tmpl == nil {
		return
	}

	chargeStage := -1
	isMovingChargeAb := false
	if tmpl.Type == gamedata.TypeMovingCharge && e.meta.IsMovingChargeAbnormality(newData.SkillID, e.effects.Has, e.gd.Abnormalities) {
		chargeStage = tmpl.StageCount() - 1
		isMovingChargeAb = true
	}

	if newData.Cancel {
		client := e.actions.Client()
		if client.Stage != nil {
			e.emitSyntheticEnd(client.Stage.Skill, terminalEndType(newData.Type), client.Stage.Loc, now)
		}
		return
	}

	if e.shouldConnectSkillArrow(newData.SkillID, byGrant) {
		e.host.Send(wire.NameSConnectSkillArrow, wire.ConnectSkillArrowPacket{SkillID: newData.SkillID, TargetID: pkt.TargetID}, true)
		e.connectArrowUntil = now.Add(e.packetBuffer())
		e.endCurrentAction(now)
		return
	}

	isChargeLike := tmpl.Type == gamedata.TypeHold || isMovingChargeAb
	if isChargeLike {
		grantDelay := time.Duration(0)
		if isMovingChargeAb {
			grantDelay = 25 * time.Millisecond
		}
		movingAb := isMovingChargeAb
		e.sched.After(grantDelay, func() {
			t := e.now()
			e.grantSkillUntil = t.Add(e.packetBuffer())
			e.host.Send(wire.NameSGrantSkill, wire.GrantSkillPacket{SkillID: newData.SkillID}, true)
			e.pending = &pendingStart{name: name, pkt: pkt, byGrant: byGrant}
			if movingAb {
				e.isCharging = true
			}
		})
		if !isMovingChargeAb {
			return
		}
	}

	client := e.actions.Client()
	if client.InAction && client.Stage != nil && hasEndType(tmpl) && client.Stage.Skill != newData.SkillID {
		endType := 0
		if isMovingChargeAb {
			endType = EndTypeMovingChargeAb
		}
		e.emitSyntheticEnd(client.Stage.Skill, endType, client.Stage.Loc, now)
	}

	stage := 0
	if chargeStage >= 0 {
		stage = chargeStage
	}
	if d := e.actionStageDelay(newData.SkillID); d > 0 {
		e.sched.After(d, func() { e.sendActionStage(newData.SkillID, false, stage, e.now()) })
	} else {
		e.sendActionStage(newData.SkillID, false, stage, now)
	}

	e.runRetryLoop(name, pkt, byGrant, newData, 0, now)
}

// hasEndType is a defensive default: every loaded skill template is
// treated as having an end-type unless it is explicitly the moving-charge
// family (which ends via its own branch).
func hasEndType(tmpl *gamedata.SkillTemplate) bool {
	return tmpl != nil && tmpl.Type != gamedata.TypeMovingCharge
}

// runRetryLoop implements §4.7.3 step 12's bounded re-release loop.
func (e *Engine) runRetryLoop(name wire.Name, pkt wire.StartSkillPacket, byGrant bool, newData skillmeta.NewSkillData, iteration int, now time.Time) {
	retryCount := e.meta.RetryCount(newData.SkillID)
	if iteration >= retryCount {
		return
	}
	retryDelay := e.meta.RetryDelay(newData.SkillID)
	e.sched.After(retryDelay, func() {
		t := e.now()
		server := e.actions.Server()
		if server.Stage != nil && server.Stage.Skill != newData.SkillID && t.Sub(server.Stage.StageTime) >= e.pingJitter() {
			return
		}
		client := e.actions.Client()
		if client.Stage != nil && client.Stage.Skill != newData.SkillID {
			return
		}

		recomputed := e.meta.GetNewSkillData(pkt.SkillID, byGrant, pkt.Press, e.chainContext())
		opts := skillmeta.Options{CC: e.blockedByCC(), Resources: e.hasResources(recomputed.SkillID), Future: recomputed.Future}
		canCast := e.meta.CanCastSkill(recomputed.SkillID, opts)

		allow := e.meta.AllowThroughFutureRetry(recomputed.SkillID)
		if !allow && canCast >= skillmeta.CanCastFuture && !(recomputed.Future && recomputed.TimeMs <= -25) {
			return
		}

		e.blockSend = true
		e.host.Send(name, pkt, false)
		e.blockSend = false

		e.runRetryLoop(name, pkt, byGrant, recomputed, iteration+1, t)
	})
}
