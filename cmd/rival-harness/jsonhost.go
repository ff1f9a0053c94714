package main

import (
	"encoding/json"
	"reflect"

	"github.com/merusira/rival/internal/hostapi"
	"github.com/merusira/rival/internal/hostproxy"
	"github.com/merusira/rival/internal/wire"
)

// packetFactories maps every packet name the interception core hooks or
// sends to a constructor for its zero value, so jsonHost can decode a
// relayed frame's raw bytes into the struct hostapi.PacketHandler
// expects instead of handing it a []byte it has no way to interpret.
var packetFactories = map[wire.Name]func() any{
	wire.NameCStartSkill:             func() any { return &wire.StartSkillPacket{} },
	wire.NameCStartTargetedSkill:     func() any { return &wire.StartSkillPacket{} },
	wire.NameCStartComboInstantSkill: func() any { return &wire.StartSkillPacket{} },
	wire.NameCStartInstanceSkill:     func() any { return &wire.StartSkillPacket{} },
	wire.NameCStartInstanceSkillEx:   func() any { return &wire.StartSkillPacket{} },
	wire.NameCPressSkill:             func() any { return &wire.StartSkillPacket{} },
	wire.NameCNoTimelineSkill:        func() any { return &wire.StartSkillPacket{} },
	wire.NameCCancelSkill:            func() any { return &wire.CancelSkillPacket{} },
	wire.NameCCanLockonTarget:        func() any { return &wire.LockonRequestPacket{} },
	wire.NameCNotifyLocationInAction: func() any { return &wire.NotifyLocationPacket{} },
	wire.NameCPlayerLocation:         func() any { return &wire.PlayerLocationPacket{} },

	wire.NameSActionStage:       func() any { return &wire.ActionStagePacket{} },
	wire.NameSActionEnd:         func() any { return &wire.ActionEndPacket{} },
	wire.NameSEachSkillResult:   func() any { return &wire.SkillResultPacket{} },
	wire.NameSCannotStartSkill:  func() any { return &wire.CannotStartSkillPacket{} },
	wire.NameSConnectSkillArrow: func() any { return &wire.ConnectSkillArrowPacket{} },
	wire.NameSGrantSkill:        func() any { return &wire.GrantSkillPacket{} },
	wire.NameSInstantMove:       func() any { return &wire.InstantMovePacket{} },
	wire.NameSStartCooltimeSkill:    func() any { return &wire.CooldownPacket{} },
	wire.NameSDecreaseCooltimeSkill: func() any { return &wire.CooldownPacket{} },
	wire.NameSAbnormalityBegin:   func() any { return &wire.AbnormalityPacket{} },
	wire.NameSAbnormalityRefresh: func() any { return &wire.AbnormalityPacket{} },
	wire.NameSAbnormalityEnd:     func() any { return &wire.AbnormalityPacket{} },
	wire.NameSCreatureLife:       func() any { return &wire.CreatureLifePacket{} },
	wire.NameSCanLockonTarget:    func() any { return &wire.LockonResultPacket{} },
}

// jsonHost adapts a *hostproxy.Host (a byte-level relay) to hostapi.Host
// for this harness, encoding/decoding domain packet structs as JSON
// frames. hostproxy's own framing is protocol-agnostic by design (it
// never parses a payload, see internal/hostproxy's package doc), and
// this repository carries no real binary schema for this fictional
// client's wire format — JSON round-tripped through packetFactories is
// the harness's own substitute wire format for local manual testing,
// not a claim about the production client's actual bytes.
type jsonHost struct {
	inner *hostproxy.Host
}

func newJSONHost(inner *hostproxy.Host) *jsonHost { return &jsonHost{inner: inner} }

func (h *jsonHost) Hook(name wire.Name, order int, fn hostapi.PacketHandler) hostapi.HookHandle {
	return h.inner.Hook(name, order, func(fake bool, payload any) bool {
		if raw, ok := payload.([]byte); ok {
			payload = h.decode(name, raw)
		}
		return fn(fake, payload)
	})
}

func (h *jsonHost) decode(name wire.Name, raw []byte) any {
	factory, ok := packetFactories[name]
	if !ok {
		return raw
	}
	v := factory()
	if err := json.Unmarshal(raw, v); err != nil {
		return raw
	}
	return reflect.ValueOf(v).Elem().Interface()
}

func (h *jsonHost) Send(name wire.Name, payload any, fake bool) error {
	if b, ok := payload.([]byte); ok {
		return h.inner.Send(name, b, fake)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return h.inner.Send(name, b, fake)
}

func (h *jsonHost) QueryData(key string) (any, bool)     { return h.inner.QueryData(key) }
func (h *jsonHost) ParseSystemMessage(raw []byte) string { return h.inner.ParseSystemMessage(raw) }
func (h *jsonHost) BuildSystemMessage(text string) []byte { return h.inner.BuildSystemMessage(text) }
