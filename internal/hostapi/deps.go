package hostapi

import (
	"time"

	"github.com/merusira/rival/internal/action"
	"github.com/merusira/rival/internal/antidesync"
	"github.com/merusira/rival/internal/cc"
	"github.com/merusira/rival/internal/cooldown"
	"github.com/merusira/rival/internal/effect"
	"github.com/merusira/rival/internal/emulation"
	"github.com/merusira/rival/internal/entity"
	"github.com/merusira/rival/internal/eventbus"
	"github.com/merusira/rival/internal/gamedata"
	"github.com/merusira/rival/internal/lockon"
	"github.com/merusira/rival/internal/pingmeter"
	"github.com/merusira/rival/internal/player"
	"github.com/merusira/rival/internal/reload"
	"github.com/merusira/rival/internal/rulescript"
	"github.com/merusira/rival/internal/scheduler"
	"github.com/merusira/rival/internal/settings"
	"github.com/merusira/rival/internal/skillmeta"
	"github.com/merusira/rival/internal/smoothblock"
	"github.com/merusira/rival/internal/wire"

	"go.uber.org/zap"
)

// Deps is the construction-time wiring struct: every module above
// internal/hostapi gets built exactly once here and handed a Host to
// attach its hooks to, generalizing the teacher's
// internal/handler.Deps manager-interface bundle from a fixed set of
// concrete managers to this spec's module set.
type Deps struct {
	GameData  *gamedata.Store
	Bus       *eventbus.Bus
	Effects   *effect.Store
	Actions   *action.Tracker
	Cooldowns *cooldown.Ledger
	Entities  *entity.Registry
	Player    *player.State
	Meta      *skillmeta.Evaluator
	Scheduler *scheduler.Scheduler
	Clock     scheduler.Clock
	Ping      *pingmeter.Meter

	Emulation   *emulation.Engine
	CC          *cc.Handler
	AntiDesync  *antidesync.Corrector
	Lockon      *lockon.Manager
	SmoothBlock *smoothblock.Stripper
	Rules       *rulescript.Engine

	Settings settings.Settings
	Log      *zap.Logger
}

// Options configures New. RulesDir/Reload are both optional: leaving
// RulesDir empty runs every rulescript hook at its documented fallback,
// exactly like a Lua rule file that never defines the hook; leaving
// Reload nil only skips registering the rules directory for hot reload.
type Options struct {
	GameDataDir string
	RulesDir    string
	Reload      *reload.Host
	Settings    settings.Settings
	Clock       scheduler.Clock
	Log         *zap.Logger
}

// New loads game data and builds every subsystem, wiring the optional
// rulescript overrides (lockon admission, anti-desync back-correction)
// into the modules that expose an override hook. Host-side packet hooks
// are attached separately by Wire, once the host implementation exists.
func New(host Host, sched *scheduler.Scheduler, opts Options) (*Deps, error) {
	clock := opts.Clock
	if clock == nil {
		clock = scheduler.SystemClock{}
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	gd, err := gamedata.Load(opts.GameDataDir)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	effects := effect.New(gd.Skills, gd.Abnormalities)
	actions := action.New(gd.Skills, effects, bus)
	cooldowns := cooldown.New(gd.Skills, bus)
	entities := entity.NewRegistry()
	pl := &player.State{}
	ping := pingmeter.New()

	meta := skillmeta.NewEvaluator(gd.Skills, func(id int32) bool {
		return cooldowns.IsOnCooldown(id, 0, clock.Now(), false, 0)
	})

	var rules *rulescript.Engine
	if opts.RulesDir != "" {
		rules, err = rulescript.NewEngine(opts.RulesDir, log)
		if err != nil {
			return nil, err
		}
		if opts.Reload != nil {
			rulesDir := opts.RulesDir
			opts.Reload.Register("rulescript", rulesDir, func() (reload.Module, error) {
				return rulescript.NewEngine(rulesDir, log)
			})
		}
	}

	ccHandler := cc.New(gd.Skills, effects, actions, host, sched, clock, ping.Ping)

	hooks := emulation.Hooks{
		CannotCastBase: func() bool { return !pl.CanCast() },
		IsBlockedByCC:  func() bool { return ccHandler.Suppressing(clock.Now()) },
		PingJitter:     ping.Jitter,
		SettingsDelay: func() time.Duration {
			return time.Duration(opts.Settings.Skills.RetryJitterComp) * time.Millisecond
		},
		PacketBuffer: func() time.Duration {
			return ping.Buffer(time.Duration(opts.Settings.Skills.ChargeJitterMax) * time.Millisecond)
		},
	}
	// ShouldConnectSkillArrow is left at its documented false default:
	// deciding it correctly needs the active lockon target set, which
	// isn't resolved until lockonMgr exists below, and no rulescript
	// hook targets this decision specifically (lockon_admit answers a
	// different question — "is this target a legal lockon target at
	// all", not "has the arrow already connected").

	eng := emulation.New(gd, effects, actions, cooldowns, meta, sched, host, clock, hooks, log)

	desync := antidesync.New(gd.Skills, actions, host)
	eng.SetDesync(desync)
	lockonMgr := lockon.New(entities, gd.Skills, effects, actions, host)
	stripper := smoothblock.New()

	if rules != nil {
		desync.RuleOverride = rules.DesyncBackCorrection
		lockonMgr.AdmitOverride = func(kind, relation string, pvpFlagged, isSelf bool) (bool, bool) {
			return rules.EvalLockonAdmit(rulescript.LockonContext{
				Kind: kind, Relation: relation, PvPFlagged: pvpFlagged, IsSelf: isSelf,
			})
		}
	}

	return &Deps{
		GameData:    gd,
		Bus:         bus,
		Effects:     effects,
		Actions:     actions,
		Cooldowns:   cooldowns,
		Entities:    entities,
		Player:      pl,
		Meta:        meta,
		Scheduler:   sched,
		Clock:       clock,
		Ping:        ping,
		Emulation:   eng,
		CC:          ccHandler,
		AntiDesync:  desync,
		Lockon:      lockonMgr,
		SmoothBlock: stripper,
		Rules:       rules,
		Settings:    opts.Settings,
		Log:         log,
	}, nil
}

// Wire attaches every packet hook the modules in Deps need, against the
// same Host passed to New. Kept separate from New so tests can build a
// Deps without a live Host and attach hooks only when exercising the
// full pipeline.
func (d *Deps) Wire(host Host) {
	d.Entities.SetSelf(d.Actions.SelfID())

	host.Hook(wire.NameCStartSkill, 0, func(fake bool, payload any) bool {
		pkt, ok := payload.(wire.StartSkillPacket)
		if fake || !ok {
			return false
		}
		d.AntiDesync.RewriteSkillStart(&pkt, d.Clock.Now())
		return d.Emulation.HandleStartSkill(wire.NameCStartSkill, pkt, false, d.Clock.Now())
	})

	host.Hook(wire.NameCCancelSkill, 0, func(fake bool, payload any) bool {
		pkt, ok := payload.(wire.CancelSkillPacket)
		if fake || !ok {
			return false
		}
		return d.Emulation.OnCancelSkill(pkt, d.Clock.Now())
	})

	host.Hook(wire.NameCPlayerLocation, 0, func(fake bool, payload any) bool {
		pkt, ok := payload.(wire.PlayerLocationPacket)
		if fake || !ok {
			return false
		}
		return d.AntiDesync.SuppressPlayerLocation(pkt, d.Clock.Now())
	})

	host.Hook(wire.NameCNotifyLocationInAction, 0, func(fake bool, payload any) bool {
		pkt, ok := payload.(wire.NotifyLocationPacket)
		if fake || !ok {
			return false
		}
		d.AntiDesync.RewriteNotifyLocation(&pkt, d.Clock.Now())
		return false
	})

	host.Hook(wire.NameCCanLockonTarget, 0, func(fake bool, payload any) bool {
		pkt, ok := payload.(wire.LockonRequestPacket)
		if fake || !ok {
			return false
		}
		d.Lockon.OnRequest(pkt, d.Actions.SelfID(), d.Clock.Now())
		return true
	})

	host.Hook(wire.NameSCanLockonTarget, 0, func(fake bool, payload any) bool {
		return !fake && d.Lockon.SuppressServerResult()
	})

	host.Hook(wire.NameSActionStage, 0, func(fake bool, payload any) bool {
		pkt, ok := payload.(wire.ActionStagePacket)
		if fake || !ok {
			return false
		}
		suppress := d.Emulation.OnServerActionStage(pkt, d.Clock.Now())
		d.CC.OnSelfActionStage(pkt, d.Actions.SelfID(), d.Clock.Now())
		return suppress
	})

	host.Hook(wire.NameSActionEnd, 0, func(fake bool, payload any) bool {
		pkt, ok := payload.(wire.ActionEndPacket)
		if fake || !ok {
			return false
		}
		if pkt.EntityID == d.Actions.SelfID() && d.CC.Suppressing(d.Clock.Now()) {
			return true
		}
		d.Emulation.OnServerActionEnd(pkt, d.Clock.Now())
		return false
	})

	host.Hook(wire.NameSEachSkillResult, 0, func(fake bool, payload any) bool {
		pkt, ok := payload.(wire.SkillResultPacket)
		if fake || !ok {
			return false
		}
		if d.SmoothBlock.Enabled() {
			d.SmoothBlock.Apply(&pkt)
		}
		d.CC.OnSkillResult(pkt, d.Actions.SelfID(), d.Clock.Now())
		return false
	})

	host.Hook(wire.NameSAbnormalityBegin, 0, func(fake bool, payload any) bool {
		pkt, ok := payload.(wire.AbnormalityPacket)
		if fake || !ok {
			return false
		}
		d.CC.OnAbnormalityBegin(pkt, d.Actions.SelfID(), d.Clock.Now())
		return false
	})

	host.Hook(wire.NameSCreatureLife, 0, func(fake bool, payload any) bool {
		pkt, ok := payload.(wire.CreatureLifePacket)
		if fake || !ok {
			return false
		}
		d.Emulation.OnDeath(pkt, d.Clock.Now())
		return false
	})

	host.Hook(wire.NameSDefendSuccess, 0, func(fake bool, payload any) bool {
		if !fake {
			d.Emulation.OnDefendSuccess(d.Clock.Now())
		}
		return false
	})

	host.Hook(wire.NameSLogin, 0, func(fake bool, payload any) bool {
		d.onLogin()
		return false
	})

	host.Hook(wire.NameSLoadTopo, 0, func(fake bool, payload any) bool {
		d.Entities.ClearOnZoneChange()
		return false
	})
}

// onLogin resets every per-session store, per §3's S_LOGIN lifecycle rule.
func (d *Deps) onLogin() {
	d.Entities.ResetOnLogin()
	d.Player.ResetOnLogin()
	d.Actions.Reset()
	d.Effects.Reset()
	d.Cooldowns.Reset()
	d.Lockon.Reset()
	d.Ping.Reset()
}
