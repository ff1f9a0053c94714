package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/merusira/rival/internal/cli"
	"github.com/merusira/rival/internal/config"
	"github.com/merusira/rival/internal/hostapi"
	"github.com/merusira/rival/internal/hostproxy"
	"github.com/merusira/rival/internal/livestats"
	"github.com/merusira/rival/internal/reload"
	"github.com/merusira/rival/internal/scheduler"
	"github.com/merusira/rival/internal/settings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/harness.toml"
	if p := os.Getenv("RIVAL_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("rival harness starting",
		zap.String("listen", cfg.Harness.ListenAddress),
		zap.String("upstream", cfg.Harness.UpstreamAddr),
		zap.Int("patch_version", cfg.Harness.PatchVersion),
	)

	settingsPath := "settings.json"
	userSettings, err := settings.Load(settingsPath)
	if err != nil {
		log.Warn("settings load failed, writing defaults", zap.Error(err))
		userSettings = settings.Defaults()
		if err := settings.Save(settingsPath, userSettings); err != nil {
			return fmt.Errorf("write default settings: %w", err)
		}
	}

	clock := scheduler.SystemClock{}
	sched := scheduler.New(clock, log)

	excludeDirs := []string{cfg.GameData.SchemaDir}
	reloader := reload.New(sched, clock,
		log,
		time.Duration(cfg.Reload.DebounceMs)*time.Millisecond,
		time.Duration(cfg.Reload.RetryDelayMs)*time.Millisecond,
		excludeDirs,
	)

	router := newRouterHost()
	deps, err := hostapi.New(router, sched, hostapi.Options{
		GameDataDir: cfg.GameData.SchemaDir,
		RulesDir:    cfg.RuleScript.RulesDir,
		Reload:      reloader,
		Settings:    userSettings,
		Clock:       clock,
		Log:         log,
	})
	if err != nil {
		return fmt.Errorf("build interception core: %w", err)
	}
	log.Info("interception core ready",
		zap.Bool("rulescript_loaded", deps.Rules != nil),
	)

	shell := cli.New(settingsPath, userSettings, deps.Ping, deps.Emulation, deps.AntiDesync, reloader, "logs")

	live := livestats.NewServer(cfg.Harness.LiveStatsAddr, log)
	go func() {
		if err := live.Serve(); err != nil {
			log.Error("livestats server stopped", zap.Error(err))
		}
	}()
	defer live.Close()

	listener, err := hostproxy.NewListener(cfg.Harness.ListenAddress, cfg.Harness.UpstreamAddr, devOpcodes, log)
	if err != nil {
		return fmt.Errorf("relay listen: %w", err)
	}
	defer listener.Close()

	go listener.AcceptLoop(func(host *hostproxy.Host) {
		log.Info("relay session started")
		router.setTarget(newJSONHost(host))
		deps.Wire(router)
	})

	log.Info("relay listening", zap.String("addr", listener.Addr().String()))

	commandLines := make(chan string)
	go readCommands(commandLines)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			sched.Drive(now)
			reloader.Poll(now)
			live.Push(livestats.Snapshot{
				Tracker: deps.Emulation.TrackerStats(),
				Ping:    deps.Ping.Stats(),
			})
		case line := <-commandLines:
			shell.Dispatch(line, clock.Now(), func(text string) { fmt.Println(text) })
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			return nil
		}
	}
}

// readCommands feeds stdin lines to the main loop's command channel,
// standing in for the chat-channel input the real game client would
// otherwise hand internal/cli through ParseSystemMessage/host.Hook on a
// chat packet — there is no such packet modeled in this harness's
// synthetic protocol, so local operators drive the same Shell.Dispatch
// from the console instead.
func readCommands(lines chan<- string) {
	buf := make([]byte, 256)
	var line []byte
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			if b == '\n' {
				lines <- string(line)
				line = line[:0]
				continue
			}
			line = append(line, b)
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
