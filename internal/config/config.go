// Package config loads the interceptor harness's own bind/runtime
// configuration — listen address for the dev proxy harness, target
// patch version, game-data schema directory, and log level/format —
// distinct from the versioned, user-facing settings blob in
// internal/settings.
//
// Grounded on the teacher's internal/config/config.go Config/Load/
// defaults() triplet: same shape, fields replaced to match this
// module's domain.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Harness    HarnessConfig    `toml:"harness"`
	GameData   GameDataConfig   `toml:"game_data"`
	Logging    LoggingConfig    `toml:"logging"`
	Reload     ReloadConfig     `toml:"reload"`
	RuleScript RuleScriptConfig `toml:"rule_script"`
}

// HarnessConfig is the dev-proxy listen/dial pair internal/hostproxy uses
// when run as a standalone relay rather than wired into the real client.
type HarnessConfig struct {
	ListenAddress string `toml:"listen_address"`
	UpstreamAddr  string `toml:"upstream_address"`
	LiveStatsAddr string `toml:"live_stats_address"`
	PatchVersion  int    `toml:"patch_version"`
	StartTime     int64  // set at boot, not from config
}

// GameDataConfig points at the YAML tables internal/gamedata loads once
// at client-ready. gamedata.Load reads them from SchemaDir under fixed
// file names; the three *File fields are not consulted by it.
type GameDataConfig struct {
	SchemaDir          string `toml:"schema_dir"`
	SkillsFile         string `toml:"skills_file"`
	AbnormalitiesFile  string `toml:"abnormalities_file"`
	NpcFile            string `toml:"npc_file"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// ReloadConfig tunes internal/reload's directory-watch debounce and retry
// behavior, per §6's module hot-reload rules.
type ReloadConfig struct {
	WatchDir      string        `toml:"watch_dir"`
	DebounceMs    int64         `toml:"debounce_ms"`
	RetryDelayMs  int64         `toml:"retry_delay_ms"`
}

// RuleScriptConfig points internal/rulescript at its Lua rule directory.
type RuleScriptConfig struct {
	RulesDir string `toml:"rules_dir"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Harness.StartTime = time.Now().Unix()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Harness: HarnessConfig{
			ListenAddress: "127.0.0.1:9501",
			UpstreamAddr:  "127.0.0.1:9500",
			LiveStatsAddr: "127.0.0.1:9600",
			PatchVersion:  100,
		},
		GameData: GameDataConfig{
			SchemaDir:         "gamedata",
			SkillsFile:        "skills.yaml",
			AbnormalitiesFile: "abnormalities.yaml",
			NpcFile:           "npcs.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Reload: ReloadConfig{
			WatchDir:     "rules",
			DebounceMs:   1500,
			RetryDelayMs: 100,
		},
		RuleScript: RuleScriptConfig{
			RulesDir: "rules",
		},
	}
}
