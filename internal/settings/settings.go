// Package settings is the versioned, migratable, user-facing JSON
// settings blob of §6: `enabled`, `debug.*`, `ping.*`, `skills.*`,
// `emulation.*`, `packets.*`. Decoded with the standard library's
// encoding/json rather than a third-party config library — no example
// repo's config dependency speaks JSON (BurntSushi/toml is TOML-only,
// gopkg.in/yaml.v3 is YAML-only), and JSON is the wire format the
// specification names explicitly.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// CurrentVersion is the schema version Load migrates every document up
// to before decoding it into Settings.
const CurrentVersion = 1

type DebugSettings struct {
	Enabled   bool `json:"enabled"`
	Skills    bool `json:"skills"`
	Packets   bool `json:"packets"`
	Abnormals bool `json:"abnormals"`
	Ping      bool `json:"ping"`
}

type PingSettings struct {
	TimeoutMs  int64 `json:"timeout_ms"`
	IntervalMs int64 `json:"interval_ms"`
	Samples    int   `json:"samples"`
}

type SkillsSettings struct {
	Enabled             bool  `json:"enabled"`
	RetryCount          int   `json:"retry_count"`
	RetryMs             int64 `json:"retry_ms"`
	RetryJitterComp     int64 `json:"retry_jitter_comp"`
	ServerTimeoutMs     int64 `json:"server_timeout_ms"`
	ForceClipStrict     bool  `json:"force_clip_strict"`
	DefendSuccessStrict bool  `json:"defend_success_strict"`
	DelayOnFail         bool  `json:"delay_on_fail"`
	JitterCompensation  bool  `json:"jitter_compensation"`
	ChargeJitterMax     int64 `json:"charge_jitter_max"`
}

type EmulationSettings struct {
	EnableInstantSkills     bool `json:"enable_instant_skills"`
	EnableInstantChains     bool `json:"enable_instant_chains"`
	EnablePredictiveRetries bool `json:"enable_predictive_retries"`
}

type PacketsSettings struct {
	QueueThrottleMs int64 `json:"queue_throttle_ms"`
	MaxQueueSize    int   `json:"max_queue_size"`
}

// Settings is the full settings document, per §6.
type Settings struct {
	Version   int               `json:"version"`
	Enabled   bool              `json:"enabled"`
	Debug     DebugSettings     `json:"debug"`
	Ping      PingSettings      `json:"ping"`
	Skills    SkillsSettings    `json:"skills"`
	Emulation EmulationSettings `json:"emulation"`
	Packets   PacketsSettings   `json:"packets"`
}

// Defaults returns the settings document written the first time the host
// runs with no settings file on disk.
func Defaults() Settings {
	return Settings{
		Version: CurrentVersion,
		Enabled: true,
		Debug:   DebugSettings{},
		Ping: PingSettings{
			TimeoutMs:  2000,
			IntervalMs: 5000,
			Samples:    20,
		},
		Skills: SkillsSettings{
			Enabled:         true,
			RetryCount:      3,
			RetryMs:         100,
			RetryJitterComp: 10,
			ServerTimeoutMs: 2500,
			ChargeJitterMax: 50,
		},
		Emulation: EmulationSettings{
			EnableInstantSkills:     true,
			EnableInstantChains:     true,
			EnablePredictiveRetries: true,
		},
		Packets: PacketsSettings{
			QueueThrottleMs: 0,
			MaxQueueSize:    256,
		},
	}
}

// Migration upgrades a raw decoded settings document by exactly one
// schema version. Index i in the migrations table upgrades documents
// whose recorded version is i.
type Migration func(map[string]any) map[string]any

var migrations = []Migration{
	migrateUnversionedToV1,
}

// migrateUnversionedToV1 handles documents written before the `version`
// field existed: `enabled` defaulted to true rather than being absent,
// and `skills.charge_jitter_max` didn't exist yet.
func migrateUnversionedToV1(raw map[string]any) map[string]any {
	if _, ok := raw["enabled"]; !ok {
		raw["enabled"] = true
	}
	if skills, ok := raw["skills"].(map[string]any); ok {
		if _, ok := skills["charge_jitter_max"]; !ok {
			skills["charge_jitter_max"] = float64(50)
		}
	}
	raw["version"] = 1
	return raw
}

// Load reads and migrates a settings file, returning Defaults() when the
// file doesn't exist yet.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("settings: read %s: %w", path, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Settings{}, fmt.Errorf("settings: parse %s: %w", path, err)
	}

	version := 0
	if v, ok := raw["version"].(float64); ok {
		version = int(v)
	}
	for version < CurrentVersion && version < len(migrations) {
		raw = migrations[version](raw)
		version++
	}

	migrated, err := json.Marshal(raw)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: remarshal %s: %w", path, err)
	}

	out := Defaults()
	if err := json.Unmarshal(migrated, &out); err != nil {
		return Settings{}, fmt.Errorf("settings: decode %s: %w", path, err)
	}
	return out, nil
}

// Save writes s to path as indented JSON, stamping the current schema
// version.
func Save(path string, s Settings) error {
	s.Version = CurrentVersion
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("settings: write %s: %w", path, err)
	}
	return nil
}
