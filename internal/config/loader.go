package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Environment overrides applied after the project file.
const (
	EnvExecutor = "STORYLOOP_EXECUTOR"
	EnvModel    = "STORYLOOP_MODEL"
)

const (
	projectDirName = ".storyloop"
	configFileName = "config.json"
)

// ProjectPath returns the project config path under dir.
func ProjectPath(dir string) string {
	return filepath.Join(dir, projectDirName, configFileName)
}

// Load resolves configuration for the project rooted at dir.
// Order of precedence (highest to lowest): environment, project file,
// defaults. Flag overrides are applied by the command layer on top.
// Missing files are not errors; malformed JSON returns an error.
func Load(dir string) (Config, error) {
	cfg := Default()

	if err := mergeConfigFile(&cfg, ProjectPath(dir)); err != nil {
		return Config{}, fmt.Errorf("loading project config: %w", err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

// mergeConfigFile reads a JSON project file and merges the fields it
// sets into base. Missing files are silently skipped. Unset fields
// keep their current values.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded fileConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.State != "" {
		base.StatePath = loaded.State
	}
	if loaded.Log != "" {
		base.LogPath = loaded.Log
	}
	if loaded.Prompt != "" {
		base.PromptPath = loaded.Prompt
	}
	if loaded.Executor != "" {
		base.Executor = loaded.Executor
	}
	if loaded.Model != "" {
		base.Model = loaded.Model
	}
	if loaded.MaxIterations > 0 {
		base.MaxIterations = loaded.MaxIterations
	}
	if loaded.History != "" {
		base.HistoryPath = loaded.History
	}
	if loaded.Cooldown != "" {
		d, err := time.ParseDuration(loaded.Cooldown)
		if err != nil {
			return fmt.Errorf("parsing %s: cooldown: %w", path, err)
		}
		base.Cooldown = d
	}
	if loaded.Timeout != "" {
		d, err := time.ParseDuration(loaded.Timeout)
		if err != nil {
			return fmt.Errorf("parsing %s: timeout: %w", path, err)
		}
		base.Timeout = d
	}

	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvExecutor); v != "" {
		cfg.Executor = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Model = v
	}
}
