package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Save persists the configuration as a project JSON file.
// Creates parent directories if they don't exist.
func Save(cfg Config, path string) error {
	out := fileConfig{
		State:         cfg.StatePath,
		Log:           cfg.LogPath,
		Prompt:        cfg.PromptPath,
		Executor:      cfg.Executor,
		Model:         cfg.Model,
		MaxIterations: cfg.MaxIterations,
		Cooldown:      cfg.Cooldown.String(),
		Timeout:       cfg.Timeout.String(),
		History:       cfg.HistoryPath,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
