package config

import (
	"path/filepath"
	"time"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		StatePath:     "prd.json",
		LogPath:       "progress.txt",
		PromptPath:    "PROMPT.md",
		Executor:      "claude",
		MaxIterations: 10,
		Cooldown:      2 * time.Second,
		Timeout:       30 * time.Minute,
		HistoryPath:   filepath.Join(".storyloop", "history.db"),
	}
}
