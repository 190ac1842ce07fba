package config

import "time"

// Config is the resolved runtime configuration. It is built once at
// startup (defaults, then project file, then environment, then flags)
// and passed by value; nothing reads configuration ambiently after
// that.
type Config struct {
	StatePath     string        // work item state file
	LogPath       string        // human progress log
	PromptPath    string        // standing instruction payload
	Executor      string        // "claude", "codex", or "goose"
	Model         string        // model override, empty for the executor default
	MaxIterations int           // loop budget
	Cooldown      time.Duration // pause between iterations, 0 disables
	Timeout       time.Duration // wall clock bound per invocation, 0 disables
	HistoryPath   string        // sqlite run ledger
	DryRun        bool          // plan the next story without dispatching
	Verbose       bool          // debug logging
}

// fileConfig is the on-disk shape of the project file. Durations are
// strings in time.ParseDuration syntax. DryRun and Verbose are
// per-invocation switches and never persist.
type fileConfig struct {
	State         string `json:"state,omitempty"`          // state file path
	Log           string `json:"log,omitempty"`            // human log path
	Prompt        string `json:"prompt,omitempty"`         // instruction payload path
	Executor      string `json:"executor,omitempty"`       // executor name
	Model         string `json:"model,omitempty"`          // model override
	MaxIterations int    `json:"max_iterations,omitempty"` // loop budget
	Cooldown      string `json:"cooldown,omitempty"`       // e.g. "2s"
	Timeout       string `json:"timeout,omitempty"`        // e.g. "30m"
	History       string `json:"history,omitempty"`        // ledger path
}
