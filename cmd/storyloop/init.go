package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aristath/storyloop/internal/archive"
	"github.com/aristath/storyloop/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a storyloop project in the current directory",
	Long: `Init writes the project config, a starter state file, a starter
instruction payload, and a fresh progress log. Existing files are left
alone.`,
	Args: cobra.NoArgs,
	Run:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

const starterState = `{
  "runIdentity": "",
  "items": []
}
`

const starterPrompt = `# Agent instructions

You are working through the stories in prd.json, one story per run.

1. Read prd.json and find the story named in this prompt.
2. Implement it completely, honoring its acceptance criteria.
3. When the story is fully built and verified, set "done": true on
   that story in prd.json. Do not touch any other story.
4. Append a short note describing what you did to progress.txt.

Work on exactly one story per run, then stop.
`

func runInit(cmd *cobra.Command, args []string) {
	if err := executeInit("."); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitFailure)
	}
	fmt.Println("add stories to prd.json, then: storyloop run")
}

func executeInit(dir string) error {
	cfg := config.Default()

	configPath := config.ProjectPath(dir)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(cfg, configPath); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", configPath)
	}

	starters := []struct {
		path     string
		contents string
	}{
		{filepath.Join(dir, cfg.StatePath), starterState},
		{filepath.Join(dir, cfg.PromptPath), starterPrompt},
	}
	for _, s := range starters {
		if _, err := os.Stat(s.path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return err
		}
		if err := os.WriteFile(s.path, []byte(s.contents), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", s.path, err)
		}
		fmt.Printf("wrote %s\n", s.path)
	}

	arch := archive.Archiver{
		Dir:       dir,
		StatePath: filepath.Join(dir, cfg.StatePath),
		LogPath:   filepath.Join(dir, cfg.LogPath),
	}
	if err := arch.EnsureLog(); err != nil {
		return fmt.Errorf("creating progress log: %w", err)
	}

	return nil
}
