package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/storyloop/internal/archive"
	"github.com/aristath/storyloop/internal/backlog"
	"github.com/aristath/storyloop/internal/config"
	"github.com/aristath/storyloop/internal/events"
	"github.com/aristath/storyloop/internal/executor"
	"github.com/aristath/storyloop/internal/history"
	"github.com/aristath/storyloop/internal/logging"
	"github.com/aristath/storyloop/internal/orchestrator"
	"github.com/aristath/storyloop/internal/progress"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduling loop until the backlog is complete",
	Long: `Run repeatedly selects the highest-priority eligible story, dispatches
it to the configured coding agent, and re-reads the state file to
observe progress.

Exit codes:
  0 - all stories complete (or dry-run planned)
  1 - fatal: missing state, empty backlog, blocked backlog, iteration
      budget exhausted, or canceled`,
	Args: cobra.NoArgs,
	Run:  runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

// addRunFlags registers the run flags. Split out so tests can build a
// fresh flag set instead of sharing the package-level command.
func addRunFlags(cmd *cobra.Command) {
	defaults := config.Default()
	cmd.Flags().String("state", defaults.StatePath, "work item state file")
	cmd.Flags().String("log", defaults.LogPath, "human progress log")
	cmd.Flags().String("prompt", defaults.PromptPath, "instruction payload file")
	cmd.Flags().String("executor", defaults.Executor, "agent integration: claude, codex, or goose")
	cmd.Flags().String("model", "", "model override for the agent")
	cmd.Flags().IntP("max-iterations", "n", defaults.MaxIterations, "iteration budget")
	cmd.Flags().Duration("cooldown", defaults.Cooldown, "pause between iterations (0 disables)")
	cmd.Flags().Duration("timeout", defaults.Timeout, "wall clock bound per agent invocation (0 disables)")
	cmd.Flags().String("history", defaults.HistoryPath, "run history database")
	cmd.Flags().Bool("dry-run", false, "plan the next story without dispatching")
	cmd.Flags().BoolP("verbose", "v", false, "debug logging")
}

func runRun(cmd *cobra.Command, args []string) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitFailure)
	}
	if err := executeRun(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitFailure)
	}
}

// resolveConfig layers explicitly set flags over the project config.
// Flags the user did not touch leave the file and environment values
// alone.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("state") {
		cfg.StatePath, _ = flags.GetString("state")
	}
	if flags.Changed("log") {
		cfg.LogPath, _ = flags.GetString("log")
	}
	if flags.Changed("prompt") {
		cfg.PromptPath, _ = flags.GetString("prompt")
	}
	if flags.Changed("executor") {
		cfg.Executor, _ = flags.GetString("executor")
	}
	if flags.Changed("model") {
		cfg.Model, _ = flags.GetString("model")
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations, _ = flags.GetInt("max-iterations")
	}
	if flags.Changed("cooldown") {
		cfg.Cooldown, _ = flags.GetDuration("cooldown")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("history") {
		cfg.HistoryPath, _ = flags.GetString("history")
	}
	cfg.DryRun, _ = flags.GetBool("dry-run")
	cfg.Verbose, _ = flags.GetBool("verbose")

	return cfg, nil
}

func executeRun(cfg config.Config) error {
	logger := logging.New(os.Stderr, cfg.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	// The history recorder outlives the run context so the final events
	// are still written after a cancellation.
	storeCtx := logging.WithLogger(context.Background(), logger)

	store, err := history.Open(storeCtx, cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	set, err := backlog.Load(cfg.StatePath)
	if err != nil {
		return err
	}

	arch := archive.Archiver{Dir: ".", StatePath: cfg.StatePath, LogPath: cfg.LogPath}

	last, err := store.LastIdentity(ctx)
	if err != nil {
		logger.Warn("reading last run identity failed", "error", err)
	}
	record, err := arch.MaybeArchive(ctx, set.Identity, last)
	if err != nil {
		return err
	}
	if err := arch.EnsureLog(); err != nil {
		return fmt.Errorf("creating progress log: %w", err)
	}
	if set.Identity != "" {
		if err := store.RecordIdentity(ctx, set.Identity); err != nil {
			logger.Warn("recording run identity failed", "error", err)
		}
	}

	pm := executor.NewProcessManager()
	defer func() {
		if err := pm.KillAll(); err != nil {
			logger.Warn("killing leftover agent processes failed", "error", err)
		}
	}()

	agent, err := executor.New(executor.Config{
		Type:    cfg.Executor,
		WorkDir: ".",
		Model:   cfg.Model,
	}, pm)
	if err != nil {
		return err
	}
	defer agent.Close()

	instructions, err := os.ReadFile(cfg.PromptPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("reading instructions: %w", err)
		}
		logger.Warn("instruction payload missing, dispatching without it", "path", cfg.PromptPath)
	}

	bus := events.NewBus()
	recorder := history.NewRecorder(store)
	go recorder.Run(storeCtx, bus.SubscribeAll(256))
	reporter := progress.NewReporter(os.Stdout)
	go reporter.Run(bus.SubscribeAll(256))

	if record != nil {
		bus.Publish(events.TopicRun, events.RunArchivedEvent{
			Dir:       record.Dir,
			From:      record.From,
			To:        record.To,
			Timestamp: time.Now(),
		})
	}
	bus.Publish(events.TopicRun, events.RunStartedEvent{
		Identity:      set.Identity,
		StatePath:     cfg.StatePath,
		Executor:      agent.Name(),
		MaxIterations: cfg.MaxIterations,
		Timestamp:     time.Now(),
	})

	dispatcher := orchestrator.NewExecDispatcher(agent, store, string(instructions), cfg.Timeout)
	loop := orchestrator.New(orchestrator.Options{
		StatePath:     cfg.StatePath,
		MaxIterations: cfg.MaxIterations,
		Cooldown:      cfg.Cooldown,
		DryRun:        cfg.DryRun,
	}, dispatcher, bus)

	runErr := loop.Run(ctx)

	bus.Close()
	recorder.Wait()
	reporter.Wait()

	return runErr
}
