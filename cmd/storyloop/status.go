package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/aristath/storyloop/internal/backlog"
	"github.com/aristath/storyloop/internal/config"
	"github.com/aristath/storyloop/internal/history"
	"github.com/aristath/storyloop/internal/progress"
	"github.com/aristath/storyloop/internal/scheduler"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backlog progress without dispatching anything",
	Args:  cobra.NoArgs,
	Run:   runStatus,
}

func init() {
	defaults := config.Default()
	statusCmd.Flags().String("state", defaults.StatePath, "work item state file")

	rootCmd.AddCommand(statusCmd)
}

var (
	styleStoryDone = lipgloss.NewStyle().
			Foreground(lipgloss.Color("green")).
			Bold(true)

	styleStoryReady = lipgloss.NewStyle().
			Foreground(lipgloss.Color("yellow")).
			Bold(true)

	styleStoryWaiting = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
)

func runStatus(cmd *cobra.Command, args []string) {
	if err := executeStatus(cmd); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitFailure)
	}
}

func executeStatus(cmd *cobra.Command) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("state") {
		cfg.StatePath, _ = cmd.Flags().GetString("state")
	}

	set, err := backlog.Load(cfg.StatePath)
	if err != nil {
		return err
	}

	total, done := set.Counts()
	fmt.Printf("[%s] %d/%d stories complete (%d%%)\n\n",
		progress.Bar(done, total, 30), done, total, progress.Percent(done, total))

	// Dependency order when the graph allows it, file order otherwise.
	order, err := scheduler.TopoOrder(set)
	if err != nil {
		order = order[:0]
		for _, item := range set.Items() {
			order = append(order, item.ID)
		}
	}

	for _, id := range order {
		item, ok := set.Get(id)
		if !ok {
			continue
		}
		fmt.Println(renderItem(item, set))
	}

	printRecentRuns(cfg)
	return nil
}

func renderItem(item backlog.WorkItem, set *backlog.Set) string {
	switch {
	case item.Done:
		return fmt.Sprintf("  %s %s  %s",
			styleStoryDone.Render(fmt.Sprintf("%-5s", "done")), item.ID, item.Title)
	case scheduler.IsSatisfied(item, set):
		return fmt.Sprintf("  %s %s  %s",
			styleStoryReady.Render(fmt.Sprintf("%-5s", "ready")), item.ID, item.Title)
	default:
		pending := scheduler.PendingDependenciesOf(item, set)
		return fmt.Sprintf("  %s %s  %s (waits on %s)",
			styleStoryWaiting.Render(fmt.Sprintf("%-5s", "waits")), item.ID, item.Title,
			strings.Join(pending, ", "))
	}
}

// printRecentRuns shows the latest runs when a history ledger already
// exists. Status never creates one.
func printRecentRuns(cfg config.Config) {
	if _, err := os.Stat(cfg.HistoryPath); err != nil {
		return
	}

	ctx := context.Background()
	store, err := history.Open(ctx, cfg.HistoryPath)
	if err != nil {
		return
	}
	defer store.Close()

	runs, err := store.RecentRuns(ctx, 5)
	if err != nil || len(runs) == 0 {
		return
	}

	fmt.Println()
	fmt.Println("Recent runs:")
	for _, r := range runs {
		when := r.StartedAt.Format("2006-01-02 15:04")
		if r.FinishedAt.IsZero() {
			fmt.Printf("  %s  unfinished\n", when)
			continue
		}
		fmt.Printf("  %s  %s  %d iteration(s)\n", when, r.Outcome, r.Iterations)
	}

	// When the newest run did not finish clean, name the dispatch it
	// tripped on.
	if runs[0].Error == "" {
		return
	}
	attempts, err := store.AttemptsFor(ctx, runs[0].ID)
	if err != nil {
		return
	}
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].Error != "" {
			fmt.Printf("  last failing dispatch: %s (iteration %d): %s\n",
				attempts[i].StoryID, attempts[i].Iteration, attempts[i].Error)
			return
		}
	}
}
