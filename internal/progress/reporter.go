package progress

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/storyloop/internal/events"
)

var (
	styleTitle = lipgloss.NewStyle().Bold(true)

	styleDone = lipgloss.NewStyle().
			Foreground(lipgloss.Color("green")).
			Bold(true)

	styleFailed = lipgloss.NewStyle().
			Foreground(lipgloss.Color("red")).
			Bold(true)

	styleMuted = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

const barWidth = 30

// Reporter renders loop events as console lines. It consumes a bus
// subscription on its own goroutine so rendering never slows the loop.
type Reporter struct {
	w    io.Writer
	done chan struct{}
}

// NewReporter creates a Reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{
		w:    w,
		done: make(chan struct{}),
	}
}

// Run consumes events until ch closes.
func (r *Reporter) Run(ch <-chan events.Event) {
	defer close(r.done)
	for e := range ch {
		r.render(e)
	}
}

// Wait blocks until Run has drained its channel.
func (r *Reporter) Wait() {
	<-r.done
}

func (r *Reporter) render(e events.Event) {
	switch ev := e.(type) {
	case events.RunStartedEvent:
		fmt.Fprintf(r.w, "%s executor=%s state=%s max-iterations=%d\n",
			styleTitle.Render("run started"), ev.Executor, ev.StatePath, ev.MaxIterations)

	case events.RunArchivedEvent:
		fmt.Fprintf(r.w, "archived previous run %s into %s\n", ev.From, ev.Dir)

	case events.IterationStartedEvent:
		fmt.Fprintf(r.w, "\n%s\n",
			styleTitle.Render(fmt.Sprintf("=== Iteration %d of %d ===", ev.Iteration, ev.MaxIterations)))

	case events.ProgressUpdatedEvent:
		fmt.Fprintf(r.w, "[%s] %d/%d stories complete (%d%%)\n",
			Bar(ev.Done, ev.Total, barWidth), ev.Done, ev.Total, ev.Percent)

	case events.StoryDispatchedEvent:
		fmt.Fprintf(r.w, "dispatching %s to %s: %s\n", ev.ID, ev.Executor, ev.Title)

	case events.ExecutorFinishedEvent:
		dur := ev.Duration.Round(time.Millisecond)
		if ev.Err != nil {
			fmt.Fprintf(r.w, "%s %s after %s: %v\n",
				styleFailed.Render("executor failed"), ev.ID, dur, ev.Err)
		} else {
			fmt.Fprintf(r.w, "%s %s after %s\n",
				styleMuted.Render("executor returned"), ev.ID, dur)
		}

	case events.DryRunPlannedEvent:
		fmt.Fprintf(r.w, "dry run: next story is %s (%s)\n", ev.ID, ev.Title)
		fmt.Fprintf(r.w, "dry run: would invoke %s %s\n", ev.Binary, strings.Join(ev.Args, " "))

	case events.RunFinishedEvent:
		style := styleDone
		if ev.Err != nil {
			style = styleFailed
		}
		fmt.Fprintf(r.w, "\n%s after %d iteration(s)\n",
			style.Render("run "+ev.Outcome), ev.Iterations)
		if ev.Err != nil {
			fmt.Fprintf(r.w, "%s\n", styleFailed.Render(ev.Err.Error()))
		}
	}
}

// Bar renders a fixed-width completion bar.
func Bar(done, total, width int) string {
	if width <= 0 {
		width = barWidth
	}
	if total <= 0 {
		return styleMuted.Render(strings.Repeat(".", width))
	}
	filled := done * width / total
	if filled > width {
		filled = width
	}
	return styleDone.Render(strings.Repeat("=", filled)) +
		styleMuted.Render(strings.Repeat(".", width-filled))
}
