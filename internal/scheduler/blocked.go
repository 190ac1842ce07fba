package scheduler

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"

	"github.com/aristath/storyloop/internal/backlog"
)

// BlockedItem describes one remaining item and the dependency ids it is
// waiting on.
type BlockedItem struct {
	ID      string
	Title   string
	Pending []string
}

// BlockedError reports that incomplete items remain but none is
// eligible. It lists every remaining item with its unmet dependencies
// so the operator can see what is stuck and why.
type BlockedError struct {
	Remaining []BlockedItem
	Cyclic    bool
}

// NewBlockedError captures the blocked state of set: every not-done
// item with its pending dependency ids, in file order, plus whether the
// remaining items form a dependency cycle.
func NewBlockedError(set *backlog.Set) *BlockedError {
	e := &BlockedError{
		Cyclic: remainingHasCycle(set),
	}
	for _, item := range set.Items() {
		if item.Done {
			continue
		}
		e.Remaining = append(e.Remaining, BlockedItem{
			ID:      item.ID,
			Title:   item.Title,
			Pending: PendingDependenciesOf(item, set),
		})
	}
	return e
}

func (e *BlockedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "backlog blocked: %d incomplete item(s), none eligible", len(e.Remaining))
	for _, item := range e.Remaining {
		fmt.Fprintf(&b, "; %s waits on [%s]", item.ID, strings.Join(item.Pending, ", "))
	}
	if e.Cyclic {
		b.WriteString(" (dependency cycle)")
	}
	return b.String()
}

// remainingHasCycle runs a topological sort over the subgraph of
// not-done items. Edges to done or unknown dependencies are dropped
// since they cannot participate in a live cycle.
func remainingHasCycle(set *backlog.Set) bool {
	var edges []toposort.Edge
	for _, item := range set.Items() {
		if item.Done {
			continue
		}
		for _, depID := range item.DependsOn {
			dep, ok := set.Get(depID)
			if !ok || dep.Done {
				continue
			}
			edges = append(edges, toposort.Edge{depID, item.ID})
		}
	}
	_, err := toposort.Toposort(edges)
	return err != nil
}
