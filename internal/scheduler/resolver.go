// Package scheduler decides which backlog item runs next. Selection is
// a greedy priority scan over the freshly loaded backlog: lowest
// priority number first, ties broken by id, skipping any item whose
// dependencies are not all done. Cycles and unmet dependencies are not
// resolved here; they surface as "nothing eligible" and are reported
// through BlockedError.
package scheduler

import (
	"fmt"
	"sort"

	"github.com/gammazero/toposort"

	"github.com/aristath/storyloop/internal/backlog"
)

// IsSatisfied reports whether every dependency of item maps to a done
// item in set. Items without dependencies are trivially satisfied. A
// dependency id with no matching item is unsatisfied, never implicitly
// satisfied.
func IsSatisfied(item backlog.WorkItem, set *backlog.Set) bool {
	for _, depID := range item.DependsOn {
		dep, ok := set.Get(depID)
		if !ok || !dep.Done {
			return false
		}
	}
	return true
}

// NextEligible returns the not-done item with the lowest priority
// number whose dependencies are all satisfied. Equal priorities are
// broken by id. The second return is false when no item qualifies,
// which callers must distinguish from an empty or fully done backlog.
func NextEligible(set *backlog.Set) (backlog.WorkItem, bool) {
	var candidates []backlog.WorkItem
	for _, item := range set.Items() {
		if !item.Done {
			candidates = append(candidates, item)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].ID < candidates[j].ID
	})

	for _, item := range candidates {
		if IsSatisfied(item, set) {
			return item, true
		}
	}
	return backlog.WorkItem{}, false
}

// PendingDependenciesOf returns the dependency ids of item that are not
// yet satisfied, in their declared order. Used for diagnostics when the
// loop cannot proceed.
func PendingDependenciesOf(item backlog.WorkItem, set *backlog.Set) []string {
	var pending []string
	for _, depID := range item.DependsOn {
		dep, ok := set.Get(depID)
		if !ok || !dep.Done {
			pending = append(pending, depID)
		}
	}
	return pending
}

// TopoOrder returns all item ids in topological order, dependencies
// before dependents. Dependency ids that match no item are ignored for
// ordering purposes. Returns an error if the graph contains a cycle.
func TopoOrder(set *backlog.Set) ([]string, error) {
	var edges []toposort.Edge
	for _, item := range set.Items() {
		hasKnownDep := false
		for _, depID := range item.DependsOn {
			if _, ok := set.Get(depID); ok {
				// Edge (dep, item) means dep sorts before item.
				edges = append(edges, toposort.Edge{depID, item.ID})
				hasKnownDep = true
			}
		}
		if !hasKnownDep {
			// Edge from nil keeps dependency-free items in the result.
			edges = append(edges, toposort.Edge{nil, item.ID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("dependency graph contains a cycle: %w", err)
	}

	order := make([]string, 0, set.Len())
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	return order, nil
}
