package backlog

import (
	"fmt"
)

// WorkItem is one unit of plannable work in the backlog.
type WorkItem struct {
	ID                 string   `json:"id" yaml:"id"`
	Title              string   `json:"title" yaml:"title"`
	Description        string   `json:"description,omitempty" yaml:"description,omitempty"`
	AcceptanceCriteria []string `json:"acceptanceCriteria,omitempty" yaml:"acceptanceCriteria,omitempty"`
	Priority           int      `json:"priority" yaml:"priority"` // lower runs earlier
	DependsOn          []string `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	Done               bool     `json:"done" yaml:"done"`
	Notes              string   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Set is the backlog loaded from one state file. Items keep their file
// order; ids are unique. A Set is built fresh for every scheduling
// decision and is never mutated after construction.
type Set struct {
	// Identity is the opaque run label carried by the state file,
	// empty when the file has none.
	Identity string

	items []WorkItem
	index map[string]int // id -> position in items
}

// NewSet builds a Set from items in the given order.
// Duplicate ids and self-dependencies are rejected.
func NewSet(identity string, items []WorkItem) (*Set, error) {
	s := &Set{
		Identity: identity,
		items:    items,
		index:    make(map[string]int, len(items)),
	}
	for i, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("item %d: missing id", i)
		}
		if _, exists := s.index[item.ID]; exists {
			return nil, fmt.Errorf("duplicate item id: %s", item.ID)
		}
		for _, dep := range item.DependsOn {
			if dep == item.ID {
				return nil, fmt.Errorf("item %s depends on itself", item.ID)
			}
		}
		s.index[item.ID] = i
	}
	return s, nil
}

// Items returns the items in file order.
func (s *Set) Items() []WorkItem {
	return s.items
}

// Len returns the number of items.
func (s *Set) Len() int {
	return len(s.items)
}

// Get looks up an item by id. The second return is false for unknown
// ids; callers treat an unknown dependency as unsatisfied, not as an
// error.
func (s *Set) Get(id string) (WorkItem, bool) {
	i, ok := s.index[id]
	if !ok {
		return WorkItem{}, false
	}
	return s.items[i], true
}

// DependenciesOf returns the dependency ids of the given item, empty
// for unknown ids.
func (s *Set) DependenciesOf(id string) []string {
	item, ok := s.Get(id)
	if !ok {
		return nil
	}
	return item.DependsOn
}

// Counts returns the total number of items and how many are done.
func (s *Set) Counts() (total, done int) {
	total = len(s.items)
	for _, item := range s.items {
		if item.Done {
			done++
		}
	}
	return total, done
}
