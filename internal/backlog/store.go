package backlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound reports that no state file exists at the given path.
// Fatal at startup: the scheduler has nothing to work on.
var ErrNotFound = errors.New("state file not found")

// ParseError reports a state file that exists but cannot be decoded,
// or whose items violate id uniqueness.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// stateFile is the wire shape of the persisted backlog. The legacy
// keys branchName and passes are accepted as aliases for runIdentity
// and done.
type stateFile struct {
	RunIdentity string     `json:"runIdentity" yaml:"runIdentity"`
	BranchName  string     `json:"branchName" yaml:"branchName"`
	Items       []wireItem `json:"items" yaml:"items"`
}

type wireItem struct {
	ID                 string   `json:"id" yaml:"id"`
	Title              string   `json:"title" yaml:"title"`
	Description        string   `json:"description" yaml:"description"`
	AcceptanceCriteria []string `json:"acceptanceCriteria" yaml:"acceptanceCriteria"`
	Priority           int      `json:"priority" yaml:"priority"`
	DependsOn          []string `json:"dependsOn" yaml:"dependsOn"`
	Done               bool     `json:"done" yaml:"done"`
	Passes             bool     `json:"passes" yaml:"passes"`
	Notes              string   `json:"notes" yaml:"notes"`
}

// Load reads the state file at path and builds a Set. The format is
// chosen by extension: .yaml/.yml decode as YAML, everything else as
// JSON. Missing fields on individual items default permissively
// (no dependsOn means no dependencies, no done means not done); a
// missing file or undecodable content fails the whole load.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var state stateFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &state)
	default:
		err = json.Unmarshal(data, &state)
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	items := make([]WorkItem, 0, len(state.Items))
	for _, w := range state.Items {
		items = append(items, WorkItem{
			ID:                 w.ID,
			Title:              w.Title,
			Description:        w.Description,
			AcceptanceCriteria: w.AcceptanceCriteria,
			Priority:           w.Priority,
			DependsOn:          w.DependsOn,
			Done:               w.Done || w.Passes,
			Notes:              w.Notes,
		})
	}

	identity := state.RunIdentity
	if identity == "" {
		identity = state.BranchName
	}

	set, err := NewSet(identity, items)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return set, nil
}
