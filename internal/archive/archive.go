// Package archive snapshots the previous run's state when the run
// identity changes, so a new logical run starts from a clean log
// without losing the old one.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aristath/storyloop/internal/logging"
)

// identityPrefix is the namespace prefix stripped from run identities
// when naming archive folders.
const identityPrefix = "ralph/"

const archiveDirName = "archive"

// Record describes one completed archive action.
type Record struct {
	// Dir is the created archive folder.
	Dir string
	// From is the identity that was archived, To the one replacing it.
	From string
	To   string
}

// Archiver snapshots state and log files into dated archive folders
// under Dir.
type Archiver struct {
	Dir       string
	StatePath string
	LogPath   string
}

// MaybeArchive archives the previous run if current and last are both
// non-empty and differ. Copies are best effort: a file that is missing
// or unreadable is skipped with a warning. After copying, the human
// log is reset to a fresh header. Returns nil when no archiving was
// needed.
func (a Archiver) MaybeArchive(ctx context.Context, current, last string) (*Record, error) {
	if current == "" || last == "" || current == last {
		return nil, nil
	}
	log := logging.FromContext(ctx)

	name := strings.TrimPrefix(last, identityPrefix)
	name = strings.ReplaceAll(name, "/", "-")
	if name == "" {
		name = "run"
	}
	target := filepath.Join(a.Dir, archiveDirName, fmt.Sprintf("%s-%s", time.Now().Format("2006-01-02"), name))

	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive folder: %w", err)
	}

	for _, path := range []string{a.StatePath, a.LogPath} {
		if path == "" {
			continue
		}
		if err := copyFile(path, filepath.Join(target, filepath.Base(path))); err != nil {
			if !os.IsNotExist(err) {
				log.Warn("archiving file failed", "file", path, "error", err)
			}
			continue
		}
	}

	if err := resetLog(a.LogPath); err != nil {
		return nil, fmt.Errorf("resetting log: %w", err)
	}

	log.Info("archived previous run", "from", last, "to", current, "dir", target)
	return &Record{Dir: target, From: last, To: current}, nil
}

// EnsureLog creates the human log with a fresh header if it does not
// exist yet. An existing log is left alone.
func (a Archiver) EnsureLog() error {
	if a.LogPath == "" {
		return nil
	}
	if _, err := os.Stat(a.LogPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return resetLog(a.LogPath)
}

func resetLog(path string) error {
	if path == "" {
		return nil
	}
	header := fmt.Sprintf("# Progress log\n# Started %s\n\n", time.Now().Format(time.RFC3339))
	return os.WriteFile(path, []byte(header), 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
