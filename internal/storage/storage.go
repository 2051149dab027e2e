// Package storage handles dataset files on disk: atomic JSON writes and the
// stage-then-publish flow that keeps readers from ever seeing a half-written
// dataset.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WriteJSON marshals v with two-space indentation and a trailing newline,
// then renames a temp file into place so readers never observe a partial
// write.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// ReadJSON loads a JSON file into dest.
func ReadJSON(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Staging collects a whole run's output under a scratch directory and
// publishes it file by file with backups, rolling back the files already
// swapped in when a later rename fails.
type Staging struct {
	finalRoot   string
	stagingRoot string
	runID       string
	log         *zap.Logger
}

// NewStaging creates the scratch directory next to the final root.
func NewStaging(finalRoot string, log *zap.Logger) (*Staging, error) {
	runID := uuid.NewString()
	stagingRoot := finalRoot + ".staging-" + runID
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Staging{
		finalRoot:   finalRoot,
		stagingRoot: stagingRoot,
		runID:       runID,
		log:         log,
	}, nil
}

// RunID identifies this staging run in logs and backup file names.
func (s *Staging) RunID() string { return s.runID }

// WriteJSON stages one output file under the scratch directory.
func (s *Staging) WriteJSON(rel string, v any) error {
	return WriteJSON(filepath.Join(s.stagingRoot, rel), v)
}

// Publish swaps the staged files into the final root. Every replaced file
// is first moved aside to a run-scoped backup; if any swap fails the files
// published so far are restored from those backups before returning.
func (s *Staging) Publish(rels []string) error {
	type swap struct {
		final  string
		backup string
	}
	var done []swap

	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			sw := done[i]
			if sw.backup == "" {
				os.Remove(sw.final)
				continue
			}
			if err := os.Rename(sw.backup, sw.final); err != nil {
				s.log.Error("rollback failed", zap.String("file", sw.final), zap.Error(err))
			}
		}
	}

	for _, rel := range rels {
		staged := filepath.Join(s.stagingRoot, rel)
		final := filepath.Join(s.finalRoot, rel)
		if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
			rollback()
			return fmt.Errorf("publish %s: %w", rel, err)
		}

		backup := ""
		if _, err := os.Stat(final); err == nil {
			backup = final + ".bak-" + s.runID
			if err := os.Rename(final, backup); err != nil {
				rollback()
				return fmt.Errorf("backup %s: %w", rel, err)
			}
		}
		if err := os.Rename(staged, final); err != nil {
			if backup != "" {
				if rerr := os.Rename(backup, final); rerr != nil {
					s.log.Error("restore failed", zap.String("file", final), zap.Error(rerr))
				}
			}
			rollback()
			return fmt.Errorf("publish %s: %w", rel, err)
		}
		done = append(done, swap{final: final, backup: backup})
	}

	for _, sw := range done {
		if sw.backup != "" {
			os.Remove(sw.backup)
		}
	}
	return nil
}

// Cleanup removes the scratch directory. Call it once the run is over,
// published or not.
func (s *Staging) Cleanup() {
	if err := os.RemoveAll(s.stagingRoot); err != nil {
		s.log.Warn("staging cleanup failed", zap.String("dir", s.stagingRoot), zap.Error(err))
	}
}
