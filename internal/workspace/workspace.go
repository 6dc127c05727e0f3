// Package workspace implements the per-task filesystem workspace (C1 Task
// Storage): a deterministic directory tree with four subfolders, offering
// write-bytes-with-name and path-lookup operations.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/unalkalkan/narrated-video-pipeline/internal/errs"
)

// Kind is one of the four fixed subfolders of a task workspace.
type Kind string

const (
	KindImages Kind = "images"
	KindAudio  Kind = "audio"
	KindVideos Kind = "videos"
	KindTemp   Kind = "temp"
)

var allKinds = []Kind{KindImages, KindAudio, KindVideos, KindTemp}

// Workspace is the per-task directory tree rooted at <base>/<task_id>.
type Workspace struct {
	root string
}

// New creates (idempotently) the four subfolders under base/taskID and
// returns a handle to the workspace.
func New(base, taskID string) (*Workspace, error) {
	root := filepath.Join(base, taskID)
	for _, k := range allKinds {
		if err := os.MkdirAll(filepath.Join(root, string(k)), 0o755); err != nil {
			return nil, errs.NewStorageError("create workspace dir %s: %v", k, err)
		}
	}
	return &Workspace{root: root}, nil
}

// Root returns the workspace's base directory.
func (w *Workspace) Root() string { return w.root }

// Path returns the absolute path a file of the given kind and name would
// occupy, without creating it.
func (w *Workspace) Path(kind Kind, filename string) string {
	return filepath.Join(w.root, string(kind), filename)
}

// Write atomically stores bytes under the given kind and filename: it
// writes to a temp file in the same directory then renames it into place,
// so partially-written media are never observed by a concurrent reader.
// Collisions are treated as overwrites, per spec.
func (w *Workspace) Write(kind Kind, filename string, data []byte) (string, error) {
	dir := filepath.Join(w.root, string(kind))
	final := filepath.Join(dir, filename)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", errs.NewStorageError("create temp file in %s: %v", dir, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", errs.NewStorageError("write temp file %s: %v", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", errs.NewStorageError("close temp file %s: %v", tmpPath, err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return "", errs.NewStorageError("rename %s to %s: %v", tmpPath, final, err)
	}
	return final, nil
}

// ClearTemp removes every file under the temp/ subfolder, leaving the
// directory itself in place.
func (w *Workspace) ClearTemp() error {
	dir := filepath.Join(w.root, string(KindTemp))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errs.NewStorageError("read temp dir %s: %v", dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return errs.NewStorageError("remove %s: %v", e.Name(), err)
		}
	}
	return nil
}

// Remove deletes the whole workspace tree. Called only on eviction or
// explicit release, never as part of normal stage execution.
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.root, err)
	}
	return nil
}

// Exists reports whether a file of the given kind and name exists.
func (w *Workspace) Exists(kind Kind, filename string) bool {
	_, err := os.Stat(w.Path(kind, filename))
	return err == nil
}
