package generator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const dirMode os.FileMode = 0o755

// File is one staged write. Path is slash-separated and relative to the
// target directory.
type File struct {
	Path    string
	Content []byte
	Mode    os.FileMode
}

// Transaction represents a project tree that is written all at once or not
// at all
type Transaction struct {
	fs         afero.Fs
	target     string
	operations []File
	staging    string
	created    []string // parents of target made by Commit, deepest first
	committed  bool
}

// NewTransaction creates a transaction that will materialize files under
// target on fsys.
func NewTransaction(fsys afero.Fs, target string) *Transaction {
	return &Transaction{
		fs:         fsys,
		target:     filepath.Clean(target),
		operations: make([]File, 0),
	}
}

// Target returns the directory the transaction writes to.
func (t *Transaction) Target() string {
	return t.target
}

// AddFile stages a file write operation (doesn't write yet)
func (t *Transaction) AddFile(path string, content []byte, mode os.FileMode) {
	t.operations = append(t.operations, File{
		Path:    path,
		Content: content,
		Mode:    mode,
	})
}

// Files returns the staged operations.
func (t *Transaction) Files() []File {
	return append([]File(nil), t.operations...)
}

// Commit writes every staged file into a fresh staging directory next to
// the target, re-checks that the target is still absent or empty (or that
// overwrite is set), and renames the staging directory into place. It
// returns the written paths, relative and sorted.
//
// Before the final rename nothing outside the staging directory is
// modified; on any failure the staging directory is removed.
func (t *Transaction) Commit(ctx context.Context, overwrite bool) ([]string, error) {
	if t.committed {
		return nil, fmt.Errorf("transaction already committed")
	}

	state, err := inspectTarget(t.fs, t.target)
	if err != nil {
		return nil, &WriteFailureError{Path: t.target, Err: err}
	}
	if state == targetOccupied && !overwrite {
		return nil, &TargetNotEmptyError{Path: t.target}
	}

	parent := filepath.Dir(t.target)
	t.created = missingDirs(t.fs, parent)
	if err := t.fs.MkdirAll(parent, dirMode); err != nil {
		t.Rollback()
		return nil, &WriteFailureError{Path: parent, Err: err}
	}

	t.staging = siblingPath(t.target, "staging")
	if err := t.fs.Mkdir(t.staging, dirMode); err != nil {
		t.Rollback()
		return nil, &WriteFailureError{Path: t.staging, Err: err}
	}

	if err := t.stage(ctx); err != nil {
		t.Rollback()
		return nil, err
	}

	// The target may have changed while files were staged.
	state, err = inspectTarget(t.fs, t.target)
	if err != nil {
		t.Rollback()
		return nil, &WriteFailureError{Path: t.target, Err: err}
	}
	if state == targetOccupied && !overwrite {
		t.Rollback()
		return nil, &TargetNotEmptyError{Path: t.target}
	}

	if err := t.swap(state); err != nil {
		t.Rollback()
		return nil, err
	}

	t.committed = true
	t.staging = ""
	t.created = nil

	paths := make([]string, len(t.operations))
	for i, op := range t.operations {
		paths[i] = op.Path
	}
	sort.Strings(paths)
	return paths, nil
}

// stage writes every operation below the staging directory.
func (t *Transaction) stage(ctx context.Context) error {
	for _, op := range t.operations {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(t.staging, filepath.FromSlash(op.Path))

		// Ensure directory exists
		dir := filepath.Dir(path)
		if err := t.fs.MkdirAll(dir, dirMode); err != nil {
			return &WriteFailureError{Path: op.Path, Err: err}
		}

		if err := afero.WriteFile(t.fs, path, op.Content, op.Mode); err != nil {
			return &WriteFailureError{Path: op.Path, Err: err}
		}
		// WriteFile's mode is filtered by the umask.
		if err := t.fs.Chmod(path, op.Mode); err != nil {
			return &WriteFailureError{Path: op.Path, Err: err}
		}
	}
	return nil
}

// swap moves the staged tree into place. An existing target is renamed
// aside first and restored if the final rename fails.
func (t *Transaction) swap(state targetState) error {
	if state == targetAbsent {
		if err := t.fs.Rename(t.staging, t.target); err != nil {
			return &WriteFailureError{Path: t.target, Err: err}
		}
		return nil
	}

	previous := siblingPath(t.target, "previous")
	if err := t.fs.Rename(t.target, previous); err != nil {
		return &WriteFailureError{Path: t.target, Err: fmt.Errorf("moving existing target aside: %w", err)}
	}

	if err := t.fs.Rename(t.staging, t.target); err != nil {
		if restoreErr := t.fs.Rename(previous, t.target); restoreErr != nil {
			err = errors.Join(err, fmt.Errorf("restoring previous target from %s: %w", previous, restoreErr))
		}
		return &WriteFailureError{Path: t.target, Err: err}
	}

	// The new tree is in place; a leftover old tree is only clutter.
	_ = t.fs.RemoveAll(previous)
	return nil
}

// Rollback removes the staging directory of an uncommitted transaction,
// then any parent directories Commit created for it (for use in defer)
func (t *Transaction) Rollback() {
	if t.committed {
		return
	}
	if t.staging != "" {
		_ = t.fs.RemoveAll(t.staging) // Best effort, ignore errors
		t.staging = ""
	}
	// Remove only succeeds on empty directories, so anything else that
	// appeared there meanwhile is left alone.
	for _, dir := range t.created {
		_ = t.fs.Remove(dir)
	}
	t.created = nil
}

// missingDirs lists dir and those of its ancestors that do not exist yet,
// deepest first.
func missingDirs(fsys afero.Fs, dir string) []string {
	var missing []string
	for {
		if _, err := fsys.Stat(dir); err == nil || !errors.Is(err, fs.ErrNotExist) {
			return missing
		}
		missing = append(missing, dir)
		next := filepath.Dir(dir)
		if next == dir {
			return missing
		}
		dir = next
	}
}

type targetState int

const (
	targetAbsent targetState = iota
	targetEmpty
	targetOccupied
)

func inspectTarget(fsys afero.Fs, target string) (targetState, error) {
	info, err := fsys.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return targetAbsent, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return targetOccupied, nil
	}

	empty, err := afero.IsEmpty(fsys, target)
	if err != nil {
		return 0, err
	}
	if empty {
		return targetEmpty, nil
	}
	return targetOccupied, nil
}

// siblingPath returns a unique hidden path next to target, on the same
// filesystem so a rename is atomic.
func siblingPath(target, purpose string) string {
	name := fmt.Sprintf(".%s.hatch-%s-%s", filepath.Base(target), purpose, uuid.NewString()[:8])
	return filepath.Join(filepath.Dir(target), name)
}
