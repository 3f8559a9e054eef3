// Package storage owns the on-disk upload tree. Every path handed to it is
// relative to a fixed root and is canonicalized before any filesystem call.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/logger"
)

// Outcome reports what a delete did.
type Outcome string

const (
	OutcomeDeleted  Outcome = "deleted"
	OutcomeNotFound Outcome = "not_found"
)

type failureRecorder interface {
	IncFileCleanupFailure(reason string)
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Local deletes files beneath a root directory.
type Local struct {
	root    string
	logg    *logger.Logger
	metrics failureRecorder
}

// NewLocal prepares the root directory and returns a store bound to its
// canonical location.
func NewLocal(root string, logg *logger.Logger, metrics failureRecorder) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("canonicalize storage root: %w", err)
	}
	return &Local{root: canonical, logg: logg, metrics: metrics}, nil
}

// Root returns the canonical storage root.
func (l *Local) Root() string {
	return l.root
}

// Ping verifies the root is still a reachable directory.
func (l *Local) Ping(context.Context) error {
	info, err := os.Stat(l.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", l.root)
	}
	return nil
}

// Resolve maps relativePath to its canonical absolute path, refusing anything
// that lands outside the root (or on the root itself).
func (l *Local) Resolve(relativePath string) (string, error) {
	trimmed := strings.TrimSpace(relativePath)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodePathTraversal, "empty file path")
	}
	if filepath.IsAbs(trimmed) || filepath.VolumeName(trimmed) != "" {
		return "", traversal(relativePath)
	}

	joined := filepath.Join(l.root, filepath.FromSlash(trimmed))
	canonical, err := canonicalize(joined)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "canonicalize file path")
	}
	if !l.within(canonical) {
		return "", traversal(relativePath)
	}
	return canonical, nil
}

// Delete removes one file. A missing file is not an error.
func (l *Local) Delete(ctx context.Context, relativePath string) (Outcome, error) {
	path, err := l.Resolve(relativePath)
	if err != nil {
		return "", err
	}
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return OutcomeNotFound, nil
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stat file")
	}
	if info.IsDir() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "path is a directory").
			WithDetails(map[string]any{"path": relativePath})
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return OutcomeNotFound, nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove file")
	}
	return OutcomeDeleted, nil
}

// Cleanup deletes every path, logging and swallowing failures. The combined
// error is returned for reporting only; callers must not fail on it.
func (l *Local) Cleanup(ctx context.Context, paths []string) error {
	var errs error
	for _, rel := range paths {
		outcome, err := l.Delete(ctx, rel)
		logCtx := l.logg.WithField(ctx, "file_path", rel)
		if err != nil {
			reason := string(pkgerrors.CodeOf(err))
			l.logg.Error(l.logg.WithField(logCtx, "reason", reason), "file cleanup failed", err)
			if l.metrics != nil {
				l.metrics.IncFileCleanupFailure(reason)
			}
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", rel, err))
			continue
		}
		l.logg.Info(l.logg.WithField(logCtx, "outcome", string(outcome)), "file cleanup")
	}
	return errs
}

func (l *Local) within(path string) bool {
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

// canonicalize resolves symlinks on the deepest existing ancestor of path and
// re-appends the components that do not exist yet.
func canonicalize(path string) (string, error) {
	clean := filepath.Clean(path)
	var missing []string
	current := clean
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return clean, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}

func traversal(relativePath string) error {
	return pkgerrors.New(pkgerrors.CodePathTraversal, "file path escapes storage root").
		WithDetails(map[string]any{"path": relativePath})
}
