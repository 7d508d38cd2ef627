// Package vfs abstracts the storage backends behind one adapter interface
// with POSIX path semantics. Callers branch only on the error categories
// exposed here (not found, permission, generic adapter failure), never on
// backend-specific errors.
package vfs

import (
	"context"
	"errors"
	"path"
	"strings"

	"organ/internal/media"
	"organ/internal/services"
)

// WalkFunc visits one file during a recursive walk. Returning an error
// stops the walk.
type WalkFunc func(info media.FileInfo) error

// Adapter is the uniform storage interface implemented by every backend.
type Adapter interface {
	// Backend identifies the storage backend this adapter serves.
	Backend() media.Backend
	// List returns the direct children of a directory.
	List(ctx context.Context, dir string) ([]media.FileInfo, error)
	// Stat describes a single file or directory.
	Stat(ctx context.Context, p string) (*media.FileInfo, error)
	// Exists reports whether the path exists.
	Exists(ctx context.Context, p string) (bool, error)
	// IsDir reports whether the path exists and is a directory.
	IsDir(ctx context.Context, p string) (bool, error)
	// MkdirAll creates the directory and any missing parents. Creating an
	// existing directory is not an error.
	MkdirAll(ctx context.Context, dir string) error
	// Move relocates a file or directory. With overwrite false an existing
	// destination fails the move.
	Move(ctx context.Context, src, dst string, overwrite bool) error
	// Copy duplicates a file or directory tree.
	Copy(ctx context.Context, src, dst string, overwrite bool) error
	// Delete removes a path. Directories require recursive unless empty;
	// deleting a missing path is not an error.
	Delete(ctx context.Context, p string, recursive bool) error
	// Walk visits every file below root, depth-first.
	Walk(ctx context.Context, root string, fn WalkFunc) error
}

// Error category helpers. Adapters tag failures with the services
// sentinels; these wrappers keep the call sites terse.

func notFoundErr(op, p string) error {
	return services.Wrap(services.ErrNotFound, "vfs", op, p, nil)
}

func permissionErr(op, p string, err error) error {
	return services.Wrap(services.ErrPermission, "vfs", op, p, err)
}

func adapterErr(op, p string, err error) error {
	return services.Wrap(services.ErrExternalService, "vfs", op, p, err)
}

// IsNotFound reports whether the error is the not-found category.
func IsNotFound(err error) bool { return errors.Is(err, services.ErrNotFound) }

// IsPermission reports whether the error is the permission category.
func IsPermission(err error) bool { return errors.Is(err, services.ErrPermission) }

// NormalizePath collapses a backend-agnostic path to POSIX form with a
// leading slash.
func NormalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// Parent returns the POSIX parent directory of p.
func Parent(p string) string { return path.Dir(NormalizePath(p)) }

// BaseName returns the final path component.
func BaseName(p string) string { return path.Base(NormalizePath(p)) }

// Join joins POSIX path parts.
func Join(parts ...string) string { return path.Join(parts...) }
