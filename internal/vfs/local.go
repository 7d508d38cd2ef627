package vfs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"organ/internal/fileutil"
	"organ/internal/media"
)

// Local serves the local filesystem. An optional base directory anchors
// relative paths.
type Local struct {
	base string
}

// NewLocal constructs a local adapter. base may be empty.
func NewLocal(base string) *Local {
	return &Local{base: base}
}

func (l *Local) Backend() media.Backend { return media.BackendLocal }

func (l *Local) resolve(p string) string {
	p = filepath.FromSlash(strings.TrimSpace(p))
	if l.base != "" && !filepath.IsAbs(p) {
		p = filepath.Join(l.base, p)
	}
	if p == "" {
		p = "."
	}
	return filepath.Clean(p)
}

func (l *Local) fileInfo(p string, entry os.FileInfo) media.FileInfo {
	info := media.FileInfo{
		Name:     entry.Name(),
		Path:     filepath.ToSlash(p),
		IsDir:    entry.IsDir(),
		Modified: entry.ModTime(),
		Backend:  media.BackendLocal,
	}
	if !entry.IsDir() {
		info.Size = entry.Size()
		info.Ext = strings.ToLower(filepath.Ext(entry.Name()))
	}
	return info
}

func (l *Local) List(ctx context.Context, dir string) ([]media.FileInfo, error) {
	resolved := l.resolve(dir)
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, l.classify("list", dir, err)
	}

	infos := make([]media.FileInfo, 0, len(entries))
	for _, entry := range entries {
		stat, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, l.fileInfo(filepath.Join(resolved, entry.Name()), stat))
	}
	return infos, nil
}

func (l *Local) Stat(ctx context.Context, p string) (*media.FileInfo, error) {
	resolved := l.resolve(p)
	stat, err := os.Stat(resolved)
	if err != nil {
		return nil, l.classify("stat", p, err)
	}
	info := l.fileInfo(resolved, stat)
	return &info, nil
}

func (l *Local) Exists(ctx context.Context, p string) (bool, error) {
	_, err := os.Stat(l.resolve(p))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, l.classify("exists", p, err)
}

func (l *Local) IsDir(ctx context.Context, p string) (bool, error) {
	stat, err := os.Stat(l.resolve(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, l.classify("isdir", p, err)
	}
	return stat.IsDir(), nil
}

func (l *Local) MkdirAll(ctx context.Context, dir string) error {
	if err := os.MkdirAll(l.resolve(dir), 0o755); err != nil {
		return l.classify("mkdir", dir, err)
	}
	return nil
}

func (l *Local) Move(ctx context.Context, src, dst string, overwrite bool) error {
	srcPath := l.resolve(src)
	dstPath := l.resolve(dst)

	srcStat, err := os.Stat(srcPath)
	if err != nil {
		return l.classify("move", src, err)
	}
	if err := l.prepareDestination(dstPath, dst, overwrite); err != nil {
		return err
	}

	if srcStat.IsDir() {
		if err := os.Rename(srcPath, dstPath); err != nil {
			return l.classify("move", src, err)
		}
		return nil
	}
	if err := fileutil.MoveFile(srcPath, dstPath); err != nil {
		return l.classify("move", src, err)
	}
	return nil
}

func (l *Local) Copy(ctx context.Context, src, dst string, overwrite bool) error {
	srcPath := l.resolve(src)
	dstPath := l.resolve(dst)

	srcStat, err := os.Stat(srcPath)
	if err != nil {
		return l.classify("copy", src, err)
	}
	if err := l.prepareDestination(dstPath, dst, overwrite); err != nil {
		return err
	}

	if srcStat.IsDir() {
		if err := l.copyTree(srcPath, dstPath); err != nil {
			return l.classify("copy", src, err)
		}
		return nil
	}
	if err := fileutil.CopyFileVerified(srcPath, dstPath); err != nil {
		return l.classify("copy", src, err)
	}
	return nil
}

func (l *Local) Delete(ctx context.Context, p string, recursive bool) error {
	resolved := l.resolve(p)
	stat, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return l.classify("delete", p, err)
	}

	if stat.IsDir() && recursive {
		err = os.RemoveAll(resolved)
	} else {
		err = os.Remove(resolved)
	}
	if err != nil {
		return l.classify("delete", p, err)
	}
	return nil
}

func (l *Local) Walk(ctx context.Context, root string, fn WalkFunc) error {
	resolved := l.resolve(root)
	err := filepath.WalkDir(resolved, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		stat, err := entry.Info()
		if err != nil {
			return nil
		}
		return fn(l.fileInfo(p, stat))
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return l.classify("walk", root, err)
	}
	return err
}

// prepareDestination clears an existing destination when overwriting and
// creates the parent directory.
func (l *Local) prepareDestination(dstPath, dst string, overwrite bool) error {
	if stat, err := os.Stat(dstPath); err == nil {
		if !overwrite {
			return adapterErr("move", dst, errors.New("destination exists"))
		}
		if stat.IsDir() {
			if err := os.RemoveAll(dstPath); err != nil {
				return l.classify("move", dst, err)
			}
		} else if err := os.Remove(dstPath); err != nil {
			return l.classify("move", dst, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return l.classify("move", dst, err)
	}
	return nil
}

func (l *Local) copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return fileutil.CopyFile(p, target)
	})
}

func (l *Local) classify(op, p string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return notFoundErr(op, p)
	case errors.Is(err, fs.ErrPermission):
		return permissionErr(op, p, err)
	default:
		return adapterErr(op, p, err)
	}
}
