package vfs

import (
	"context"
	"errors"
	"strings"
	"time"

	"organ/internal/media"
)

// cloudRootID is the directory handle of the drive root.
const cloudRootID = "0"

const defaultCloudPageSize = 1000

// Cloud serves the cloud drive backend. The drive has no native path API,
// so paths resolve to directory handles by walking segments from the root.
type Cloud struct {
	transport CloudTransport
	pageSize  int
}

// NewCloud constructs a cloud adapter over the given transport.
func NewCloud(transport CloudTransport, pageSize int) *Cloud {
	if pageSize <= 0 {
		pageSize = defaultCloudPageSize
	}
	return &Cloud{transport: transport, pageSize: pageSize}
}

func (c *Cloud) Backend() media.Backend { return media.BackendCloud }

func (c *Cloud) fileInfo(item CloudItem, parent string) media.FileInfo {
	info := media.FileInfo{
		Name:     item.Name,
		Path:     Join(parent, item.Name),
		IsDir:    item.IsDir(),
		FileID:   item.ID(),
		PickCode: item.PickCode,
		Backend:  media.BackendCloud,
	}
	if item.Updated > 0 {
		info.Modified = time.Unix(item.Updated, 0)
	}
	if !item.IsDir() {
		info.Size = item.Size
		if idx := strings.LastIndex(item.Name, "."); idx > 0 {
			info.Ext = strings.ToLower(item.Name[idx:])
		}
	}
	return info
}

// listAll pages through a directory until the listing is exhausted.
func (c *Cloud) listAll(ctx context.Context, dirID string) ([]CloudItem, error) {
	var items []CloudItem
	offset := 0
	for {
		page, err := c.transport.ListFiles(ctx, dirID, offset, c.pageSize)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if len(page.Items) < c.pageSize {
			return items, nil
		}
		offset += c.pageSize
	}
}

// resolveDirID walks path segments from the root to a directory handle.
// Returns empty when any segment is missing.
func (c *Cloud) resolveDirID(ctx context.Context, p string) (string, error) {
	p = NormalizePath(p)
	if p == "/" {
		return cloudRootID, nil
	}

	current := cloudRootID
	for _, segment := range strings.Split(strings.Trim(p, "/"), "/") {
		items, err := c.listAll(ctx, current)
		if err != nil {
			return "", err
		}
		next := ""
		for _, item := range items {
			if item.IsDir() && item.Name == segment {
				next = item.DirID
				break
			}
		}
		if next == "" {
			return "", nil
		}
		current = next
	}
	return current, nil
}

func (c *Cloud) List(ctx context.Context, dir string) ([]media.FileInfo, error) {
	dir = NormalizePath(dir)
	dirID, err := c.resolveDirID(ctx, dir)
	if err != nil {
		return nil, adapterErr("list", dir, err)
	}
	if dirID == "" {
		return nil, notFoundErr("list", dir)
	}

	items, err := c.listAll(ctx, dirID)
	if err != nil {
		return nil, adapterErr("list", dir, err)
	}
	infos := make([]media.FileInfo, 0, len(items))
	for _, item := range items {
		infos = append(infos, c.fileInfo(item, dir))
	}
	return infos, nil
}

func (c *Cloud) Stat(ctx context.Context, p string) (*media.FileInfo, error) {
	p = NormalizePath(p)
	if p == "/" {
		return &media.FileInfo{Path: "/", IsDir: true, FileID: cloudRootID, Backend: media.BackendCloud}, nil
	}

	items, err := c.List(ctx, Parent(p))
	if err != nil {
		return nil, err
	}
	name := BaseName(p)
	for _, item := range items {
		if item.Name == name {
			info := item
			return &info, nil
		}
	}
	return nil, notFoundErr("stat", p)
}

func (c *Cloud) Exists(ctx context.Context, p string) (bool, error) {
	_, err := c.Stat(ctx, p)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (c *Cloud) IsDir(ctx context.Context, p string) (bool, error) {
	info, err := c.Stat(ctx, p)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir, nil
}

func (c *Cloud) MkdirAll(ctx context.Context, dir string) error {
	dir = NormalizePath(dir)
	if dir == "/" {
		return nil
	}

	current := cloudRootID
	for _, segment := range strings.Split(strings.Trim(dir, "/"), "/") {
		items, err := c.listAll(ctx, current)
		if err != nil {
			return adapterErr("mkdir", dir, err)
		}
		next := ""
		for _, item := range items {
			if item.IsDir() && item.Name == segment {
				next = item.DirID
				break
			}
		}
		if next == "" {
			next, err = c.transport.CreateFolder(ctx, current, segment)
			if err != nil {
				return adapterErr("mkdir", dir, err)
			}
		}
		current = next
	}
	return nil
}

// Move relocates the item to the destination directory, then renames it
// when the destination base name differs. The drive has no single
// move-and-rename call.
func (c *Cloud) Move(ctx context.Context, src, dst string, overwrite bool) error {
	src, dst = NormalizePath(src), NormalizePath(dst)

	info, err := c.Stat(ctx, src)
	if err != nil {
		return err
	}
	if err := c.MkdirAll(ctx, Parent(dst)); err != nil {
		return err
	}
	dstDirID, err := c.resolveDirID(ctx, Parent(dst))
	if err != nil || dstDirID == "" {
		return adapterErr("move", dst, errors.New("destination directory unresolved"))
	}

	if !overwrite {
		if exists, err := c.Exists(ctx, dst); err != nil {
			return err
		} else if exists {
			return adapterErr("move", dst, errors.New("destination exists"))
		}
	}

	if err := c.transport.MoveItem(ctx, info.FileID, dstDirID); err != nil {
		return adapterErr("move", src, err)
	}
	if name := BaseName(dst); name != info.Name {
		if err := c.transport.RenameItem(ctx, info.FileID, name); err != nil {
			return adapterErr("rename", dst, err)
		}
	}
	return nil
}

func (c *Cloud) Copy(ctx context.Context, src, dst string, overwrite bool) error {
	src, dst = NormalizePath(src), NormalizePath(dst)

	info, err := c.Stat(ctx, src)
	if err != nil {
		return err
	}
	if err := c.MkdirAll(ctx, Parent(dst)); err != nil {
		return err
	}
	dstDirID, err := c.resolveDirID(ctx, Parent(dst))
	if err != nil || dstDirID == "" {
		return adapterErr("copy", dst, errors.New("destination directory unresolved"))
	}
	if err := c.transport.CopyItem(ctx, info.FileID, dstDirID); err != nil {
		return adapterErr("copy", src, err)
	}
	return nil
}

func (c *Cloud) Delete(ctx context.Context, p string, recursive bool) error {
	info, err := c.Stat(ctx, p)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	// The drive deletes folders with their contents in one call.
	if err := c.transport.DeleteItem(ctx, info.FileID); err != nil {
		return adapterErr("delete", p, err)
	}
	return nil
}

func (c *Cloud) Walk(ctx context.Context, root string, fn WalkFunc) error {
	items, err := c.List(ctx, root)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if item.IsDir {
			if err := c.Walk(ctx, item.Path, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

// ReceiveShare saves files from a share link into the target directory,
// creating it when missing.
func (c *Cloud) ReceiveShare(ctx context.Context, shareCode, receiveCode, targetPath string, fileIDs []string) error {
	if err := c.MkdirAll(ctx, targetPath); err != nil {
		return err
	}
	dirID, err := c.resolveDirID(ctx, targetPath)
	if err != nil || dirID == "" {
		return adapterErr("share", targetPath, errors.New("target directory unresolved"))
	}
	if err := c.transport.ReceiveShare(ctx, shareCode, receiveCode, dirID, fileIDs); err != nil {
		return adapterErr("share", shareCode, err)
	}
	return nil
}

// ListShare lists the contents of a share link without saving it.
func (c *Cloud) ListShare(ctx context.Context, shareCode, receiveCode string) ([]media.FileInfo, error) {
	items, err := c.transport.ListShare(ctx, shareCode, receiveCode)
	if err != nil {
		return nil, adapterErr("share", shareCode, err)
	}
	infos := make([]media.FileInfo, 0, len(items))
	for _, item := range items {
		infos = append(infos, c.fileInfo(item, "/"))
	}
	return infos, nil
}
