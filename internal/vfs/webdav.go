package vfs

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"organ/internal/config"
	"organ/internal/media"
)

const propfindBody = `<?xml version="1.0"?><d:propfind xmlns:d="DAV:"><d:allprop/></d:propfind>`

// WebDAV serves a WebDAV server over plain HTTP verbs: PROPFIND for
// listing and stat, MKCOL for directories, MOVE/COPY with Destination
// headers, DELETE tolerant of already-gone paths.
type WebDAV struct {
	baseURL    *url.URL
	username   string
	password   string
	httpClient *http.Client
}

// NewWebDAV constructs a WebDAV adapter from configuration.
func NewWebDAV(cfg config.WebDAV) (*WebDAV, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, fmt.Errorf("webdav url is required")
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse webdav url: %w", err)
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebDAV{
		baseURL:    base,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (w *WebDAV) Backend() media.Backend { return media.BackendWebDAV }

func (w *WebDAV) fullURL(p string) string {
	ref := &url.URL{Path: strings.TrimPrefix(NormalizePath(p), "/")}
	return w.baseURL.ResolveReference(ref).String()
}

type davMultistatus struct {
	XMLName   xml.Name      `xml:"multistatus"`
	Responses []davResponse `xml:"response"`
}

type davResponse struct {
	Href     string        `xml:"href"`
	Propstat []davPropstat `xml:"propstat"`
}

type davPropstat struct {
	Status string  `xml:"status"`
	Prop   davProp `xml:"prop"`
}

type davProp struct {
	DisplayName   string          `xml:"displayname"`
	ContentLength int64           `xml:"getcontentlength"`
	LastModified  string          `xml:"getlastmodified"`
	ResourceType  davResourceType `xml:"resourcetype"`
}

type davResourceType struct {
	Collection *struct{} `xml:"collection"`
}

// parseMultistatus converts a PROPFIND response into file infos under
// base. The entry describing base itself is skipped.
func (w *WebDAV) parseMultistatus(body []byte, base string) ([]media.FileInfo, error) {
	var status davMultistatus
	if err := xml.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("parse propfind response: %w", err)
	}

	base = NormalizePath(base)
	var infos []media.FileInfo
	for _, resp := range status.Responses {
		href, err := url.PathUnescape(resp.Href)
		if err != nil {
			href = resp.Href
		}
		if len(resp.Propstat) == 0 {
			continue
		}
		prop := resp.Propstat[0].Prop

		isDir := prop.ResourceType.Collection != nil
		hrefPath := NormalizePath(strings.TrimSuffix(href, "/"))
		name := BaseName(hrefPath)
		if name == "" || name == "/" {
			continue
		}
		// The server echoes the queried collection as its own entry, and
		// may prefix hrefs with its mount point. Only an entry with no
		// segments below base is that echo.
		rel, under := segmentsBelow(hrefPath, base)
		if !under || len(rel) == 0 {
			continue
		}

		info := media.FileInfo{
			Name:    name,
			Path:    Join(base, name),
			IsDir:   isDir,
			Backend: media.BackendWebDAV,
		}
		if !isDir {
			info.Size = prop.ContentLength
			if idx := strings.LastIndex(name, "."); idx > 0 {
				info.Ext = strings.ToLower(name[idx:])
			}
		}
		if prop.LastModified != "" {
			if modified, err := http.ParseTime(prop.LastModified); err == nil {
				info.Modified = modified
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// segmentsBelow returns the href path segments below base. The base may
// appear anywhere in href at a segment boundary so that a server mount
// prefix (for example /dav) does not break the match.
func segmentsBelow(hrefPath, base string) ([]string, bool) {
	baseSegs := pathSegments(base)
	hrefSegs := pathSegments(hrefPath)
	if len(baseSegs) == 0 {
		return hrefSegs, true
	}
	for start := 0; start+len(baseSegs) <= len(hrefSegs); start++ {
		matched := true
		for i, seg := range baseSegs {
			if hrefSegs[start+i] != seg {
				matched = false
				break
			}
		}
		if matched {
			return hrefSegs[start+len(baseSegs):], true
		}
	}
	return nil, false
}

func pathSegments(p string) []string {
	trimmed := strings.Trim(NormalizePath(p), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func (w *WebDAV) propfind(ctx context.Context, p, depth string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, "PROPFIND", w.fullURL(p), strings.NewReader(propfindBody))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Depth", depth)
	req.Header.Set("Content-Type", "application/xml")
	w.auth(req)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func (w *WebDAV) List(ctx context.Context, dir string) ([]media.FileInfo, error) {
	body, status, err := w.propfind(ctx, dir, "1")
	if err != nil {
		return nil, adapterErr("list", dir, err)
	}
	switch {
	case status == http.StatusNotFound:
		return nil, notFoundErr("list", dir)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, permissionErr("list", dir, fmt.Errorf("status %d", status))
	case status >= 300:
		return nil, adapterErr("list", dir, fmt.Errorf("status %d", status))
	}

	infos, err := w.parseMultistatus(body, dir)
	if err != nil {
		return nil, adapterErr("list", dir, err)
	}
	return infos, nil
}

func (w *WebDAV) Stat(ctx context.Context, p string) (*media.FileInfo, error) {
	body, status, err := w.propfind(ctx, p, "0")
	if err != nil {
		return nil, adapterErr("stat", p, err)
	}
	switch {
	case status == http.StatusNotFound:
		return nil, notFoundErr("stat", p)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, permissionErr("stat", p, fmt.Errorf("status %d", status))
	case status >= 300:
		return nil, adapterErr("stat", p, fmt.Errorf("status %d", status))
	}

	// Depth 0 describes the path itself; parse relative to its parent so
	// the entry is not skipped as the base collection.
	infos, err := w.parseMultistatus(body, Parent(p))
	if err != nil {
		return nil, adapterErr("stat", p, err)
	}
	name := BaseName(p)
	for i := range infos {
		if infos[i].Name == name {
			return &infos[i], nil
		}
	}
	// Some servers omit displayname; fall back to a directory entry.
	return &media.FileInfo{Name: name, Path: NormalizePath(p), IsDir: true, Backend: media.BackendWebDAV}, nil
}

func (w *WebDAV) Exists(ctx context.Context, p string) (bool, error) {
	_, err := w.Stat(ctx, p)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (w *WebDAV) IsDir(ctx context.Context, p string) (bool, error) {
	info, err := w.Stat(ctx, p)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir, nil
}

// MkdirAll issues MKCOL per missing segment. 405 means the collection
// already exists.
func (w *WebDAV) MkdirAll(ctx context.Context, dir string) error {
	dir = NormalizePath(dir)
	if dir == "/" {
		return nil
	}

	segments := strings.Split(strings.Trim(dir, "/"), "/")
	current := ""
	for _, segment := range segments {
		current = current + "/" + segment
		status, err := w.simpleRequest(ctx, "MKCOL", current, nil)
		if err != nil {
			return adapterErr("mkdir", dir, err)
		}
		switch {
		case status == http.StatusCreated || status == http.StatusMethodNotAllowed:
			continue
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return permissionErr("mkdir", dir, fmt.Errorf("status %d", status))
		case status >= 300:
			return adapterErr("mkdir", dir, fmt.Errorf("status %d", status))
		}
	}
	return nil
}

func (w *WebDAV) Move(ctx context.Context, src, dst string, overwrite bool) error {
	return w.relocate(ctx, "MOVE", src, dst, overwrite)
}

func (w *WebDAV) Copy(ctx context.Context, src, dst string, overwrite bool) error {
	return w.relocate(ctx, "COPY", src, dst, overwrite)
}

func (w *WebDAV) relocate(ctx context.Context, method, src, dst string, overwrite bool) error {
	if err := w.MkdirAll(ctx, Parent(dst)); err != nil {
		return err
	}

	headers := map[string]string{"Destination": w.fullURL(dst)}
	if overwrite {
		headers["Overwrite"] = "T"
	} else {
		headers["Overwrite"] = "F"
	}
	status, err := w.simpleRequest(ctx, method, src, headers)
	if err != nil {
		return adapterErr(strings.ToLower(method), src, err)
	}
	switch {
	case status == http.StatusCreated || status == http.StatusNoContent:
		return nil
	case status == http.StatusNotFound:
		return notFoundErr(strings.ToLower(method), src)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return permissionErr(strings.ToLower(method), src, fmt.Errorf("status %d", status))
	case status == http.StatusPreconditionFailed:
		return adapterErr(strings.ToLower(method), dst, errors.New("destination exists"))
	default:
		return adapterErr(strings.ToLower(method), src, fmt.Errorf("status %d", status))
	}
}

func (w *WebDAV) Delete(ctx context.Context, p string, recursive bool) error {
	status, err := w.simpleRequest(ctx, http.MethodDelete, p, nil)
	if err != nil {
		return adapterErr("delete", p, err)
	}
	switch {
	// DELETE on a collection is always recursive in WebDAV; a missing
	// path already satisfies the caller.
	case status == http.StatusOK || status == http.StatusNoContent || status == http.StatusNotFound:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return permissionErr("delete", p, fmt.Errorf("status %d", status))
	default:
		return adapterErr("delete", p, fmt.Errorf("status %d", status))
	}
}

func (w *WebDAV) Walk(ctx context.Context, root string, fn WalkFunc) error {
	items, err := w.List(ctx, root)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if item.IsDir {
			if err := w.Walk(ctx, item.Path, fn); err != nil {
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

func (w *WebDAV) simpleRequest(ctx context.Context, method, p string, headers map[string]string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, w.fullURL(p), nil)
	if err != nil {
		return 0, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w.auth(req)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (w *WebDAV) auth(req *http.Request) {
	if w.username != "" {
		req.SetBasicAuth(w.username, w.password)
	}
}
