package vfs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"organ/internal/config"
)

// CloudItem is one entry from the cloud drive listing protocol. A missing
// file id marks a directory; directories carry their own directory id.
type CloudItem struct {
	FileID   string `json:"fid"`
	DirID    string `json:"cid"`
	Name     string `json:"n"`
	Size     int64  `json:"s"`
	PickCode string `json:"pc"`
	Updated  int64  `json:"te"`
}

// IsDir reports whether the entry is a directory.
func (i CloudItem) IsDir() bool { return i.FileID == "" }

// ID returns the backend handle used by move/copy/delete calls.
func (i CloudItem) ID() string {
	if i.IsDir() {
		return i.DirID
	}
	return i.FileID
}

// CloudPage is one page of a directory listing.
type CloudPage struct {
	Items []CloudItem
	Total int
}

// CloudTransport is the wire protocol behind the cloud adapter, injectable
// for tests.
type CloudTransport interface {
	ListFiles(ctx context.Context, dirID string, offset, limit int) (*CloudPage, error)
	CreateFolder(ctx context.Context, parentID, name string) (string, error)
	MoveItem(ctx context.Context, itemID, dirID string) error
	RenameItem(ctx context.Context, itemID, name string) error
	CopyItem(ctx context.Context, itemID, dirID string) error
	DeleteItem(ctx context.Context, itemID string) error
	ReceiveShare(ctx context.Context, shareCode, receiveCode, dirID string, fileIDs []string) error
	ListShare(ctx context.Context, shareCode, receiveCode string) ([]CloudItem, error)
}

// CloudClient implements CloudTransport over the drive's HTTP API using
// cookie authentication.
type CloudClient struct {
	baseURL    string
	cookie     string
	httpClient *http.Client
}

// NewCloudClient constructs the HTTP transport from configuration.
func NewCloudClient(cfg config.CloudDrive) (*CloudClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("cloud drive base url is required")
	}
	if strings.TrimSpace(cfg.Cookie) == "" {
		return nil, fmt.Errorf("cloud drive cookie is required")
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CloudClient{
		baseURL:    baseURL,
		cookie:     strings.TrimSpace(cfg.Cookie),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type cloudListResponse struct {
	State bool            `json:"state"`
	ErrNo int             `json:"errNo"`
	Error string          `json:"error"`
	Data  []CloudItem     `json:"data"`
	Count int             `json:"count"`
	Snap  *cloudShareSnap `json:"snap,omitempty"`
}

type cloudShareSnap struct {
	List []CloudItem `json:"list"`
}

func (c *CloudClient) ListFiles(ctx context.Context, dirID string, offset, limit int) (*CloudPage, error) {
	params := url.Values{}
	params.Set("cid", dirID)
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))

	var resp cloudListResponse
	if err := c.call(ctx, "/files", params, &resp); err != nil {
		return nil, err
	}
	if resp.ErrNo != 0 {
		return nil, fmt.Errorf("list files: errNo %d: %s", resp.ErrNo, resp.Error)
	}
	return &CloudPage{Items: resp.Data, Total: resp.Count}, nil
}

type cloudMutationResponse struct {
	State bool   `json:"state"`
	Error string `json:"error"`
	CID   string `json:"cid"`
}

func (c *CloudClient) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	params := url.Values{}
	params.Set("pid", parentID)
	params.Set("cname", name)

	var resp cloudMutationResponse
	if err := c.call(ctx, "/mkdir", params, &resp); err != nil {
		return "", err
	}
	if !resp.State {
		return "", fmt.Errorf("mkdir %q: %s", name, resp.Error)
	}
	return resp.CID, nil
}

func (c *CloudClient) MoveItem(ctx context.Context, itemID, dirID string) error {
	params := url.Values{}
	params.Set("fid[]", itemID)
	params.Set("pid", dirID)
	return c.mutate(ctx, "/move", params)
}

func (c *CloudClient) RenameItem(ctx context.Context, itemID, name string) error {
	params := url.Values{}
	params.Set("fid", itemID)
	params.Set("file_name", name)
	return c.mutate(ctx, "/rename", params)
}

func (c *CloudClient) CopyItem(ctx context.Context, itemID, dirID string) error {
	params := url.Values{}
	params.Set("fid[]", itemID)
	params.Set("pid", dirID)
	return c.mutate(ctx, "/copy", params)
}

func (c *CloudClient) DeleteItem(ctx context.Context, itemID string) error {
	params := url.Values{}
	params.Set("fid[]", itemID)
	return c.mutate(ctx, "/delete", params)
}

func (c *CloudClient) ReceiveShare(ctx context.Context, shareCode, receiveCode, dirID string, fileIDs []string) error {
	params := url.Values{}
	params.Set("share_code", shareCode)
	params.Set("cid", dirID)
	if receiveCode != "" {
		params.Set("receive_code", receiveCode)
	}
	if len(fileIDs) > 0 {
		params.Set("file_id", strings.Join(fileIDs, ","))
	}
	return c.mutate(ctx, "/share/receive", params)
}

func (c *CloudClient) ListShare(ctx context.Context, shareCode, receiveCode string) ([]CloudItem, error) {
	params := url.Values{}
	params.Set("share_code", shareCode)
	if receiveCode != "" {
		params.Set("receive_code", receiveCode)
	}

	var resp cloudListResponse
	if err := c.call(ctx, "/share/snap", params, &resp); err != nil {
		return nil, err
	}
	if resp.ErrNo != 0 {
		return nil, fmt.Errorf("share snap: errNo %d: %s", resp.ErrNo, resp.Error)
	}
	if resp.Snap != nil {
		return resp.Snap.List, nil
	}
	return resp.Data, nil
}

// LifeEvent is one entry of the drive's activity feed.
type LifeEvent struct {
	Type     string `json:"type"`
	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
	FileID   string `json:"file_id"`
	Time     int64  `json:"time"`
}

type cloudLifeResponse struct {
	State bool   `json:"state"`
	ErrNo int    `json:"errNo"`
	Error string `json:"error"`
	Data  struct {
		List []LifeEvent `json:"list"`
	} `json:"data"`
}

// LifeEvents returns recent activity entries, newest first.
func (c *CloudClient) LifeEvents(ctx context.Context, limit int) ([]LifeEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var resp cloudLifeResponse
	if err := c.call(ctx, "/life/list", params, &resp); err != nil {
		return nil, err
	}
	if resp.ErrNo != 0 {
		return nil, fmt.Errorf("life list: errNo %d: %s", resp.ErrNo, resp.Error)
	}
	return resp.Data.List, nil
}

func (c *CloudClient) mutate(ctx context.Context, endpoint string, params url.Values) error {
	var resp cloudMutationResponse
	if err := c.call(ctx, endpoint, params, &resp); err != nil {
		return err
	}
	if !resp.State {
		return fmt.Errorf("%s: %s", strings.TrimPrefix(endpoint, "/"), resp.Error)
	}
	return nil
}

func (c *CloudClient) call(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", c.cookie)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cloud drive request %s after %s: %w", endpoint, time.Since(start).Round(time.Millisecond), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cloud drive %s: status %d", endpoint, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
