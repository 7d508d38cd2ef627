package daemonctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"organ/internal/api"
)

// ErrAPIUnavailable indicates the daemon control API is not reachable.
var ErrAPIUnavailable = errors.New("daemon API unavailable")

// Client queries the daemon's HTTP control API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a control client for the given bind address. An empty
// bind yields a nil client; callers treat that as "API disabled".
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Status fetches daemon runtime status.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var payload api.DaemonStatus
	if err := c.get(ctx, "/api/status", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Jobs lists jobs, optionally filtered by status.
func (c *Client) Jobs(ctx context.Context, statuses ...string) ([]api.Job, error) {
	values := url.Values{}
	for _, status := range statuses {
		if trimmed := strings.TrimSpace(status); trimmed != "" {
			values.Add("status", trimmed)
		}
	}
	var payload api.JobListResponse
	if err := c.get(ctx, "/api/jobs", values, &payload); err != nil {
		return nil, err
	}
	return payload.Jobs, nil
}

// Job fetches a single job by id. Returns nil without error when the
// daemon does not know the job.
func (c *Client) Job(ctx context.Context, id int64) (*api.Job, error) {
	var payload api.JobResponse
	err := c.get(ctx, "/api/jobs/"+strconv.FormatInt(id, 10), nil, &payload)
	if err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) && statusErr.code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payload.Job, nil
}

// History fetches recent transfer history.
func (c *Client) History(ctx context.Context, limit int) ([]api.HistoryRecord, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var payload api.HistoryResponse
	if err := c.get(ctx, "/api/history", values, &payload); err != nil {
		return nil, err
	}
	return payload.Records, nil
}

type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("api returned status %d: %s", e.code, e.message)
	}
	return fmt.Sprintf("api returned status %d", e.code)
}

func (c *Client) get(ctx context.Context, path string, values url.Values, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &statusError{code: resp.StatusCode, message: body.Error}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// IsAPIUnavailable reports whether the error means the daemon API cannot
// be reached, as opposed to an API-level failure.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
