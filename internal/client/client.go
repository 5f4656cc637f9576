// Package client is the HTTP client the CLI uses to talk to the daemon.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tidy/internal/api"
)

// ErrDaemonUnavailable marks connection failures so the CLI can suggest
// starting the daemon.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// Client talks to a running daemon over its API bind address.
type Client struct {
	base *url.URL
	http *http.Client
}

// New builds a client for the given bind address ("host:port" or a full
// URL).
func New(bind string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, fmt.Errorf("api bind address is empty")
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
		base: base,
		// No timeout: log streaming keeps the connection open for the
		// whole run.
		http: &http.Client{},
	}, nil
}

// IsUnavailable reports whether err means the daemon could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrDaemonUnavailable) || errors.As(err, &opErr)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var payload api.Error
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("%s (status %d)", payload.Error, resp.StatusCode)
	}
	return fmt.Errorf("daemon returned status %d", resp.StatusCode)
}

// Health probes the daemon.
func (c *Client) Health(ctx context.Context) error {
	var out api.Health
	return c.get(ctx, "/api/health", nil, &out)
}

// Version returns the daemon build version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out api.Version
	if err := c.get(ctx, "/api/version", nil, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// Status returns the run slot snapshot.
func (c *Client) Status(ctx context.Context) (api.Status, error) {
	var out api.Status
	err := c.get(ctx, "/api/status", nil, &out)
	return out, err
}

// Disks lists configured disks with usage.
func (c *Client) Disks(ctx context.Context) ([]api.Disk, error) {
	var out []api.Disk
	err := c.get(ctx, "/api/disks", nil, &out)
	return out, err
}

// CreateDisk registers a new disk after the daemon validates its paths.
func (c *Client) CreateDisk(ctx context.Context, req api.DiskRequest) error {
	var out api.OK
	return c.do(ctx, http.MethodPost, "/api/disks", nil, req, &out)
}

// DeleteDisk removes a disk by name.
func (c *Client) DeleteDisk(ctx context.Context, name string) error {
	var out api.OK
	return c.do(ctx, http.MethodDelete, "/api/disks/"+name, nil, nil, &out)
}

// Keywords lists the keyword categories in matcher order.
func (c *Client) Keywords(ctx context.Context) ([]api.Category, error) {
	var out []api.Category
	err := c.get(ctx, "/api/keywords", nil, &out)
	return out, err
}

// StartRun triggers a run for a disk or ad-hoc source.
func (c *Client) StartRun(ctx context.Context, req api.RunRequest) (api.RunStarted, error) {
	var out api.RunStarted
	err := c.do(ctx, http.MethodPost, "/api/run", nil, req, &out)
	return out, err
}

// Runs lists run history, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]api.Run, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out []api.Run
	err := c.get(ctx, "/api/runs", query, &out)
	return out, err
}

// RunLog fetches the full log text of one run.
func (c *Client) RunLog(ctx context.Context, runID int64) (string, error) {
	endpoint := c.base.ResolveReference(&url.URL{Path: fmt.Sprintf("/api/runs/%d", runID)})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", decodeError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FollowRunLog consumes the run's event stream, invoking fn for every log
// line until the end sentinel arrives or the context ends.
func (c *Client) FollowRunLog(ctx context.Context, runID int64, fn func(line string)) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: fmt.Sprintf("/stream_run_logs/%d", runID)})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[STREAM_END]" {
			return nil
		}
		fn(payload)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// EmptyDirs lists the empty directories under a disk's trees.
func (c *Client) EmptyDirs(ctx context.Context, disk string) ([]string, error) {
	var out []string
	err := c.get(ctx, "/api/disks/"+disk+"/empty-dirs", nil, &out)
	return out, err
}

// CleanupEmptyDirs deletes the listed directories when still empty.
func (c *Client) CleanupEmptyDirs(ctx context.Context, paths []string) (api.CleanupResponse, error) {
	var out api.CleanupResponse
	err := c.do(ctx, http.MethodPost, "/api/cleanup-empty-dirs", nil, api.CleanupRequest{Paths: paths}, &out)
	return out, err
}
