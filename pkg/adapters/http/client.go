package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
)

// Client implements ports.Gateway against a remote Server.
// Status codes map back onto the domain sentinels; any other 5xx or transport
// failure is returned unwrapped so the engine treats it as transient.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ ports.Gateway = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func blueprintPath(id string, suffix ...string) string {
	return "/blueprints/" + url.PathEscape(id) + strings.Join(suffix, "")
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response from %s %s: %v", domain.ErrFatal, method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusConflict:
		sentinel = domain.ErrConflict
	case http.StatusNotFound:
		sentinel = domain.ErrBlueprintNotFound
	case http.StatusBadRequest:
		sentinel = domain.ErrInvalidRequest
	case http.StatusUnprocessableEntity:
		sentinel = domain.ErrFatal
	default:
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	if body.Error == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, body.Error)
}

// UpsertGraph posts the graph to /blueprints/graph.
func (c *Client) UpsertGraph(ctx context.Context, req ports.UpsertRequest) (ports.UpsertResult, error) {
	var res ports.UpsertResult
	if err := c.do(ctx, http.MethodPost, "/blueprints/graph", req, &res); err != nil {
		return ports.UpsertResult{}, err
	}
	if res.BlueprintID == "" {
		return ports.UpsertResult{}, fmt.Errorf("%w: upsert response has no blueprint id", domain.ErrFatal)
	}
	return res, nil
}

// GetBlueprint fetches a blueprint and its graph.
func (c *Client) GetBlueprint(ctx context.Context, id string) (*domain.Hydrated, error) {
	var h domain.Hydrated
	if err := c.do(ctx, http.MethodGet, blueprintPath(id), nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ListBlueprints fetches every blueprint.
func (c *Client) ListBlueprints(ctx context.Context) ([]domain.Blueprint, error) {
	list := []domain.Blueprint{}
	if err := c.do(ctx, http.MethodGet, "/blueprints", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteBlueprint removes a blueprint.
func (c *Client) DeleteBlueprint(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, blueprintPath(id), nil, nil)
}

// DuplicateBlueprint copies a blueprint and returns the new id.
func (c *Client) DuplicateBlueprint(ctx context.Context, id string) (string, error) {
	var res duplicateResponse
	if err := c.do(ctx, http.MethodPost, blueprintPath(id, "/duplicate"), nil, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

// RenameBlueprint changes the title if the version matches.
func (c *Client) RenameBlueprint(ctx context.Context, req ports.RenameRequest) (uint64, error) {
	if req.BlueprintID == "" {
		return 0, fmt.Errorf("%w: blueprint id is required", domain.ErrInvalidRequest)
	}
	var res renameResponse
	if err := c.do(ctx, http.MethodPost, blueprintPath(req.BlueprintID, "/rename"), req, &res); err != nil {
		return 0, err
	}
	return res.Version, nil
}

// CreateSnapshot records the current graph under a label.
func (c *Client) CreateSnapshot(ctx context.Context, id string, opts ports.SnapshotOptions) (*domain.SnapshotRecord, error) {
	var snap domain.SnapshotRecord
	if err := c.do(ctx, http.MethodPost, blueprintPath(id, "/snapshots"), opts, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// CreateShare issues a share token.
func (c *Client) CreateShare(ctx context.Context, id string, opts ports.ShareOptions) (*domain.Share, error) {
	var share domain.Share
	if err := c.do(ctx, http.MethodPost, blueprintPath(id, "/shares"), opts, &share); err != nil {
		return nil, err
	}
	return &share, nil
}
