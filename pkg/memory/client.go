package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/voxhall/voxhall/pkg/logging"
)

const (
	// Search accepts 1..MaxSearchLimit results.
	MaxSearchLimit = 20
	// GetAll accepts 1..MaxListLimit results.
	MaxListLimit = 50
)

// ErrInvalidLimit is a caller input error; it is raised before any request
// reaches the service.
var ErrInvalidLimit = errors.New("limit out of range")

// Client is the HTTP adapter for the memory service. Calls are not
// retried: a failed write fails the caller's operation.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logging.Get(),
	}
}

// Add stores one memory for the user and returns the record id. Metadata
// is provider-opaque; callers include at least a timestamp and type tag.
func (c *Client) Add(ctx context.Context, user, message string, metadata map[string]any) (string, error) {
	payload := map[string]any{
		"username": user,
		"message":  message,
		"metadata": metadata,
	}

	var resp struct {
		Success bool           `json:"success"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	if err := c.post(ctx, "/api/v1/memories", payload, &resp); err != nil {
		return "", fmt.Errorf("add memory for %s: %w", user, err)
	}

	id, _ := resp.Data["memory_id"].(string)
	c.logger.Info("Added memory", "user", user, "id", id)
	return id, nil
}

// Search returns up to limit records relevant to the query, ordered by
// descending relevance. limit must be within 1..MaxSearchLimit.
func (c *Client) Search(ctx context.Context, user, query string, limit int) ([]Record, error) {
	if limit < 1 || limit > MaxSearchLimit {
		return nil, fmt.Errorf("%w: search limit %d not in 1..%d", ErrInvalidLimit, limit, MaxSearchLimit)
	}

	payload := map[string]any{
		"username": user,
		"query":    query,
		"limit":    limit,
	}

	var resp struct {
		Success  bool             `json:"success"`
		Memories []map[string]any `json:"memories"`
	}
	if err := c.post(ctx, "/api/v1/memories/search", payload, &resp); err != nil {
		return nil, fmt.Errorf("search memories for %s: %w", user, err)
	}

	records := normalizeRecords(resp.Memories, c.logger)
	c.logger.Info("Found relevant memories", "user", user, "count", len(records))
	return records, nil
}

// GetAll returns up to limit records for the user in provider-defined
// order (typically recency). limit must be within 1..MaxListLimit.
func (c *Client) GetAll(ctx context.Context, user string, limit int) ([]Record, error) {
	if limit < 1 || limit > MaxListLimit {
		return nil, fmt.Errorf("%w: list limit %d not in 1..%d", ErrInvalidLimit, limit, MaxListLimit)
	}

	endpoint := "/api/v1/memories/" + url.PathEscape(user) + "?limit=" + strconv.Itoa(limit)
	var resp struct {
		Success  bool             `json:"success"`
		Memories []map[string]any `json:"memories"`
	}
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("get memories for %s: %w", user, err)
	}

	records := normalizeRecords(resp.Memories, c.logger)
	c.logger.Info("Retrieved memories", "user", user, "count", len(records))
	return records, nil
}

// DeleteAll removes every record for the user and returns how many were
// deleted.
func (c *Client) DeleteAll(ctx context.Context, user string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/api/v1/memories/"+url.PathEscape(user), nil)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	if err := c.do(req, &resp); err != nil {
		return 0, fmt.Errorf("delete memories for %s: %w", user, err)
	}

	count := 0
	if v, ok := resp.Data["deleted_count"].(float64); ok {
		count = int(v)
	}
	return count, nil
}

// Health reports whether the memory service answers its health endpoint.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("Memory service health check failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("memory service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
