package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mikey-austin/kodi_playlists/internal/ports"
)

// ErrNotFound is returned when Home Assistant does not know the entity.
var ErrNotFound = errors.New("entity not found")

// StatusError is a non-2xx reply from the REST API.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("home assistant: http %d", e.Status)
	}
	return fmt.Sprintf("home assistant: http %d: %s", e.Status, e.Body)
}

// Client calls Home Assistant's REST API with a long-lived access token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a Home Assistant REST client.
func NewClient(baseURL string, token string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("base_url required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("token required")
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// CallService posts data to /api/services/<domain>/<service>. The returned
// body is the list of states Home Assistant reports as changed.
func (c *Client) CallService(ctx context.Context, domain string, service string, data map[string]any) (json.RawMessage, error) {
	if domain == "" || service == "" {
		return nil, errors.New("domain and service required")
	}
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal service data: %w", err)
	}
	endpoint := fmt.Sprintf("%s/api/services/%s/%s", c.baseURL, url.PathEscape(domain), url.PathEscape(service))
	return c.do(ctx, http.MethodPost, endpoint, payload)
}

// EntityState reads /api/states/<entity_id>.
func (c *Client) EntityState(ctx context.Context, entityID string) (ports.EntityState, error) {
	if strings.TrimSpace(entityID) == "" {
		return ports.EntityState{}, errors.New("entity_id required")
	}
	endpoint := fmt.Sprintf("%s/api/states/%s", c.baseURL, url.PathEscape(entityID))
	raw, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
			return ports.EntityState{}, fmt.Errorf("%w: %s", ErrNotFound, entityID)
		}
		return ports.EntityState{}, err
	}
	var state ports.EntityState
	if err := json.Unmarshal(raw, &state); err != nil {
		return ports.EntityState{}, fmt.Errorf("decode state: %w", err)
	}
	return state, nil
}

func (c *Client) do(ctx context.Context, method string, endpoint string, payload []byte) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return json.RawMessage(data), nil
}
