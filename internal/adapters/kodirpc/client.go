package kodirpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mikey-austin/kodi_playlists/internal/ports"
)

const (
	domainKodi        = "kodi"
	serviceCallMethod = "call_method"
)

// ErrUnsupportedService is returned for anything but kodi.call_method.
var ErrUnsupportedService = errors.New("unsupported service")

// Client talks to Kodi's JSON-RPC endpoint directly, without Home Assistant
// in between.
type Client struct {
	baseURL  string
	http     *http.Client
	username string
	password string
	nextID   atomic.Int64
}

// NewClient creates a Kodi JSON-RPC client.
func NewClient(baseURL string, username string, password string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("base_url required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(parsed.Path, "/jsonrpc") {
		parsed.Path = path.Join(parsed.Path, "/jsonrpc")
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:  parsed.String(),
		http:     &http.Client{Timeout: timeout},
		username: username,
		password: password,
	}, nil
}

// CallService executes a kodi.call_method service call as a JSON-RPC
// request. entity_id and method are routing fields and are not sent.
func (c *Client) CallService(ctx context.Context, domain string, service string, data map[string]any) (json.RawMessage, error) {
	if domain != domainKodi || service != serviceCallMethod {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnsupportedService, domain, service)
	}
	method, _ := data["method"].(string)
	if method == "" {
		return nil, errors.New("method required")
	}
	params := make(map[string]any, len(data))
	for k, v := range data {
		if k == "entity_id" || k == "method" {
			continue
		}
		params[k] = v
	}
	if len(params) == 0 {
		return c.rpc(ctx, method, nil)
	}
	return c.rpc(ctx, method, params)
}

// EntityState reports playing, paused or idle along with the current item.
// The entity id is ignored; a client addresses a single device.
func (c *Client) EntityState(ctx context.Context, entityID string) (ports.EntityState, error) {
	state := ports.EntityState{EntityID: entityID, State: "idle", Attributes: map[string]any{}}

	raw, err := c.rpc(ctx, "Player.GetActivePlayers", nil)
	if err != nil {
		return ports.EntityState{}, err
	}
	var players []activePlayer
	if err := json.Unmarshal(raw, &players); err != nil {
		return ports.EntityState{}, err
	}
	if len(players) == 0 {
		return state, nil
	}
	player := players[0]

	raw, err = c.rpc(ctx, "Player.GetProperties", map[string]any{
		"playerid":   player.PlayerID,
		"properties": []string{"speed", "time", "totaltime"},
	})
	if err != nil {
		return ports.EntityState{}, err
	}
	var props playerProperties
	if err := json.Unmarshal(raw, &props); err != nil {
		return ports.EntityState{}, err
	}
	state.State = "playing"
	if props.Speed == 0 {
		state.State = "paused"
	}
	state.Attributes["media_position"] = fromTimeObject(props.Time) / 1000
	state.Attributes["media_duration"] = fromTimeObject(props.TotalTime) / 1000
	state.Attributes["media_content_type"] = player.Type

	raw, err = c.rpc(ctx, "Player.GetItem", map[string]any{
		"playerid":   player.PlayerID,
		"properties": []string{"title", "artist", "showtitle"},
	})
	if err != nil {
		return state, nil
	}
	var item itemReply
	if err := json.Unmarshal(raw, &item); err != nil {
		return state, nil
	}
	title := item.Item.Title
	if title == "" {
		title = item.Item.Label
	}
	state.Attributes["media_title"] = title
	if len(item.Item.Artist) > 0 {
		state.Attributes["media_artist"] = strings.Join(item.Item.Artist, ", ")
	}
	if item.Item.ShowTitle != "" {
		state.Attributes["media_series_title"] = item.Item.ShowTitle
	}
	return state, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type activePlayer struct {
	PlayerID int    `json:"playerid"`
	Type     string `json:"type"`
}

type playerProperties struct {
	Speed     int        `json:"speed"`
	Time      timeObject `json:"time"`
	TotalTime timeObject `json:"totaltime"`
}

type itemReply struct {
	Item struct {
		Label     string   `json:"label"`
		Title     string   `json:"title"`
		Artist    []string `json:"artist"`
		ShowTitle string   `json:"showtitle"`
	} `json:"item"`
}

type timeObject struct {
	Hours        int `json:"hours"`
	Minutes      int `json:"minutes"`
	Seconds      int `json:"seconds"`
	Milliseconds int `json:"milliseconds"`
}

func (c *Client) rpc(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.username != "" || c.password != "" {
		httpReq.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("kodi error: %s", strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return nil, err
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("kodi error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func fromTimeObject(obj timeObject) int64 {
	return int64(obj.Hours)*3600*1000 +
		int64(obj.Minutes)*60*1000 +
		int64(obj.Seconds)*1000 +
		int64(obj.Milliseconds)
}
