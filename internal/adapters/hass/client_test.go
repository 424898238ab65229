package hass

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCallService(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/", "token-1", 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := client.CallService(context.Background(), "kodi", "call_method", map[string]any{
		"entity_id": "media_player.kodi",
		"method":    "Player.Open",
	})
	if err != nil {
		t.Fatalf("call service: %v", err)
	}
	if string(resp) != "[]" {
		t.Fatalf("unexpected response %s", resp)
	}
	if gotPath != "/api/services/kodi/call_method" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer token-1" {
		t.Fatalf("unexpected auth %q", gotAuth)
	}
	if gotBody["method"] != "Player.Open" {
		t.Fatalf("unexpected body %v", gotBody)
	}
}

func TestCallServiceStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "400: Bad Request", http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "token", 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.CallService(context.Background(), "kodi", "call_method", nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusBadRequest {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestEntityState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/states/media_player.kodi":
			_, _ = w.Write([]byte(`{"entity_id":"media_player.kodi","state":"playing","attributes":{"media_title":"Paranoid"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "token", 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	state, err := client.EntityState(context.Background(), "media_player.kodi")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.State != "playing" || state.Attributes["media_title"] != "Paranoid" {
		t.Fatalf("unexpected state %+v", state)
	}

	_, err = client.EntityState(context.Background(), "media_player.gone")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient("http://ha.local:8123", "", 0); err == nil {
		t.Fatalf("expected token error")
	}
}
