package card

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/mikey-austin/kodi_playlists/internal/ports"
)

type recordedCall struct {
	Domain  string
	Service string
	Data    map[string]any
}

func (c recordedCall) method() string {
	m, _ := c.Data["method"].(string)
	return m
}

// fakeCaller records every call. fail decides per call whether to reject it.
type fakeCaller struct {
	mu    sync.Mutex
	calls []recordedCall
	fail  func(data map[string]any) error
}

func (f *fakeCaller) CallService(_ context.Context, domain string, service string, data map[string]any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make(map[string]any, len(data))
	for k, v := range data {
		copied[k] = v
	}
	f.calls = append(f.calls, recordedCall{Domain: domain, Service: service, Data: copied})
	if f.fail != nil {
		if err := f.fail(data); err != nil {
			return nil, err
		}
	}
	return json.RawMessage(`{"result":"OK"}`), nil
}

func (f *fakeCaller) recorded() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeCaller) methods() []string {
	calls := f.recorded()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.method())
	}
	return out
}

func failMethod(method string) func(map[string]any) error {
	return func(data map[string]any) error {
		if data["method"] == method {
			return errors.New("player not active")
		}
		return nil
	}
}

type fakeStates struct {
	state ports.EntityState
	err   error
}

func (f fakeStates) EntityState(context.Context, string) (ports.EntityState, error) {
	return f.state, f.err
}

type notifications struct {
	mu  sync.Mutex
	all []ports.Notification
}

func (n *notifications) Notify(_ context.Context, note ports.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.all = append(n.all, note)
}

func (n *notifications) list() []ports.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]ports.Notification, len(n.all))
	copy(out, n.all)
	return out
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }
