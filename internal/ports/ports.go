package ports

import (
	"context"
	"encoding/json"

	"github.com/mikey-austin/kodi_playlists/pkg/kp"
)

// ServiceCaller performs a Home Assistant style service call.
type ServiceCaller interface {
	CallService(ctx context.Context, domain string, service string, data map[string]any) (json.RawMessage, error)
}

// EntityState is the state of one entity as seen by the frontend.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastUpdated string         `json:"last_updated,omitempty"`
}

// StateReader looks up entity states.
type StateReader interface {
	EntityState(ctx context.Context, entityID string) (EntityState, error)
}

// Notification is an advisory, human readable status message.
type Notification struct {
	Card    string `json:"card"`
	Message string `json:"message"`
	Error   bool   `json:"error,omitempty"`
}

// Notifier delivers notifications to whoever is watching a card.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Broker publishes card commands and reads retained presence and state.
type Broker interface {
	ReplyTopic() string
	PublishCommand(ctx context.Context, nodeID string, cmd kp.CommandEnvelope) (kp.ReplyEnvelope, error)
	ListPresence(ctx context.Context) ([]kp.Presence, error)
	GetCardState(ctx context.Context, nodeID string) (kp.CardState, error)
}

// IDGen returns unique correlation IDs.
type IDGen interface {
	NewID() string
}
