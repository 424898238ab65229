package core

import (
	"context"
	"testing"

	"github.com/mikey-austin/kodi_playlists/pkg/kp"
)

type fakeBroker struct {
	presence []kp.Presence
}

func (f fakeBroker) ReplyTopic() string { return "" }
func (f fakeBroker) PublishCommand(ctx context.Context, nodeID string, cmd kp.CommandEnvelope) (kp.ReplyEnvelope, error) {
	return kp.ReplyEnvelope{}, nil
}
func (f fakeBroker) ListPresence(ctx context.Context) ([]kp.Presence, error) { return f.presence, nil }
func (f fakeBroker) GetCardState(ctx context.Context, nodeID string) (kp.CardState, error) {
	return kp.CardState{}, nil
}

func TestResolverAlias(t *testing.T) {
	presence := []kp.Presence{{NodeID: "kp:card:living_room", Kind: kp.KindCard, Name: "Living Room"}}
	resolver := Resolver{
		Presence: fakeBroker{presence: presence},
		Config: Config{
			Aliases: map[string]string{"lr": "kp:card:living_room"},
		},
	}
	got, err := resolver.ResolveCard(context.Background(), "lr")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.NodeID != "kp:card:living_room" {
		t.Fatalf("expected alias resolution")
	}
}

func TestResolverCardID(t *testing.T) {
	presence := []kp.Presence{
		{NodeID: "kp:card:living_room", Kind: kp.KindCard, Name: "Playlists"},
		{NodeID: "kp:card:bedroom", Kind: kp.KindCard, Name: "Playlists"},
	}
	resolver := Resolver{Presence: fakeBroker{presence: presence}}
	got, err := resolver.ResolveCard(context.Background(), "bedroom")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.NodeID != "kp:card:bedroom" {
		t.Fatalf("unexpected card %s", got.NodeID)
	}

	_, err = resolver.ResolveCard(context.Background(), "Playlists")
	if ExitCode(err) != ExitUsage {
		t.Fatalf("expected ambiguous usage error, got %v", err)
	}
	_, err = resolver.ResolveCard(context.Background(), "")
	if ExitCode(err) != ExitUsage {
		t.Fatalf("expected selector required, got %v", err)
	}
}

func TestResolverDefaults(t *testing.T) {
	presence := []kp.Presence{
		{NodeID: "kp:card:den", Kind: kp.KindCard, Name: "Den"},
		{NodeID: "other:node", Kind: "renderer", Name: "Den"},
	}
	resolver := Resolver{Presence: fakeBroker{presence: presence}}
	got, err := resolver.ResolveCard(context.Background(), "")
	if err != nil || got.NodeID != "kp:card:den" {
		t.Fatalf("expected single card to be picked, got %v %v", got, err)
	}

	resolver.Config.DefaultCard = "kp:card:missing"
	_, err = resolver.ResolveCard(context.Background(), "")
	if ExitCode(err) != ExitNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
