package core

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/mikey-austin/kodi_playlists/internal/adapters/cardfile"
	"github.com/mikey-austin/kodi_playlists/pkg/kp"
)

type stubIDGen struct{}

func (stubIDGen) NewID() string { return "id-1" }

type stubBroker struct {
	presence   []kp.Presence
	replies    map[string]kp.ReplyEnvelope
	lastNode   string
	lastCmd    kp.CommandEnvelope
	replyTopic string
	state      kp.CardState
}

func (s *stubBroker) ReplyTopic() string { return s.replyTopic }

func (s *stubBroker) PublishCommand(ctx context.Context, nodeID string, cmd kp.CommandEnvelope) (kp.ReplyEnvelope, error) {
	s.lastNode = nodeID
	s.lastCmd = cmd
	if reply, ok := s.replies[cmd.Type]; ok {
		return reply, nil
	}
	return kp.ReplyEnvelope{ID: cmd.ID, Type: "ack", OK: true, TS: 101}, nil
}

func (s *stubBroker) ListPresence(ctx context.Context) ([]kp.Presence, error) {
	return s.presence, nil
}

func (s *stubBroker) GetCardState(ctx context.Context, nodeID string) (kp.CardState, error) {
	return s.state, nil
}

var livingRoom = kp.Presence{NodeID: "kp:card:living_room", Kind: kp.KindCard, Name: "Living Room"}

func newService(broker *stubBroker) Service {
	cfg := Config{Identity: "kp-test"}
	return Service{
		Broker:   broker,
		Resolver: Resolver{Presence: broker, Config: cfg},
		Clock:    clockwork.NewFakeClockAt(time.Unix(100, 0)),
		IDGen:    stubIDGen{},
		Config:   cfg,
	}
}

func mustJSON(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func TestPlayByIndexAndName(t *testing.T) {
	broker := &stubBroker{presence: []kp.Presence{livingRoom}, replyTopic: "kp/v1/reply/test"}
	service := newService(broker)

	if _, err := service.Play(context.Background(), "living_room", "1"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if broker.lastNode != "kp:card:living_room" || broker.lastCmd.Type != kp.CmdPlay {
		t.Fatalf("unexpected command: %s %s", broker.lastNode, broker.lastCmd.Type)
	}
	if broker.lastCmd.ID != "id-1" || broker.lastCmd.TS != 100 || broker.lastCmd.From != "kp-test" || broker.lastCmd.ReplyTo != "kp/v1/reply/test" {
		t.Fatalf("command not decorated: %+v", broker.lastCmd)
	}
	var body kp.PlayBody
	if err := json.Unmarshal(broker.lastCmd.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Index == nil || *body.Index != 1 {
		t.Fatalf("expected index body, got %+v", body)
	}

	if _, err := service.Play(context.Background(), "", "Rock"); err != nil {
		t.Fatalf("play by name: %v", err)
	}
	body = kp.PlayBody{}
	_ = json.Unmarshal(broker.lastCmd.Body, &body)
	if body.Index != nil || body.Name != "Rock" {
		t.Fatalf("expected name body, got %+v", body)
	}

	if _, err := service.Play(context.Background(), "", " "); ExitCode(err) != ExitUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestReplyErrorsMapToExitCodes(t *testing.T) {
	broker := &stubBroker{
		presence: []kp.Presence{livingRoom},
		replies: map[string]kp.ReplyEnvelope{
			kp.CmdPlay:    {OK: false, Err: &kp.ReplyError{Code: kp.CodeConflict, Message: "busy"}},
			kp.CmdPreview: {OK: false, Err: &kp.ReplyError{Code: kp.CodeNotFound, Message: "no such entry"}},
		},
	}
	service := newService(broker)

	_, err := service.Play(context.Background(), "", "0")
	if ExitCode(err) != ExitConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	_, err = service.Preview(context.Background(), "", 9)
	if ExitCode(err) != ExitNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEntriesDecodesReply(t *testing.T) {
	broker := &stubBroker{
		presence: []kp.Presence{livingRoom},
		replies: map[string]kp.ReplyEnvelope{
			kp.CmdEntries: {OK: true, Body: mustJSON(kp.EntriesReply{
				Title:   "Kodi Playlists",
				Entries: []kp.EntryView{{Index: 0, Name: "Rock", PlaylistType: "music"}},
			})},
		},
	}
	service := newService(broker)

	result, err := service.Entries(context.Background(), "")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if result.Entries.Title != "Kodi Playlists" || len(result.Entries.Entries) != 1 {
		t.Fatalf("unexpected entries: %+v", result.Entries)
	}
}

func TestSystemValidatesAction(t *testing.T) {
	broker := &stubBroker{presence: []kp.Presence{livingRoom}}
	service := newService(broker)

	if _, err := service.System(context.Background(), "", "hibernate"); ExitCode(err) != ExitUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
	if broker.lastCmd.Type != "" {
		t.Fatalf("invalid action must not be sent")
	}
	result, err := service.System(context.Background(), "", "Reboot")
	if err != nil || result.Action != "reboot" {
		t.Fatalf("system: %v %+v", err, result)
	}
}

func TestStatusReadsRetainedState(t *testing.T) {
	broker := &stubBroker{presence: []kp.Presence{livingRoom}, state: kp.CardState{State: "playing", NowPlaying: "Paranoid"}}
	service := newService(broker)

	result, err := service.Status(context.Background(), "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if result.State.NowPlaying != "Paranoid" {
		t.Fatalf("unexpected state: %+v", result.State)
	}
}

const legacyCard = `entity: media_player.kodi
name: Evening
playlist: Evening.xsp
repeat_all: true
`

func TestNormalizeFileRewrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/card.yaml", []byte(legacyCard), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := NormalizeFile(fs, "/card.yaml", true)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].RepeatMode != "all" || result.Hint != "" {
		t.Fatalf("unexpected result: %+v", result)
	}

	cfg, err := cardfile.Load(fs, "/card.yaml")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(cfg.Playlists) != 1 || cfg.RepeatAll != nil {
		t.Fatalf("expected canonical playlists form, got %+v", cfg)
	}
	if cfg.Playlists[0].Playlist != "special://profile/playlists/mixed/Evening.xsp" {
		t.Fatalf("unexpected playlist path %q", cfg.Playlists[0].Playlist)
	}
}

func TestRequestFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/card.yaml", []byte(legacyCard), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := RequestFile(fs, "/card.yaml", 0, "media_player.den")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if result.Call.Data["entity_id"] != "media_player.den" || result.Call.Data["method"] != "Player.Open" {
		t.Fatalf("unexpected call: %+v", result.Call)
	}

	if _, err := RequestFile(fs, "/card.yaml", 3, ""); ExitCode(err) != ExitNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := RequestFile(fs, "/missing.yaml", 0, ""); ExitCode(err) != ExitNotFound {
		t.Fatalf("expected missing file, got %v", err)
	}
}
