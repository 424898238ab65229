package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/mikey-austin/kodi_playlists/internal/adapters/cardfile"
	"github.com/mikey-austin/kodi_playlists/internal/card"
	"github.com/mikey-austin/kodi_playlists/internal/ports"
	"github.com/mikey-austin/kodi_playlists/pkg/kp"
)

// Service orchestrates kp CLI use cases.
type Service struct {
	Broker   ports.Broker
	Resolver Resolver
	Clock    clockwork.Clock
	IDGen    ports.IDGen
	Config   Config
}

// ListCards returns the cards announcing presence.
func (s Service) ListCards(ctx context.Context) (CardsResult, error) {
	nodes, err := s.Broker.ListPresence(ctx)
	if err != nil {
		return CardsResult{}, WrapError(ExitRuntime, "list cards", err)
	}
	return CardsResult{Cards: filterPresenceByKind(nodes, kp.KindCard)}, nil
}

// Entries lists the playable entries of a card.
func (s Service) Entries(ctx context.Context, selector string) (EntriesResult, error) {
	target, err := s.Resolver.ResolveCard(ctx, selector)
	if err != nil {
		return EntriesResult{}, err
	}
	var out kp.EntriesReply
	if err := s.request(ctx, target.NodeID, kp.CmdEntries, struct{}{}, &out); err != nil {
		return EntriesResult{}, err
	}
	return EntriesResult{Card: target, Entries: out}, nil
}

// Play starts an entry given by index or name.
func (s Service) Play(ctx context.Context, selector string, entry string) (PlayResult, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return PlayResult{}, UsageError("entry index or name required")
	}
	target, err := s.Resolver.ResolveCard(ctx, selector)
	if err != nil {
		return PlayResult{}, err
	}

	body := kp.PlayBody{Name: entry}
	if index, err := strconv.Atoi(entry); err == nil {
		body = kp.PlayBody{Index: &index}
	}
	if err := s.request(ctx, target.NodeID, kp.CmdPlay, body, nil); err != nil {
		return PlayResult{}, err
	}
	return PlayResult{Card: target, Target: entry}, nil
}

// Preview returns the request an entry would send without sending it.
func (s Service) Preview(ctx context.Context, selector string, index int) (PreviewResult, error) {
	target, err := s.Resolver.ResolveCard(ctx, selector)
	if err != nil {
		return PreviewResult{}, err
	}
	var call kp.ServiceCall
	if err := s.request(ctx, target.NodeID, kp.CmdPreview, kp.PreviewBody{Index: index}, &call); err != nil {
		return PreviewResult{}, err
	}
	return PreviewResult{Card: target, Index: index, Call: call}, nil
}

// System sends reboot or shutdown to the card's device.
func (s Service) System(ctx context.Context, selector string, action string) (SystemResult, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	if action != "reboot" && action != "shutdown" {
		return SystemResult{}, UsageError("action must be reboot or shutdown")
	}
	target, err := s.Resolver.ResolveCard(ctx, selector)
	if err != nil {
		return SystemResult{}, err
	}
	if err := s.request(ctx, target.NodeID, kp.CmdSystem, kp.SystemBody{Action: action}, nil); err != nil {
		return SystemResult{}, err
	}
	return SystemResult{Card: target, Action: action}, nil
}

// Debug returns the request history of a card.
func (s Service) Debug(ctx context.Context, selector string) (DebugResult, error) {
	target, err := s.Resolver.ResolveCard(ctx, selector)
	if err != nil {
		return DebugResult{}, err
	}
	var out kp.DebugReply
	if err := s.request(ctx, target.NodeID, kp.CmdDebug, struct{}{}, &out); err != nil {
		return DebugResult{}, err
	}
	return DebugResult{Card: target, Debug: out}, nil
}

// Status returns the retained state of a card.
func (s Service) Status(ctx context.Context, selector string) (StatusResult, error) {
	target, err := s.Resolver.ResolveCard(ctx, selector)
	if err != nil {
		return StatusResult{}, err
	}
	state, err := s.Broker.GetCardState(ctx, target.NodeID)
	if err != nil {
		return StatusResult{}, WrapError(ExitRuntime, "get card state", err)
	}
	return StatusResult{Card: target, State: state}, nil
}

// Reload asks the daemon to re-read the card file.
func (s Service) Reload(ctx context.Context, selector string) (ReloadResult, error) {
	target, err := s.Resolver.ResolveCard(ctx, selector)
	if err != nil {
		return ReloadResult{}, err
	}
	var out kp.ReloadReply
	if err := s.request(ctx, target.NodeID, kp.CmdReload, struct{}{}, &out); err != nil {
		return ReloadResult{}, err
	}
	return ReloadResult{Card: target, Reload: out}, nil
}

func (s Service) request(ctx context.Context, nodeID string, cmdType string, body any, out any) error {
	cmd, err := kp.NewCommand(cmdType, body)
	if err != nil {
		return WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd)

	reply, err := s.Broker.PublishCommand(ctx, nodeID, cmd)
	if err != nil {
		return WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(reply.Body, out); err != nil {
		return WrapError(ExitRuntime, "decode "+cmdType+" reply", err)
	}
	return nil
}

func (s Service) decorateCommand(cmd kp.CommandEnvelope) kp.CommandEnvelope {
	cmd.ID = s.IDGen.NewID()
	cmd.TS = s.Clock.Now().Unix()
	cmd.From = s.Config.Identity
	cmd.ReplyTo = s.Broker.ReplyTopic()
	return cmd
}

// NormalizeFile loads a card file and returns its canonical form. When
// rewrite is set the canonical form is written back to the file.
func NormalizeFile(fs afero.Fs, path string, rewrite bool) (NormalizeResult, error) {
	cfg, err := loadCardFile(fs, path)
	if err != nil {
		return NormalizeResult{}, err
	}
	entries := card.Normalize(cfg)

	canonical := card.Denormalize(entries)
	canonical.Entity = cfg.Entity
	canonical.Name = cfg.Name
	canonical.Icon = cfg.Icon
	canonical.Debug = cfg.Debug
	canonical.ShowNowPlaying = cfg.ShowNowPlaying

	if rewrite {
		if err := cardfile.Save(fs, path, canonical); err != nil {
			return NormalizeResult{}, WrapError(ExitRuntime, "write card file", err)
		}
	}
	return NormalizeResult{
		Path:    path,
		Entries: card.EntryViews(entries),
		Config:  canonical,
		Hint:    card.ConfigHint(cfg),
	}, nil
}

// RequestFile builds the request the entry at index of a card file would
// send. entity overrides the file's entity when set.
func RequestFile(fs afero.Fs, path string, index int, entity string) (RequestResult, error) {
	cfg, err := loadCardFile(fs, path)
	if err != nil {
		return RequestResult{}, err
	}
	if strings.TrimSpace(entity) != "" {
		cfg.Entity = entity
	}
	if hint := card.ConfigHint(cfg); hint != "" {
		return RequestResult{}, UsageError("%s", hint)
	}
	entries := card.Normalize(cfg)
	if index < 0 || index >= len(entries) {
		return RequestResult{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("no entry %d (card has %d)", index, len(entries))}
	}
	call := card.BuildRequest(entries[index], cfg.Entity)
	return RequestResult{Path: path, Index: index, Call: card.CallView(call)}, nil
}

func loadCardFile(fs afero.Fs, path string) (card.RawConfig, error) {
	cfg, err := cardfile.Load(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return card.RawConfig{}, &CLIError{Code: ExitNotFound, Msg: "card file not found: " + path}
		}
		return card.RawConfig{}, WrapError(ExitUsage, "load card file", err)
	}
	return cfg, nil
}
