package cardnode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/mikey-austin/kodi_playlists/internal/adapters/cardfile"
	"github.com/mikey-austin/kodi_playlists/internal/adapters/mqttserver"
	"github.com/mikey-austin/kodi_playlists/internal/card"
	"github.com/mikey-austin/kodi_playlists/internal/metrics"
	"github.com/mikey-austin/kodi_playlists/internal/ports"
	"github.com/mikey-austin/kodi_playlists/pkg/kp"
)

// Refresh interval bounds. The dashboard polls somewhere in this range.
const (
	DefaultRefresh = 15 * time.Second
	MinRefresh     = 10 * time.Second
	MaxRefresh     = 30 * time.Second
)

const commandTimeout = 10 * time.Second

// Transport is the subset of the MQTT client the module needs.
type Transport interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler mqttserver.Handler) error
	Unsubscribe(topic string) error
}

// Config configures a card node.
type Config struct {
	NodeID    string
	TopicBase string
	File      string
	Fs        afero.Fs
	Watch     bool
	Refresh   time.Duration
}

// Module hosts one card and serves it over MQTT.
type Module struct {
	log      *zap.Logger
	client   Transport
	card     *card.Card
	config   Config
	clock    clockwork.Clock
	cmdTopic string

	reloadMu sync.Mutex
}

// NewModule loads the card file and builds the card. The card's
// notifications are published on the node's event topic, then passed to
// opts.Notifier if set.
func NewModule(log *zap.Logger, client Transport, cfg Config, opts card.Options) (*Module, error) {
	if strings.TrimSpace(opts.ID) == "" {
		return nil, errors.New("card id required")
	}
	if strings.TrimSpace(cfg.File) == "" {
		return nil, errors.New("card file required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.NodeID) == "" {
		cfg.NodeID = kp.CardNodeID(opts.ID)
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = kp.BaseTopic
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	cfg.Refresh = refreshInterval(cfg.Refresh)
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = log
	}

	m := &Module{
		log:      log,
		client:   client,
		config:   cfg,
		clock:    opts.Clock,
		cmdTopic: kp.TopicCommands(cfg.TopicBase, cfg.NodeID),
	}
	downstream := opts.Notifier
	opts.Notifier = ports.NotifierFunc(func(ctx context.Context, n ports.Notification) {
		m.publishEvent(n)
		if downstream != nil {
			downstream.Notify(ctx, n)
		}
	})
	m.card = card.New(opts)

	if _, err := m.reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Card returns the hosted card.
func (m *Module) Card() *card.Card {
	return m.card
}

// NodeID returns the node id the card is published under.
func (m *Module) NodeID() string {
	return m.config.NodeID
}

// Run serves commands until ctx is done.
func (m *Module) Run(ctx context.Context) error {
	m.card.Attach(ctx)
	defer m.card.Detach()

	handler := func(_ string, payload []byte) {
		m.handleMessage(ctx, payload)
	}
	if err := m.client.Subscribe(m.cmdTopic, 1, handler); err != nil {
		return err
	}
	defer m.client.Unsubscribe(m.cmdTopic)

	if err := m.publishPresence(); err != nil {
		return err
	}
	defer m.clearPresence()

	if m.config.Watch {
		go func() {
			err := cardfile.Watch(ctx, m.log, m.config.File, func() {
				if _, err := m.reload(); err != nil {
					m.log.Warn("card reload failed", zap.Error(err))
				}
			})
			if err != nil {
				m.log.Warn("card watch stopped", zap.Error(err))
			}
		}()
	}

	m.refresh(ctx)
	ticker := m.clock.NewTicker(m.config.Refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			m.refresh(ctx)
		}
	}
}

func refreshInterval(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultRefresh
	case d < MinRefresh:
		return MinRefresh
	case d > MaxRefresh:
		return MaxRefresh
	default:
		return d
	}
}

func (m *Module) reload() (kp.ReloadReply, error) {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	cfg, err := cardfile.Load(m.config.Fs, m.config.File)
	metrics.CardReloadsTotal.WithLabelValues(m.card.ID(), metrics.StatusOf(err)).Inc()
	if err != nil {
		return kp.ReloadReply{}, err
	}
	m.card.SetConfig(cfg)

	entries := len(m.card.Entries())
	metrics.CardEntries.WithLabelValues(m.card.ID()).Set(float64(entries))
	m.log.Info("card loaded", zap.String("file", m.config.File), zap.Int("entries", entries))
	m.publishState()
	return kp.ReloadReply{Entries: entries, Hint: m.card.Hint()}, nil
}

func (m *Module) refresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, m.config.Refresh)
	defer cancel()
	m.card.Refresh(refreshCtx)
	m.publishState()
}

func (m *Module) publishPresence() error {
	presence := kp.Presence{
		NodeID: m.config.NodeID,
		Kind:   kp.KindCard,
		Name:   m.card.Title(),
		Caps: map[string]any{
			"commands": []string{kp.CmdEntries, kp.CmdPlay, kp.CmdPreview, kp.CmdSystem, kp.CmdDebug, kp.CmdState, kp.CmdReload},
		},
		TS: m.clock.Now().Unix(),
	}
	payload, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return m.client.Publish(kp.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

func (m *Module) clearPresence() {
	if err := m.client.Publish(kp.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, []byte{}); err != nil {
		m.log.Debug("clear presence", zap.Error(err))
	}
}

func (m *Module) publishState() {
	if m.client == nil {
		return
	}
	payload, err := json.Marshal(card.StateView(m.card))
	if err != nil {
		m.log.Error("marshal state", zap.Error(err))
		return
	}
	if err := m.client.Publish(kp.TopicState(m.config.TopicBase, m.config.NodeID), 1, true, payload); err != nil {
		m.log.Warn("publish state", zap.Error(err))
	}
}

func (m *Module) publishEvent(n ports.Notification) {
	if n.Error {
		m.log.Info("card notification", zap.String("message", n.Message), zap.Bool("error", true))
	} else {
		m.log.Debug("card notification", zap.String("message", n.Message))
	}
	if m.client == nil {
		return
	}
	payload, err := json.Marshal(kp.Event{
		Type:    kp.EventNotification,
		TS:      m.clock.Now().Unix(),
		Message: n.Message,
		Error:   n.Error,
	})
	if err != nil {
		return
	}
	if err := m.client.Publish(kp.TopicEvents(m.config.TopicBase, m.config.NodeID), 0, false, payload); err != nil {
		m.log.Warn("publish event", zap.Error(err))
	}
}

func (m *Module) handleMessage(ctx context.Context, payload []byte) {
	var cmd kp.CommandEnvelope
	if err := json.Unmarshal(payload, &cmd); err != nil {
		m.log.Warn("invalid command", zap.Error(err))
		return
	}

	var reply kp.ReplyEnvelope
	if err := kp.ValidateCommandEnvelope(cmd); err != nil {
		reply = errorReply(cmd, kp.CodeInvalid, err.Error())
	} else {
		cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
		reply = m.dispatch(cmdCtx, cmd)
		cancel()
	}
	metrics.CommandsTotal.WithLabelValues(cmd.Type, replyStatus(reply)).Inc()

	if cmd.ReplyTo == "" {
		return
	}
	out, err := json.Marshal(reply)
	if err != nil {
		m.log.Error("marshal reply", zap.Error(err))
		return
	}
	if err := m.client.Publish(cmd.ReplyTo, 1, false, out); err != nil {
		m.log.Error("publish reply", zap.Error(err))
	}
}

func (m *Module) dispatch(ctx context.Context, cmd kp.CommandEnvelope) kp.ReplyEnvelope {
	reply := kp.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "ack",
		OK:   true,
		TS:   m.clock.Now().Unix(),
	}

	switch cmd.Type {
	case kp.CmdEntries:
		return withBody(reply, kp.EntriesReply{
			Title:   m.card.Title(),
			Hint:    m.card.Hint(),
			Entries: card.EntryViews(m.card.Entries()),
		})
	case kp.CmdPlay:
		return m.play(ctx, cmd, reply)
	case kp.CmdPreview:
		var body kp.PreviewBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, kp.CodeInvalid, "invalid body")
		}
		call, err := m.card.Preview(body.Index)
		if err != nil {
			return replyForError(cmd, err)
		}
		return withBody(reply, card.CallView(call))
	case kp.CmdSystem:
		var body kp.SystemBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, kp.CodeInvalid, "invalid body")
		}
		if err := m.card.System(ctx, body.Action); err != nil {
			return replyForError(cmd, err)
		}
		return reply
	case kp.CmdDebug:
		return withBody(reply, kp.DebugReply{
			Enabled: m.card.Config().DebugEnabled(),
			Records: card.DebugViews(m.card.DebugHistory()),
		})
	case kp.CmdState:
		return withBody(reply, card.StateView(m.card))
	case kp.CmdReload:
		out, err := m.reload()
		if err != nil {
			return errorReply(cmd, kp.CodeInvalid, err.Error())
		}
		return withBody(reply, out)
	default:
		return errorReply(cmd, kp.CodeInvalid, "unsupported command")
	}
}

func (m *Module) play(ctx context.Context, cmd kp.CommandEnvelope, reply kp.ReplyEnvelope) kp.ReplyEnvelope {
	var body kp.PlayBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, kp.CodeInvalid, "invalid body")
	}

	var err error
	switch {
	case body.Index != nil:
		err = m.card.Play(ctx, *body.Index)
	case strings.TrimSpace(body.Name) != "":
		err = m.card.PlayByName(ctx, body.Name)
	default:
		return errorReply(cmd, kp.CodeInvalid, "index or name required")
	}
	metrics.CardPlaysTotal.WithLabelValues(m.card.ID(), metrics.StatusOf(err)).Inc()
	if err != nil {
		return replyForError(cmd, err)
	}
	return reply
}

func withBody(reply kp.ReplyEnvelope, body any) kp.ReplyEnvelope {
	payload, err := json.Marshal(body)
	if err != nil {
		return errorReply(kp.CommandEnvelope{ID: reply.ID}, kp.CodeInvalid, fmt.Sprintf("marshal reply: %v", err))
	}
	reply.Body = payload
	return reply
}

// replyForError maps card errors onto protocol error codes.
func replyForError(cmd kp.CommandEnvelope, err error) kp.ReplyEnvelope {
	switch {
	case errors.Is(err, card.ErrNoEntry):
		return errorReply(cmd, kp.CodeNotFound, err.Error())
	case errors.Is(err, card.ErrBusy):
		return errorReply(cmd, kp.CodeConflict, err.Error())
	case errors.Is(err, card.ErrUnknownAction):
		return errorReply(cmd, kp.CodeInvalid, err.Error())
	default:
		return errorReply(cmd, kp.CodeUnavailable, err.Error())
	}
}

func replyStatus(reply kp.ReplyEnvelope) string {
	if reply.OK {
		return metrics.StatusOK
	}
	return strings.ToLower(reply.Err.Code)
}

func errorReply(cmd kp.CommandEnvelope, code string, message string) kp.ReplyEnvelope {
	return kp.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "error",
		OK:   false,
		TS:   time.Now().Unix(),
		Err: &kp.ReplyError{
			Code:    code,
			Message: message,
		},
	}
}
