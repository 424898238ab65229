package card

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mikey-austin/kodi_playlists/internal/ports"
)

var (
	// ErrIncomplete means the card has no entity or no playable entries.
	ErrIncomplete = errors.New("card configuration incomplete")
	// ErrNoEntry means the requested entry does not exist.
	ErrNoEntry = errors.New("no such entry")
	// ErrBusy means a playback sequence for the entity is still running.
	ErrBusy = errors.New("playback already in progress")
)

const (
	hintEntity    = "Set `entity` to a Kodi media_player entity."
	hintPlaylists = "Set `playlist` or `playlists` to at least one playable entry."
)

// Options configures a Card.
type Options struct {
	ID       string
	Caller   ports.ServiceCaller
	States   ports.StateReader
	Notifier ports.Notifier
	Clock    clockwork.Clock
	Logger   *zap.Logger
	Timing   Timing
	// Exclusive rejects a play request while an earlier one for the same
	// entity is still applying its post-play commands.
	Exclusive bool
	// Guard is shared by cards that must not overlap on an entity. An
	// exclusive card without one gets a private guard.
	Guard *Guard
}

// Snapshot is the last known entity state.
type Snapshot struct {
	EntityID   string    `json:"entityId"`
	State      string    `json:"state"`
	NowPlaying string    `json:"nowPlaying,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Card is one playlist card bound to a Kodi entity.
type Card struct {
	id        string
	caller    ports.ServiceCaller
	states    ports.StateReader
	notifier  ports.Notifier
	clock     clockwork.Clock
	log       *zap.Logger
	seq       *Sequencer
	guard     *Guard

	mu       sync.RWMutex
	cfg      RawConfig
	entries  []Entry
	debug    *DebugRing
	snapshot Snapshot

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// New creates a detached card with an empty configuration.
func New(opts Options) *Card {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = ports.NotifierFunc(func(context.Context, ports.Notification) {})
	}
	if opts.Timing == (Timing{}) {
		opts.Timing = DefaultTiming()
	}
	if opts.Exclusive && opts.Guard == nil {
		opts.Guard = NewGuard()
	}
	if !opts.Exclusive {
		opts.Guard = nil
	}
	base, stop := context.WithCancel(context.Background())
	return &Card{
		id:        opts.ID,
		caller:    opts.Caller,
		states:    opts.States,
		notifier:  opts.Notifier,
		clock:     opts.Clock,
		log:       opts.Logger,
		seq:       NewSequencer(opts.Caller, opts.Clock, opts.Logger, opts.Timing),
		guard:     opts.Guard,
		entries:   []Entry{},
		snapshot:  Snapshot{State: "unavailable"},
		base:      base,
		stop:      stop,
	}
}

// ID returns the card identifier.
func (c *Card) ID() string {
	return c.id
}

// Attach binds background work to ctx. Cancelling ctx has the same effect
// on running sequences as Detach.
func (c *Card) Attach(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stop()
	c.base, c.stop = context.WithCancel(ctx)
	if c.cfg.DebugEnabled() && c.debug == nil {
		c.debug = NewDebugRing(DebugCapacity)
	}
}

// Detach stops background sequences, waits for them and clears history.
func (c *Card) Detach() {
	c.mu.Lock()
	c.stop()
	debug := c.debug
	c.mu.Unlock()

	c.wg.Wait()
	debug.Clear()
}

// Wait blocks until background post-play sequences finish.
func (c *Card) Wait() {
	c.wg.Wait()
}

// SetConfig replaces the configuration and recomputes the entries.
func (c *Card) SetConfig(cfg RawConfig) {
	entries := Normalize(cfg)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.entries = entries
	switch {
	case cfg.DebugEnabled() && c.debug == nil:
		c.debug = NewDebugRing(DebugCapacity)
	case !cfg.DebugEnabled():
		c.debug = nil
	}
	if c.snapshot.EntityID != cfg.Entity {
		c.snapshot = Snapshot{EntityID: cfg.Entity, State: "unavailable"}
	}
	c.log.Debug("card configured",
		zap.String("entity", cfg.Entity),
		zap.Int("entries", len(entries)),
		zap.Bool("debug", cfg.DebugEnabled()),
	)
}

// Config returns the current raw configuration.
func (c *Card) Config() RawConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Entity returns the configured entity id.
func (c *Card) Entity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Entity
}

// Title returns the card header text.
func (c *Card) Title() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return firstNonEmpty(c.cfg.Name, DefaultName)
}

// Entries returns a copy of the canonical entries.
func (c *Card) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Hint explains why the card cannot play, or returns "".
func (c *Card) Hint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return hintFor(c.cfg.Entity, c.entries)
}

// ConfigHint is Hint for a configuration that is not bound to a card.
func ConfigHint(cfg RawConfig) string {
	return hintFor(cfg.Entity, Normalize(cfg))
}

func hintFor(entity string, entries []Entry) string {
	if strings.TrimSpace(entity) == "" {
		return hintEntity
	}
	if len(entries) == 0 {
		return hintPlaylists
	}
	return ""
}

// DebugHistory returns recorded request cycles newest first. It is empty
// unless debug is enabled.
func (c *Card) DebugHistory() []DebugRecord {
	c.mu.RLock()
	debug := c.debug
	c.mu.RUnlock()
	return debug.All()
}

// Preview returns the request Play would send for the entry at index.
func (c *Card) Preview(index int) (ServiceCall, error) {
	c.mu.RLock()
	entity, entries := c.cfg.Entity, c.entries
	c.mu.RUnlock()

	if hint := hintFor(entity, entries); hint != "" {
		return ServiceCall{}, fmt.Errorf("%w: %s", ErrIncomplete, hint)
	}
	if index < 0 || index >= len(entries) {
		return ServiceCall{}, fmt.Errorf("%w: %d", ErrNoEntry, index)
	}
	return BuildRequest(entries[index], entity), nil
}

// IndexOf finds an entry by name, ignoring case.
func (c *Card) IndexOf(name string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name = strings.TrimSpace(name)
	for i, e := range c.entries {
		if strings.EqualFold(e.Name, name) {
			return i, true
		}
	}
	return -1, false
}

// PlayByName plays the entry with the given name.
func (c *Card) PlayByName(ctx context.Context, name string) error {
	idx, ok := c.IndexOf(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoEntry, name)
	}
	return c.Play(ctx, idx)
}

// Play opens the entry at index and, on success, applies repeat and
// shuffle in the background. Every attempt ends with a notification.
func (c *Card) Play(ctx context.Context, index int) error {
	c.mu.RLock()
	entity, entries, debug := c.cfg.Entity, c.entries, c.debug
	c.mu.RUnlock()

	if hint := hintFor(entity, entries); hint != "" {
		c.notify(ctx, hint, true)
		return ErrIncomplete
	}
	if index < 0 || index >= len(entries) {
		return fmt.Errorf("%w: %d", ErrNoEntry, index)
	}
	entry := entries[index]

	if !c.acquire(entity) {
		c.notify(ctx, "Playback already in progress: "+entity, true)
		return ErrBusy
	}

	call := BuildRequest(entry, entity)
	c.log.Debug("opening entry", zap.String("entry", entry.Name), zap.String("method", call.Method()))
	resp, err := c.caller.CallService(ctx, call.Domain, call.Service, call.Data)
	debug.Push(newDebugRecord(c.clock.Now(), call, resp, err))
	if err != nil {
		c.release(entity)
		c.log.Warn("open failed", zap.String("entry", entry.Name), zap.Error(err))
		c.notify(ctx, "Error: "+err.Error(), true)
		return fmt.Errorf("play %q: %w", entry.Name, err)
	}
	c.notify(ctx, "Playlist started: "+entry.Name, false)

	c.mu.Lock()
	base := c.base
	if base.Err() != nil {
		c.mu.Unlock()
		c.release(entity)
		c.log.Debug("card detached, skipping post-play", zap.String("entry", entry.Name))
		return nil
	}
	c.wg.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.wg.Done()
		defer c.release(entity)
		c.seq.Apply(base, entity, entry, debug)
	}()
	return nil
}

// System runs a reboot or shutdown on the device.
func (c *Card) System(ctx context.Context, action string) error {
	entity := c.Entity()
	if strings.TrimSpace(entity) == "" {
		c.notify(ctx, hintEntity, true)
		return ErrIncomplete
	}
	call, err := BuildSystemCall(action, entity)
	if err != nil {
		return err
	}
	c.mu.RLock()
	debug := c.debug
	c.mu.RUnlock()

	resp, err := c.caller.CallService(ctx, call.Domain, call.Service, call.Data)
	debug.Push(newDebugRecord(c.clock.Now(), call, resp, err))
	if err != nil {
		c.notify(ctx, "Error: "+err.Error(), true)
		return fmt.Errorf("%s: %w", call.Method(), err)
	}
	c.notify(ctx, "Sent "+call.Method(), false)
	return nil
}

// Snapshot returns the last refreshed state.
func (c *Card) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Refresh re-reads the entity state. Failures keep the previous snapshot.
func (c *Card) Refresh(ctx context.Context) Snapshot {
	c.mu.RLock()
	entity, nowPlaying := c.cfg.Entity, c.cfg.NowPlayingEnabled()
	c.mu.RUnlock()

	if c.states == nil || entity == "" {
		return c.Snapshot()
	}
	st, err := c.states.EntityState(ctx, entity)
	if err != nil {
		c.log.Debug("state refresh failed", zap.String("entity", entity), zap.Error(err))
		return c.Snapshot()
	}

	snap := Snapshot{
		EntityID:  entity,
		State:     firstNonEmpty(st.State, "unavailable"),
		UpdatedAt: c.clock.Now(),
	}
	if nowPlaying {
		snap.NowPlaying = nowPlayingOf(st.Attributes)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.Entity == entity {
		c.snapshot = snap
	}
	return snap
}

func nowPlayingOf(attrs map[string]any) string {
	title := asString(attrs["media_title"])
	artist := firstNonEmpty(asString(attrs["media_artist"]), asString(attrs["media_series_title"]))
	switch {
	case title != "" && artist != "":
		return artist + " - " + title
	default:
		return title
	}
}

func (c *Card) acquire(entity string) bool {
	if c.guard == nil {
		return true
	}
	return c.guard.Acquire(entity)
}

func (c *Card) release(entity string) {
	if c.guard != nil {
		c.guard.Release(entity)
	}
}

func (c *Card) notify(ctx context.Context, msg string, isErr bool) {
	c.notifier.Notify(ctx, ports.Notification{Card: c.id, Message: msg, Error: isErr})
}
