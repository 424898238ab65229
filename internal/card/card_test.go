package card

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/mikey-austin/kodi_playlists/internal/ports"
)

func newTestCard(t *testing.T, caller *fakeCaller, notes *notifications, opts Options) *Card {
	t.Helper()
	opts.ID = "living_room"
	opts.Caller = caller
	opts.Notifier = notes
	if opts.Clock == nil {
		opts.Clock = clockwork.NewFakeClock()
	}
	if opts.Timing == (Timing{}) {
		opts.Timing = instant()
	}
	opts.Logger = zaptest.NewLogger(t)
	c := New(opts)
	c.Attach(context.Background())
	t.Cleanup(c.Detach)
	return c
}

func rockConfig() RawConfig {
	return RawConfig{
		Entity: entity,
		Debug:  true,
		Playlists: []RawPlaylistItem{
			{Name: "Rock", Playlist: "special://profile/playlists/music/Rock.xsp", RepeatMode: "all", Shuffle: true},
			{Name: "Filme", Playlist: "special://profile/playlists/video/Filme.xsp"},
		},
	}
}

func TestCardHints(t *testing.T) {
	caller := &fakeCaller{}
	notes := &notifications{}
	c := newTestCard(t, caller, notes, Options{})

	require.Equal(t, hintEntity, c.Hint())

	c.SetConfig(RawConfig{Entity: entity})
	require.Equal(t, hintPlaylists, c.Hint())

	err := c.Play(context.Background(), 0)
	require.ErrorIs(t, err, ErrIncomplete)
	require.Empty(t, caller.recorded())
	require.Equal(t, []ports.Notification{{Card: "living_room", Message: hintPlaylists, Error: true}}, notes.list())

	c.SetConfig(rockConfig())
	require.Empty(t, c.Hint())
	require.Equal(t, DefaultName, c.Title())
}

func TestCardPlayRunsPostPlay(t *testing.T) {
	caller := &fakeCaller{}
	notes := &notifications{}
	c := newTestCard(t, caller, notes, Options{})
	c.SetConfig(rockConfig())

	require.NoError(t, c.PlayByName(context.Background(), "rock"))
	c.Wait()

	require.Equal(t, []string{MethodPlayerOpen, MethodSetRepeat, MethodSetShuffle}, caller.methods())
	require.Equal(t, "Playlist started: Rock", notes.list()[0].Message)
	require.False(t, notes.list()[0].Error)

	history := c.DebugHistory()
	require.Len(t, history, 1)
	require.Equal(t, DebugSuccess, history[0].Status)
	require.JSONEq(t, `{"result":"OK"}`, string(history[0].Response))
}

func TestCardPlayFailureNotifies(t *testing.T) {
	caller := &fakeCaller{fail: failMethod(MethodPlayerOpen)}
	notes := &notifications{}
	c := newTestCard(t, caller, notes, Options{})
	c.SetConfig(rockConfig())

	err := c.Play(context.Background(), 1)
	require.Error(t, err)
	c.Wait()

	require.Equal(t, []string{MethodPlayerOpen}, caller.methods())
	require.Equal(t, ports.Notification{Card: "living_room", Message: "Error: player not active", Error: true}, notes.list()[0])
	require.Equal(t, DebugError, c.DebugHistory()[0].Status)
}

func TestCardPlayUnknownEntry(t *testing.T) {
	c := newTestCard(t, &fakeCaller{}, &notifications{}, Options{})
	c.SetConfig(rockConfig())

	require.ErrorIs(t, c.Play(context.Background(), 7), ErrNoEntry)
	require.ErrorIs(t, c.PlayByName(context.Background(), "Jazz"), ErrNoEntry)
	_, err := c.Preview(-1)
	require.ErrorIs(t, err, ErrNoEntry)
}

func TestCardPreviewDoesNotCall(t *testing.T) {
	caller := &fakeCaller{}
	c := newTestCard(t, caller, &notifications{}, Options{})
	c.SetConfig(rockConfig())

	call, err := c.Preview(1)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"file": "special://profile/playlists/video/Filme.xsp"}, call.Data["item"])
	require.Empty(t, caller.recorded())
}

func TestCardDebugDisabled(t *testing.T) {
	caller := &fakeCaller{}
	c := newTestCard(t, caller, &notifications{}, Options{})
	cfg := rockConfig()
	cfg.Debug = false
	c.SetConfig(cfg)

	require.NoError(t, c.Play(context.Background(), 1))
	c.Wait()
	require.Empty(t, c.DebugHistory())
}

func TestCardSystem(t *testing.T) {
	caller := &fakeCaller{}
	notes := &notifications{}
	c := newTestCard(t, caller, notes, Options{})
	c.SetConfig(rockConfig())

	require.NoError(t, c.System(context.Background(), "reboot"))
	require.Equal(t, []string{MethodSystemReboot}, caller.methods())
	require.Equal(t, "Sent System.Reboot", notes.list()[0].Message)

	require.ErrorIs(t, c.System(context.Background(), "dance"), ErrUnknownAction)
}

func TestCardExclusiveRejectsOverlap(t *testing.T) {
	clock := clockwork.NewFakeClock()
	caller := &fakeCaller{}
	notes := &notifications{}
	c := newTestCard(t, caller, notes, Options{Clock: clock, Timing: DefaultTiming(), Exclusive: true})
	c.SetConfig(rockConfig())

	require.NoError(t, c.Play(context.Background(), 0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	require.ErrorIs(t, c.Play(context.Background(), 1), ErrBusy)

	clock.Advance(700 * time.Millisecond)
	c.Wait()
	require.NoError(t, c.Play(context.Background(), 1))
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(700 * time.Millisecond)
	c.Wait()
}

func TestCardsSharingGuardRejectOverlap(t *testing.T) {
	clock := clockwork.NewFakeClock()
	guard := NewGuard()
	callerA, callerB := &fakeCaller{}, &fakeCaller{}
	notesB := &notifications{}
	a := newTestCard(t, callerA, &notifications{}, Options{Clock: clock, Timing: DefaultTiming(), Exclusive: true, Guard: guard})
	b := newTestCard(t, callerB, notesB, Options{Clock: clock, Timing: DefaultTiming(), Exclusive: true, Guard: guard})
	a.SetConfig(rockConfig())
	b.SetConfig(rockConfig())

	require.NoError(t, a.Play(context.Background(), 0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	require.True(t, guard.Busy(entity))

	require.ErrorIs(t, b.Play(context.Background(), 1), ErrBusy)
	require.Empty(t, callerB.recorded())
	notes := notesB.list()
	require.Len(t, notes, 1)
	require.True(t, notes[0].Error)

	clock.Advance(700 * time.Millisecond)
	a.Wait()
	require.False(t, guard.Busy(entity))
	require.NoError(t, b.Play(context.Background(), 1))
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(700 * time.Millisecond)
	b.Wait()
}

func TestExclusiveCardsWithoutSharedGuardDoNotBlockEachOther(t *testing.T) {
	clock := clockwork.NewFakeClock()
	a := newTestCard(t, &fakeCaller{}, &notifications{}, Options{Clock: clock, Timing: DefaultTiming(), Exclusive: true})
	b := newTestCard(t, &fakeCaller{}, &notifications{}, Options{Clock: clock, Timing: DefaultTiming(), Exclusive: true})
	a.SetConfig(rockConfig())
	b.SetConfig(rockConfig())

	require.NoError(t, a.Play(context.Background(), 0))
	require.NoError(t, b.Play(context.Background(), 0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2))
	clock.Advance(700 * time.Millisecond)
	a.Wait()
	b.Wait()
}

func TestCardPlayAfterDetachSkipsPostPlay(t *testing.T) {
	guard := NewGuard()
	caller := &fakeCaller{}
	c := newTestCard(t, caller, &notifications{}, Options{Exclusive: true, Guard: guard})
	c.SetConfig(rockConfig())
	c.Detach()

	require.NoError(t, c.Play(context.Background(), 0))
	c.Wait()
	require.Equal(t, []string{MethodPlayerOpen}, caller.methods())
	require.False(t, guard.Busy(entity))
}

func TestCardOverlappingPlaysAllowedByDefault(t *testing.T) {
	caller := &fakeCaller{}
	c := newTestCard(t, caller, &notifications{}, Options{})
	c.SetConfig(rockConfig())

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Play(context.Background(), 0)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	c.Wait()
	require.Len(t, caller.recorded(), 9)
}

func TestCardRefresh(t *testing.T) {
	states := &fakeStates{state: ports.EntityState{
		EntityID: entity,
		State:    "playing",
		Attributes: map[string]any{
			"media_title":  "Paranoid",
			"media_artist": "Black Sabbath",
		},
	}}
	c := New(Options{States: states, Clock: clockwork.NewFakeClock()})
	c.SetConfig(rockConfig())

	snap := c.Refresh(context.Background())
	require.Equal(t, "playing", snap.State)
	require.Equal(t, "Black Sabbath - Paranoid", snap.NowPlaying)

	states.err = errors.New("unreachable")
	require.Equal(t, snap, c.Refresh(context.Background()))

	cfg := rockConfig()
	cfg.ShowNowPlaying = false
	c.SetConfig(cfg)
	states.err = nil
	require.Empty(t, c.Refresh(context.Background()).NowPlaying)
}

func TestCardDetachStopsSequences(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clock := clockwork.NewFakeClock()
	caller := &fakeCaller{}
	c := New(Options{Caller: caller, Clock: clock, Timing: DefaultTiming()})
	c.SetConfig(rockConfig())
	c.Attach(context.Background())

	require.NoError(t, c.Play(context.Background(), 0))
	require.NoError(t, c.Play(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2))

	c.Detach()
	require.Equal(t, []string{MethodPlayerOpen, MethodPlayerOpen}, caller.methods())
	require.Empty(t, c.DebugHistory())
}
