package card

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mikey-austin/kodi_playlists/internal/ports"
)

// Timing controls the post-playback retry loop. Delays are fixed; the
// operation count is too small to need a growing backoff.
type Timing struct {
	InitialDelay time.Duration
	RetryDelay   time.Duration
	Rounds       int
}

// DefaultTiming returns the delays observed to work with Kodi: the player
// is rarely addressable sooner than ~700ms after Player.Open returns.
func DefaultTiming() Timing {
	return Timing{
		InitialDelay: 700 * time.Millisecond,
		RetryDelay:   450 * time.Millisecond,
		Rounds:       3,
	}
}

// PostPlayCommand is a follow-up call applied to the active player. The
// player id is filled in per attempt.
type PostPlayCommand struct {
	Method string
	Args   map[string]any
}

// CommandResult reports how a post-play command ended.
type CommandResult struct {
	Method   string
	PlayerID int
	Attempts int
	Err      error
}

// EffectiveRepeat resolves options_repeat over repeat_mode. The bool is
// false when the override names no valid mode.
func EffectiveRepeat(e Entry) (RepeatMode, bool) {
	if e.OptionsRepeat != "" {
		return ParseRepeatMode(e.OptionsRepeat)
	}
	if e.RepeatMode == "" {
		return RepeatOff, true
	}
	return ParseRepeatMode(string(e.RepeatMode))
}

// EffectiveShuffle resolves options_shuffled over shuffle.
func EffectiveShuffle(e Entry) bool {
	if e.OptionsShuffled != nil {
		return *e.OptionsShuffled
	}
	return e.Shuffle
}

// PostPlayCommands lists the commands to run after a successful open,
// repeat before shuffle.
func PostPlayCommands(e Entry) []PostPlayCommand {
	cmds := make([]PostPlayCommand, 0, 2)
	if mode, ok := EffectiveRepeat(e); ok {
		cmds = append(cmds, PostPlayCommand{Method: MethodSetRepeat, Args: map[string]any{"repeat": string(mode)}})
	}
	cmds = append(cmds, PostPlayCommand{Method: MethodSetShuffle, Args: map[string]any{"shuffle": EffectiveShuffle(e)}})
	return cmds
}

// CandidatePlayerIDs orders Kodi player slots by likelihood: audio usually
// lands on player 0 and video on player 1.
func CandidatePlayerIDs(t PlaylistType) []int {
	if t == TypeMusic {
		return []int{0, 1}
	}
	return []int{1, 0}
}

func (c PostPlayCommand) call(entityID string, playerID int) ServiceCall {
	call := newCall(entityID, c.Method)
	call.Data["playerid"] = playerID
	for k, v := range c.Args {
		call.Data[k] = v
	}
	return call
}

// Sequencer applies repeat and shuffle once the player exists.
type Sequencer struct {
	caller ports.ServiceCaller
	clock  clockwork.Clock
	log    *zap.Logger
	timing Timing
}

// NewSequencer creates a sequencer. Rounds below one fall back to the
// default; delays are used as given.
func NewSequencer(caller ports.ServiceCaller, clock clockwork.Clock, log *zap.Logger, timing Timing) *Sequencer {
	def := DefaultTiming()
	if timing.InitialDelay < 0 {
		timing.InitialDelay = 0
	}
	if timing.RetryDelay < 0 {
		timing.RetryDelay = 0
	}
	if timing.Rounds <= 0 {
		timing.Rounds = def.Rounds
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sequencer{caller: caller, clock: clock, log: log, timing: timing}
}

// Apply runs the post-play commands for entry strictly in order. A command
// that never succeeds is recorded and skipped; it never stops the rest.
func (s *Sequencer) Apply(ctx context.Context, entityID string, entry Entry, debug *DebugRing) []CommandResult {
	cmds := PostPlayCommands(entry)
	results := make([]CommandResult, 0, len(cmds))
	if err := s.sleep(ctx, s.timing.InitialDelay); err != nil {
		return results
	}

	ids := CandidatePlayerIDs(entry.PlaylistType)
	for _, cmd := range cmds {
		res := s.run(ctx, entityID, cmd, ids, debug)
		results = append(results, res)
		if ctx.Err() != nil {
			break
		}
	}
	return results
}

func (s *Sequencer) run(ctx context.Context, entityID string, cmd PostPlayCommand, ids []int, debug *DebugRing) CommandResult {
	res := CommandResult{Method: cmd.Method, PlayerID: -1}
	var (
		lastErr  error
		lastCall ServiceCall
	)
	for round := 0; round < s.timing.Rounds; round++ {
		if round > 0 {
			if err := s.sleep(ctx, s.timing.RetryDelay); err != nil {
				res.Err = err
				return res
			}
		}
		for _, id := range ids {
			res.Attempts++
			lastCall = cmd.call(entityID, id)
			_, err := s.caller.CallService(ctx, lastCall.Domain, lastCall.Service, lastCall.Data)
			if err == nil {
				res.PlayerID = id
				s.log.Debug("post-play command applied",
					zap.String("method", cmd.Method),
					zap.Int("player_id", id),
					zap.Int("attempts", res.Attempts),
				)
				return res
			}
			lastErr = err
			s.log.Debug("post-play attempt failed",
				zap.String("method", cmd.Method),
				zap.Int("player_id", id),
				zap.Int("round", round+1),
				zap.Error(err),
			)
		}
	}

	res.Err = fmt.Errorf("%s: %w", cmd.Method, lastErr)
	debug.Push(newDebugRecord(s.clock.Now(), lastCall, nil, res.Err))
	s.log.Debug("post-play command gave up", zap.String("method", cmd.Method), zap.Error(lastErr))
	return res
}

func (s *Sequencer) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}
