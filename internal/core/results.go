package core

import (
	"github.com/mikey-austin/kodi_playlists/internal/card"
	"github.com/mikey-austin/kodi_playlists/pkg/kp"
)

// CardsResult holds the cards currently announcing presence.
type CardsResult struct {
	Cards []kp.Presence
}

// EntriesResult holds the entries of one card.
type EntriesResult struct {
	Card    kp.Presence
	Entries kp.EntriesReply
}

// PlayResult reports which entry was started.
type PlayResult struct {
	Card   kp.Presence
	Target string
}

// PreviewResult holds the request an entry would send.
type PreviewResult struct {
	Card  kp.Presence
	Index int
	Call  kp.ServiceCall
}

// SystemResult reports a sent system action.
type SystemResult struct {
	Card   kp.Presence
	Action string
}

// DebugResult holds the request history of a card.
type DebugResult struct {
	Card  kp.Presence
	Debug kp.DebugReply
}

// StatusResult holds card presence and retained state.
type StatusResult struct {
	Card  kp.Presence
	State kp.CardState
}

// ReloadResult reports the outcome of a reload.
type ReloadResult struct {
	Card   kp.Presence
	Reload kp.ReloadReply
}

// NormalizeResult holds the canonical form of a card file.
type NormalizeResult struct {
	Path    string
	Entries []kp.EntryView
	Config  card.RawConfig
	Hint    string
}

// RequestResult holds an offline built request.
type RequestResult struct {
	Path  string
	Index int
	Call  kp.ServiceCall
}
