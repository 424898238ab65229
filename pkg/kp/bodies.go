package kp

import "encoding/json"

// EntryView is one playable entry as shown to controllers.
type EntryView struct {
	Index        int    `json:"index"`
	Name         string `json:"name"`
	Icon         string `json:"icon,omitempty"`
	PlaylistType string `json:"playlistType"`
	OpenMode     string `json:"openMode"`
	Playlist     string `json:"playlist,omitempty"`
	Directory    string `json:"directory,omitempty"`
	RepeatMode   string `json:"repeatMode"`
	Shuffle      bool   `json:"shuffle"`
}

// EntriesReply is the reply for card.entries.
type EntriesReply struct {
	Title   string      `json:"title"`
	Hint    string      `json:"hint,omitempty"`
	Entries []EntryView `json:"entries"`
}

// PlayBody is the payload for card.play. Name is used when Index is nil.
type PlayBody struct {
	Index *int   `json:"index,omitempty"`
	Name  string `json:"name,omitempty"`
}

// PreviewBody is the payload for card.preview.
type PreviewBody struct {
	Index int `json:"index"`
}

// ServiceCall is the outbound call a card makes.
type ServiceCall struct {
	Domain  string         `json:"domain"`
	Service string         `json:"service"`
	Data    map[string]any `json:"data"`
}

// SystemBody is the payload for card.system.
type SystemBody struct {
	Action string `json:"action"`
}

// DebugRecord is one recorded request cycle.
type DebugRecord struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Request   ServiceCall     `json:"request"`
	Response  json.RawMessage `json:"response,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// DebugReply is the reply for card.debug, newest first.
type DebugReply struct {
	Enabled bool          `json:"enabled"`
	Records []DebugRecord `json:"records"`
}

// ReloadReply is the reply for card.reload.
type ReloadReply struct {
	Entries int    `json:"entries"`
	Hint    string `json:"hint,omitempty"`
}
