package card

// ItemSelector addresses a Player.Open item directly and replaces the item
// derived from the open mode. The variants are closed: PlaylistPosition,
// PathItem, BroadcastItem, ChannelItem and RecordingItem.
type ItemSelector interface {
	payload() map[string]any
	raw(*RawPlaylistItem)
}

// PlaylistPosition starts a Kodi playlist at an optional position.
type PlaylistPosition struct {
	PlaylistID int  `json:"playlistid"`
	Position   *int `json:"position,omitempty"`
}

// PathItem opens a path, optionally shuffled and recursing into folders.
type PathItem struct {
	Path      string `json:"path"`
	Random    *bool  `json:"random,omitempty"`
	Recursive *bool  `json:"recursive,omitempty"`
}

// BroadcastItem plays an EPG broadcast.
type BroadcastItem struct {
	BroadcastID int `json:"broadcastid"`
}

// ChannelItem tunes a PVR channel.
type ChannelItem struct {
	ChannelID int `json:"channelid"`
}

// RecordingItem plays a PVR recording.
type RecordingItem struct {
	RecordingID int `json:"recordingid"`
}

func (s PlaylistPosition) payload() map[string]any {
	out := map[string]any{"playlistid": s.PlaylistID}
	if s.Position != nil {
		out["position"] = *s.Position
	}
	return out
}

func (s PathItem) payload() map[string]any {
	out := map[string]any{"path": s.Path}
	if s.Random != nil {
		out["random"] = *s.Random
	}
	if s.Recursive != nil {
		out["recursive"] = *s.Recursive
	}
	return out
}

func (s BroadcastItem) payload() map[string]any { return map[string]any{"broadcastid": s.BroadcastID} }
func (s ChannelItem) payload() map[string]any   { return map[string]any{"channelid": s.ChannelID} }
func (s RecordingItem) payload() map[string]any { return map[string]any{"recordingid": s.RecordingID} }

func (s PlaylistPosition) raw(item *RawPlaylistItem) {
	item.ItemPlaylistID = s.PlaylistID
	if s.Position != nil {
		item.ItemPosition = *s.Position
	}
}

func (s PathItem) raw(item *RawPlaylistItem) {
	item.ItemPath = s.Path
	if s.Random != nil {
		item.ItemRandom = *s.Random
	}
	if s.Recursive != nil {
		item.ItemRecursive = *s.Recursive
	}
}

func (s BroadcastItem) raw(item *RawPlaylistItem) { item.ItemBroadcastID = s.BroadcastID }
func (s ChannelItem) raw(item *RawPlaylistItem)   { item.ItemChannelID = s.ChannelID }
func (s RecordingItem) raw(item *RawPlaylistItem) { item.ItemRecordingID = s.RecordingID }

// parseSelector picks the first present selector in priority order.
func parseSelector(item RawPlaylistItem) ItemSelector {
	if id, ok := asInt(item.ItemPlaylistID); ok {
		sel := PlaylistPosition{PlaylistID: id}
		if pos, ok := asInt(item.ItemPosition); ok {
			sel.Position = &pos
		}
		return sel
	}
	if path := asString(item.ItemPath); path != "" {
		sel := PathItem{Path: path}
		if b, ok := asBool(item.ItemRandom); ok {
			sel.Random = &b
		}
		if b, ok := asBool(item.ItemRecursive); ok {
			sel.Recursive = &b
		}
		return sel
	}
	if id, ok := asInt(item.ItemBroadcastID); ok {
		return BroadcastItem{BroadcastID: id}
	}
	if id, ok := asInt(item.ItemChannelID); ok {
		return ChannelItem{ChannelID: id}
	}
	if id, ok := asInt(item.ItemRecordingID); ok {
		return RecordingItem{RecordingID: id}
	}
	return nil
}
