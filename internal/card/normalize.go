package card

import "strings"

const (
	DefaultName   = "Kodi Playlist"
	DefaultIcon   = "mdi:playlist-play"
	DefaultMethod = MethodPlayerOpen
)

// inherited holds the root values every playlist item falls back to.
type inherited struct {
	icon     string
	method   string
	openMode string
	window   string
	repeat   RepeatMode
	shuffle  *bool
}

func rootDefaults(cfg RawConfig) inherited {
	d := inherited{
		icon:     firstNonEmpty(cfg.Icon, DefaultIcon),
		method:   firstNonEmpty(cfg.Method, DefaultMethod),
		openMode: cfg.OpenMode,
		window:   cfg.Window,
	}
	// repeat_all and random_on predate per-entry settings; they only fill in
	// entries that say nothing and are never carried forward.
	if on, ok := asBool(cfg.RepeatAll); ok && on {
		d.repeat = RepeatAll
	}
	if on, ok := asBool(cfg.RandomOn); ok && on {
		d.shuffle = &on
	}
	return d
}

// Normalize resolves a raw configuration into its playable entries. Items
// without a usable target are dropped; the result may be empty.
func Normalize(cfg RawConfig) []Entry {
	d := rootDefaults(cfg)

	if len(cfg.Playlists) > 0 {
		entries := make([]Entry, 0, len(cfg.Playlists))
		for _, item := range cfg.Playlists {
			if entry, ok := normalizeItem(item, d); ok {
				entries = append(entries, entry)
			}
		}
		return entries
	}

	legacy := cfg.RawPlaylistItem
	legacy.Name = firstNonEmpty(cfg.Name, DefaultName)
	if entry, ok := normalizeItem(legacy, d); ok {
		return []Entry{entry}
	}
	return []Entry{}
}

func normalizeItem(item RawPlaylistItem, d inherited) (Entry, bool) {
	raw := strings.TrimSpace(item.Playlist)

	t, ok := ParsePlaylistType(item.PlaylistType)
	if !ok {
		t = InferType(firstNonEmpty(raw, item.Directory, item.PartymodePlaylist))
	}

	playlist := ResolvePath(raw, t)
	directory := firstNonEmpty(ResolvePath(item.Directory, t), playlist, BasePath(t))

	entry := Entry{
		Name:              firstNonEmpty(item.Name, raw, item.Directory, directory),
		Icon:              firstNonEmpty(item.Icon, d.icon, DefaultIcon),
		PlaylistType:      t,
		Playlist:          playlist,
		Directory:         directory,
		OpenMode:          normalizeOpenMode(firstNonEmpty(item.OpenMode, d.openMode), t),
		PartymodePlaylist: ResolvePath(item.PartymodePlaylist, t),
		Method:            firstNonEmpty(item.Method, d.method, DefaultMethod),
		Window:            firstNonEmpty(item.Window, d.window),
		Params:            paramsOf(item.Params),
		RepeatMode:        RepeatOff,
		OptionsRepeat:     strings.ToLower(strings.TrimSpace(item.OptionsRepeat)),
		Item:              parseSelector(item),
		Resume:            parseResume(item),
	}

	if mode, ok := ParseRepeatMode(item.RepeatMode); ok {
		entry.RepeatMode = mode
	} else if d.repeat != "" {
		entry.RepeatMode = d.repeat
	}
	if on, ok := asBool(item.Shuffle); ok {
		entry.Shuffle = on
	} else if d.shuffle != nil {
		entry.Shuffle = *d.shuffle
	}
	if on, ok := asBool(item.OptionsShuffled); ok {
		entry.OptionsShuffled = &on
	}

	return entry, hasTarget(entry)
}

// hasTarget reports whether an entry can produce a request. Directory mode
// always resolves to at least the type's base directory.
func hasTarget(e Entry) bool {
	if e.OpenMode == OpenDirectory {
		return true
	}
	return e.Playlist != "" || e.Params != nil || e.Item != nil
}

// paramsOf accepts only object-shaped custom params; arrays and scalars are
// ignored.
func paramsOf(v any) map[string]any {
	m, ok := asStringMap(v)
	if !ok {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[k] = val
	}
	return out
}

// Denormalize renders entries back into configuration shape. Normalizing
// the result yields the same entries.
func Denormalize(entries []Entry) RawConfig {
	items := make([]RawPlaylistItem, 0, len(entries))
	for _, e := range entries {
		item := RawPlaylistItem{
			Name:              e.Name,
			Icon:              e.Icon,
			PlaylistType:      string(e.PlaylistType),
			Playlist:          e.Playlist,
			Directory:         e.Directory,
			PartymodePlaylist: e.PartymodePlaylist,
			OpenMode:          string(e.OpenMode),
			Method:            e.Method,
			Window:            e.Window,
			RepeatMode:        string(e.RepeatMode),
			Shuffle:           e.Shuffle,
			OptionsRepeat:     e.OptionsRepeat,
		}
		if e.Params != nil {
			item.Params = paramsOf(e.Params)
		}
		if e.OptionsShuffled != nil {
			item.OptionsShuffled = *e.OptionsShuffled
		}
		if e.Item != nil {
			e.Item.raw(&item)
		}
		switch e.Resume.Mode {
		case ResumeTrue, ResumeFalse:
			item.OptionsResumeMode = string(e.Resume.Mode)
		case ResumePercent:
			item.OptionsResumeMode = string(e.Resume.Mode)
			item.OptionsResumePercent = e.Resume.Percent
		case ResumeTime:
			item.OptionsResumeMode = string(e.Resume.Mode)
			item.OptionsResumeTime = e.Resume.At.payload()
		}
		items = append(items, item)
	}
	return RawConfig{Playlists: items}
}
