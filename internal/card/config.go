package card

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// RawPlaylistItem is one user-authored playlist entry. Every field is
// optional; numeric and boolean fields keep whatever type the author wrote.
type RawPlaylistItem struct {
	Name              string `mapstructure:"name" yaml:"name,omitempty" json:"name,omitempty"`
	Icon              string `mapstructure:"icon" yaml:"icon,omitempty" json:"icon,omitempty"`
	PlaylistType      string `mapstructure:"playlist_type" yaml:"playlist_type,omitempty" json:"playlist_type,omitempty"`
	Playlist          string `mapstructure:"playlist" yaml:"playlist,omitempty" json:"playlist,omitempty"`
	Directory         string `mapstructure:"directory" yaml:"directory,omitempty" json:"directory,omitempty"`
	PartymodePlaylist string `mapstructure:"partymode_playlist" yaml:"partymode_playlist,omitempty" json:"partymode_playlist,omitempty"`
	OpenMode          string `mapstructure:"open_mode" yaml:"open_mode,omitempty" json:"open_mode,omitempty"`
	Method            string `mapstructure:"method" yaml:"method,omitempty" json:"method,omitempty"`
	Window            string `mapstructure:"window" yaml:"window,omitempty" json:"window,omitempty"`
	Params            any    `mapstructure:"params" yaml:"params,omitempty" json:"params,omitempty"`
	RepeatMode        string `mapstructure:"repeat_mode" yaml:"repeat_mode,omitempty" json:"repeat_mode,omitempty"`
	Shuffle           any    `mapstructure:"shuffle" yaml:"shuffle,omitempty" json:"shuffle,omitempty"`

	ItemPlaylistID  any    `mapstructure:"item_playlistid" yaml:"item_playlistid,omitempty" json:"item_playlistid,omitempty"`
	ItemPosition    any    `mapstructure:"item_position" yaml:"item_position,omitempty" json:"item_position,omitempty"`
	ItemPath        string `mapstructure:"item_path" yaml:"item_path,omitempty" json:"item_path,omitempty"`
	ItemRandom      any    `mapstructure:"item_random" yaml:"item_random,omitempty" json:"item_random,omitempty"`
	ItemRecursive   any    `mapstructure:"item_recursive" yaml:"item_recursive,omitempty" json:"item_recursive,omitempty"`
	ItemBroadcastID any    `mapstructure:"item_broadcastid" yaml:"item_broadcastid,omitempty" json:"item_broadcastid,omitempty"`
	ItemChannelID   any    `mapstructure:"item_channelid" yaml:"item_channelid,omitempty" json:"item_channelid,omitempty"`
	ItemRecordingID any    `mapstructure:"item_recordingid" yaml:"item_recordingid,omitempty" json:"item_recordingid,omitempty"`

	OptionsResumeMode    any    `mapstructure:"options_resume_mode" yaml:"options_resume_mode,omitempty" json:"options_resume_mode,omitempty"`
	OptionsResumePercent any    `mapstructure:"options_resume_percent" yaml:"options_resume_percent,omitempty" json:"options_resume_percent,omitempty"`
	OptionsResumeTime    any    `mapstructure:"options_resume_time" yaml:"options_resume_time,omitempty" json:"options_resume_time,omitempty"`
	OptionsRepeat        string `mapstructure:"options_repeat" yaml:"options_repeat,omitempty" json:"options_repeat,omitempty"`
	OptionsShuffled      any    `mapstructure:"options_shuffled" yaml:"options_shuffled,omitempty" json:"options_shuffled,omitempty"`
}

// RawConfig is the card configuration as persisted by the dashboard. The
// embedded item holds the root-level legacy single playlist fields.
type RawConfig struct {
	Entity         string            `mapstructure:"entity" yaml:"entity,omitempty" json:"entity,omitempty"`
	Debug          any               `mapstructure:"debug" yaml:"debug,omitempty" json:"debug,omitempty"`
	ShowNowPlaying any               `mapstructure:"show_now_playing" yaml:"show_now_playing,omitempty" json:"show_now_playing,omitempty"`
	RepeatAll      any               `mapstructure:"repeat_all" yaml:"repeat_all,omitempty" json:"repeat_all,omitempty"`
	RandomOn       any               `mapstructure:"random_on" yaml:"random_on,omitempty" json:"random_on,omitempty"`
	Playlists      []RawPlaylistItem `mapstructure:"-" yaml:"playlists,omitempty" json:"playlists,omitempty"`

	RawPlaylistItem `mapstructure:",squash" yaml:",inline"`
}

// DebugEnabled reports whether request history should be kept.
func (c RawConfig) DebugEnabled() bool {
	on, _ := asBool(c.Debug)
	return on
}

// NowPlayingEnabled reports whether the now playing header is wanted.
// It defaults to on.
func (c RawConfig) NowPlayingEnabled() bool {
	on, ok := asBool(c.ShowNowPlaying)
	return !ok || on
}

// DecodeRawConfig maps a loosely typed document onto RawConfig. Unknown keys
// are ignored. A playlist item that cannot be decoded becomes an empty item,
// which normalizes to nothing but still suppresses the legacy root entry.
func DecodeRawConfig(raw map[string]any) (RawConfig, error) {
	var cfg RawConfig
	if err := decodeInto(raw, &cfg); err != nil {
		return RawConfig{}, fmt.Errorf("decode card config: %w", err)
	}

	list, _ := raw["playlists"].([]any)
	for _, el := range list {
		var item RawPlaylistItem
		if m, ok := asStringMap(el); ok {
			if err := decodeInto(m, &item); err != nil {
				item = RawPlaylistItem{}
			}
		}
		cfg.Playlists = append(cfg.Playlists, item)
	}
	return cfg, nil
}

func decodeInto(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
