package card

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// OpenMode is the strategy used to start playback.
type OpenMode string

const (
	OpenFile      OpenMode = "file"
	OpenDirectory OpenMode = "directory"
	OpenPartyMode OpenMode = "partymode"
)

// normalizeOpenMode downgrades party mode for mixed playlists, Kodi only
// runs party mode for music and video.
func normalizeOpenMode(mode string, t PlaylistType) OpenMode {
	switch OpenMode(strings.ToLower(strings.TrimSpace(mode))) {
	case OpenDirectory:
		return OpenDirectory
	case OpenPartyMode:
		if t == TypeMusic || t == TypeVideo {
			return OpenPartyMode
		}
		return OpenFile
	default:
		return OpenFile
	}
}

// RepeatMode mirrors Kodi's Player.SetRepeat values.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
	RepeatOne RepeatMode = "one"
)

// ParseRepeatMode returns the mode named by s and whether it was valid.
func ParseRepeatMode(s string) (RepeatMode, bool) {
	switch RepeatMode(strings.ToLower(strings.TrimSpace(s))) {
	case RepeatOff:
		return RepeatOff, true
	case RepeatAll:
		return RepeatAll, true
	case RepeatOne:
		return RepeatOne, true
	default:
		return "", false
	}
}

// ResumeMode selects how Player.Open resumes the item.
type ResumeMode string

const (
	ResumeNone    ResumeMode = "none"
	ResumeTrue    ResumeMode = "true"
	ResumeFalse   ResumeMode = "false"
	ResumePercent ResumeMode = "percent"
	ResumeTime    ResumeMode = "time"
)

// ResumeAt is a Kodi Global.Time value.
type ResumeAt struct {
	Hours        int `json:"hours"`
	Minutes      int `json:"minutes"`
	Seconds      int `json:"seconds"`
	Milliseconds int `json:"milliseconds"`
}

func (t ResumeAt) String() string {
	return fmt.Sprintf("%02d:%02d:%02d.%03d", t.Hours, t.Minutes, t.Seconds, t.Milliseconds)
}

func (t ResumeAt) payload() map[string]any {
	return map[string]any{
		"hours":        t.Hours,
		"minutes":      t.Minutes,
		"seconds":      t.Seconds,
		"milliseconds": t.Milliseconds,
	}
}

// Resume holds the resume option of an entry. Percent and At are only
// meaningful for their matching Mode.
type Resume struct {
	Mode    ResumeMode `json:"mode"`
	Percent float64    `json:"percent,omitempty"`
	At      ResumeAt   `json:"at,omitempty"`
}

// Entry is one fully resolved playable configuration item.
type Entry struct {
	Name              string         `json:"name"`
	Icon              string         `json:"icon"`
	PlaylistType      PlaylistType   `json:"playlistType"`
	Playlist          string         `json:"playlist"`
	Directory         string         `json:"directory"`
	OpenMode          OpenMode       `json:"openMode"`
	PartymodePlaylist string         `json:"partymodePlaylist,omitempty"`
	Method            string         `json:"method"`
	Window            string         `json:"window,omitempty"`
	Params            map[string]any `json:"params,omitempty"`
	RepeatMode        RepeatMode     `json:"repeatMode"`
	Shuffle           bool           `json:"shuffle"`
	OptionsRepeat     string         `json:"optionsRepeat,omitempty"`
	OptionsShuffled   *bool          `json:"optionsShuffled,omitempty"`
	Item              ItemSelector   `json:"item,omitempty"`
	Resume            Resume         `json:"resume"`
}

func parseResume(item RawPlaylistItem) Resume {
	mode := resumeMode(item.OptionsResumeMode)
	switch mode {
	case ResumePercent:
		pct, ok := asFloat(item.OptionsResumePercent)
		if !ok {
			return Resume{Mode: ResumeNone}
		}
		return Resume{Mode: ResumePercent, Percent: math.Max(0, math.Min(100, pct))}
	case ResumeTime:
		at, ok := parseResumeAt(item.OptionsResumeTime)
		if !ok {
			return Resume{Mode: ResumeNone}
		}
		return Resume{Mode: ResumeTime, At: at}
	default:
		return Resume{Mode: mode}
	}
}

func resumeMode(v any) ResumeMode {
	if b, ok := v.(bool); ok {
		if b {
			return ResumeTrue
		}
		return ResumeFalse
	}
	switch ResumeMode(strings.ToLower(asString(v))) {
	case ResumeTrue:
		return ResumeTrue
	case ResumeFalse:
		return ResumeFalse
	case ResumePercent:
		return ResumePercent
	case ResumeTime:
		return ResumeTime
	default:
		return ResumeNone
	}
}

// maxResumeSeconds keeps numeric resume times within int on every platform.
const maxResumeSeconds = math.MaxInt32

// parseResumeAt accepts "HH:MM:SS", "MM:SS" or "SS" with an optional
// ".mmm" suffix, a number of seconds, or a map of the four time fields.
func parseResumeAt(v any) (ResumeAt, bool) {
	if m, ok := asStringMap(v); ok {
		var at ResumeAt
		fields := []struct {
			key string
			dst *int
		}{
			{"hours", &at.Hours},
			{"minutes", &at.Minutes},
			{"seconds", &at.Seconds},
			{"milliseconds", &at.Milliseconds},
		}
		found := false
		for _, f := range fields {
			raw, present := m[f.key]
			if !present {
				continue
			}
			n, ok := asInt(raw)
			if !ok || n < 0 {
				return ResumeAt{}, false
			}
			*f.dst = n
			found = true
		}
		return at, found
	}

	switch v.(type) {
	case int, int64, float64, uint64:
		secs, ok := asFloat(v)
		if !ok || secs < 0 || secs > maxResumeSeconds {
			return ResumeAt{}, false
		}
		return fromMillis(int64(math.Round(secs * 1000))), true
	}

	s := asString(v)
	if s == "" {
		return ResumeAt{}, false
	}
	millis := 0
	if dot := strings.LastIndex(s, "."); dot >= 0 {
		frac := s[dot+1:]
		if frac == "" || len(frac) > 3 {
			return ResumeAt{}, false
		}
		n, err := strconv.Atoi(frac)
		if err != nil || n < 0 {
			return ResumeAt{}, false
		}
		for i := len(frac); i < 3; i++ {
			n *= 10
		}
		millis = n
		s = s[:dot]
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return ResumeAt{}, false
	}
	nums := make([]int, 0, 3)
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return ResumeAt{}, false
		}
		nums = append(nums, n)
	}
	for len(nums) < 3 {
		nums = append([]int{0}, nums...)
	}
	return ResumeAt{Hours: nums[0], Minutes: nums[1], Seconds: nums[2], Milliseconds: millis}, true
}

func fromMillis(ms int64) ResumeAt {
	total := ms / 1000
	return ResumeAt{
		Hours:        int(total / 3600),
		Minutes:      int((total % 3600) / 60),
		Seconds:      int(total % 60),
		Milliseconds: int(ms % 1000),
	}
}
