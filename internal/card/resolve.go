package card

import "strings"

// PlaylistType is the media category of a playlist.
type PlaylistType string

const (
	TypeMusic PlaylistType = "music"
	TypeVideo PlaylistType = "video"
	TypeMixed PlaylistType = "mixed"
)

const playlistRoot = "special://profile/playlists/"

// ParsePlaylistType returns the type named by s and whether it was valid.
func ParsePlaylistType(s string) (PlaylistType, bool) {
	switch PlaylistType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeMusic:
		return TypeMusic, true
	case TypeVideo:
		return TypeVideo, true
	case TypeMixed:
		return TypeMixed, true
	default:
		return "", false
	}
}

// InferType guesses the playlist type from the storage path.
func InferType(path string) PlaylistType {
	lower := strings.ToLower(path)
	switch {
	case strings.Contains(lower, "/playlists/music/"):
		return TypeMusic
	case strings.Contains(lower, "/playlists/video/"):
		return TypeVideo
	default:
		return TypeMixed
	}
}

// BasePath returns the profile playlist directory for a type.
func BasePath(t PlaylistType) string {
	switch t {
	case TypeMusic:
		return playlistRoot + "music/"
	case TypeVideo:
		return playlistRoot + "video/"
	default:
		return playlistRoot + "mixed/"
	}
}

// ResolvePath qualifies a bare playlist name with the base path of its type.
// Values that already carry a scheme or a separator are returned unchanged.
func ResolvePath(value string, t PlaylistType) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if isQualified(value) {
		return value
	}
	return BasePath(t) + value
}

// DefaultPartyPlaylist is the party mode seed Kodi ships for a type.
func DefaultPartyPlaylist(t PlaylistType) string {
	if t == TypeMusic {
		return BasePath(t) + "Music.xsp"
	}
	return BasePath(t) + "Video.xsp"
}

func isQualified(value string) bool {
	return strings.Contains(value, "://") || strings.Contains(value, "/")
}
