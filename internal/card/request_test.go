package card

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const entity = "media_player.kodi"

func buildOne(t *testing.T, item RawPlaylistItem) ServiceCall {
	t.Helper()
	entries := Normalize(RawConfig{Entity: entity, Playlists: []RawPlaylistItem{item}})
	require.Len(t, entries, 1)
	return BuildRequest(entries[0], entity)
}

func TestBuildRequestFile(t *testing.T) {
	call := buildOne(t, RawPlaylistItem{Playlist: "special://profile/playlists/music/Rock.xsp"})

	require.Equal(t, ServiceDomain, call.Domain)
	require.Equal(t, ServiceCallMethod, call.Service)
	require.Equal(t, map[string]any{
		"entity_id": entity,
		"method":    MethodPlayerOpen,
		"item":      map[string]any{"file": "special://profile/playlists/music/Rock.xsp"},
	}, call.Data)
}

func TestBuildRequestPartyModeDefaultTarget(t *testing.T) {
	call := buildOne(t, RawPlaylistItem{
		Playlist:     "Filme.xsp",
		PlaylistType: "video",
		OpenMode:     "partymode",
	})
	require.Equal(t, map[string]any{"partymode": "video"}, call.Data["item"])

	call = buildOne(t, RawPlaylistItem{
		Playlist:          "Rock.xsp",
		PlaylistType:      "music",
		OpenMode:          "partymode",
		PartymodePlaylist: "special://profile/playlists/music/MUSIC.xsp",
	})
	require.Equal(t, map[string]any{"partymode": "music"}, call.Data["item"])
}

func TestBuildRequestPartyModeExplicitSeed(t *testing.T) {
	call := buildOne(t, RawPlaylistItem{
		Playlist:          "Rock.xsp",
		PlaylistType:      "music",
		OpenMode:          "partymode",
		PartymodePlaylist: "Seed.xsp",
	})
	require.Equal(t, map[string]any{"partymode": "special://profile/playlists/music/Seed.xsp"}, call.Data["item"])
}

func TestBuildRequestDirectory(t *testing.T) {
	call := buildOne(t, RawPlaylistItem{
		OpenMode:  "directory",
		Directory: "special://profile/playlists/video/Filme.xsp",
	})
	require.Equal(t, map[string]any{"file": "special://profile/playlists/video/Filme.xsp"}, call.Data["item"])

	call = buildOne(t, RawPlaylistItem{
		OpenMode:     "directory",
		PlaylistType: "video",
		Directory:    "Movies",
	})
	require.Equal(t, map[string]any{"directory": "special://profile/playlists/video/Movies"}, call.Data["item"])
}

func TestBuildRequestSelectorOverridesItem(t *testing.T) {
	call := buildOne(t, RawPlaylistItem{
		Playlist:       "special://profile/playlists/music/Rock.xsp",
		OpenMode:       "partymode",
		ItemPlaylistID: 5,
		ItemPosition:   2,
	})
	require.Equal(t, map[string]any{"playlistid": 5, "position": 2}, call.Data["item"])

	call = buildOne(t, RawPlaylistItem{
		Playlist:   "x.xsp",
		ItemPath:   "special://music/",
		ItemRandom: "true",
	})
	require.Equal(t, map[string]any{"path": "special://music/", "random": true}, call.Data["item"])
}

func TestBuildRequestResumeOptions(t *testing.T) {
	call := buildOne(t, RawPlaylistItem{
		Playlist:          "x.xsp",
		OptionsResumeMode: "time",
		OptionsResumeTime: "00:10:30",
	})
	require.Equal(t, map[string]any{
		"resume": map[string]any{"hours": 0, "minutes": 10, "seconds": 30, "milliseconds": 0},
	}, call.Data["options"])

	call = buildOne(t, RawPlaylistItem{
		Playlist:             "x.xsp",
		OptionsResumeMode:    "percent",
		OptionsResumePercent: 42.5,
	})
	require.Equal(t, map[string]any{"resume": 42.5}, call.Data["options"])

	call = buildOne(t, RawPlaylistItem{Playlist: "x.xsp", OptionsResumeMode: "false"})
	require.Equal(t, map[string]any{"resume": false}, call.Data["options"])
}

func TestBuildRequestNoOptionsWhenResumeAbsent(t *testing.T) {
	call := buildOne(t, RawPlaylistItem{
		Playlist:        "x.xsp",
		OptionsRepeat:   "all",
		OptionsShuffled: true,
	})
	require.NotContains(t, call.Data, "options")
}

func TestBuildRequestCustomParams(t *testing.T) {
	call := buildOne(t, RawPlaylistItem{
		Playlist: "ignored.xsp",
		Params: map[string]any{
			"entity_id": "media_player.other",
			"item":      map[string]any{"file": "custom.m3u"},
			"options":   map[string]any{"repeat": "all", "shuffled": true, "resume": true},
		},
	})
	require.Equal(t, entity, call.Data["entity_id"])
	require.Equal(t, MethodPlayerOpen, call.Data["method"])
	require.Equal(t, map[string]any{"file": "custom.m3u"}, call.Data["item"])
	require.Equal(t, map[string]any{"resume": true}, call.Data["options"])
}

func TestBuildRequestWindow(t *testing.T) {
	call := buildOne(t, RawPlaylistItem{
		Playlist: "special://profile/playlists/music/Rock.xsp",
		Method:   "GUI.ActivateWindow",
	})
	require.Equal(t, map[string]any{
		"entity_id":  entity,
		"method":     MethodActivateWindow,
		"window":     "music",
		"parameters": []string{"special://profile/playlists/music/Rock.xsp"},
	}, call.Data)

	require.IsType(t, WindowActivate{}, SelectStrategy(Entry{Method: "gui.activatewindow", PlaylistType: TypeVideo}))
	require.Equal(t, "videos", windowOf(Entry{PlaylistType: TypeVideo}))
}

func TestSelectStrategy(t *testing.T) {
	cases := []struct {
		name  string
		entry Entry
		want  OpenStrategy
	}{
		{"params win", Entry{Params: map[string]any{}, Method: "GUI.ActivateWindow"}, CustomParams{Params: map[string]any{}}},
		{"unknown method", Entry{Method: "Player.Stop", Playlist: "p"}, FileOpen{File: "p"}},
		{"directory", Entry{OpenMode: OpenDirectory, Directory: "special://d/"}, DirectoryOpen{Directory: "special://d/"}},
		{"directory xsp", Entry{OpenMode: OpenDirectory, Directory: "special://d/A.XSP"}, FileOpen{File: "special://d/A.XSP"}},
		{"file", Entry{OpenMode: OpenFile, Playlist: "p"}, FileOpen{File: "p"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, SelectStrategy(tc.entry))
		})
	}
}

func TestBuildSystemCall(t *testing.T) {
	call, err := BuildSystemCall("Reboot", entity)
	require.NoError(t, err)
	require.Equal(t, MethodSystemReboot, call.Method())

	call, err = BuildSystemCall("shutdown", entity)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"entity_id": entity, "method": MethodSystemShutdown}, call.Data)

	_, err = BuildSystemCall("hibernate", entity)
	require.ErrorIs(t, err, ErrUnknownAction)
}
