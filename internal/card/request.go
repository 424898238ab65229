package card

import (
	"errors"
	"fmt"
	"strings"
)

// Home Assistant service and Kodi JSON-RPC method names.
const (
	ServiceDomain     = "kodi"
	ServiceCallMethod = "call_method"

	MethodPlayerOpen     = "Player.Open"
	MethodActivateWindow = "GUI.ActivateWindow"
	MethodSetRepeat      = "Player.SetRepeat"
	MethodSetShuffle     = "Player.SetShuffle"
	MethodSystemReboot   = "System.Reboot"
	MethodSystemShutdown = "System.Shutdown"
)

// ErrUnknownAction is returned for system actions other than reboot and
// shutdown.
var ErrUnknownAction = errors.New("unknown system action")

// ServiceCall is one outbound kodi.call_method invocation.
type ServiceCall struct {
	Domain  string         `json:"domain"`
	Service string         `json:"service"`
	Data    map[string]any `json:"data"`
}

// Method returns the JSON-RPC method carried in the call data.
func (c ServiceCall) Method() string {
	m, _ := c.Data["method"].(string)
	return m
}

func newCall(entityID string, method string) ServiceCall {
	return ServiceCall{
		Domain:  ServiceDomain,
		Service: ServiceCallMethod,
		Data: map[string]any{
			"entity_id": entityID,
			"method":    method,
		},
	}
}

// OpenStrategy is how an entry starts playback. The variants are closed:
// CustomParams, WindowActivate, DirectoryOpen, PartyModeOpen and FileOpen.
type OpenStrategy interface {
	openStrategy()
}

// CustomParams sends the configured params verbatim.
type CustomParams struct {
	Params map[string]any
}

// WindowActivate opens a GUI window on the playlist.
type WindowActivate struct {
	Window     string
	Parameters []string
}

// DirectoryOpen lists a directory into the player.
type DirectoryOpen struct {
	Directory string
}

// PartyModeOpen starts party mode on a keyword or a seed playlist.
type PartyModeOpen struct {
	Target string
}

// FileOpen opens a single file or playlist file.
type FileOpen struct {
	File string
}

func (CustomParams) openStrategy()   {}
func (WindowActivate) openStrategy() {}
func (DirectoryOpen) openStrategy()  {}
func (PartyModeOpen) openStrategy()  {}
func (FileOpen) openStrategy()       {}

// SelectStrategy picks exactly one open strategy for an entry.
func SelectStrategy(e Entry) OpenStrategy {
	if e.Params != nil {
		return CustomParams{Params: e.Params}
	}
	method := methodOf(e)
	if strings.EqualFold(method, MethodActivateWindow) {
		return WindowActivate{Window: windowOf(e), Parameters: []string{e.Playlist}}
	}
	if !strings.EqualFold(method, MethodPlayerOpen) {
		return FileOpen{File: e.Playlist}
	}

	switch e.OpenMode {
	case OpenDirectory:
		// Kodi cannot list a single smart playlist as a directory.
		if strings.HasSuffix(strings.ToLower(e.Directory), ".xsp") {
			return FileOpen{File: e.Directory}
		}
		return DirectoryOpen{Directory: e.Directory}
	case OpenPartyMode:
		return PartyModeOpen{Target: partyTarget(e)}
	default:
		return FileOpen{File: e.Playlist}
	}
}

// BuildRequest translates an entry into the kodi.call_method payload.
func BuildRequest(e Entry, entityID string) ServiceCall {
	call := newCall(entityID, methodOf(e))

	var item map[string]any
	switch s := SelectStrategy(e).(type) {
	case CustomParams:
		for k, v := range s.Params {
			call.Data[k] = v
		}
		call.Data["entity_id"] = entityID
		if opts, ok := asStringMap(call.Data["options"]); ok {
			call.Data["options"] = withoutInlinePlayback(opts)
		}
		return call
	case WindowActivate:
		call.Data["method"] = MethodActivateWindow
		call.Data["window"] = s.Window
		call.Data["parameters"] = s.Parameters
		return call
	case DirectoryOpen:
		item = map[string]any{"directory": s.Directory}
	case PartyModeOpen:
		item = map[string]any{"partymode": s.Target}
	case FileOpen:
		item = map[string]any{"file": s.File}
	}

	if e.Item != nil {
		item = e.Item.payload()
	}
	call.Data["item"] = item
	if opts := withoutInlinePlayback(resumeOptions(e.Resume)); len(opts) > 0 {
		call.Data["options"] = opts
	}
	return call
}

// BuildSystemCall builds a reboot or shutdown call.
func BuildSystemCall(action string, entityID string) (ServiceCall, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "reboot":
		return newCall(entityID, MethodSystemReboot), nil
	case "shutdown":
		return newCall(entityID, MethodSystemShutdown), nil
	default:
		return ServiceCall{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func methodOf(e Entry) string {
	return firstNonEmpty(e.Method, DefaultMethod)
}

func windowOf(e Entry) string {
	if e.Window != "" {
		return e.Window
	}
	if e.PlaylistType == TypeMusic {
		return "music"
	}
	return "videos"
}

func partyTarget(e Entry) string {
	keyword := "video"
	if e.PlaylistType == TypeMusic {
		keyword = "music"
	}
	explicit := e.PartymodePlaylist
	if explicit == "" || strings.EqualFold(explicit, DefaultPartyPlaylist(e.PlaylistType)) {
		return keyword
	}
	return explicit
}

func resumeOptions(r Resume) map[string]any {
	switch r.Mode {
	case ResumeTrue:
		return map[string]any{"resume": true}
	case ResumeFalse:
		return map[string]any{"resume": false}
	case ResumePercent:
		return map[string]any{"resume": r.Percent}
	case ResumeTime:
		return map[string]any{"resume": r.At.payload()}
	default:
		return nil
	}
}

// withoutInlinePlayback drops repeat and shuffled. Kodi ignores them while
// opening, so they are applied afterwards as separate commands.
func withoutInlinePlayback(opts map[string]any) map[string]any {
	if opts == nil {
		return nil
	}
	out := make(map[string]any, len(opts))
	for k, v := range opts {
		if k == "repeat" || k == "shuffled" {
			continue
		}
		out[k] = v
	}
	return out
}
