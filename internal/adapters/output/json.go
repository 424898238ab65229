package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mikey-austin/kodi_playlists/internal/core"
)

// JSONPrinter prints indented JSON.
type JSONPrinter struct {
	Out io.Writer
}

// Print renders JSON output. Results are unwrapped to their wire payloads.
func (p JSONPrinter) Print(v any) error {
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	payload, err := json.MarshalIndent(jsonView(v), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(payload))
	return err
}

func jsonView(v any) any {
	switch data := v.(type) {
	case core.CardsResult:
		return data.Cards
	case core.EntriesResult:
		return data.Entries
	case core.PreviewResult:
		return data.Call
	case core.DebugResult:
		return data.Debug
	case core.StatusResult:
		return data.State
	case core.ReloadResult:
		return data.Reload
	case core.RequestResult:
		return data.Call
	case core.NormalizeResult:
		return map[string]any{"entries": data.Entries, "config": data.Config, "hint": data.Hint}
	case core.PlayResult:
		return map[string]any{"card": data.Card.NodeID, "entry": data.Target, "ok": true}
	case core.SystemResult:
		return map[string]any{"card": data.Card.NodeID, "action": data.Action, "ok": true}
	default:
		return v
	}
}
