package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/mikey-austin/kodi_playlists/internal/core"
	"github.com/mikey-austin/kodi_playlists/pkg/kp"
)

// HumanPrinter prints tables and short status lines.
type HumanPrinter struct {
	Out io.Writer
}

// Print renders human output.
func (p HumanPrinter) Print(v any) error {
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	switch data := v.(type) {
	case core.CardsResult:
		return printCards(out, data)
	case core.EntriesResult:
		return printEntries(out, data.Entries)
	case core.PlayResult:
		return line(out, "started %q on %s", data.Target, data.Card.Name)
	case core.PreviewResult:
		return printCall(out, data.Call)
	case core.SystemResult:
		return line(out, "sent %s to %s", data.Action, data.Card.Name)
	case core.DebugResult:
		return printDebug(out, data.Debug)
	case core.StatusResult:
		return printStatus(out, data)
	case core.ReloadResult:
		return printReload(out, data)
	case core.NormalizeResult:
		return printEntries(out, kp.EntriesReply{Title: data.Path, Hint: data.Hint, Entries: data.Entries})
	case core.RequestResult:
		return printCall(out, data.Call)
	default:
		return line(out, "ok")
	}
}

func line(out io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(out, format+"\n", args...)
	return err
}

func table(out io.Writer, data pterm.TableData) error {
	return pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(data).Render()
}

func printCards(out io.Writer, result core.CardsResult) error {
	if len(result.Cards) == 0 {
		return line(out, "no cards")
	}
	data := pterm.TableData{{"CARD", "NAME", "NODE_ID"}}
	for _, c := range result.Cards {
		data = append(data, []string{kp.CardIDFromNode(c.NodeID), c.Name, c.NodeID})
	}
	return table(out, data)
}

func printEntries(out io.Writer, entries kp.EntriesReply) error {
	if entries.Title != "" {
		if err := line(out, "%s", entries.Title); err != nil {
			return err
		}
	}
	if entries.Hint != "" {
		if err := line(out, "hint: %s", entries.Hint); err != nil {
			return err
		}
	}
	if len(entries.Entries) == 0 {
		return nil
	}
	data := pterm.TableData{{"#", "NAME", "TYPE", "MODE", "REPEAT", "SHUFFLE", "TARGET"}}
	for _, e := range entries.Entries {
		target := e.Playlist
		if e.OpenMode == "directory" && e.Directory != "" {
			target = e.Directory
		}
		data = append(data, []string{
			strconv.Itoa(e.Index),
			e.Name,
			e.PlaylistType,
			e.OpenMode,
			e.RepeatMode,
			onOff(e.Shuffle),
			target,
		})
	}
	return table(out, data)
}

func printCall(out io.Writer, call kp.ServiceCall) error {
	payload, err := json.MarshalIndent(call.Data, "", "  ")
	if err != nil {
		return err
	}
	if err := line(out, "%s.%s", call.Domain, call.Service); err != nil {
		return err
	}
	return line(out, "%s", payload)
}

func printDebug(out io.Writer, debug kp.DebugReply) error {
	if !debug.Enabled {
		return line(out, "debug is off for this card")
	}
	if len(debug.Records) == 0 {
		return line(out, "no requests recorded")
	}
	data := pterm.TableData{{"TIME", "STATUS", "METHOD", "DETAIL"}}
	for _, rec := range debug.Records {
		method, _ := rec.Request.Data["method"].(string)
		detail := rec.Error
		if detail == "" {
			detail = truncate(string(rec.Response), 60)
		}
		data = append(data, []string{rec.Timestamp, rec.Status, method, detail})
	}
	return table(out, data)
}

func printStatus(out io.Writer, result core.StatusResult) error {
	state := result.State
	parts := []string{fmt.Sprintf("%s  [%s]", state.Title, state.State)}
	if state.Entity != "" {
		parts = append(parts, state.Entity)
	}
	if state.NowPlaying != "" {
		parts = append(parts, state.NowPlaying)
	}
	parts = append(parts, fmt.Sprintf("%d entries", state.Entries))
	if err := line(out, "%s", strings.Join(parts, "  ")); err != nil {
		return err
	}
	if state.Hint != "" {
		return line(out, "hint: %s", state.Hint)
	}
	return nil
}

func printReload(out io.Writer, result core.ReloadResult) error {
	if err := line(out, "reloaded %s: %d entries", result.Card.Name, result.Reload.Entries); err != nil {
		return err
	}
	if result.Reload.Hint != "" {
		return line(out, "hint: %s", result.Reload.Hint)
	}
	return nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
