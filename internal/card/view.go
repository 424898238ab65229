package card

import "github.com/mikey-austin/kodi_playlists/pkg/kp"

// EntryViews converts entries to their wire form, keeping their indexes.
func EntryViews(entries []Entry) []kp.EntryView {
	out := make([]kp.EntryView, 0, len(entries))
	for i, e := range entries {
		out = append(out, kp.EntryView{
			Index:        i,
			Name:         e.Name,
			Icon:         e.Icon,
			PlaylistType: string(e.PlaylistType),
			OpenMode:     string(e.OpenMode),
			Playlist:     e.Playlist,
			Directory:    e.Directory,
			RepeatMode:   string(e.RepeatMode),
			Shuffle:      EffectiveShuffle(e),
		})
	}
	return out
}

// CallView converts a service call to its wire form.
func CallView(call ServiceCall) kp.ServiceCall {
	return kp.ServiceCall{Domain: call.Domain, Service: call.Service, Data: call.Data}
}

// DebugViews converts debug records to their wire form.
func DebugViews(records []DebugRecord) []kp.DebugRecord {
	out := make([]kp.DebugRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, kp.DebugRecord{
			Status:    string(rec.Status),
			Timestamp: rec.Timestamp,
			Request:   CallView(rec.Request),
			Response:  rec.Response,
			Error:     rec.Error,
		})
	}
	return out
}

// StateView builds the retained state of c.
func StateView(c *Card) kp.CardState {
	snap := c.Snapshot()
	var ts int64
	if !snap.UpdatedAt.IsZero() {
		ts = snap.UpdatedAt.Unix()
	}
	return kp.CardState{
		Title:      c.Title(),
		Entity:     c.Entity(),
		State:      snap.State,
		NowPlaying: snap.NowPlaying,
		Hint:       c.Hint(),
		Entries:    len(c.Entries()),
		Debug:      c.Config().DebugEnabled(),
		TS:         ts,
	}
}
