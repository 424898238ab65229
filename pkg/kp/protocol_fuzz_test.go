package kp

import "testing"

func FuzzValidateCommandEnvelope(f *testing.F) {
	f.Add("id", "card.play", int64(1), "from", `{"index":0}`)
	f.Add("", "", int64(0), "", "")

	f.Fuzz(func(t *testing.T, id string, typ string, ts int64, from string, body string) {
		cmd := CommandEnvelope{
			ID:   id,
			Type: typ,
			TS:   ts,
			From: from,
			Body: []byte(body),
		}
		_ = ValidateCommandEnvelope(cmd)
	})
}
