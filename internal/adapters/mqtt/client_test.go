package mqtt

import (
	"testing"
	"time"

	"github.com/mikey-austin/kodi_playlists/pkg/kp"
)

func TestNewClientDefaults(t *testing.T) {
	c := newClient(Options{ClientID: "kp-abc"})
	if c.ReplyTopic() != "kp/v1/reply/kp-abc" {
		t.Fatalf("unexpected reply topic %q", c.ReplyTopic())
	}
	if c.timeout != 2*time.Second || c.presenceWindow != 250*time.Millisecond {
		t.Fatalf("unexpected defaults: %s %s", c.timeout, c.presenceWindow)
	}
}

func TestDeliverRoutesByID(t *testing.T) {
	c := newClient(Options{ClientID: "kp-abc"})
	ch := c.await("cmd-1")

	c.deliver([]byte(`{"id":"other","type":"ack","ok":true,"ts":1}`))
	c.deliver([]byte(`not json`))
	c.deliver([]byte(`{"id":"cmd-1","type":"ack","ok":true,"ts":1}`))

	select {
	case reply := <-ch:
		if reply.ID != "cmd-1" || !reply.OK {
			t.Fatalf("unexpected reply: %+v", reply)
		}
	default:
		t.Fatalf("expected reply")
	}

	c.forget("cmd-1")
	c.deliver([]byte(`{"id":"cmd-1","type":"ack","ok":true,"ts":2}`))
	if len(ch) != 0 {
		t.Fatalf("reply delivered after forget")
	}
}

func TestDecodePresence(t *testing.T) {
	if _, ok := decodePresence(nil); ok {
		t.Fatalf("empty payload should be ignored")
	}
	if _, ok := decodePresence([]byte(`{"kind":"card"}`)); ok {
		t.Fatalf("presence without node id should be ignored")
	}
	presence, ok := decodePresence([]byte(`{"nodeId":"kp:card:living_room","kind":"card","name":"Living room","ts":5}`))
	if !ok || presence.Kind != kp.KindCard || presence.Name != "Living room" {
		t.Fatalf("unexpected presence: %+v", presence)
	}
}
