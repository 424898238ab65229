package mqttserver

import (
	"strings"
	"testing"
	"time"

	"github.com/mikey-austin/kodi_playlists/internal/adapters/tlsconf"
)

func TestClientOptions(t *testing.T) {
	opts, err := clientOptions(Options{
		BrokerURL: "tcp://localhost:1883",
		ClientID:  "kpd-test",
		Username:  "kp",
		Password:  "secret",
		Will:      &Will{Topic: "kp/v1/node/x/presence", Payload: []byte{}},
	})
	if err != nil {
		t.Fatalf("client options: %v", err)
	}
	if opts.ClientID != "kpd-test" || opts.Username != "kp" {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if !opts.WillEnabled || !opts.WillRetained || opts.WillTopic != "kp/v1/node/x/presence" {
		t.Fatalf("expected retained will")
	}
	if opts.ConnectTimeout != 2*time.Second {
		t.Fatalf("expected default timeout, got %s", opts.ConnectTimeout)
	}
}

func TestClientOptionsRejectsHalfKeyPair(t *testing.T) {
	_, err := clientOptions(Options{BrokerURL: "tcp://localhost:1883", TLS: tlsconf.Files{Cert: "c.pem"}})
	if err == nil {
		t.Fatalf("expected tls error")
	}
}

func TestTruncatePayload(t *testing.T) {
	long := strings.Repeat("x", 3000)
	got := truncatePayload([]byte(long))
	if len(got) != 2048+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected truncation length %d", len(got))
	}
	if truncatePayload([]byte("short")) != "short" {
		t.Fatalf("short payload changed")
	}
}
