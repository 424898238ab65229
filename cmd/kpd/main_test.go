package main

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/mikey-austin/kodi_playlists/internal/adapters/mqttserver"
	"github.com/mikey-austin/kodi_playlists/internal/card"
	"github.com/mikey-austin/kodi_playlists/internal/kpd"
	"github.com/mikey-austin/kodi_playlists/pkg/kp"
)

type nopTransport struct{}

func (nopTransport) Publish(string, byte, bool, []byte) error         { return nil }
func (nopTransport) Subscribe(string, byte, mqttserver.Handler) error { return nil }
func (nopTransport) Unsubscribe(string) error                         { return nil }

func testConfig(t *testing.T) (kpd.Config, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	body := "entity: media_player.kodi\nplaylists:\n  - playlist: Rock.xsp\n"
	if err := afero.WriteFile(fs, "/cards/den.yaml", []byte(body), 0o644); err != nil {
		t.Fatalf("write card: %v", err)
	}
	cfg := kpd.Config{
		Transports: map[string]kpd.TransportConfig{
			kpd.DefaultTransport: {Kind: "kodi", BaseURL: "http://kodi.local:8080"},
		},
		Cards: []kpd.CardConfig{{ID: "den", File: "/cards/den.yaml"}},
	}
	cfg.Server.TopicBase = kp.BaseTopic
	return cfg, fs
}

func TestBuildModulesCards(t *testing.T) {
	cfg, fs := testConfig(t)
	cfg.Modules.HTTPAPI.Enabled = true

	modules, err := buildModules(cfg, nopTransport{}, fs, zap.NewNop(), "", false)
	if err != nil {
		t.Fatalf("buildModules: %v", err)
	}
	if len(modules) != 2 || modules[0].Name != "card:den" || modules[1].Name != "http_api" {
		t.Fatalf("unexpected modules %+v", modules)
	}
}

func TestBuildModulesModuleOnlyFilter(t *testing.T) {
	cfg, fs := testConfig(t)

	modules, err := buildModules(cfg, nopTransport{}, fs, zap.NewNop(), "den", false)
	if err != nil {
		t.Fatalf("buildModules: %v", err)
	}
	if len(modules) != 1 {
		t.Fatalf("expected 1 module, got %d", len(modules))
	}

	if _, err := buildModules(cfg, nopTransport{}, fs, zap.NewNop(), "http_api", false); err == nil {
		t.Fatalf("expected error for disabled module")
	}
}

func TestBuildModulesMissingCardFile(t *testing.T) {
	cfg, fs := testConfig(t)
	cfg.Cards[0].File = "/cards/missing.yaml"
	if _, err := buildModules(cfg, nopTransport{}, fs, zap.NewNop(), "", false); err == nil {
		t.Fatalf("expected error for missing card file")
	}
}

func TestTimingFor(t *testing.T) {
	timing := timingFor(kpd.TimingConfig{Rounds: 5})
	if timing.Rounds != 5 || timing.InitialDelay == 0 || timing.RetryDelay == 0 {
		t.Fatalf("unexpected timing %+v", timing)
	}

	zero, retry := int64(0), int64(250)
	timing = timingFor(kpd.TimingConfig{InitialDelayMS: &zero, RetryDelayMS: &retry})
	if timing.InitialDelay != 0 || timing.RetryDelay != 250*time.Millisecond || timing.Rounds != card.DefaultTiming().Rounds {
		t.Fatalf("unexpected timing %+v", timing)
	}
}

func TestZeroDelaysSurviveCardDefaults(t *testing.T) {
	zero := int64(0)
	timing := timingFor(kpd.TimingConfig{InitialDelayMS: &zero, RetryDelayMS: &zero})
	if timing == (card.Timing{}) {
		t.Fatalf("zero delays must keep a round count so card defaults do not replace them")
	}
	if timing.InitialDelay != 0 || timing.RetryDelay != 0 {
		t.Fatalf("unexpected timing %+v", timing)
	}
}

func TestPresenceWillSingleCard(t *testing.T) {
	cfg, _ := testConfig(t)
	will := presenceWill(cfg)
	if will == nil || will.Topic != "kp/v1/node/kp:card:den/presence" {
		t.Fatalf("unexpected will %+v", will)
	}
	cfg.Cards = append(cfg.Cards, kpd.CardConfig{ID: "kitchen"})
	if presenceWill(cfg) != nil {
		t.Fatalf("expected no will for several cards")
	}
}
