package embeddedmqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"go.uber.org/zap"

	"github.com/mikey-austin/kodi_playlists/internal/adapters/tlsconf"
	"github.com/mikey-austin/kodi_playlists/pkg/kp"
)

// DefaultListen is the broker address used when none is configured.
const DefaultListen = "127.0.0.1:1883"

// Config configures the embedded MQTT broker.
type Config struct {
	Listen         string
	AllowAnonymous bool
	Username       string
	Password       string
	TLS            tlsconf.Files
	// TopicBase limits authenticated users to the protocol topics.
	TopicBase string
}

// Module runs an embedded MQTT broker for setups without one.
type Module struct {
	log    *zap.Logger
	server *mqtt.Server
	config Config
	ready  chan struct{}
}

// NewModule creates a new embedded broker module.
func NewModule(log *zap.Logger, cfg Config) (*Module, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = DefaultListen
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = kp.BaseTopic
	}

	server, err := newServer(log, cfg)
	if err != nil {
		return nil, err
	}
	return &Module{log: log, server: server, config: cfg, ready: make(chan struct{})}, nil
}

// Ready is closed once the listener accepts connections.
func (m *Module) Ready() <-chan struct{} {
	return m.ready
}

// BrokerURL returns the URL other modules should connect to.
func (m *Module) BrokerURL() string {
	return BrokerURL(m.config.Listen, !m.config.TLS.Empty())
}

// Run starts the embedded broker and stops it when ctx is done.
func (m *Module) Run(ctx context.Context) error {
	listenerConfig := listeners.Config{ID: "tcp-embedded", Address: m.config.Listen}
	if !m.config.TLS.Empty() {
		tlsConfig, err := tlsconf.Server(m.config.TLS)
		if err != nil {
			return fmt.Errorf("embedded mqtt tls: %w", err)
		}
		listenerConfig.TLSConfig = tlsConfig
	}

	if err := m.server.AddListener(listeners.NewTCP(listenerConfig)); err != nil {
		return fmt.Errorf("embedded mqtt listen: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.server.Serve()
	}()
	close(m.ready)
	m.log.Info("embedded mqtt listening", zap.String("listen", m.config.Listen))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
		<-ctx.Done()
	}
	return m.server.Close()
}

func newServer(log *zap.Logger, cfg Config) (*mqtt.Server, error) {
	server := mqtt.New(&mqtt.Options{InlineClient: true, Logger: newSlogLogger(log)})

	switch {
	case cfg.AllowAnonymous:
		if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
			return nil, err
		}
	case cfg.Username != "":
		if err := server.AddHook(new(auth.Hook), &auth.Options{Ledger: ledgerFor(cfg)}); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("embedded mqtt requires allow_anonymous or username")
	}
	return server, nil
}

func ledgerFor(cfg Config) *auth.Ledger {
	base := strings.TrimSuffix(cfg.TopicBase, "/")
	if base == "" {
		base = kp.BaseTopic
	}
	return &auth.Ledger{
		Auth: auth.AuthRules{{Username: auth.RString(cfg.Username), Password: auth.RString(cfg.Password), Allow: true}},
		ACL: auth.ACLRules{{
			Username: auth.RString(cfg.Username),
			Filters:  auth.Filters{auth.RString(base + "/#"): auth.ReadWrite},
		}},
	}
}

// BrokerURL returns the broker URL for a listen address.
func BrokerURL(listen string, tlsEnabled bool) string {
	scheme := "mqtt"
	if tlsEnabled {
		scheme = "mqtts"
	}
	return fmt.Sprintf("%s://%s", scheme, listen)
}
