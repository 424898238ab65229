package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/mikey-austin/kodi_playlists/internal/adapters/hass"
	"github.com/mikey-austin/kodi_playlists/internal/adapters/kodirpc"
	"github.com/mikey-austin/kodi_playlists/internal/adapters/mqttserver"
	"github.com/mikey-austin/kodi_playlists/internal/adapters/tlsconf"
	"github.com/mikey-austin/kodi_playlists/internal/card"
	"github.com/mikey-austin/kodi_playlists/internal/kpd"
	"github.com/mikey-austin/kodi_playlists/internal/metrics"
	cardnode "github.com/mikey-austin/kodi_playlists/internal/modules/card_node"
	embeddedmqtt "github.com/mikey-austin/kodi_playlists/internal/modules/embedded_mqtt"
	httpapi "github.com/mikey-austin/kodi_playlists/internal/modules/http_api"
	"github.com/mikey-austin/kodi_playlists/internal/ports"
	"github.com/mikey-austin/kodi_playlists/pkg/kp"
)

const embeddedReadyTimeout = 3 * time.Second

func main() {
	var (
		configPath  string
		broker      string
		identity    string
		topicBase   string
		logLevel    string
		logFormat   string
		logOutput   string
		logSource   bool
		logUTC      bool
		logColor    bool
		printConfig bool
		dryRun      bool
		moduleOnly  string
	)

	defaultConfig, err := kpd.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&broker, "broker", "", "MQTT broker URL override")
	flag.StringVar(&identity, "identity", "", "server identity override")
	flag.StringVar(&topicBase, "topic-base", "", "topic base override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (text|json)")
	flag.StringVar(&logOutput, "log-output", "", "log output override (stdout|stderr|path)")
	flag.BoolVar(&logSource, "log-source", false, "include source file in logs")
	flag.BoolVar(&logUTC, "log-utc", false, "use UTC timestamps in logs")
	flag.BoolVar(&logColor, "log-color", false, "enable colored log output (text only)")
	flag.StringVar(&moduleOnly, "module", "", "limit to a single module (embedded_mqtt, http_api or a card id)")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := kpd.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(&cfg, broker, identity, topicBase, logLevel, logFormat, logOutput, logSource, logUTC, logColor)

	if printConfig {
		printResolvedConfig(cfg)
		return
	}
	if dryRun {
		return
	}

	logger := kpd.NewLogger(kpd.LogConfig{
		Level:     cfg.Server.LogLevel,
		Format:    cfg.Server.LogFormat,
		Output:    cfg.Server.LogOutput,
		AddSource: cfg.Server.LogSource,
		UTC:       cfg.Server.LogUTC,
		Color:     cfg.Server.LogColor,
		Rotate:    cfg.Server.LogRotate,
	})
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	skipEmbedded := false
	if moduleOnly != "embedded_mqtt" && cfg.Modules.EmbeddedMQTT.Enabled && cfg.Server.Broker == embeddedBrokerURL(cfg) {
		if err := startEmbeddedBroker(ctx, cfg, logger, cancel); err != nil {
			logger.Error("embedded mqtt failed", zap.Error(err))
			os.Exit(1)
		}
		skipEmbedded = true
	}

	if cfg.Server.Broker == "" && !(moduleOnly == "embedded_mqtt" && cfg.Modules.EmbeddedMQTT.Enabled) {
		logger.Error("broker is required")
		os.Exit(1)
	}
	logger.Info("kpd starting",
		zap.String("broker", cfg.Server.Broker),
		zap.String("identity", cfg.Server.Identity),
		zap.String("topic_base", cfg.Server.TopicBase),
		zap.String("log_level", cfg.Server.LogLevel),
		zap.Int("cards", len(cfg.Cards)),
		zap.Strings("modules", enabledModules(cfg)),
	)

	var client *mqttserver.Client
	if moduleOnly != "embedded_mqtt" {
		client, err = mqttserver.NewClient(mqttserver.Options{
			BrokerURL: cfg.Server.Broker,
			ClientID:  fmt.Sprintf("kpd-%d", time.Now().UnixNano()),
			Username:  cfg.Server.Auth.User,
			Password:  cfg.Server.Auth.Pass,
			TLS:       tlsconf.Files{CA: cfg.Server.TLS.CA, Cert: cfg.Server.TLS.Cert, Key: cfg.Server.TLS.Key},
			Timeout:   2 * time.Second,
			Will:      presenceWill(cfg),
			Logger:    logger.With(zap.String("component", "mqtt")),
		})
		if err != nil {
			logger.Error("mqtt connection failed", zap.Error(err))
			os.Exit(1)
		}
		defer client.Close()
	}

	var transport cardnode.Transport
	if client != nil {
		transport = client
	}
	modules, err := buildModules(cfg, transport, afero.NewOsFs(), logger, moduleOnly, skipEmbedded)
	if err != nil {
		logger.Error("failed to build modules", zap.Error(err))
		os.Exit(1)
	}

	supervisor := kpd.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

func applyOverrides(cfg *kpd.Config, broker string, identity string, topicBase string, logLevel string, logFormat string, logOutput string, logSource bool, logUTC bool, logColor bool) {
	if broker != "" {
		cfg.Server.Broker = broker
	}
	if identity != "" {
		cfg.Server.Identity = identity
	}
	if topicBase != "" {
		cfg.Server.TopicBase = topicBase
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Server.LogFormat = logFormat
	}
	if logOutput != "" {
		cfg.Server.LogOutput = logOutput
	}
	if logSource {
		cfg.Server.LogSource = true
	}
	if logUTC {
		cfg.Server.LogUTC = true
	}
	if logColor {
		cfg.Server.LogColor = true
	}
	if cfg.Server.TopicBase == "" {
		cfg.Server.TopicBase = kp.BaseTopic
	}
	if cfg.Server.Identity == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Server.Identity = host
		}
	}
	if cfg.Server.Broker == "" && cfg.Modules.EmbeddedMQTT.Enabled {
		cfg.Server.Broker = embeddedBrokerURL(*cfg)
	}
}

// buildModules wires transports, cards and the optional embedded broker
// and HTTP API into supervised modules.
func buildModules(cfg kpd.Config, client cardnode.Transport, fs afero.Fs, logger *zap.Logger, moduleOnly string, skipEmbedded bool) ([]kpd.ModuleRunner, error) {
	modules := []kpd.ModuleRunner{}
	wanted := func(name string) bool {
		return moduleOnly == "" || moduleOnly == name
	}

	if cfg.Modules.EmbeddedMQTT.Enabled && !skipEmbedded && wanted("embedded_mqtt") {
		mod, err := newEmbeddedBroker(cfg, logger)
		if err != nil {
			return nil, err
		}
		modules = append(modules, kpd.ModuleRunner{Name: "embedded_mqtt", Run: mod.Run})
	}

	callers := map[string]callerState{}
	// Entity ids are only unique within one transport.
	guards := map[string]*card.Guard{}
	cards := []*card.Card{}
	for _, cardCfg := range cfg.Cards {
		if !wanted(cardCfg.ID) && !(moduleOnly == "http_api" && cfg.Modules.HTTPAPI.Enabled) {
			continue
		}
		if client == nil {
			return nil, fmt.Errorf("card %s: mqtt client required", cardCfg.ID)
		}
		name := cardCfg.TransportName()
		cs, ok := callers[name]
		if !ok {
			var err error
			cs, err = newTransport(cfg.Transports[name])
			if err != nil {
				return nil, fmt.Errorf("transport %s: %w", name, err)
			}
			callers[name] = cs
			guards[name] = card.NewGuard()
		}

		cardLog := logger.With(zap.String("module", "card"), zap.String("card", cardCfg.ID))
		mod, err := cardnode.NewModule(cardLog, client, cardnode.Config{
			TopicBase: cfg.Server.TopicBase,
			File:      cardCfg.File,
			Fs:        fs,
			Watch:     cardCfg.WatchEnabled(),
			Refresh:   time.Duration(cardCfg.RefreshSeconds) * time.Second,
		}, card.Options{
			ID:        cardCfg.ID,
			Caller:    metrics.InstrumentCaller(cs.caller),
			States:    cs.states,
			Logger:    cardLog,
			Timing:    timingFor(cfg.Timing),
			Exclusive: cardCfg.Exclusive,
			Guard:     guards[name],
		})
		if err != nil {
			return nil, fmt.Errorf("card %s: %w", cardCfg.ID, err)
		}
		cards = append(cards, mod.Card())
		if wanted(cardCfg.ID) {
			modules = append(modules, kpd.ModuleRunner{Name: "card:" + cardCfg.ID, Run: mod.Run})
		}
	}

	if cfg.Modules.HTTPAPI.Enabled && wanted("http_api") {
		mod, err := httpapi.NewModule(logger.With(zap.String("module", "http_api")), httpapi.Config{
			Listen:    cfg.Modules.HTTPAPI.Listen,
			RateLimit: cfg.Modules.HTTPAPI.RateLimit,
			Burst:     cfg.Modules.HTTPAPI.Burst,
		}, cards)
		if err != nil {
			return nil, err
		}
		modules = append(modules, kpd.ModuleRunner{Name: "http_api", Run: mod.Run})
	}

	if moduleOnly != "" && len(modules) == 0 {
		return nil, errors.New("no modules enabled")
	}
	return modules, nil
}

type callerState struct {
	caller ports.ServiceCaller
	states ports.StateReader
}

func newTransport(cfg kpd.TransportConfig) (callerState, error) {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	switch cfg.Kind {
	case "hass":
		client, err := hass.NewClient(cfg.BaseURL, cfg.Token, timeout)
		if err != nil {
			return callerState{}, err
		}
		return callerState{caller: client, states: client}, nil
	case "kodi":
		client, err := kodirpc.NewClient(cfg.BaseURL, cfg.Username, cfg.Password, timeout)
		if err != nil {
			return callerState{}, err
		}
		return callerState{caller: client, states: client}, nil
	default:
		return callerState{}, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

// timingFor overlays configured delays on the defaults.
func timingFor(cfg kpd.TimingConfig) card.Timing {
	timing := card.DefaultTiming()
	if cfg.InitialDelayMS != nil {
		timing.InitialDelay = time.Duration(*cfg.InitialDelayMS) * time.Millisecond
	}
	if cfg.RetryDelayMS != nil {
		timing.RetryDelay = time.Duration(*cfg.RetryDelayMS) * time.Millisecond
	}
	if cfg.Rounds > 0 {
		timing.Rounds = cfg.Rounds
	}
	return timing
}

// presenceWill clears the presence of a lone card if kpd dies without
// shutting down. With several cards on one connection only the clean
// shutdown path clears presence.
func presenceWill(cfg kpd.Config) *mqttserver.Will {
	if len(cfg.Cards) != 1 {
		return nil
	}
	return &mqttserver.Will{
		Topic:   kp.TopicPresence(cfg.Server.TopicBase, kp.CardNodeID(cfg.Cards[0].ID)),
		Payload: []byte{},
	}
}

func enabledModules(cfg kpd.Config) []string {
	out := []string{}
	if cfg.Modules.EmbeddedMQTT.Enabled {
		out = append(out, "embedded_mqtt")
	}
	for _, c := range cfg.Cards {
		out = append(out, "card:"+c.ID)
	}
	if cfg.Modules.HTTPAPI.Enabled {
		out = append(out, "http_api")
	}
	return out
}

func printResolvedConfig(cfg kpd.Config) {
	fmt.Fprintf(os.Stdout,
		"broker=%s identity=%s topic_base=%s log_level=%s log_format=%s log_output=%s cards=%d transports=%d\n",
		cfg.Server.Broker,
		cfg.Server.Identity,
		cfg.Server.TopicBase,
		cfg.Server.LogLevel,
		cfg.Server.LogFormat,
		cfg.Server.LogOutput,
		len(cfg.Cards),
		len(cfg.Transports),
	)
	for _, c := range cfg.Cards {
		fmt.Fprintf(os.Stdout, "card id=%s file=%s transport=%s exclusive=%t\n", c.ID, c.File, c.TransportName(), c.Exclusive)
	}
}

func embeddedTLS(cfg kpd.Config) tlsconf.Files {
	return tlsconf.Files{
		CA:   cfg.Modules.EmbeddedMQTT.TLSCA,
		Cert: cfg.Modules.EmbeddedMQTT.TLSCert,
		Key:  cfg.Modules.EmbeddedMQTT.TLSKey,
	}
}

func embeddedBrokerURL(cfg kpd.Config) string {
	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = embeddedmqtt.DefaultListen
	}
	return embeddedmqtt.BrokerURL(listen, !embeddedTLS(cfg).Empty())
}

func newEmbeddedBroker(cfg kpd.Config, logger *zap.Logger) (*embeddedmqtt.Module, error) {
	return embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedmqtt.Config{
		Listen:         cfg.Modules.EmbeddedMQTT.Listen,
		AllowAnonymous: cfg.Modules.EmbeddedMQTT.AllowAnonymous,
		Username:       cfg.Modules.EmbeddedMQTT.Username,
		Password:       cfg.Modules.EmbeddedMQTT.Password,
		TLS:            embeddedTLS(cfg),
		TopicBase:      cfg.Server.TopicBase,
	})
}

// startEmbeddedBroker runs the broker outside the supervisor so the MQTT
// client can connect before the card modules start.
func startEmbeddedBroker(ctx context.Context, cfg kpd.Config, logger *zap.Logger, cancel context.CancelFunc) error {
	mod, err := newEmbeddedBroker(cfg, logger)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- mod.Run(ctx)
	}()

	select {
	case <-mod.Ready():
	case err := <-errCh:
		if err == nil {
			err = errors.New("embedded mqtt stopped before ready")
		}
		return err
	case <-time.After(embeddedReadyTimeout):
		return fmt.Errorf("embedded mqtt not ready at %s", mod.BrokerURL())
	}

	go func() {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("embedded mqtt exited", zap.Error(err))
			cancel()
		}
	}()
	return nil
}
