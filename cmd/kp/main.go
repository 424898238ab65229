package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pterm/pterm"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mikey-austin/kodi_playlists/internal/adapters/config"
	"github.com/mikey-austin/kodi_playlists/internal/adapters/idgen"
	"github.com/mikey-austin/kodi_playlists/internal/adapters/mqtt"
	"github.com/mikey-austin/kodi_playlists/internal/adapters/output"
	"github.com/mikey-austin/kodi_playlists/internal/adapters/tlsconf"
	"github.com/mikey-austin/kodi_playlists/internal/core"
	"github.com/mikey-austin/kodi_playlists/pkg/kp"
)

// offline marks commands that work on local files without a broker.
const offline = "offline"

type app struct {
	service core.Service
	printer output.Printer
	fs      afero.Fs
	quiet   bool
	timeout time.Duration
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(core.ExitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "kp",
		Short:         "Kodi playlist card CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	var (
		broker    string
		topicBase string
		identity  string
		timeout   time.Duration
		quiet     bool
		jsonOut   bool
		noColor   bool
		tlsCA     string
		tlsCert   string
		tlsKey    string
		userOpt   string
		passOpt   string
	)

	root.PersistentFlags().StringVarP(&broker, "broker", "b", "", "MQTT broker URL")
	root.PersistentFlags().StringVar(&topicBase, "topic-base", kp.BaseTopic, "MQTT topic base")
	root.PersistentFlags().StringVarP(&identity, "identity", "i", "", "controller identity")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 2*time.Second, "command timeout")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color")
	root.PersistentFlags().StringVar(&tlsCA, "tls-ca", "", "TLS CA path")
	root.PersistentFlags().StringVar(&tlsCert, "tls-cert", "", "TLS cert path")
	root.PersistentFlags().StringVar(&tlsKey, "tls-key", "", "TLS key path")
	root.PersistentFlags().StringVar(&userOpt, "user", "", "MQTT username")
	root.PersistentFlags().StringVar(&passOpt, "pass", "", "MQTT password")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if noColor {
			pterm.DisableColor()
		}

		a := &app{
			printer: output.New(jsonOut, cmd.OutOrStdout()),
			fs:      afero.NewOsFs(),
			quiet:   quiet,
			timeout: timeout,
		}
		if cmd.Annotations[offline] != "" {
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return core.WrapError(core.ExitUsage, "load config", err)
		}
		identity = defaultIdentity(identity, cfg.Identity)
		if broker == "" {
			broker = cfg.Broker
		}
		if topicBase == kp.BaseTopic && cfg.TopicBase != "" {
			topicBase = cfg.TopicBase
		}
		if broker == "" {
			return core.UsageError("broker is required (set --broker or config)")
		}
		files := tlsconf.Files{CA: tlsCA, Cert: tlsCert, Key: tlsKey}
		if files.Empty() {
			files = tlsconf.Files{CA: cfg.TLS.CA, Cert: cfg.TLS.Cert, Key: cfg.TLS.Key}
		}

		mqttClient, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: broker,
			ClientID:  fmt.Sprintf("kp-%d", time.Now().UnixNano()),
			Username:  userOpt,
			Password:  passOpt,
			TLS:       files,
			TopicBase: topicBase,
			Timeout:   timeout,
		})
		if err != nil {
			return core.WrapError(core.ExitRuntime, "connect broker", err)
		}
		cobra.OnFinalize(mqttClient.Close)

		coreCfg := core.Config{
			Broker:      broker,
			Identity:    identity,
			TopicBase:   topicBase,
			Aliases:     cfg.Aliases,
			DefaultCard: cfg.Defaults.Card,
		}
		a.service = core.Service{
			Broker:   mqttClient,
			Resolver: core.Resolver{Presence: mqttClient, Config: coreCfg},
			Clock:    clockwork.NewRealClock(),
			IDGen:    idgen.Generator{},
			Config:   coreCfg,
		}
		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
		return nil
	}

	root.AddCommand(lsCommand())
	root.AddCommand(entriesCommand())
	root.AddCommand(playCommand())
	root.AddCommand(previewCommand())
	root.AddCommand(systemCommand())
	root.AddCommand(debugCommand())
	root.AddCommand(statusCommand())
	root.AddCommand(reloadCommand())
	root.AddCommand(normalizeCommand())
	root.AddCommand(requestCommand())

	return root
}

type appKey struct{}

func fromContext(cmd *cobra.Command) (*app, error) {
	val, _ := cmd.Context().Value(appKey{}).(*app)
	if val == nil {
		return nil, errors.New("command not initialised")
	}
	return val, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

func defaultIdentity(flagVal string, cfgVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if cfgVal != "" {
		return cfgVal
	}
	usr, _ := user.Current()
	host, _ := os.Hostname()
	if usr != nil && host != "" {
		return fmt.Sprintf("%s@%s", usr.Username, host)
	}
	if host != "" {
		return host
	}
	return "kp-unknown"
}
