package kpd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config is the top-level configuration for kpd.
type Config struct {
	Server     ServerConfig               `toml:"server"`
	Timing     TimingConfig               `toml:"timing"`
	Transports map[string]TransportConfig `toml:"transports" validate:"dive"`
	Cards      []CardConfig               `toml:"cards" validate:"dive"`
	Modules    ModulesConfig              `toml:"modules"`
}

// ServerConfig defines shared server settings.
type ServerConfig struct {
	Broker    string       `toml:"broker"`
	Identity  string       `toml:"identity"`
	TopicBase string       `toml:"topic_base"`
	LogLevel  string       `toml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFormat string       `toml:"log_format" validate:"omitempty,oneof=text json"`
	LogOutput string       `toml:"log_output"`
	LogSource bool         `toml:"log_source"`
	LogUTC    bool         `toml:"log_utc"`
	LogColor  bool         `toml:"log_color"`
	LogRotate RotateConfig `toml:"log_rotate"`
	TLS       TLSConfig    `toml:"tls"`
	Auth      AuthConfig   `toml:"auth"`
}

// RotateConfig controls log file rotation when log_output is a path.
type RotateConfig struct {
	MaxSizeMB  int  `toml:"max_size_mb" validate:"min=0"`
	MaxBackups int  `toml:"max_backups" validate:"min=0"`
	MaxAgeDays int  `toml:"max_age_days" validate:"min=0"`
	Compress   bool `toml:"compress"`
}

// TLSConfig holds TLS paths for MQTT.
type TLSConfig struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// AuthConfig holds MQTT auth credentials.
type AuthConfig struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// TimingConfig overrides the post-playback retry timing. Unset delays keep
// the defaults and an explicit 0 disables the delay. Rounds 0 means default.
type TimingConfig struct {
	InitialDelayMS *int64 `toml:"initial_delay_ms" validate:"omitempty,min=0"`
	RetryDelayMS   *int64 `toml:"retry_delay_ms" validate:"omitempty,min=0"`
	Rounds         int    `toml:"rounds" validate:"min=0,max=10"`
}

// TransportConfig describes how cards reach Kodi.
type TransportConfig struct {
	Kind      string `toml:"kind" validate:"required,oneof=hass kodi"`
	BaseURL   string `toml:"base_url" validate:"required"`
	Token     string `toml:"token" validate:"required_if=Kind hass"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	TimeoutMS int64  `toml:"timeout_ms" validate:"min=0"`
}

// CardConfig binds a card file to a transport.
type CardConfig struct {
	ID             string `toml:"id" validate:"required,excludesall=/#+ "`
	File           string `toml:"file" validate:"required"`
	Transport      string `toml:"transport"`
	RefreshSeconds int    `toml:"refresh_seconds" validate:"min=0"`
	Exclusive      bool   `toml:"exclusive"`
	Watch          *bool  `toml:"watch"`
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	EmbeddedMQTT EmbeddedMQTTConfig `toml:"embedded_mqtt"`
	HTTPAPI      HTTPAPIConfig      `toml:"http_api"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen" validate:"omitempty,hostname_port"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TLSCA          string `toml:"tls_ca"`
	TLSCert        string `toml:"tls_cert"`
	TLSKey         string `toml:"tls_key"`
}

// HTTPAPIConfig configures the HTTP API module.
type HTTPAPIConfig struct {
	Enabled   bool    `toml:"enabled"`
	Listen    string  `toml:"listen" validate:"omitempty,hostname_port"`
	RateLimit float64 `toml:"rate_limit" validate:"min=0"`
	Burst     int     `toml:"burst" validate:"min=0"`
}

// DefaultTransport is used by cards that do not name a transport.
const DefaultTransport = "default"

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadConfig loads and validates a config file from path.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field rules and cross references between cards and
// transports.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, formatFieldError(fe))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := map[string]bool{}
	for _, card := range c.Cards {
		if seen[card.ID] {
			return fmt.Errorf("invalid config: duplicate card id %q", card.ID)
		}
		seen[card.ID] = true
		name := card.TransportName()
		if _, ok := c.Transports[name]; !ok {
			return fmt.Errorf("invalid config: card %q uses unknown transport %q", card.ID, name)
		}
	}
	return nil
}

// TransportName returns the transport a card uses.
func (c CardConfig) TransportName() string {
	if strings.TrimSpace(c.Transport) == "" {
		return DefaultTransport
	}
	return c.Transport
}

// WatchEnabled reports whether the card file is watched for changes.
func (c CardConfig) WatchEnabled() bool {
	return c.Watch == nil || *c.Watch
}

// resolvePaths makes card files relative to the config directory.
func (c *Config) resolvePaths(dir string) {
	for i := range c.Cards {
		file := c.Cards[i].File
		if file != "" && !filepath.IsAbs(file) {
			c.Cards[i].File = filepath.Join(dir, file)
		}
	}
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Namespace())
	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "excludesall":
		return field + " must not contain MQTT wildcards, slashes or spaces"
	case "hostname_port":
		return field + " must be host:port"
	case "min", "max":
		return fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "kp", "kpd.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "kp", "kpd.toml"), nil
}
