package core

// Config is runtime configuration for the CLI.
type Config struct {
	Broker      string
	Identity    string
	TopicBase   string
	Aliases     map[string]string
	DefaultCard string
}
