package commands

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/suite/pkg/config"
	"github.com/openfroyo/suite/pkg/engine"
	"github.com/openfroyo/suite/pkg/telemetry"
)

// globalOptions are the connection and logging flags shared by every command.
type globalOptions struct {
	version string

	configPath string
	logLevel   string

	host     string
	port     string
	user     string
	identity string
	tags     string
	password string
	debug    bool
}

func (o *globalOptions) bind(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&o.configPath, "config", "c", "", "config file path")
	flags.StringVar(&o.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	flags.StringVarP(&o.host, "host", "H", "", "remote host name or address")
	flags.StringVarP(&o.port, "port", "p", engine.DefaultPort, "remote ssh port")
	flags.StringVarP(&o.user, "user", "u", "", "remote login user (default: local user)")
	flags.StringVarP(&o.identity, "identity", "i", "", "private key file")
	flags.StringVarP(&o.tags, "tags", "t", "", "comma separated run tags")
	flags.StringVar(&o.password, "password", "", "accepted for compatibility, never used")
	flags.BoolVar(&o.debug, "debug", false, "preview each transcript and ask before running it")
}

// load resolves flags over FROYO_* variables over the config file over
// defaults. adjust applies command-specific flags before validation.
func (o *globalOptions) load(cmd *cobra.Command, adjust func(*config.Config)) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv(os.LookupEnv)

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Connection.Host = o.host
	}
	if flags.Changed("port") {
		cfg.Connection.Port = o.port
	}
	if flags.Changed("user") {
		cfg.Connection.User = o.user
	}
	if flags.Changed("identity") {
		cfg.Connection.Identity = o.identity
	}
	if flags.Changed("tags") {
		cfg.Connection.Tags = engine.ParseTags(o.tags)
	}
	if o.debug {
		cfg.Connection.Debug = true
	}

	switch {
	case flags.Changed("log-level"):
		cfg.Logging.Level = strings.ToLower(o.logLevel)
	case os.Getenv("LOG_LEVEL") != "":
		cfg.Logging.Level = strings.ToLower(os.Getenv("LOG_LEVEL"))
	}
	if o.debug {
		cfg.Logging.Level = "debug"
	}

	if adjust != nil {
		adjust(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	zerolog.SetGlobalLevel(telemetry.ParseLevel(cfg.Logging.Level))
	o.echo(cfg)
	return cfg, nil
}

// connection returns the run connection including the unused password.
func (o *globalOptions) connection(cfg *config.Config) engine.Connection {
	conn := cfg.EngineConnection()
	conn.Password = o.password
	return conn
}

func (o *globalOptions) echo(cfg *config.Config) {
	log.Debug().
		Str("config", o.configPath).
		Str("host", cfg.Connection.Host).
		Str("port", cfg.Connection.Port).
		Str("user", cfg.Connection.User).
		Str("identity", cfg.Connection.Identity).
		Strs("tags", cfg.Connection.Tags).
		Str("password", mask(o.password)).
		Bool("debug", cfg.Connection.Debug).
		Str("log_level", cfg.Logging.Level).
		Str("probe", cfg.Executor.Probe).
		Str("history", cfg.History.Path).
		Str("metrics_file", cfg.Metrics.Textfile).
		Str("trace", cfg.Tracing.Exporter).
		Bool("fail_fast", cfg.FailFast).
		Msg("Resolved options")
}

// mask hides a secret while keeping its length visible.
func mask(secret string) string {
	return strings.Repeat("*", len(secret))
}
