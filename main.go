package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stesla/otelnet/internal/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "otelnet",
		Short:        "telnet client with RFC 1143 option negotiation",
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", getEnvDefault("OTELNET_CONFIG", ""), "path to a YAML config file")
	flags.StringVar(&opts.logLevel, "log-level", getEnvDefault("OTELNET_LOG_LEVEL", ""), "log level (overrides log.level)")
	flags.StringVar(&opts.logFormat, "log-format", "", "console, json or auto (overrides log.format)")
	root.AddCommand(newConnectCommand(opts), newProbeCommand(opts))
	return root
}

// load reads the config and builds the root logger. Logs go to stderr so
// they stay out of the session's terminal output.
func (o *rootOptions) load() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, zerolog.Nop(), err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return cfg, zerolog.Nop(), err
	}
	logger, err := newLogger(cfg.Log, os.Stderr)
	return cfg, logger, err
}

func newLogger(c config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	level, err := c.ParseLevel()
	if err != nil {
		return zerolog.Nop(), err
	}
	console := c.Format == "console"
	if c.Format == "" || c.Format == "auto" {
		console = isTerminal(w)
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func getEnvDefault(name, defaultValue string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return defaultValue
}
