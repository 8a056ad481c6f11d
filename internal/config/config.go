package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stesla/otelnet/internal/telnet"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log               LogConfig      `yaml:"log"`
	Options           OptionsConfig  `yaml:"options"`
	Offer             []string       `yaml:"offer"`
	Terminal          TerminalConfig `yaml:"terminal"`
	Environ           []string       `yaml:"environ"`
	Charsets          []string       `yaml:"charsets"`
	MaxSubnegotiation int            `yaml:"max_subnegotiation"`
	DialTimeout       time.Duration  `yaml:"dial_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Format is "console", "json" or "auto" (console on a terminal).
	Format string `yaml:"format"`
}

// OptionsConfig lists options by name or code. Local options are ones we
// will perform, remote options are ones we let the peer perform.
type OptionsConfig struct {
	Local  []string `yaml:"local"`
	Remote []string `yaml:"remote"`
}

type TerminalConfig struct {
	Types  []string `yaml:"types"`
	Speed  string   `yaml:"speed"`
	Width  int      `yaml:"width"`
	Height int      `yaml:"height"`
}

func Default() Config {
	c := Config{
		Log: LogConfig{Level: "info", Format: "auto"},
		Offer: []string{
			"TERMINAL-TYPE", "NAWS", "TERMINAL-SPEED", "ENVIRON", "LINEMODE",
		},
		Terminal: TerminalConfig{
			Types: telnet.DefaultTerminalTypes(),
			Speed: telnet.DefaultTerminalSpeed,
		},
		Environ:           telnet.DefaultEnvironVars(),
		Charsets:          []string{"UTF-8", "US-ASCII"},
		MaxSubnegotiation: telnet.DefaultMaxSubnegotiation,
		DialTimeout:       10 * time.Second,
	}
	for _, opt := range telnet.DefaultOptions() {
		if opt.Local {
			c.Options.Local = append(c.Options.Local, telnet.OptionName(opt.Code))
		}
		if opt.Remote {
			c.Options.Remote = append(c.Options.Remote, telnet.OptionName(opt.Code))
		}
	}
	return c
}

// Load reads a YAML file over the defaults. An empty path yields the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config")
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "loading %s", path)
	}
	return c, nil
}

func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, errors.Wrap(err, "parsing config")
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	if _, err := c.Registry(); err != nil {
		return err
	}
	if _, err := c.OfferOptions(); err != nil {
		return err
	}
	if _, err := c.Log.ParseLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "auto", "console", "json":
	default:
		return errors.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.MaxSubnegotiation < 0 {
		return errors.New("max_subnegotiation must not be negative")
	}
	if c.Terminal.Width < 0 || c.Terminal.Width > 0xffff || c.Terminal.Height < 0 || c.Terminal.Height > 0xffff {
		return errors.Errorf("terminal size %dx%d out of range", c.Terminal.Width, c.Terminal.Height)
	}
	return nil
}

// Registry builds the option registry described by Options.
func (c Config) Registry() (*telnet.Registry, error) {
	local, err := parseOptions(c.Options.Local)
	if err != nil {
		return nil, errors.Wrap(err, "options.local")
	}
	remote, err := parseOptions(c.Options.Remote)
	if err != nil {
		return nil, errors.Wrap(err, "options.remote")
	}
	r := telnet.NewRegistry()
	for _, code := range local {
		opt := r.Get(code)
		opt.Local = true
		r.Register(opt)
	}
	for _, code := range remote {
		opt := r.Get(code)
		opt.Remote = true
		r.Register(opt)
	}
	return r, nil
}

func (c Config) OfferOptions() ([]byte, error) {
	opts, err := parseOptions(c.Offer)
	return opts, errors.Wrap(err, "offer")
}

func (c LogConfig) ParseLevel() (zerolog.Level, error) {
	if c.Level == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(c.Level)
	return level, errors.Wrap(err, "log.level")
}

func parseOptions(names []string) ([]byte, error) {
	opts := make([]byte, 0, len(names))
	for _, name := range names {
		opt, err := telnet.ParseOption(name)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}
	return opts, nil
}
