package main

import (
	"context"
	"io"
	"net"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stesla/otelnet/internal/config"
	"github.com/stesla/otelnet/internal/event"
	"github.com/stesla/otelnet/internal/telnet"
	"golang.org/x/term"
)

func newConnectCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "connect HOST PORT",
		Short: "open an interactive telnet session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			cfg.Terminal.Width, cfg.Terminal.Height = terminalSize(cfg.Terminal)
			s, err := dialSession(ctx, net.JoinHostPort(args[0], args[1]), cfg, logger)
			if err != nil {
				return err
			}
			notifyResize(ctx, func() {
				width, height := terminalSize(config.TerminalConfig{})
				if err := s.resize(width, height); err != nil {
					s.logger.Warn().Err(err).Msg("resize failed")
				}
			})

			if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
				state, err := term.MakeRaw(fd)
				if err != nil {
					s.Close()
					return errors.Wrap(err, "raw mode")
				}
				defer term.Restore(fd, state)
			}
			return s.run(ctx, os.Stdin, os.Stdout)
		},
	}
}

// terminalSize prefers the configured size, then the size of stdout.
func terminalSize(c config.TerminalConfig) (width, height int) {
	if c.Width > 0 && c.Height > 0 {
		return c.Width, c.Height
	}
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return c.Width, c.Height
	}
	return width, height
}

type session struct {
	conn     telnet.Conn
	logger   zerolog.Logger
	log      *LogHandler
	naws     *telnet.NAWSHandler
	ttype    *telnet.TerminalTypeHandler
	linemode *telnet.LinemodeHandler
	charset  *telnet.CharsetHandler
	charsets []string

	// Guarded by the engine lock, like the handlers.
	remoteEcho bool
	remoteSGA  bool
	linemodeOn bool
	lineMode   bool
}

func dialSession(ctx context.Context, addr string, cfg config.Config, logger zerolog.Logger) (*session, error) {
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	logger = logger.With().Str("peer", addr).Logger()
	conn, err := telnet.Dial(ctx, addr, telnet.Config{
		Registry:          registry,
		Logger:            logger,
		MaxSubnegotiation: cfg.MaxSubnegotiation,
		DialTimeout:       cfg.DialTimeout,
	})
	if err != nil {
		return nil, err
	}
	s, err := newSession(conn, cfg, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// newSession installs the option handlers on conn and sends the configured
// offers.
func newSession(conn telnet.Conn, cfg config.Config, logger zerolog.Logger) (*session, error) {
	offer, err := cfg.OfferOptions()
	if err != nil {
		return nil, err
	}
	s := &session{
		conn:     conn,
		logger:   logger,
		log:      &LogHandler{Logger: logger},
		naws:     &telnet.NAWSHandler{Width: cfg.Terminal.Width, Height: cfg.Terminal.Height},
		ttype:    &telnet.TerminalTypeHandler{Types: cfg.Terminal.Types},
		linemode: &telnet.LinemodeHandler{},
		charsets: cfg.Charsets,
		lineMode: true,
	}
	s.linemode.ModeChanged = func(byte) { s.updateMode() }
	s.log.Register(conn)
	conn.ListenFunc(telnet.EventOption, s.handleOption)
	conn.ListenFunc(telnet.EventCharsetAccepted, s.handleCharset)
	conn.ListenFunc(telnet.EventCharsetRejected, s.handleCharset)

	err = conn.Do(func(e *telnet.Engine) error {
		e.RegisterHandler(s.ttype)
		e.RegisterHandler(&telnet.TerminalSpeedHandler{Speed: cfg.Terminal.Speed})
		e.RegisterHandler(&telnet.EnvironHandler{Opt: telnet.Environ, Vars: cfg.Environ})
		e.RegisterHandler(&telnet.EnvironHandler{Opt: telnet.NewEnviron, Vars: cfg.Environ})
		e.RegisterHandler(s.naws)
		e.RegisterHandler(s.linemode)
		if e.Registry().IsSupported(telnet.Charset, telnet.Us) || e.Registry().IsSupported(telnet.Charset, telnet.Them) {
			s.charset = telnet.NewCharsetHandler(e, cfg.Charsets...)
			e.RegisterHandler(s.charset)
		}
		e.Offer(offer...)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "sending offers")
	}
	return s, nil
}

// handleOption runs with the engine locked, so it talks to the handlers
// directly instead of going through Do.
func (s *session) handleOption(_ context.Context, ev event.Event) error {
	opt, ok := ev.Data.(telnet.OptionData)
	if !ok {
		return nil
	}
	switch opt.Option() {
	case telnet.Charset:
		if s.charset != nil && opt.ChangedUs && opt.EnabledForUs() && len(s.charsets) > 0 {
			return s.charset.RequestCharsets(s.charsets...)
		}
	case telnet.Echo:
		if opt.ChangedThem {
			s.remoteEcho = opt.EnabledForThem()
		}
	case telnet.SuppressGoAhead:
		if opt.ChangedThem {
			s.remoteSGA = opt.EnabledForThem()
		}
	case telnet.Linemode:
		if opt.ChangedUs {
			s.linemodeOn = opt.EnabledForUs()
		}
	}
	s.updateMode()
	return nil
}

// updateMode works out whether we are in line mode (we echo and edit) or
// character mode (the server echoes). An active LINEMODE decides through
// its EDIT bit; otherwise remote ECHO together with SGA means character mode.
func (s *session) updateMode() {
	line := true
	switch {
	case s.linemodeOn:
		line = s.linemode.Edit()
	case s.remoteEcho && s.remoteSGA:
		line = false
	}
	if line == s.lineMode {
		return
	}
	s.lineMode = line
	if line {
		s.logger.Info().Msg("line mode")
	} else {
		s.logger.Info().Msg("character mode")
	}
}

func (s *session) handleCharset(_ context.Context, ev event.Event) error {
	if data, ok := ev.Data.(telnet.CharsetData); ok {
		s.logger.Info().Str("charset", data.Name).Msg("charset agreed")
	} else {
		s.logger.Info().Msg("charset refused")
	}
	return nil
}

func (s *session) resize(width, height int) error {
	return s.conn.Do(func(e *telnet.Engine) error {
		s.naws.Resize(e, width, height)
		return nil
	})
}

// run copies between the connection and stdio until either side finishes
// or ctx is done.
func (s *session) run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	s.logger.Debug().Msg("connected")
	errc := make(chan error, 2)
	go func() {
		_, err := io.Copy(stdout, s.conn)
		errc <- errors.Wrap(err, "reading from peer")
	}()
	go func() {
		_, err := io.Copy(s.conn, stdin)
		errc <- errors.Wrap(err, "writing to peer")
	}()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
	}
	s.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

func (s *session) Close() error {
	s.log.Unregister()
	err := s.conn.Close()
	read, written := s.conn.Stats()
	s.logger.Info().
		Str("read", humanize.Bytes(read)).
		Str("written", humanize.Bytes(written)).
		Msg("disconnected")
	return err
}
