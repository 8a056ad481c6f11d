package main

import (
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stesla/otelnet/internal/telnet"
)

func newProbeCommand(opts *rootOptions) *cobra.Command {
	p := &prober{}
	var addr string
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "check that a connecting client refuses CHARSET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := opts.load()
			if err != nil {
				return err
			}
			p.logger = logger

			l, err := net.Listen("tcp", addr)
			if err != nil {
				return errors.Wrap(err, "listen")
			}
			defer l.Close()
			logger.Info().Str("addr", l.Addr().String()).Msg("waiting for client")

			c, err := l.Accept()
			if err != nil {
				return errors.Wrap(err, "accept")
			}
			defer c.Close()
			p.logger = logger.With().Str("client", c.RemoteAddr().String()).Logger()
			return p.Probe(c)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", getEnvDefault("OTELNET_PROBE_ADDR", "127.0.0.1:2323"), "address on which to listen")
	flags.DurationVar(&p.Settle, "settle", 500*time.Millisecond, "quiet period that ends the client's initial offers")
	flags.DurationVar(&p.Timeout, "timeout", 5*time.Second, "how long to wait for the refusal")
	return cmd
}

// prober plays a server that offers CHARSET in both directions to a client
// that must not support it.
type prober struct {
	Settle  time.Duration
	Timeout time.Duration
	logger  zerolog.Logger
}

func (p *prober) Probe(c net.Conn) error {
	offers, err := p.drain(c)
	if err != nil {
		return err
	}
	for _, n := range offers {
		p.logger.Debug().Stringer("negotiation", n).Msg("client offer")
	}

	var out telnet.Emitter
	out.Negotiate(telnet.Negotiation{Cmd: telnet.WILL, Opt: telnet.Charset})
	out.Negotiate(telnet.Negotiation{Cmd: telnet.DO, Opt: telnet.Charset})
	if _, err := out.WriteTo(c); err != nil {
		return errors.Wrap(err, "sending CHARSET offers")
	}

	if err := p.awaitRefusal(c); err != nil {
		return err
	}
	p.logger.Info().Msg("client refused CHARSET")
	return nil
}

// drain reads whatever the client sends until it has been quiet for Settle.
func (p *prober) drain(c net.Conn) ([]telnet.Negotiation, error) {
	var got []byte
	buf := make([]byte, 512)
	for {
		if err := c.SetReadDeadline(time.Now().Add(p.Settle)); err != nil {
			return nil, errors.Wrap(err, "set deadline")
		}
		n, err := c.Read(buf)
		got = append(got, buf[:n]...)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return telnet.ReadNegotiations(got), nil
		} else if err != nil {
			return nil, errors.Wrap(err, "reading client offers")
		}
	}
}

func (p *prober) awaitRefusal(c net.Conn) error {
	if err := c.SetReadDeadline(time.Now().Add(p.Timeout)); err != nil {
		return errors.Wrap(err, "set deadline")
	}
	defer c.SetReadDeadline(time.Time{})

	var got []byte
	buf := make([]byte, 512)
	for {
		var dont, wont bool
		for _, n := range telnet.ReadNegotiations(got) {
			if n.Opt != telnet.Charset {
				continue
			}
			switch n.Cmd {
			case telnet.DONT:
				dont = true
			case telnet.WONT:
				wont = true
			case telnet.DO, telnet.WILL:
				return errors.Errorf("client accepted CHARSET: %v", n)
			}
		}
		if dont && wont {
			return nil
		}

		n, err := c.Read(buf)
		got = append(got, buf[:n]...)
		if err != nil {
			return errors.Wrap(err, "waiting for CHARSET refusal")
		}
	}
}
