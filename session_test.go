package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stesla/otelnet/internal/config"
	"github.com/stesla/otelnet/internal/telnet"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

func (b *syncBuffer) contains(p []byte) func() bool {
	return func() bool { return bytes.Contains(b.Bytes(), p) }
}

func sb(opt byte, payload ...byte) []byte {
	var out telnet.Emitter
	out.Subnegotiate(opt, payload)
	return out.Bytes()
}

func newTestSession(t *testing.T, cfg config.Config) (*session, net.Conn, *syncBuffer) {
	server, client := net.Pipe()
	t.Cleanup(func() { server.Close() })
	sent := &syncBuffer{}
	go io.Copy(sent, server)

	registry, err := cfg.Registry()
	require.NoError(t, err)
	conn := telnet.Wrap(context.Background(), client, telnet.Config{Registry: registry, Logger: zerolog.Nop()})
	s, err := newSession(conn, cfg, zerolog.Nop())
	require.NoError(t, err)
	return s, server, sent
}

const waitFor = time.Second

func TestSessionOffersAndAnswers(t *testing.T) {
	cfg := config.Default()
	cfg.Terminal.Width, cfg.Terminal.Height = 100, 40
	s, server, sent := newTestSession(t, cfg)

	offers := []byte{
		telnet.IAC, telnet.WILL, telnet.TerminalType,
		telnet.IAC, telnet.WILL, telnet.NAWS,
		telnet.IAC, telnet.WILL, telnet.TerminalSpeed,
		telnet.IAC, telnet.WILL, telnet.Environ,
		telnet.IAC, telnet.WILL, telnet.Linemode,
	}
	require.Eventually(t, sent.contains(offers), waitFor, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	stdin, input := io.Pipe()
	defer input.Close()
	stdout := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- s.run(ctx, stdin, stdout) }()

	_, err := server.Write([]byte{
		telnet.IAC, telnet.DO, telnet.TerminalType,
		telnet.IAC, telnet.DO, telnet.NAWS,
		telnet.IAC, telnet.SB, telnet.TerminalType, telnet.SubSend, telnet.IAC, telnet.SE,
		'h', 'e', 'l', 'l', 'o',
	})
	require.NoError(t, err)
	require.Eventually(t, stdout.contains([]byte("hello")), waitFor, 10*time.Millisecond)
	require.Eventually(t, sent.contains(sb(telnet.NAWS, 0, 100, 0, 40)), waitFor, 10*time.Millisecond)
	require.Eventually(t, sent.contains(sb(telnet.TerminalType, append([]byte{telnet.SubIs}, "XTERM"...)...)), waitFor, 10*time.Millisecond)

	_, err = input.Write([]byte{'h', 'i', telnet.IAC})
	require.NoError(t, err)
	require.Eventually(t, sent.contains([]byte{'h', 'i', telnet.IAC, telnet.IAC}), waitFor, 10*time.Millisecond)

	require.NoError(t, s.resize(120, 50))
	require.Eventually(t, sent.contains(sb(telnet.NAWS, 0, 120, 0, 50)), waitFor, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, telnet.QNo, s.conn.Get(telnet.NAWS).Us)
}

func TestSessionRefusesCharsetByDefault(t *testing.T) {
	s, server, sent := newTestSession(t, config.Default())
	require.Nil(t, s.charset)

	done := make(chan error, 1)
	go func() { done <- s.run(context.Background(), &blockingReader{}, io.Discard) }()
	_, err := server.Write([]byte{telnet.IAC, telnet.WILL, telnet.Charset, telnet.IAC, telnet.DO, telnet.Charset})
	require.NoError(t, err)
	require.Eventually(t, sent.contains([]byte{
		telnet.IAC, telnet.DONT, telnet.Charset,
		telnet.IAC, telnet.WONT, telnet.Charset,
	}), waitFor, 10*time.Millisecond)

	server.Close()
	require.NoError(t, <-done)
}

func TestSessionRequestsCharset(t *testing.T) {
	cfg := config.Default()
	cfg.Options.Local = append(cfg.Options.Local, "CHARSET")
	cfg.Offer = nil
	cfg.Charsets = []string{"UTF-8"}
	s, server, sent := newTestSession(t, cfg)
	require.NotNil(t, s.charset)

	done := make(chan error, 1)
	go func() { done <- s.run(context.Background(), &blockingReader{}, io.Discard) }()
	_, err := server.Write([]byte{telnet.IAC, telnet.DO, telnet.Charset})
	require.NoError(t, err)
	require.Eventually(t, sent.contains(append(
		[]byte{telnet.IAC, telnet.WILL, telnet.Charset},
		sb(telnet.Charset, append([]byte{telnet.CharsetRequest}, ";UTF-8"...)...)...,
	)), waitFor, 10*time.Millisecond)

	_, err = server.Write(sb(telnet.Charset, append([]byte{telnet.CharsetAccepted}, "UTF-8"...)...))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		var enc bool
		s.conn.Do(func(*telnet.Engine) error {
			enc = s.charset.Encoding() != nil
			return nil
		})
		return enc
	}, waitFor, 10*time.Millisecond)

	server.Close()
	require.NoError(t, <-done)
}

func TestSessionTracksMode(t *testing.T) {
	s, server, _ := newTestSession(t, config.Default())
	done := make(chan error, 1)
	go func() { done <- s.run(context.Background(), &blockingReader{}, io.Discard) }()

	lineMode := func() (line bool) {
		s.conn.Do(func(*telnet.Engine) error {
			line = s.lineMode
			return nil
		})
		return
	}
	require.True(t, lineMode())

	var tests = []struct {
		input []byte
		line  bool
	}{
		{[]byte{telnet.IAC, telnet.WILL, telnet.Echo, telnet.IAC, telnet.WILL, telnet.SuppressGoAhead}, false},
		{[]byte{telnet.IAC, telnet.WONT, telnet.Echo}, true},
		{[]byte{telnet.IAC, telnet.WILL, telnet.Echo}, false},
		{append([]byte{telnet.IAC, telnet.DO, telnet.Linemode}, sb(telnet.Linemode, telnet.LinemodeMode, telnet.ModeEdit)...), true},
		{sb(telnet.Linemode, telnet.LinemodeMode, 0), false},
	}
	for i, test := range tests {
		_, err := server.Write(test.input)
		require.NoError(t, err, i)
		require.Eventually(t, func() bool { return lineMode() == test.line }, waitFor, 10*time.Millisecond, i)
	}

	server.Close()
	require.NoError(t, <-done)
}

// blockingReader never returns, like an idle terminal.
type blockingReader struct{}

func (*blockingReader) Read([]byte) (int, error) {
	select {}
}
