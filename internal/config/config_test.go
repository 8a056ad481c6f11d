package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stesla/otelnet/internal/telnet"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesDefaultRegistry(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	r, err := c.Registry()
	require.NoError(t, err)
	require.Equal(t, telnet.DefaultRegistry().Options(), r.Options())

	offer, err := c.OfferOptions()
	require.NoError(t, err)
	require.Equal(t, []byte{telnet.TerminalType, telnet.NAWS, telnet.TerminalSpeed, telnet.Environ, telnet.Linemode}, offer)
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
log:
  level: debug
  format: json
options:
  local: [binary, sga, charset]
  remote: ["3", ECHO]
offer: [charset]
terminal:
  types: [VT100]
  width: 132
  height: 43
charsets: [UTF-8]
max_subnegotiation: 512
dial_timeout: 3s
`))
	require.NoError(t, err)
	level, err := c.Log.ParseLevel()
	require.NoError(t, err)
	require.Equal(t, zerolog.DebugLevel, level)
	require.Equal(t, "json", c.Log.Format)
	require.Equal(t, []string{"VT100"}, c.Terminal.Types)
	require.Equal(t, telnet.DefaultTerminalSpeed, c.Terminal.Speed)
	require.Equal(t, 132, c.Terminal.Width)
	require.Equal(t, 512, c.MaxSubnegotiation)
	require.Equal(t, 3*time.Second, c.DialTimeout)
	require.Equal(t, telnet.DefaultEnvironVars(), c.Environ)

	r, err := c.Registry()
	require.NoError(t, err)
	require.Equal(t, []telnet.TelnetOption{
		{Code: telnet.TransmitBinary, Local: true},
		{Code: telnet.Echo, Remote: true},
		{Code: telnet.SuppressGoAhead, Local: true, Remote: true},
		{Code: telnet.Charset, Local: true},
	}, r.Options())
}

func TestParseErrors(t *testing.T) {
	var tests = []string{
		"options: {local: [bogus]}",
		"options: {remote: [\"300\"]}",
		"offer: [nope]",
		"log: {level: loud}",
		"log: {format: xml}",
		"max_subnegotiation: -1",
		"terminal: {width: 70000}",
		"log: [",
	}
	for _, test := range tests {
		_, err := Parse([]byte(test))
		require.Error(t, err, test)
	}
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), c)

	path := filepath.Join(t.TempDir(), "otelnet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("offer: []\n"), 0o600))
	c, err = Load(path)
	require.NoError(t, err)
	require.Empty(t, c.Offer)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "reading config")
}
