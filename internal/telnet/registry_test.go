package telnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	var tests = []struct {
		opt        byte
		us, them bool
	}{
		{TransmitBinary, true, true},
		{Echo, false, true},
		{SuppressGoAhead, true, true},
		{TerminalType, true, false},
		{NAWS, true, false},
		{TerminalSpeed, true, false},
		{Linemode, true, false},
		{Environ, true, false},
		{Charset, false, false},
		{NewEnviron, false, false},
		{200, false, false},
	}
	for _, test := range tests {
		require.Equal(t, test.us, r.IsSupported(test.opt, Us), OptionName(test.opt))
		require.Equal(t, test.them, r.IsSupported(test.opt, Them), OptionName(test.opt))
	}
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	require.Empty(t, r.Options())

	r.Register(TelnetOption{Code: Charset, Local: true}).
		Register(TelnetOption{Code: Echo, Remote: true})
	require.True(t, r.IsSupported(Charset, Us))
	require.False(t, r.IsSupported(Charset, Them))
	require.Equal(t, []TelnetOption{
		{Code: Echo, Remote: true},
		{Code: Charset, Local: true},
	}, r.Options())

	r.Register(TelnetOption{Code: Echo})
	require.False(t, r.IsSupported(Echo, Them))
	require.Equal(t, TelnetOption{Code: Echo}, r.Get(Echo))
}

func TestRegistryUnknownSide(t *testing.T) {
	r := DefaultRegistry()
	require.False(t, r.IsSupported(TransmitBinary, Side(7)))
	require.Equal(t, "unknown", Side(7).String())
}
