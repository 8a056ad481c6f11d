package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stesla/otelnet/internal/event"
	"github.com/stesla/otelnet/internal/telnet"
	"github.com/stretchr/testify/require"
)

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	h := &LogHandler{Logger: zerolog.New(&buf).Level(zerolog.TraceLevel)}
	d := event.NewDispatcher()
	h.Register(d)
	ctx := context.Background()

	var tests = []struct {
		ev       event.Event
		contains []string
	}{
		{
			ev:       event.Event{Name: telnet.EventNegotiation, Data: telnet.Negotiation{Cmd: telnet.DO, Opt: telnet.Echo}},
			contains: []string{`"command":"DO"`, `"option":"ECHO"`},
		},
		{
			ev: event.Event{Name: telnet.EventOption, Data: telnet.OptionData{
				OptionState: telnet.OptionState{Opt: telnet.NAWS, Us: telnet.QYes},
				ChangedUs:   true,
			}},
			contains: []string{`"option":"NAWS"`, `"enabledUs":true`, `"changedThem":false`},
		},
		{
			ev:       event.Event{Name: telnet.EventSubnegotiation, Data: telnet.Subnegotiation{Opt: telnet.TerminalType, Data: []byte{telnet.SubSend}}},
			contains: []string{`"option":"TERMINAL-TYPE"`},
		},
		{
			ev:       event.Event{Name: telnet.EventCommand, Data: telnet.Command(telnet.AYT)},
			contains: []string{`"command":"AYT"`},
		},
		{
			ev:       event.Event{Name: telnet.EventCharsetAccepted, Data: telnet.CharsetData{Name: "UTF-8"}},
			contains: []string{`"charset":"UTF-8"`},
		},
		{
			ev:       event.Event{Name: telnet.EventSend, Data: []byte{telnet.IAC, telnet.NOP}},
			contains: []string{`"event":"telnet.event.send"`, `"level":"trace"`},
		},
	}
	for _, test := range tests {
		buf.Reset()
		require.NoError(t, d.Dispatch(ctx, test.ev))
		for _, s := range test.contains {
			require.Contains(t, buf.String(), s)
		}
	}

	h.Unregister()
	buf.Reset()
	require.NoError(t, d.Dispatch(ctx, tests[0].ev))
	require.Empty(t, buf.String())
}
