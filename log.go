package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stesla/otelnet/internal/event"
	"github.com/stesla/otelnet/internal/telnet"
)

var loggedEvents = []event.Name{
	telnet.EventNegotiation,
	telnet.EventOption,
	telnet.EventSubnegotiation,
	telnet.EventCommand,
	telnet.EventSend,
	telnet.EventCharsetAccepted,
	telnet.EventCharsetRejected,
}

// LogHandler traces every protocol event on a connection.
type LogHandler struct {
	zerolog.Logger
	d event.Dispatcher
}

func (h *LogHandler) Register(d event.Dispatcher) {
	h.d = d
	for _, name := range loggedEvents {
		d.Listen(name, h)
	}
}

func (h *LogHandler) Unregister() {
	if h.d == nil {
		return
	}
	for _, name := range loggedEvents {
		h.d.RemoveListener(name, h)
	}
	h.d = nil
}

func (h *LogHandler) Listen(_ context.Context, ev event.Event) error {
	log := h.Trace().Str("event", string(ev.Name))
	switch t := ev.Data.(type) {
	case []byte:
		log.Bytes("data", t)
	case telnet.Negotiation:
		log.Str("command", telnet.CommandName(t.Cmd)).Str("option", telnet.OptionName(t.Opt))
	case telnet.OptionData:
		log.Str("option", telnet.OptionName(t.Option())).
			Bool("changedThem", t.ChangedThem).
			Bool("changedUs", t.ChangedUs).
			Bool("enabledThem", t.EnabledForThem()).
			Bool("enabledUs", t.EnabledForUs())
	case telnet.Subnegotiation:
		log.Str("option", telnet.OptionName(t.Opt)).Bytes("data", t.Data)
	case telnet.Command:
		log.Str("command", telnet.CommandName(byte(t)))
	case telnet.CharsetData:
		log.Str("charset", t.Name)
	default:
		log.Any("data", t)
	}
	log.Send()
	return nil
}
