package telnet

import (
	"github.com/stesla/otelnet/internal/event"
	"golang.org/x/text/encoding"
)

const (
	// EventNegotiation carries each Negotiation received from the peer.
	EventNegotiation event.Name = "telnet.event.negotiation"
	// EventOption carries an OptionData whenever a side becomes enabled or
	// disabled.
	EventOption event.Name = "telnet.event.option"
	// EventSubnegotiation carries each Subnegotiation routed to a handler.
	EventSubnegotiation event.Name = "telnet.event.subnegotiation"
	// EventCommand carries each two byte Command received.
	EventCommand event.Name = "telnet.event.command"
	// EventSend carries the raw bytes written to the transport by a flush.
	EventSend event.Name = "telnet.event.send"

	EventCharsetAccepted event.Name = "telnet.event.charset-accepted"
	EventCharsetRejected event.Name = "telnet.event.charset-rejected"
)

type OptionData struct {
	OptionState
	ChangedThem bool
	ChangedUs   bool
}

type CharsetData struct {
	Name     string
	Encoding encoding.Encoding
}
