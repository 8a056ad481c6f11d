package telnet

import (
	"bytes"
	"context"
	"io"
	"iter"

	"github.com/rs/zerolog"
	"github.com/stesla/otelnet/internal/event"
)

// Handler receives the subnegotiation payloads of one option. Replies are
// written to the emitter.
type Handler interface {
	Option() byte
	Subnegotiate(out *Emitter, data []byte) error
}

// OptionHandler is implemented by handlers that need to act when their
// option is enabled or disabled.
type OptionHandler interface {
	Handler
	OptionChanged(out *Emitter, opt OptionData) error
}

// DefaultAreYouThere is sent as data in reply to IAC AYT.
var DefaultAreYouThere = []byte("\r\n[otelnet: yes, I'm here]\r\n")

// Engine is the negotiation engine for a single connection. It turns inbound
// bytes into tokens, answers option negotiation, routes subnegotiation to
// handlers and collects everything that has to be sent back. It never
// performs I/O and is not safe for concurrent use.
type Engine struct {
	event.Dispatcher

	AreYouThere []byte

	ctx      context.Context
	logger   zerolog.Logger
	scanner  Scanner
	options  *OptionMap
	handlers map[byte]Handler
	out      Emitter
}

func NewEngine(ctx context.Context, registry *Registry, logger zerolog.Logger) *Engine {
	return &Engine{
		Dispatcher:  event.NewDispatcher(),
		AreYouThere: DefaultAreYouThere,
		ctx:         ctx,
		logger:      logger,
		options:     NewOptionMap(registry),
		handlers:    map[byte]Handler{},
	}
}

func (e *Engine) Context() context.Context { return e.ctx }

func (e *Engine) Get(opt byte) OptionState { return e.options.Get(opt) }

func (e *Engine) Registry() *Registry { return e.options.Registry() }

func (e *Engine) SetMaxSubnegotiation(n int) { e.scanner.MaxSubnegotiation = n }

// RegisterHandler installs h for its option, replacing any previous handler.
func (e *Engine) RegisterHandler(h Handler) {
	e.handlers[h.Option()] = h
}

func (e *Engine) Handler(opt byte) (h Handler, ok bool) {
	h, ok = e.handlers[opt]
	return
}

// Deliver decodes chunk, acting on every command in it, and yields the
// tokens the application may care about: data, simple commands, received
// negotiations and accepted subnegotiations. Replies accumulate until
// Output or Flush is called.
func (e *Engine) Deliver(chunk []byte) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		for tok := range e.scanner.Scan(chunk) {
			if e.handle(tok) && !yield(tok) {
				return
			}
		}
	}
}

func (e *Engine) handle(tok Token) bool {
	switch t := tok.(type) {
	case Data:
		return true
	case Command:
		e.command(byte(t))
	case Negotiation:
		e.negotiate(t)
	case Subnegotiation:
		return e.subnegotiate(t)
	}
	return true
}

func (e *Engine) command(cmd byte) {
	e.dispatch(EventCommand, Command(cmd))
	switch cmd {
	case AYT:
		e.out.Data(e.AreYouThere)
	default:
		e.logger.Debug().Str("command", CommandName(cmd)).Msg("received command")
	}
}

func (e *Engine) negotiate(n Negotiation) {
	e.dispatch(EventNegotiation, n)
	before := e.options.Get(n.Opt)
	reply, ok := e.options.Receive(n.Cmd, n.Opt)
	if ok {
		if before == e.options.Get(n.Opt) && (reply.Cmd == DONT || reply.Cmd == WONT) {
			e.logger.Debug().
				Str("received", n.String()).
				Str("reply", reply.String()).
				Msg("rejecting unsupported option")
		}
		e.out.Negotiate(reply)
	}
	e.changed(before)
}

func (e *Engine) subnegotiate(sb Subnegotiation) bool {
	if them, us := e.options.Get(sb.Opt).Enabled(); !them && !us {
		e.logger.Debug().
			Str("option", OptionName(sb.Opt)).
			Int("length", len(sb.Data)).
			Msg("discarding subnegotiation for disabled option")
		return false
	}
	e.dispatch(EventSubnegotiation, sb)
	h, ok := e.handlers[sb.Opt]
	if !ok {
		e.logger.Debug().Str("option", OptionName(sb.Opt)).Msg("no handler for subnegotiation")
		return true
	}
	if err := h.Subnegotiate(&e.out, sb.Data); err != nil {
		e.logger.Warn().Err(err).Str("option", OptionName(sb.Opt)).Msg("subnegotiation failed")
	}
	return true
}

// RequestEnable starts negotiating opt on for side. It fails only when the
// registry does not support opt in that direction.
func (e *Engine) RequestEnable(opt byte, side Side) error {
	before := e.options.Get(opt)
	req, ok, err := e.options.RequestEnable(opt, side)
	if err != nil {
		return err
	}
	if ok {
		e.out.Negotiate(req)
	}
	e.changed(before)
	return nil
}

func (e *Engine) RequestDisable(opt byte, side Side) {
	before := e.options.Get(opt)
	if req, ok := e.options.RequestDisable(opt, side); ok {
		e.out.Negotiate(req)
	}
	e.changed(before)
}

// Offer proactively asks to enable each option on our side. Options the
// registry does not support locally are skipped.
func (e *Engine) Offer(opts ...byte) {
	for _, opt := range opts {
		if err := e.RequestEnable(opt, Us); err != nil {
			e.logger.Warn().Err(err).Msg("not offering option")
		}
	}
}

// Subnegotiate sends an SB block for opt if it is enabled on either side.
func (e *Engine) Subnegotiate(opt byte, payload []byte) bool {
	if them, us := e.options.Get(opt).Enabled(); !them && !us {
		return false
	}
	e.out.Subnegotiate(opt, payload)
	return true
}

func (e *Engine) changed(before OptionState) {
	after := e.options.Get(before.Opt)
	data := OptionData{
		OptionState: after,
		ChangedThem: before.EnabledForThem() != after.EnabledForThem(),
		ChangedUs:   before.EnabledForUs() != after.EnabledForUs(),
	}
	if !data.ChangedThem && !data.ChangedUs {
		return
	}
	e.dispatch(EventOption, data)
	if h, ok := e.handlers[after.Opt].(OptionHandler); ok {
		if err := h.OptionChanged(&e.out, data); err != nil {
			e.logger.Warn().Err(err).Str("option", OptionName(after.Opt)).Msg("option handler failed")
		}
	}
}

func (e *Engine) dispatch(name event.Name, data any) {
	if err := e.Dispatch(e.ctx, event.Event{Name: name, Data: data}); err != nil {
		e.logger.Warn().Err(err).Str("event", string(name)).Msg("listener failed")
	}
}

// Output returns and clears everything queued for the peer.
func (e *Engine) Output() []byte {
	return e.out.Bytes()
}

// Flush writes everything queued for the peer to w. Bytes w did not accept
// stay queued for the next Flush.
func (e *Engine) Flush(w io.Writer) error {
	if e.out.Len() == 0 {
		return nil
	}
	e.dispatch(EventSend, bytes.Clone(e.out.buf.Bytes()))
	_, err := e.out.WriteTo(w)
	return err
}

// Reset drops all negotiated state, queued output and partial input.
func (e *Engine) Reset() {
	e.options.Reset()
	e.scanner.Reset()
	e.out.Reset()
}
