package telnet

import (
	"bytes"
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/stesla/otelnet/internal/event"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// CharsetHandler negotiates a character set over CHARSET (RFC 2066). It is
// only reachable when the registry supports CHARSET.
type CharsetHandler struct {
	IsServer bool
	// Charsets lists the IANA names we are willing to accept, most
	// preferred first. Empty accepts anything ianaindex knows.
	Charsets []string

	ctx       context.Context
	d         event.Dispatcher
	engine    *Engine
	enc       encoding.Encoding
	requested []string
}

func NewCharsetHandler(e *Engine, charsets ...string) *CharsetHandler {
	return &CharsetHandler{
		Charsets: charsets,
		ctx:      e.Context(),
		d:        e,
		engine:   e,
	}
}

func (*CharsetHandler) Option() byte { return Charset }

// Encoding is the last accepted encoding, nil until one is agreed.
func (h *CharsetHandler) Encoding() encoding.Encoding { return h.enc }

// RequestCharsets sends a CHARSET REQUEST offering names.
func (h *CharsetHandler) RequestCharsets(names ...string) error {
	if !h.engine.Get(Charset).EnabledForUs() {
		return errors.New("charset option not enabled")
	}
	payload := []byte{CharsetRequest}
	for _, name := range names {
		if _, err := ianaindex.IANA.Encoding(name); err != nil {
			return errors.Wrapf(err, "charset %q", name)
		}
		payload = append(payload, ";"+name...)
	}
	h.requested = names
	h.engine.Subnegotiate(Charset, payload)
	return nil
}

func (h *CharsetHandler) Subnegotiate(out *Emitter, data []byte) error {
	if len(data) < 1 {
		return nil
	}
	switch cmd, data := data[0], data[1:]; cmd {
	case CharsetAccepted:
		h.requested = nil
		name := string(data)
		enc := getEncoding(name)
		if enc == nil {
			return errors.Errorf("peer accepted unknown charset %q", name)
		}
		h.enc = enc
		return h.dispatch(EventCharsetAccepted, CharsetData{Name: name, Encoding: enc})
	case CharsetRejected:
		h.requested = nil
		return h.dispatch(EventCharsetRejected, nil)
	case CharsetRequest:
		return h.handleCharsetRequest(out, data)
	case CharsetTTableIs:
		out.Subnegotiate(Charset, []byte{CharsetTTableRejected})
	}
	return nil
}

func (h *CharsetHandler) handleCharsetRequest(out *Emitter, data []byte) error {
	if len(h.requested) > 0 {
		// Both ends asked at once; RFC 2066 lets the server's request win.
		if h.IsServer {
			out.Subnegotiate(Charset, []byte{CharsetRejected})
			return nil
		}
		h.requested = nil
	}

	const ttable = "[TTABLE]"
	if len(data) > len(ttable)+1 && bytes.HasPrefix(data, []byte(ttable)) {
		// version byte follows; TTABLE itself is not supported
		data = data[len(ttable)+1:]
	}

	var name string
	var enc encoding.Encoding
	if len(data) > 1 {
		name, enc = h.selectEncoding(bytes.Split(data[1:], data[0:1]))
	}

	if enc == nil {
		out.Subnegotiate(Charset, []byte{CharsetRejected})
		return h.dispatch(EventCharsetRejected, nil)
	}
	h.enc = enc
	out.Subnegotiate(Charset, append([]byte{CharsetAccepted}, name...))
	return h.dispatch(EventCharsetAccepted, CharsetData{Name: name, Encoding: enc})
}

func (h *CharsetHandler) selectEncoding(offered [][]byte) (string, encoding.Encoding) {
	if len(h.Charsets) == 0 {
		for _, name := range offered {
			if enc := getEncoding(string(name)); enc != nil {
				return string(name), enc
			}
		}
		return "", nil
	}
	for _, want := range h.Charsets {
		for _, name := range offered {
			if strings.EqualFold(want, string(name)) {
				if enc := getEncoding(string(name)); enc != nil {
					return string(name), enc
				}
			}
		}
	}
	return "", nil
}

func (h *CharsetHandler) dispatch(name event.Name, data any) error {
	if h.d == nil {
		return nil
	}
	return h.d.Dispatch(h.ctx, event.Event{Name: name, Data: data})
}

func getEncoding(name string) encoding.Encoding {
	switch name {
	case "US-ASCII":
		return ASCII
	default:
		enc, _ := ianaindex.IANA.Encoding(name)
		return enc
	}
}

var ASCII encoding.Encoding

func init() {
	ASCII, _ = ianaindex.IANA.Encoding("US-ASCII")
}
