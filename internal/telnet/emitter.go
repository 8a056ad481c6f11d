package telnet

import (
	"bytes"
	"io"
)

// Emitter serializes outgoing commands and data. Output is a pure function
// of the calls made, in call order.
type Emitter struct {
	buf bytes.Buffer
}

func (e *Emitter) Command(cmd byte) {
	e.buf.Write([]byte{IAC, cmd})
}

func (e *Emitter) Negotiate(n Negotiation) {
	e.buf.Write([]byte{IAC, n.Cmd, n.Opt})
}

// Subnegotiate frames payload as IAC SB opt ... IAC SE, escaping IAC bytes in
// the payload.
func (e *Emitter) Subnegotiate(opt byte, payload []byte) {
	e.buf.Write([]byte{IAC, SB})
	e.writeEscaped([]byte{opt})
	e.writeEscaped(payload)
	e.buf.Write([]byte{IAC, SE})
}

func (e *Emitter) Data(p []byte) {
	e.writeEscaped(p)
}

func (e *Emitter) Len() int { return e.buf.Len() }

// Bytes returns the pending output and clears it.
func (e *Emitter) Bytes() []byte {
	out := bytes.Clone(e.buf.Bytes())
	e.buf.Reset()
	return out
}

func (e *Emitter) WriteTo(w io.Writer) (int64, error) {
	return e.buf.WriteTo(w)
}

func (e *Emitter) Reset() { e.buf.Reset() }

func (e *Emitter) writeEscaped(p []byte) {
	for len(p) > 0 {
		i := bytes.IndexByte(p, IAC)
		if i < 0 {
			e.buf.Write(p)
			return
		}
		e.buf.Write(p[:i+1])
		e.buf.WriteByte(IAC)
		p = p[i+1:]
	}
}

// Escape returns p with every IAC doubled.
func Escape(p []byte) []byte {
	var e Emitter
	e.Data(p)
	return e.Bytes()
}
