package telnet

import (
	"encoding/binary"
	"os"
)

// TerminalTypeHandler answers TERMINAL-TYPE SEND (RFC 1091). Each SEND gets
// the next type in Types. The last type is repeated once to mark the end of
// the list, after which the list starts over.
type TerminalTypeHandler struct {
	Types []string
	next  int
}

func DefaultTerminalTypes() []string {
	return []string{"XTERM", "VT100", "ANSI"}
}

func (*TerminalTypeHandler) Option() byte { return TerminalType }

func (h *TerminalTypeHandler) Subnegotiate(out *Emitter, data []byte) error {
	if len(data) < 1 || data[0] != SubSend {
		return nil
	}
	out.Subnegotiate(TerminalType, append([]byte{SubIs}, h.Current()...))
	h.next = (h.next + 1) % (len(h.types()) + 1)
	return nil
}

// Current is the type the next SEND will be answered with.
func (h *TerminalTypeHandler) Current() string {
	types := h.types()
	return types[min(h.next, len(types)-1)]
}

func (h *TerminalTypeHandler) types() []string {
	if len(h.Types) == 0 {
		return DefaultTerminalTypes()
	}
	return h.Types
}

// TerminalSpeedHandler answers TERMINAL-SPEED SEND (RFC 1079).
type TerminalSpeedHandler struct {
	Speed string
}

const DefaultTerminalSpeed = "38400,38400"

func (*TerminalSpeedHandler) Option() byte { return TerminalSpeed }

func (h *TerminalSpeedHandler) Subnegotiate(out *Emitter, data []byte) error {
	if len(data) < 1 || data[0] != SubSend {
		return nil
	}
	speed := h.Speed
	if speed == "" {
		speed = DefaultTerminalSpeed
	}
	out.Subnegotiate(TerminalSpeed, append([]byte{SubIs}, speed...))
	return nil
}

// EnvironHandler answers ENVIRON or NEW-ENVIRON SEND (RFC 1408, RFC 1572)
// with the listed variables that are set. Requests naming specific variables
// are answered with the subset of Vars they name.
type EnvironHandler struct {
	Opt    byte
	Vars   []string
	Lookup func(string) (string, bool)
}

func DefaultEnvironVars() []string {
	return []string{"USER", "DISPLAY"}
}

func (h *EnvironHandler) Option() byte {
	if h.Opt == 0 {
		return Environ
	}
	return h.Opt
}

func (h *EnvironHandler) Subnegotiate(out *Emitter, data []byte) error {
	if len(data) < 1 || data[0] != SubSend {
		return nil
	}
	lookup := h.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	vars := h.Vars
	if vars == nil {
		vars = DefaultEnvironVars()
	}
	if requested := parseEnvironNames(data[1:]); len(requested) > 0 {
		vars = filterNames(vars, requested)
	}
	payload := []byte{SubIs}
	for _, name := range vars {
		value, ok := lookup(name)
		if !ok {
			continue
		}
		payload = append(payload, EnvVar)
		payload = appendEnvironEscaped(payload, name)
		payload = append(payload, EnvValue)
		payload = appendEnvironEscaped(payload, value)
	}
	out.Subnegotiate(h.Option(), payload)
	return nil
}

func appendEnvironEscaped(p []byte, s string) []byte {
	for _, b := range []byte(s) {
		switch b {
		case EnvVar, EnvValue, EnvEsc, EnvUserVar:
			p = append(p, EnvEsc)
		}
		p = append(p, b)
	}
	return p
}

func parseEnvironNames(data []byte) (names []string) {
	var name []byte
	var inName, escaped bool
	flush := func() {
		if inName && len(name) > 0 {
			names = append(names, string(name))
		}
		name = name[:0]
	}
	for _, b := range data {
		switch {
		case escaped:
			name = append(name, b)
			escaped = false
		case b == EnvEsc:
			escaped = true
		case b == EnvVar || b == EnvUserVar:
			flush()
			inName = true
		default:
			name = append(name, b)
		}
	}
	flush()
	return
}

func filterNames(vars, requested []string) (out []string) {
	for _, v := range vars {
		for _, r := range requested {
			if v == r {
				out = append(out, v)
				break
			}
		}
	}
	return
}

// NAWSHandler reports the window size (RFC 1073) as soon as NAWS is enabled
// for us. The peer never subnegotiates NAWS towards a client.
type NAWSHandler struct {
	Width  int
	Height int
}

const (
	DefaultWidth  = 80
	DefaultHeight = 24
)

func (*NAWSHandler) Option() byte { return NAWS }

func (*NAWSHandler) Subnegotiate(*Emitter, []byte) error { return nil }

func (h *NAWSHandler) OptionChanged(out *Emitter, opt OptionData) error {
	if opt.ChangedUs && opt.EnabledForUs() {
		out.Subnegotiate(NAWS, h.Payload())
	}
	return nil
}

// Resize records a new window size and sends it if NAWS is enabled for us.
func (h *NAWSHandler) Resize(e *Engine, width, height int) bool {
	h.Width, h.Height = width, height
	if !e.Get(NAWS).EnabledForUs() {
		return false
	}
	return e.Subnegotiate(NAWS, h.Payload())
}

// Payload encodes the size as two big-endian 16 bit values.
func (h *NAWSHandler) Payload() []byte {
	width, height := h.Width, h.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	p := make([]byte, 4)
	binary.BigEndian.PutUint16(p[0:], uint16(min(width, 0xffff)))
	binary.BigEndian.PutUint16(p[2:], uint16(min(height, 0xffff)))
	return p
}

// LinemodeHandler tracks the LINEMODE MODE mask (RFC 1184). A mode the
// server proposes without MODE_ACK is adopted and acknowledged. FORWARDMASK
// and SLC are ignored.
type LinemodeHandler struct {
	Mode byte
	// ModeChanged, if set, is called after Mode changes.
	ModeChanged func(mode byte)
}

func (*LinemodeHandler) Option() byte { return Linemode }

func (h *LinemodeHandler) Subnegotiate(out *Emitter, data []byte) error {
	if len(data) < 2 || data[0] != LinemodeMode {
		return nil
	}
	mode := data[1]
	if mode&ModeAck != 0 {
		return nil
	}
	if h.Mode == mode|ModeAck {
		return nil
	}
	h.setMode(mode | ModeAck)
	out.Subnegotiate(Linemode, []byte{LinemodeMode, h.Mode})
	return nil
}

func (h *LinemodeHandler) OptionChanged(_ *Emitter, opt OptionData) error {
	if opt.ChangedUs && !opt.EnabledForUs() && h.Mode != 0 {
		h.setMode(0)
	}
	return nil
}

func (h *LinemodeHandler) setMode(mode byte) {
	h.Mode = mode
	if h.ModeChanged != nil {
		h.ModeChanged(mode)
	}
}

// Edit reports whether the server asked for local line editing.
func (h *LinemodeHandler) Edit() bool {
	return h.Mode&ModeEdit != 0
}
