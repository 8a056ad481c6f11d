package telnet

import "github.com/pkg/errors"

// ErrUnsupported is returned when asking to enable an option the registry
// does not support in the requested direction.
var ErrUnsupported = errors.New("telnet option not supported")

// QState is an RFC 1143 Q-method state for one side of one option.
type QState int

const (
	QNo QState = 0 + iota
	QYes
	QWantNoEmpty
	QWantNoOpposite
	QWantYesEmpty
	QWantYesOpposite
)

func (q QState) String() string {
	switch q {
	case QNo:
		return "NO"
	case QYes:
		return "YES"
	case QWantNoEmpty:
		return "WANTNO-EMPTY"
	case QWantNoOpposite:
		return "WANTNO-OPPOSITE"
	case QWantYesEmpty:
		return "WANTYES-EMPTY"
	case QWantYesOpposite:
		return "WANTYES-OPPOSITE"
	}
	return "INVALID"
}

// OptionState is a snapshot of both sides of one option.
type OptionState struct {
	Opt  byte
	Us   QState
	Them QState
}

func (o OptionState) Enabled() (them, us bool) { return o.EnabledForThem(), o.EnabledForUs() }
func (o OptionState) EnabledForThem() bool     { return o.Them == QYes }
func (o OptionState) EnabledForUs() bool       { return o.Us == QYes }
func (o OptionState) Option() byte             { return o.Opt }

func (o OptionState) Side(side Side) QState {
	if side == Them {
		return o.Them
	}
	return o.Us
}

// OptionMap holds the negotiation state of every option code for one
// session. It is not safe for concurrent use.
type OptionMap struct {
	registry *Registry
	m        [256]OptionState
}

func NewOptionMap(registry *Registry) *OptionMap {
	if registry == nil {
		registry = NewRegistry()
	}
	m := &OptionMap{registry: registry}
	m.Reset()
	return m
}

func (m *OptionMap) Get(opt byte) OptionState {
	return m.m[opt]
}

func (m *OptionMap) Registry() *Registry {
	return m.registry
}

// Reset returns every side of every option to NO.
func (m *OptionMap) Reset() {
	for opt := range m.m {
		m.m[opt] = OptionState{Opt: byte(opt)}
	}
}

// Receive applies a WILL, WONT, DO or DONT from the peer and returns the
// reply to send, if any. Other commands are ignored.
func (m *OptionMap) Receive(cmd, opt byte) (reply Negotiation, ok bool) {
	var allow bool
	switch cmd {
	case DO, DONT:
		allow = m.registry.IsSupported(opt, Us)
	case WILL, WONT:
		allow = m.registry.IsSupported(opt, Them)
	default:
		return
	}
	return m.m[opt].receive(cmd, allow)
}

// RequestEnable asks for opt to be enabled on side. At most one request per
// side is ever outstanding; asking while a request is in flight only
// updates the queued intent.
func (m *OptionMap) RequestEnable(opt byte, side Side) (req Negotiation, ok bool, err error) {
	if !m.registry.IsSupported(opt, side) {
		return req, false, errors.Wrapf(ErrUnsupported, "%s for %s", OptionName(opt), side)
	}
	req, ok = m.m[opt].enable(side)
	return
}

// RequestDisable asks for opt to be disabled on side. Disabling is always
// permitted.
func (m *OptionMap) RequestDisable(opt byte, side Side) (Negotiation, bool) {
	return m.m[opt].disable(side)
}

func (o *OptionState) sides(side Side) (state *QState, on, off byte) {
	if side == Them {
		return &o.Them, DO, DONT
	}
	return &o.Us, WILL, WONT
}

func (o *OptionState) send(cmd byte) (Negotiation, bool) {
	return Negotiation{Cmd: cmd, Opt: o.Opt}, true
}

func (o *OptionState) disable(side Side) (Negotiation, bool) {
	state, _, off := o.sides(side)
	switch *state {
	case QNo:
		// ignore
	case QYes:
		*state = QWantNoEmpty
		return o.send(off)
	case QWantNoEmpty:
		// ignore
	case QWantNoOpposite:
		*state = QWantNoEmpty
	case QWantYesEmpty:
		*state = QWantYesOpposite
	case QWantYesOpposite:
		// ignore
	}
	return Negotiation{}, false
}

func (o *OptionState) enable(side Side) (Negotiation, bool) {
	state, on, _ := o.sides(side)
	switch *state {
	case QNo:
		*state = QWantYesEmpty
		return o.send(on)
	case QYes:
		// ignore
	case QWantNoEmpty:
		*state = QWantNoOpposite
	case QWantNoOpposite:
		// ignore
	case QWantYesEmpty:
		// ignore
	case QWantYesOpposite:
		*state = QWantYesEmpty
	}
	return Negotiation{}, false
}

func (o *OptionState) receive(cmd byte, allow bool) (Negotiation, bool) {
	var state *QState
	var accept, reject byte
	switch cmd {
	case DO, DONT:
		state, accept, reject = o.sides(Us)
	case WILL, WONT:
		state, accept, reject = o.sides(Them)
	}
	switch cmd {
	case DO, WILL:
		switch *state {
		case QNo:
			if allow {
				*state = QYes
				return o.send(accept)
			}
			return o.send(reject)
		case QYes:
			// ignore
		case QWantNoEmpty:
			*state = QNo
		case QWantNoOpposite:
			*state = QWantYesEmpty
			return o.send(accept)
		case QWantYesEmpty:
			*state = QYes
		case QWantYesOpposite:
			*state = QWantNoEmpty
			return o.send(reject)
		}
	case DONT, WONT:
		switch *state {
		case QNo:
			// ignore
		case QYes:
			*state = QNo
			return o.send(reject)
		case QWantNoEmpty:
			*state = QNo
		case QWantNoOpposite:
			*state = QWantYesEmpty
			return o.send(accept)
		case QWantYesEmpty:
			*state = QNo
		case QWantYesOpposite:
			*state = QNo
		}
	}
	return Negotiation{}, false
}
