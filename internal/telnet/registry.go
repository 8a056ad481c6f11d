package telnet

// Side selects one direction of an option. Us is the option as performed by
// this end (we send WILL/WONT, the peer sends DO/DONT). Them is the option as
// performed by the peer, "him" in RFC 1143.
type Side int

const (
	Us Side = 0 + iota
	Them
)

func (s Side) String() string {
	switch s {
	case Us:
		return "us"
	case Them:
		return "them"
	}
	return "unknown"
}

// TelnetOption describes what this end permits for one option code. Local
// allows us to perform the option, Remote allows the peer to perform it.
type TelnetOption struct {
	Code   byte
	Local  bool
	Remote bool
}

// Registry is the per-session table of supported options. Codes that were
// never registered are unsupported in both directions.
type Registry struct {
	local  [256]bool
	remote [256]bool
}

func NewRegistry(opts ...TelnetOption) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		r.Register(opt)
	}
	return r
}

// DefaultOptions is the option set a line-oriented client supports out of
// the box. CHARSET is deliberately absent.
func DefaultOptions() []TelnetOption {
	return []TelnetOption{
		{Code: TransmitBinary, Local: true, Remote: true},
		{Code: Echo, Remote: true},
		{Code: SuppressGoAhead, Local: true, Remote: true},
		{Code: TerminalType, Local: true},
		{Code: NAWS, Local: true},
		{Code: TerminalSpeed, Local: true},
		{Code: Linemode, Local: true},
		{Code: Environ, Local: true},
	}
}

func DefaultRegistry() *Registry {
	return NewRegistry(DefaultOptions()...)
}

func (r *Registry) Register(opt TelnetOption) *Registry {
	r.local[opt.Code] = opt.Local
	r.remote[opt.Code] = opt.Remote
	return r
}

func (r *Registry) Get(code byte) TelnetOption {
	return TelnetOption{Code: code, Local: r.local[code], Remote: r.remote[code]}
}

func (r *Registry) IsSupported(code byte, side Side) bool {
	switch side {
	case Us:
		return r.local[code]
	case Them:
		return r.remote[code]
	}
	return false
}

// Options lists every code supported in at least one direction, in code
// order.
func (r *Registry) Options() (opts []TelnetOption) {
	for code := range 256 {
		if opt := r.Get(byte(code)); opt.Local || opt.Remote {
			opts = append(opts, opt)
		}
	}
	return
}
