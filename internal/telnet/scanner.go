package telnet

import (
	"bytes"
	"iter"
)

// DefaultMaxSubnegotiation bounds the payload kept for a single SB block.
const DefaultMaxSubnegotiation = 4096

// Token is one decoded unit of the inbound stream: Data, Command,
// Negotiation or Subnegotiation.
type Token interface {
	isToken()
}

// Data is a run of application bytes with IAC escaping already removed.
type Data []byte

// Command is a two byte command such as NOP, AYT or GA.
type Command byte

type Negotiation struct {
	Cmd byte
	Opt byte
}

type Subnegotiation struct {
	Opt  byte
	Data []byte
}

func (Data) isToken()           {}
func (Command) isToken()        {}
func (Negotiation) isToken()    {}
func (Subnegotiation) isToken() {}

func (n Negotiation) String() string {
	return CommandName(n.Cmd) + " " + OptionName(n.Opt)
}

type decodeState int

const (
	decodeByte decodeState = 0 + iota
	decodeIAC
	decodeOptionNegotiation
	decodeSB
	decodeSBIAC
)

// Scanner splits raw telnet input into tokens. A command split across reads
// is carried over in the scanner and completed by the next call to Scan.
type Scanner struct {
	// MaxSubnegotiation caps the payload of an SB block; bytes past the cap
	// are dropped. Zero means DefaultMaxSubnegotiation.
	MaxSubnegotiation int

	ds      decodeState
	cmd     byte
	sbdata  []byte
	pending []byte
}

// Pending reports whether the scanner holds an incomplete command.
func (s *Scanner) Pending() bool {
	return s.ds != decodeByte || len(s.pending) > 0
}

func (s *Scanner) Reset() {
	*s = Scanner{MaxSubnegotiation: s.MaxSubnegotiation}
}

// Scan decodes chunk and yields its tokens in order. Data tokens alias chunk
// and stay valid only as long as the caller leaves chunk untouched. If the
// caller stops early, the unconsumed bytes are kept and decoded first by the
// next call. The returned sequence is single use.
func (s *Scanner) Scan(chunk []byte) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		buf := chunk
		if len(s.pending) > 0 {
			buf = append(s.pending, chunk...)
			s.pending = nil
		}

		emit := func(tok Token, next int) bool {
			if yield(tok) {
				return true
			}
			if next < len(buf) {
				s.pending = bytes.Clone(buf[next:])
			}
			return false
		}

		start, i := 0, 0
		for i < len(buf) {
			b := buf[i]
			switch s.ds {
			case decodeByte:
				j := bytes.IndexByte(buf[i:], IAC)
				if j < 0 {
					i = len(buf)
					continue
				}
				i += j
				if i > start && !emit(Data(buf[start:i]), i) {
					return
				}
				s.ds = decodeIAC
			case decodeIAC:
				switch b {
				case IAC:
					s.ds = decodeByte
					start = i
				case DO, DONT, WILL, WONT:
					s.cmd = b
					s.ds = decodeOptionNegotiation
				case SB:
					s.sbdata = nil
					s.ds = decodeSB
				default:
					s.ds = decodeByte
					start = i + 1
					if !emit(Command(b), i+1) {
						return
					}
				}
			case decodeOptionNegotiation:
				s.ds = decodeByte
				start = i + 1
				if !emit(Negotiation{Cmd: s.cmd, Opt: b}, i+1) {
					return
				}
			case decodeSB:
				if b == IAC {
					s.ds = decodeSBIAC
				} else {
					s.appendSB(b)
				}
			case decodeSBIAC:
				switch b {
				case SE:
					s.ds = decodeByte
					start = i + 1
					sbdata := s.sbdata
					s.sbdata = nil
					if len(sbdata) > 0 {
						if !emit(Subnegotiation{Opt: sbdata[0], Data: sbdata[1:]}, i+1) {
							return
						}
					}
				default:
					// IAC IAC is an escaped 0xff; any other byte after IAC is
					// kept as payload.
					s.appendSB(b)
					s.ds = decodeSB
				}
			}
			i++
		}

		if s.ds == decodeByte && start < len(buf) {
			emit(Data(buf[start:]), len(buf))
		}
	}
}

func (s *Scanner) appendSB(b byte) {
	limit := s.MaxSubnegotiation
	if limit <= 0 {
		limit = DefaultMaxSubnegotiation
	}
	// first byte is the option code
	if len(s.sbdata) <= limit {
		s.sbdata = append(s.sbdata, b)
	}
}
