package telnet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// RFC 885
	EOR = 239 + iota // ef
	// RFC 854
	SE   // f0
	NOP  // f1
	DM   // f2
	BRK  // f3
	IP   // f4
	AO   // f5
	AYT  // f6
	EC   // f7
	EL   // f8
	GA   // f9
	SB   // fa
	WILL // fb
	WONT // fc
	DO   // fd
	DONT // fe
	IAC  // ff
)

const (
	TransmitBinary    = 0  // RFC 856
	Echo              = 1  // RFC 857
	SuppressGoAhead   = 3  // RFC 858
	Status            = 5  // RFC 859
	TimingMark        = 6  // RFC 860
	TerminalType      = 24 // RFC 1091
	EndOfRecord       = 25 // RFC 885
	NAWS              = 31 // RFC 1073
	TerminalSpeed     = 32 // RFC 1079
	RemoteFlowControl = 33 // RFC 1372
	Linemode          = 34 // RFC 1184
	XDisplayLocation  = 35 // RFC 1096
	Environ           = 36 // RFC 1408
	NewEnviron        = 39 // RFC 1572
	Charset           = 42 // RFC 2066
)

// TERMINAL-TYPE, TERMINAL-SPEED and ENVIRON share IS/SEND.
const (
	SubIs   = 0
	SubSend = 1
	SubInfo = 2
)

const (
	EnvVar     = 0
	EnvValue   = 1
	EnvEsc     = 2
	EnvUserVar = 3
)

const (
	LinemodeMode        = 1
	LinemodeForwardMask = 2
	LinemodeSLC         = 3
)

const (
	ModeEdit    = 0x01
	ModeTrapSig = 0x02
	ModeAck     = 0x04
	ModeSoftTab = 0x08
	ModeLitEcho = 0x10
)

const (
	CharsetRequest = 1 + iota
	CharsetAccepted
	CharsetRejected
	CharsetTTableIs
	CharsetTTableRejected
	CharsetTTableAck
	CharsetTTableNak
)

var commandNames = map[byte]string{
	EOR:  "EOR",
	SE:   "SE",
	NOP:  "NOP",
	DM:   "DM",
	BRK:  "BRK",
	IP:   "IP",
	AO:   "AO",
	AYT:  "AYT",
	EC:   "EC",
	EL:   "EL",
	GA:   "GA",
	SB:   "SB",
	WILL: "WILL",
	WONT: "WONT",
	DO:   "DO",
	DONT: "DONT",
	IAC:  "IAC",
}

var optionNames = map[byte]string{
	TransmitBinary:    "BINARY",
	Echo:              "ECHO",
	SuppressGoAhead:   "SGA",
	Status:            "STATUS",
	TimingMark:        "TIMING-MARK",
	TerminalType:      "TERMINAL-TYPE",
	EndOfRecord:       "END-OF-RECORD",
	NAWS:              "NAWS",
	TerminalSpeed:     "TERMINAL-SPEED",
	RemoteFlowControl: "LFLOW",
	Linemode:          "LINEMODE",
	XDisplayLocation:  "X-DISPLAY-LOCATION",
	Environ:           "ENVIRON",
	NewEnviron:        "NEW-ENVIRON",
	Charset:           "CHARSET",
}

func CommandName(cmd byte) string {
	if name, ok := commandNames[cmd]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", cmd)
}

func OptionName(opt byte) string {
	if name, ok := optionNames[opt]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", opt)
}

// ParseOption accepts either a registered option name (case-insensitive) or
// a decimal option code.
func ParseOption(s string) (byte, error) {
	s = strings.TrimSpace(s)
	for opt, name := range optionNames {
		if strings.EqualFold(name, s) {
			return opt, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, errors.Errorf("unknown telnet option %q", s)
	}
	return byte(n), nil
}
