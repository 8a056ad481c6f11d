package telnet

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stesla/otelnet/internal/event"
)

// Conn is a net.Conn that speaks telnet. Read returns application data only;
// negotiation happens underneath and replies are written as soon as they are
// decided. Write escapes IAC.
type Conn interface {
	net.Conn
	event.Dispatcher

	Context() context.Context
	// Do runs fn with exclusive access to the engine and writes whatever fn
	// queued. Event listeners run with the engine locked and must not call
	// Do themselves.
	Do(fn func(*Engine) error) error
	Get(opt byte) OptionState
	RequestEnable(opt byte, side Side) error
	RequestDisable(opt byte, side Side) error
	// Stats reports raw bytes read from and written to the transport.
	Stats() (read, written uint64)
}

type Config struct {
	Registry          *Registry
	Logger            zerolog.Logger
	MaxSubnegotiation int
	DialTimeout       time.Duration
}

const readBufSize = 4096

type conn struct {
	net.Conn
	event.Dispatcher

	ctx    context.Context
	engine *Engine
	// mu guards engine, data and eof.
	mu     sync.Mutex
	wmu    sync.Mutex

	buf     []byte
	data    []byte
	eof     bool
	read    atomic.Uint64
	written atomic.Uint64
}

func Dial(ctx context.Context, address string, cfg Config) (Conn, error) {
	d := net.Dialer{Timeout: cfg.DialTimeout}
	tcp, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", address)
	}
	return Wrap(ctx, tcp, cfg), nil
}

func Wrap(ctx context.Context, c net.Conn, cfg Config) Conn {
	return wrap(ctx, c, cfg)
}

func wrap(ctx context.Context, c net.Conn, cfg Config) *conn {
	registry := cfg.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	engine := NewEngine(ctx, registry, cfg.Logger)
	engine.SetMaxSubnegotiation(cfg.MaxSubnegotiation)
	return &conn{
		Conn:       c,
		Dispatcher: engine,
		ctx:        ctx,
		engine:     engine,
		buf:        make([]byte, readBufSize),
	}
}

func (c *conn) Context() context.Context { return c.ctx }

func (c *conn) Do(fn func(*Engine) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := fn(c.engine)
	if ferr := c.flush(); err == nil {
		err = ferr
	}
	return err
}

func (c *conn) Get(opt byte) OptionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Get(opt)
}

func (c *conn) RequestEnable(opt byte, side Side) error {
	return c.Do(func(e *Engine) error { return e.RequestEnable(opt, side) })
}

func (c *conn) RequestDisable(opt byte, side Side) error {
	return c.Do(func(e *Engine) error {
		e.RequestDisable(opt, side)
		return nil
	})
}

func (c *conn) Stats() (read, written uint64) {
	return c.read.Load(), c.written.Load()
}

func (c *conn) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		c.mu.Lock()
		if len(c.data) > 0 {
			n = copy(p, c.data)
			c.data = c.data[n:]
			c.mu.Unlock()
			return n, err
		}
		eof := c.eof
		c.mu.Unlock()
		if err != nil {
			return 0, err
		}
		if eof {
			return 0, io.EOF
		}

		var nr int
		nr, err = c.Conn.Read(c.buf)
		c.read.Add(uint64(nr))
		if nr > 0 {
			if derr := c.deliver(c.buf[:nr]); derr != nil {
				return 0, derr
			}
		}
		if err == io.EOF {
			c.mu.Lock()
			c.eof = true
			c.mu.Unlock()
			err = nil
		}
	}
}

func (c *conn) deliver(chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for tok := range c.engine.Deliver(chunk) {
		if data, ok := tok.(Data); ok {
			c.data = append(c.data, data...)
		}
	}
	return c.flush()
}

// flush must be called with mu held.
func (c *conn) flush() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.engine.Flush(writerFunc(c.writeRaw))
}

func (c *conn) Write(p []byte) (n int, err error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err = c.writeRaw(Escape(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *conn) writeRaw(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	c.written.Add(uint64(n))
	return n, err
}

// Close resets the negotiation state and closes the transport.
func (c *conn) Close() error {
	c.mu.Lock()
	c.engine.Reset()
	c.data = nil
	c.mu.Unlock()
	return c.Conn.Close()
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// ReadNegotiations is a helper for peers that only care about the commands
// in a byte stream, such as a probe reading a client's replies.
func ReadNegotiations(p []byte) (out []Negotiation) {
	var s Scanner
	for tok := range s.Scan(p) {
		if n, ok := tok.(Negotiation); ok {
			out = append(out, n)
		}
	}
	return
}
