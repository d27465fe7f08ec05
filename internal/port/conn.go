package port

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"msgport/internal/object"
	"msgport/internal/wire"
)

const (
	defaultDialTimeout  = 2 * time.Second
	defaultHelloTimeout = 5 * time.Second
)

// EventHandler receives replies, events, and terminal conditions for a
// connection. The event dictionary is borrowed: it is valid for the
// duration of the callback and must be copied to outlive it. Exactly
// one of event and err is set per call.
type EventHandler interface {
	HandleEvent(event object.Dict, err error)
}

// HandlerFunc adapts a function to the EventHandler interface.
type HandlerFunc func(event object.Dict, err error)

func (f HandlerFunc) HandleEvent(event object.Dict, err error) {
	f(event, err)
}

// Options tunes connection construction.
type Options struct {
	// Limits overrides the wire decode limits; zero fields use defaults.
	Limits wire.Limits
	// DialTimeout bounds the socket dial; zero uses the default.
	DialTimeout time.Duration
}

// Conn is an open channel to one named service.
type Conn struct {
	service string
	nc      net.Conn
	handler EventHandler
	limits  wire.Limits

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[object.UUID]chan error

	closed      atomic.Bool
	closeOnce   sync.Once
	deliverOnce sync.Once
	done        chan struct{}
	termErr     atomic.Value
}

// Connect dials the daemon socket and binds to the named service. A
// missing daemon, an empty service name, or an unknown service yields
// an error rather than a usable handle.
func Connect(socketPath, service string, handler EventHandler) (*Conn, error) {
	return ConnectOptions(socketPath, service, handler, Options{})
}

// ConnectOptions is Connect with explicit tuning.
func ConnectOptions(socketPath, service string, handler EventHandler, opts Options) (*Conn, error) {
	if service == "" {
		return nil, errors.New("connect: service name must not be empty")
	}
	if handler == nil {
		handler = HandlerFunc(func(object.Dict, error) {})
	}

	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	nc, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", service, err)
	}

	c := &Conn{
		service: service,
		nc:      nc,
		handler: handler,
		limits:  opts.Limits,
		pending: make(map[object.UUID]chan error),
		done:    make(chan struct{}),
	}

	hello := &wire.Frame{Kind: wire.KindHello, ID: object.NewUUID(), Service: service}
	if err := c.writeFrame(hello); err != nil {
		_ = nc.Close()
		return nil, fmt.Errorf("connect to %s: %w", service, err)
	}

	_ = nc.SetReadDeadline(time.Now().Add(defaultHelloTimeout))
	resp, err := wire.ReadFrame(nc, c.limits)
	if err != nil {
		_ = nc.Close()
		return nil, fmt.Errorf("connect to %s: %w", service, err)
	}
	_ = nc.SetReadDeadline(time.Time{})

	switch resp.Kind {
	case wire.KindAck:
	case wire.KindError:
		_ = nc.Close()
		if sentinel := resp.Code.Sentinel(); sentinel != nil {
			return nil, fmt.Errorf("connect to %s: %s: %w", service, resp.Detail, sentinel)
		}
		return nil, fmt.Errorf("connect to %s: %s", service, resp.Detail)
	default:
		_ = nc.Close()
		return nil, fmt.Errorf("connect to %s: unexpected %s frame", service, resp.Kind)
	}

	go c.readLoop()
	return c, nil
}

// Service returns the name this connection bound to.
func (c *Conn) Service() string {
	return c.service
}

// Send transmits a message object. With wait set, Send blocks until the
// daemon acknowledges that delivery to the service completed; otherwise
// it returns as soon as the frame is written. Replies still arrive via
// the event handler in both modes.
func (c *Conn) Send(msg any, wait bool) error {
	if c.closed.Load() {
		return object.ErrConnectionTerminated
	}

	kind := wire.KindCast
	if wait {
		kind = wire.KindCall
	}
	frame := &wire.Frame{Kind: kind, ID: object.NewUUID(), Service: c.service, Body: msg}

	var ackCh chan error
	if wait {
		ackCh = make(chan error, 1)
		c.pendingMu.Lock()
		c.pending[frame.ID] = ackCh
		c.pendingMu.Unlock()
	}

	if err := c.writeFrame(frame); err != nil {
		if wait {
			c.pendingMu.Lock()
			delete(c.pending, frame.ID)
			c.pendingMu.Unlock()
		}
		return fmt.Errorf("send to %s: %w", c.service, err)
	}
	if !wait {
		return nil
	}

	select {
	case err := <-ackCh:
		return err
	case <-c.done:
		return c.terminalError()
	}
}

// Close tears the connection down. The handler observes
// ErrConnectionTerminated exactly once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.nc.Close()
	})
	return nil
}

func (c *Conn) writeFrame(f *wire.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wire.WriteFrame(c.nc, f, c.limits)
}

func (c *Conn) readLoop() {
	for {
		frame, err := wire.ReadFrame(c.nc, c.limits)
		if err != nil {
			if c.closed.Load() {
				c.deliverTerminal(object.ErrConnectionTerminated)
			} else {
				// Peer vanished without a terminal frame.
				c.deliverTerminal(object.ErrConnectionInvalid)
			}
			return
		}

		switch frame.Kind {
		case wire.KindAck:
			c.completePending(frame.ID, nil)

		case wire.KindReply, wire.KindEvent:
			if event, ok := frame.Body.(object.Dict); ok {
				c.handler.HandleEvent(event, nil)
			}

		case wire.KindError:
			if sentinel := frame.Code.Sentinel(); sentinel != nil {
				if errors.Is(sentinel, object.ErrConnectionInterrupted) {
					// Interrupted is not terminal: report and keep reading.
					c.handler.HandleEvent(nil, sentinel)
					continue
				}
				c.deliverTerminal(sentinel)
				_ = c.nc.Close()
				return
			}
			failure := errors.New(frame.Detail)
			if !c.completePending(frame.ID, failure) {
				c.handler.HandleEvent(nil, failure)
			}
		}
	}
}

// completePending resolves a waiting Send barrier; it reports whether a
// waiter existed for the id.
func (c *Conn) completePending(id object.UUID, err error) bool {
	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
	if ok {
		ch <- err
	}
	return ok
}

func (c *Conn) deliverTerminal(sentinel error) {
	c.deliverOnce.Do(func() {
		c.termErr.Store(sentinel)
		c.closed.Store(true)
		close(c.done)

		c.pendingMu.Lock()
		pending := c.pending
		c.pending = make(map[object.UUID]chan error)
		c.pendingMu.Unlock()
		for _, ch := range pending {
			ch <- sentinel
		}

		c.handler.HandleEvent(nil, sentinel)
	})
}

func (c *Conn) terminalError() error {
	if err, ok := c.termErr.Load().(error); ok {
		return err
	}
	return object.ErrConnectionTerminated
}
