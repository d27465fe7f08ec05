package broker

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"msgport/internal/journal"
	"msgport/internal/logging"
	"msgport/internal/object"
	"msgport/internal/wire"
)

const helloTimeout = 5 * time.Second

// Session is one peer connection bound to a named service.
type Session struct {
	id      uint64
	service string
	conn    net.Conn
	broker  *Broker
	peer    Peer

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
	onClose []func()
}

// ID returns the broker-local session identifier.
func (s *Session) ID() uint64 {
	return s.id
}

// Service returns the name the session bound to.
func (s *Session) Service() string {
	return s.service
}

// Peer returns the connecting process credentials when available.
func (s *Session) Peer() Peer {
	return s.peer
}

// OnClose registers cleanup to run when the session ends. Services use
// this to drop subscription state.
func (s *Session) OnClose(fn func()) {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		fn()
		return
	}
	s.onClose = append(s.onClose, fn)
	s.closeMu.Unlock()
}

// Push sends an unsolicited event dictionary to the peer.
func (s *Session) Push(event object.Dict) error {
	frame := &wire.Frame{Kind: wire.KindEvent, ID: object.NewUUID(), Body: event}
	if err := s.writeFrame(frame); err != nil {
		return err
	}
	s.broker.journalFrame(journal.DirectionOutbound, s.service, frame.Kind.String(), event, int64(frame.Size), s.peer.String())
	return nil
}

func (s *Session) writeFrame(f *wire.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return wire.WriteFrame(s.conn, f, s.broker.limits)
}

// terminate pushes a terminal error frame and closes the transport.
func (s *Session) terminate(code wire.ErrorCode, detail string) {
	_ = s.writeFrame(&wire.Frame{Kind: wire.KindError, ID: object.NewUUID(), Code: code, Detail: detail})
	_ = s.conn.Close()
}

func (s *Session) finish() {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return
	}
	s.closed = true
	hooks := s.onClose
	s.onClose = nil
	s.closeMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	_ = s.conn.Close()
	s.broker.removeSession(s)
}

func (b *Broker) handleConn(conn net.Conn) {
	logger := b.logger

	_ = conn.SetReadDeadline(time.Now().Add(helloTimeout))
	hello, err := wire.ReadFrame(conn, b.limits)
	if err != nil || hello.Kind != wire.KindHello {
		logger.Debug("rejecting connection without hello", logging.Error(err))
		_ = wire.WriteFrame(conn, &wire.Frame{
			Kind:   wire.KindError,
			ID:     object.NewUUID(),
			Code:   wire.CodeInvalid,
			Detail: "expected hello frame",
		}, b.limits)
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	svc := b.lookup(hello.Service)
	if svc == nil {
		logger.Info("rejecting unknown service",
			logging.String(logging.FieldEventType, "session_rejected"),
			logging.String(logging.FieldService, hello.Service))
		_ = wire.WriteFrame(conn, &wire.Frame{
			Kind:    wire.KindError,
			ID:      hello.ID,
			Service: hello.Service,
			Code:    wire.CodeInvalid,
			Detail:  "unknown service " + hello.Service,
		}, b.limits)
		_ = conn.Close()
		return
	}

	sess := &Session{
		service: hello.Service,
		conn:    conn,
		broker:  b,
		peer:    peerCredentials(conn),
	}
	b.addSession(sess)
	defer sess.finish()

	if err := sess.writeFrame(&wire.Frame{Kind: wire.KindAck, ID: hello.ID, Service: hello.Service}); err != nil {
		logger.Debug("hello ack failed", logging.Error(err))
		return
	}

	logger.Info("session opened",
		logging.String(logging.FieldEventType, "session_opened"),
		logging.String(logging.FieldService, sess.service),
		logging.Int64(logging.FieldSession, int64(sess.id)),
		logging.String("peer", sess.peer.String()))

	b.serveSession(sess, svc)

	logger.Info("session closed",
		logging.String(logging.FieldEventType, "session_closed"),
		logging.String(logging.FieldService, sess.service),
		logging.Int64(logging.FieldSession, int64(sess.id)))
}

func (b *Broker) serveSession(sess *Session, svc Service) {
	for {
		frame, err := wire.ReadFrame(sess.conn, b.limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				b.logger.Debug("session read failed",
					logging.String(logging.FieldService, sess.service),
					logging.Error(err))
			}
			return
		}

		switch frame.Kind {
		case wire.KindCast, wire.KindCall:
			b.deliver(sess, svc, frame)
		default:
			b.logger.Debug("dropping unexpected frame",
				logging.String("kind", frame.Kind.String()),
				logging.String(logging.FieldService, sess.service))
		}
	}
}

func (b *Broker) deliver(sess *Session, svc Service, frame *wire.Frame) {
	b.journalFrame(journal.DirectionInbound, sess.service, frame.Kind.String(), frame.Body, int64(frame.Size), sess.peer.String())

	msg, _ := frame.Body.(object.Dict)
	reply, err := svc.Handle(b.ctx, sess, msg)
	if err != nil {
		failure := &wire.Frame{
			Kind:    wire.KindError,
			ID:      frame.ID,
			Service: sess.service,
			Detail:  err.Error(),
		}
		if writeErr := sess.writeFrame(failure); writeErr != nil {
			b.logger.Debug("error frame write failed", logging.Error(writeErr))
			return
		}
		b.journalFrame(journal.DirectionOutbound, sess.service, failure.Kind.String(), nil, int64(failure.Size), sess.peer.String())
	} else if reply != nil {
		response := &wire.Frame{Kind: wire.KindReply, ID: frame.ID, Service: sess.service, Body: reply}
		if writeErr := sess.writeFrame(response); writeErr != nil {
			b.logger.Debug("reply write failed", logging.Error(writeErr))
			return
		}
		b.journalFrame(journal.DirectionOutbound, sess.service, response.Kind.String(), reply, int64(response.Size), sess.peer.String())
	}

	// The ack is the caller's completion barrier: it must follow the
	// reply or error for the same id.
	if frame.Kind == wire.KindCall {
		if writeErr := sess.writeFrame(&wire.Frame{Kind: wire.KindAck, ID: frame.ID, Service: sess.service}); writeErr != nil {
			b.logger.Debug("ack write failed", logging.Error(writeErr))
		}
	}
}
