package wire

import (
	"msgport/internal/object"
)

// Kind discriminates frame purposes on a connection.
type Kind uint8

const (
	// KindHello opens a session; Service names the target service.
	KindHello Kind = iota + 1
	// KindCast delivers a message without acknowledgement.
	KindCast
	// KindCall delivers a message; the receiver acknowledges with
	// KindAck carrying the same id once delivery completes.
	KindCall
	// KindAck acknowledges a KindHello or KindCall frame.
	KindAck
	// KindReply carries a service's response dictionary to the caller.
	KindReply
	// KindEvent carries an unsolicited dictionary pushed by a service.
	KindEvent
	// KindError reports a failure; Code may map to a sentinel.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindHello:
		return "hello"
	case KindCast:
		return "cast"
	case KindCall:
		return "call"
	case KindAck:
		return "ack"
	case KindReply:
		return "reply"
	case KindEvent:
		return "event"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrorCode identifies terminal conditions carried by KindError frames.
type ErrorCode uint8

const (
	CodeNone ErrorCode = iota
	CodeInvalid
	CodeInterrupted
	CodeTerminated
)

// Sentinel maps an error code to its singleton, or nil for CodeNone.
func (c ErrorCode) Sentinel() error {
	switch c {
	case CodeInvalid:
		return object.ErrConnectionInvalid
	case CodeInterrupted:
		return object.ErrConnectionInterrupted
	case CodeTerminated:
		return object.ErrConnectionTerminated
	default:
		return nil
	}
}

// Frame is the unit of exchange on a msgport stream.
type Frame struct {
	Kind    Kind
	ID      object.UUID
	Service string
	Code    ErrorCode
	Detail  string
	Body    any

	// Size is the encoded payload length in bytes. It is set by the
	// codec on both read and write and ignored as input.
	Size int
}
