package remail

import (
	"errors"
	"fmt"
)

// ErrServerClosed is returned by Server.Serve after Shutdown or Close.
var ErrServerClosed = errors.New("smtp: server closed")

// ErrorKind classifies protocol failures. Every kind is terminal for the
// current connection; none are retried.
type ErrorKind int

const (
	// KindIO is a transport read or write failure on the underlying stream.
	KindIO ErrorKind = iota

	// KindUnrecognizedCommand means the line did not start with a known SMTP
	// verb, or was shorter than the expected command keyword.
	KindUnrecognizedCommand

	// KindBadSequence means the line started with a known SMTP verb that is
	// not valid in the current dialog state.
	KindBadSequence

	// KindInvalidSender means the MAIL FROM address failed validation.
	KindInvalidSender

	// KindInvalidRecipient means a RCPT TO address failed validation.
	// Unlike the sender, a recipient may not be the null path.
	KindInvalidRecipient

	// KindMalformedHeader means a line in the header block had no colon, or
	// a continuation line arrived with no header open.
	KindMalformedHeader

	// KindUnexpectedEnd means the stream ended inside an unfinished
	// transaction.
	KindUnexpectedEnd

	// KindDataAfterEnd means a line arrived after the message terminator.
	KindDataAfterEnd
)

// String returns the kind's human-readable name.
func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "transport failure"
	case KindUnrecognizedCommand:
		return "unrecognized command"
	case KindBadSequence:
		return "bad sequence of commands"
	case KindInvalidSender:
		return "invalid sender address"
	case KindInvalidRecipient:
		return "invalid recipient address"
	case KindMalformedHeader:
		return "malformed header"
	case KindUnexpectedEnd:
		return "unexpected end of input"
	case KindDataAfterEnd:
		return "data after message end"
	default:
		return "unknown error"
	}
}

// ParseError is a protocol failure raised by the parser. Line carries the
// offending input line when one exists; Err carries a wrapped cause (address
// validation failure, transport error).
type ParseError struct {
	Kind ErrorKind
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	switch {
	case e.Err != nil && e.Line != "":
		return fmt.Sprintf("smtp: %s: %q: %v", e.Kind, e.Line, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("smtp: %s: %v", e.Kind, e.Err)
	case e.Line != "":
		return fmt.Sprintf("smtp: %s: %q", e.Kind, e.Line)
	default:
		return "smtp: " + e.Kind.String()
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reply returns the SMTP reply to send to the peer for this failure.
// ok is false when no reply is feasible (transport failures and streams that
// ended before the dialog did).
func (e *ParseError) Reply() (reply Reply, ok bool) {
	switch e.Kind {
	case KindUnrecognizedCommand:
		return ReplyUnrecognized, true
	case KindBadSequence, KindDataAfterEnd:
		return ReplyBadSequence, true
	case KindInvalidSender, KindInvalidRecipient, KindMalformedHeader:
		return ReplySyntax, true
	default:
		return Reply{}, false
	}
}
