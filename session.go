package remail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vieiralucas/remail/lineio"
)

// Persistor stores a completed message. It is invoked exactly once per
// completed transaction; a failure produces a 550 reply and closes the
// connection without the transaction ever reaching its terminal state.
// Implementations must be safe for use from concurrent sessions.
type Persistor interface {
	Persist(ctx context.Context, msg *Message) error
}

// PersistorFunc adapts a function to the Persistor interface.
type PersistorFunc func(ctx context.Context, msg *Message) error

func (f PersistorFunc) Persist(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// SessionConfig carries the per-connection settings a Session needs.
type SessionConfig struct {
	// Hostname appears in the 220 greeting.
	Hostname string

	// ID identifies the connection in logs. Optional.
	ID string

	// MaxLineLength bounds incoming lines; zero selects the lineio default.
	MaxLineLength int

	// ReadTimeout is the per-line read deadline, applied when the stream
	// supports deadlines. Zero disables it.
	ReadTimeout time.Duration

	// Logger receives session logs; nil selects slog.Default.
	Logger *slog.Logger
}

// readDeadliner is implemented by net.Conn and anything else whose reads can
// be bounded.
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Session drives one SMTP dialog over a stream: lines in, replies out, and
// the completed message into the Persistor. Each Session is owned by exactly
// one connection goroutine.
type Session struct {
	src       *lineio.Reader
	w         *bufio.Writer
	deadliner readDeadliner
	persistor Persistor
	config    SessionConfig
	logger    *slog.Logger
}

// NewSession wraps rw in a session. If rw supports read deadlines and
// config.ReadTimeout is set, each line read is bounded.
func NewSession(rw io.ReadWriter, persistor Persistor, config SessionConfig) *Session {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.ID != "" {
		logger = logger.With(slog.String("conn_id", config.ID))
	}

	s := &Session{
		src:       lineio.NewReader(rw, config.MaxLineLength),
		w:         bufio.NewWriter(rw),
		persistor: persistor,
		config:    config,
		logger:    logger,
	}
	if d, ok := rw.(readDeadliner); ok && config.ReadTimeout > 0 {
		s.deadliner = d
	}
	return s
}

// Serve runs the dialog until the transaction completes, the peer closes the
// stream, or a protocol or transport error ends it. Protocol failures are
// reported to the peer with the matching 5xx reply before returning.
func (s *Session) Serve(ctx context.Context) error {
	if err := s.writeReply(Greeting(s.config.Hostname)); err != nil {
		return err
	}

	parser := NewParser()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := s.readLine()
		if err == io.EOF {
			return s.finish(parser)
		}
		if errors.Is(err, lineio.ErrLineTooLong) {
			_ = s.writeReply(ReplyLineTooLong)
			return &ParseError{Kind: KindIO, Err: err}
		}
		if err != nil {
			return &ParseError{Kind: KindIO, Err: err}
		}

		ev, reply, err := parser.Advance(line)
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				if reply, ok := perr.Reply(); ok {
					_ = s.writeReply(reply)
				}
				s.logger.Warn("protocol error", slog.String("error", perr.Error()))
			}
			return err
		}

		if !reply.IsZero() {
			if err := s.writeReply(reply); err != nil {
				return err
			}
		}

		if _, ok := ev.(BodyEvent); ok {
			if err := s.accept(ctx, parser.Message()); err != nil {
				return err
			}
		}
	}
}

// accept persists the completed message and replies 250 or 550.
func (s *Session) accept(ctx context.Context, msg *Message) error {
	if err := s.persistor.Persist(ctx, msg); err != nil {
		s.logger.Error("persist failed", slog.Any("error", err))
		_ = s.writeReply(ReplyLocalError)
		return fmt.Errorf("persist message: %w", err)
	}

	s.logger.Info("message accepted",
		slog.String("from", msg.Sender()),
		slog.Int("recipients", len(msg.To)),
		slog.String("subject", msg.Subject),
		slog.Int("body_bytes", len(msg.Body)),
	)
	return s.writeReply(ReplyAccepted)
}

// finish handles end of input: a clean close after the terminator completes
// the dialog, anything earlier is an unfinished transaction.
func (s *Session) finish(parser *Parser) error {
	ev, err := parser.End()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		s.logger.Warn("connection closed mid-transaction")
		return err
	}
	if _, ok := ev.(DoneEvent); ok {
		s.logger.Debug("dialog complete")
	}
	return nil
}

func (s *Session) readLine() (string, error) {
	if s.deadliner != nil {
		if err := s.deadliner.SetReadDeadline(time.Now().Add(s.config.ReadTimeout)); err != nil {
			return "", err
		}
	}
	return s.src.ReadLine()
}

func (s *Session) writeReply(r Reply) error {
	if _, err := s.w.WriteString(r.String() + "\r\n"); err != nil {
		return err
	}
	return s.w.Flush()
}
