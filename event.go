package remail

import "fmt"

// Event is a protocol event produced by the parser as a transaction
// progresses. The concrete types are FromEvent, ToEvent, HeaderEvent,
// BodyEvent, and DoneEvent.
type Event interface {
	event()
}

// FromEvent is emitted when a MAIL FROM command has been accepted.
// Mailbox is nil for the null reverse-path ("MAIL FROM:<>"), used by
// bounce messages per RFC 5321 Section 4.5.5.
type FromEvent struct {
	Mailbox *Mailbox
}

// ToEvent is emitted for each accepted RCPT TO command, in submission order.
type ToEvent struct {
	Mailbox Mailbox
}

// HeaderEvent is emitted when a header field is complete, i.e. when the line
// that terminates it (the next header or the blank separator line) has been
// consumed. Value has folded continuation lines joined by single spaces.
type HeaderEvent struct {
	Name  string
	Value string
}

// BodyEvent is emitted when the terminator line ("." alone) is seen.
// Lines holds the dot-unstuffed body lines, excluding the terminator.
type BodyEvent struct {
	Lines []string
}

// DoneEvent is emitted once the peer closes the stream after a completed
// transaction. It is the terminal event of a well-formed dialog.
type DoneEvent struct{}

func (FromEvent) event()   {}
func (ToEvent) event()     {}
func (HeaderEvent) event() {}
func (BodyEvent) event()   {}
func (DoneEvent) event()   {}

func (e FromEvent) String() string {
	if e.Mailbox == nil {
		return "From(<>)"
	}
	return fmt.Sprintf("From(%s)", e.Mailbox)
}

func (e ToEvent) String() string {
	return fmt.Sprintf("To(%s)", e.Mailbox)
}

func (e HeaderEvent) String() string {
	return fmt.Sprintf("Header(%s: %s)", e.Name, e.Value)
}

func (e BodyEvent) String() string {
	return fmt.Sprintf("Body(%d lines)", len(e.Lines))
}

func (DoneEvent) String() string {
	return "Done"
}
