package remail

import (
	"io"
	"strings"
)

// parserState is the current position in the SMTP dialog.
type parserState int

const (
	// stateStart awaits the HELO/EHLO greeting.
	stateStart parserState = iota
	// stateGreeted awaits MAIL FROM.
	stateGreeted
	// stateMailFrom awaits the first RCPT TO.
	stateMailFrom
	// stateRcptTo awaits further RCPT TO lines or DATA.
	stateRcptTo
	// stateHeaders is inside the message header block.
	stateHeaders
	// stateBody is inside the free-text message body.
	stateBody
	// stateEnd has seen the terminator line and awaits end of input.
	stateEnd
	// stateDone is terminal; the transaction is complete.
	stateDone
)

func (s parserState) String() string {
	switch s {
	case stateStart:
		return "Start"
	case stateGreeted:
		return "Greeted"
	case stateMailFrom:
		return "MailFrom"
	case stateRcptTo:
		return "RcptTo"
	case stateHeaders:
		return "Headers"
	case stateBody:
		return "Body"
	case stateEnd:
		return "End"
	case stateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Parser is the SMTP protocol state machine for a single transaction. It is
// a pure transformer: Advance consumes one line and returns the event the
// line produced (if any), the reply the peer must receive (if any), and the
// terminal error (if any). The parser performs no I/O and is exclusively
// owned by one connection; it must not be shared.
//
// A zero reply means the line needs none (header and body content). A nil
// event means the line produced none (HELO, DATA, continuation lines). After
// a BodyEvent the caller decides the reply itself: 250 once the message is
// persisted, 550 if persistence fails.
type Parser struct {
	state parserState

	from  *Mailbox
	rcpts []Mailbox

	headerOpen  bool
	headerName  string
	headerParts []string
	headers     Headers

	bodyLines []string

	msg *Message
}

// NewParser returns a parser at the start of the dialog.
func NewParser() *Parser {
	return &Parser{state: stateStart}
}

// Advance consumes one line, already stripped of its terminator.
func (p *Parser) Advance(line string) (Event, Reply, error) {
	switch p.state {
	case stateStart:
		if hasKeyword(line, "HELO") || hasKeyword(line, "EHLO") {
			p.state = stateGreeted
			return nil, ReplyHello, nil
		}
		return nil, Reply{}, commandError(line)

	case stateGreeted:
		if !hasKeyword(line, "MAIL FROM:") {
			return nil, Reply{}, commandError(line)
		}
		token, err := extractPath(line[len("MAIL FROM:"):])
		if err != nil {
			return nil, Reply{}, &ParseError{Kind: KindInvalidSender, Line: line, Err: err}
		}
		if token == "" {
			// Null reverse-path: valid, used by bounce messages.
			p.from = nil
			p.state = stateMailFrom
			return FromEvent{}, ReplyOK, nil
		}
		mb, err := ParseMailbox(token)
		if err != nil {
			return nil, Reply{}, &ParseError{Kind: KindInvalidSender, Line: line, Err: err}
		}
		p.from = &mb
		p.state = stateMailFrom
		return FromEvent{Mailbox: &mb}, ReplyOK, nil

	case stateMailFrom:
		if !hasKeyword(line, "RCPT TO:") {
			return nil, Reply{}, commandError(line)
		}
		return p.acceptRecipient(line)

	case stateRcptTo:
		if strings.EqualFold(line, "DATA") {
			p.state = stateHeaders
			return nil, ReplyStartMail, nil
		}
		if hasKeyword(line, "RCPT TO:") {
			return p.acceptRecipient(line)
		}
		return nil, Reply{}, commandError(line)

	case stateHeaders:
		return p.advanceHeader(line)

	case stateBody:
		if line == "." {
			p.finishMessage()
			return BodyEvent{Lines: p.bodyLines}, Reply{}, nil
		}
		// RFC 5321 Section 4.5.2 transparency: remove one leading dot.
		if strings.HasPrefix(line, ".") {
			line = line[1:]
		}
		p.bodyLines = append(p.bodyLines, line)
		return nil, Reply{}, nil

	default: // stateEnd, stateDone
		return nil, Reply{}, &ParseError{Kind: KindDataAfterEnd, Line: line}
	}
}

// End signals end of input. In the End state it completes the dialog and
// returns DoneEvent; in the Done state it returns io.EOF; anywhere else the
// stream ended mid-transaction.
func (p *Parser) End() (Event, error) {
	switch p.state {
	case stateEnd:
		p.state = stateDone
		return DoneEvent{}, nil
	case stateDone:
		return nil, io.EOF
	default:
		return nil, &ParseError{Kind: KindUnexpectedEnd}
	}
}

// Message returns the completed transaction snapshot. It is nil until the
// terminator line has been consumed.
func (p *Parser) Message() *Message {
	return p.msg
}

// acceptRecipient handles a RCPT TO line in either recipient-accepting state.
func (p *Parser) acceptRecipient(line string) (Event, Reply, error) {
	token, err := extractPath(line[len("RCPT TO:"):])
	if err != nil {
		return nil, Reply{}, &ParseError{Kind: KindInvalidRecipient, Line: line, Err: err}
	}
	if token == "" {
		// A recipient cannot be the null path.
		return nil, Reply{}, &ParseError{Kind: KindInvalidRecipient, Line: line}
	}
	mb, err := ParseMailbox(token)
	if err != nil {
		return nil, Reply{}, &ParseError{Kind: KindInvalidRecipient, Line: line, Err: err}
	}
	p.rcpts = append(p.rcpts, mb)
	p.state = stateRcptTo
	return ToEvent{Mailbox: mb}, ReplyOK, nil
}

// advanceHeader consumes one line of the header block. Folded headers (RFC
// 5322 Section 2.2.3) accumulate until the line that terminates them, at
// which point a HeaderEvent is emitted.
func (p *Parser) advanceHeader(line string) (Event, Reply, error) {
	if line == "" {
		p.state = stateBody
		if p.headerOpen {
			return p.finishHeader(), Reply{}, nil
		}
		return nil, Reply{}, nil
	}

	if line[0] == ' ' || line[0] == '\t' {
		if !p.headerOpen {
			return nil, Reply{}, &ParseError{Kind: KindMalformedHeader, Line: line}
		}
		// Continuation: exactly one leading whitespace character is folding
		// syntax; the rest is content.
		p.headerParts = append(p.headerParts, line[1:])
		return nil, Reply{}, nil
	}

	name, rest, found := strings.Cut(line, ":")
	if !found || name == "" {
		return nil, Reply{}, &ParseError{Kind: KindMalformedHeader, Line: line}
	}

	var ev Event
	if p.headerOpen {
		ev = p.finishHeader()
	}
	p.headerOpen = true
	p.headerName = name
	p.headerParts = append(p.headerParts[:0:0], headerValue(rest))
	return ev, Reply{}, nil
}

// headerValue strips the single space that conventionally separates the
// colon from the value, keeping any further whitespace as content.
func headerValue(rest string) string {
	if strings.HasPrefix(rest, " ") {
		return rest[1:]
	}
	return rest
}

// finishHeader closes the open header and returns its event. Folded parts
// are joined by single spaces.
func (p *Parser) finishHeader() Event {
	h := Header{
		Name:  p.headerName,
		Value: strings.Join(p.headerParts, " "),
	}
	p.headers = append(p.headers, h)
	p.headerOpen = false
	p.headerName = ""
	p.headerParts = nil
	return HeaderEvent{Name: h.Name, Value: h.Value}
}

// finishMessage snapshots the transaction when the terminator line is seen.
func (p *Parser) finishMessage() {
	p.state = stateEnd
	p.msg = &Message{
		From:    p.from,
		To:      p.rcpts,
		Subject: p.headers.Get("Subject"),
		Headers: p.headers,
		Body:    strings.Join(p.bodyLines, "\r\n"),
	}
}

// LineSource yields one text line at a time with the terminator already
// stripped. It returns io.EOF at end of input.
type LineSource interface {
	ReadLine() (string, error)
}

// EventReader adapts a LineSource into the parser's lazy event sequence.
// Next returns events in dialog order and io.EOF after DoneEvent.
type EventReader struct {
	src LineSource
	p   *Parser
}

// NewEventReader returns an EventReader over src with a fresh parser.
func NewEventReader(src LineSource) *EventReader {
	return &EventReader{src: src, p: NewParser()}
}

// Parser returns the underlying parser, for access to the completed Message.
func (r *EventReader) Parser() *Parser {
	return r.p
}

// Next returns the next protocol event.
func (r *EventReader) Next() (Event, error) {
	for {
		line, err := r.src.ReadLine()
		if err == io.EOF {
			return r.p.End()
		}
		if err != nil {
			return nil, &ParseError{Kind: KindIO, Err: err}
		}
		ev, _, err := r.p.Advance(line)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			return ev, nil
		}
	}
}
