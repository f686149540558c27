// Package remail implements a minimal inbound SMTP protocol engine and the
// server glue around it.
//
// The core of the package is [Parser], a pure state machine that consumes one
// CRLF-stripped text line at a time and yields protocol events
// ([FromEvent], [ToEvent], [HeaderEvent], [BodyEvent], [DoneEvent]) together
// with the SMTP reply each line requires. The parser performs no I/O, which
// keeps it testable without a network harness:
//
//	p := remail.NewParser()
//	ev, reply, err := p.Advance("HELO client.example.com")
//
// [Session] drives a parser over a network connection: it reads lines,
// writes the matching replies, and hands the completed message to a
// [Persistor] exactly once per transaction. [Server] owns the accept loop,
// the per-connection goroutines, and graceful shutdown.
//
// # Wire protocol surface
//
// The engine accepts HELO/EHLO, MAIL FROM, RCPT TO (repeatable), DATA, and a
// dot-terminated message, replying with codes 220, 250, 354, 500, 501, 503,
// and 550. Extension negotiation, AUTH, STARTTLS, and outbound delivery are
// deliberately not implemented; persistence lives behind the [Persistor]
// interface.
//
// # Message grammar
//
// Message content after DATA is parsed as an RFC 5322 style header block
// (with folding) followed by a free-text body. Body lines are dot-unstuffed
// per RFC 5321 Section 4.5.2. Any structural error is fatal for the
// transaction: the peer receives the matching 5xx reply and the connection
// is closed.
package remail
