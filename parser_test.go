package remail

import (
	"errors"
	"io"
	"reflect"
	"testing"
)

// advanceAll feeds lines to a fresh parser and returns it, failing the test
// on any error along the way.
func advanceAll(t *testing.T, lines []string) *Parser {
	t.Helper()
	p := NewParser()
	for _, line := range lines {
		if _, _, err := p.Advance(line); err != nil {
			t.Fatalf("Advance(%q): %v", line, err)
		}
	}
	return p
}

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	return perr.Kind
}

func TestParserFullDialog(t *testing.T) {
	lines := []string{
		"HELO localhost",
		"MAIL FROM:<alice@example.com>",
		"RCPT TO:<bob@example.com>",
		"RCPT TO:<carol@example.com>",
		"DATA",
		"Subject: Greetings",
		"X-Test: yes",
		"",
		"Hello Bob,",
		"",
		"Bye.",
		".",
	}

	p := NewParser()
	var events []Event
	for _, line := range lines {
		ev, _, err := p.Advance(line)
		if err != nil {
			t.Fatalf("Advance(%q): %v", line, err)
		}
		if ev != nil {
			events = append(events, ev)
		}
	}

	alice := Mailbox{LocalPart: "alice", Domain: "example.com"}
	want := []Event{
		FromEvent{Mailbox: &alice},
		ToEvent{Mailbox: Mailbox{LocalPart: "bob", Domain: "example.com"}},
		ToEvent{Mailbox: Mailbox{LocalPart: "carol", Domain: "example.com"}},
		HeaderEvent{Name: "Subject", Value: "Greetings"},
		HeaderEvent{Name: "X-Test", Value: "yes"},
		BodyEvent{Lines: []string{"Hello Bob,", "", "Bye."}},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events = %v, want %v", events, want)
	}

	msg := p.Message()
	if msg == nil {
		t.Fatal("Message() = nil after terminator")
	}
	if got, want := msg.Sender(), "alice@example.com"; got != want {
		t.Errorf("Sender() = %q, want %q", got, want)
	}
	if got, want := msg.Subject, "Greetings"; got != want {
		t.Errorf("Subject = %q, want %q", got, want)
	}
	if got, want := msg.Body, "Hello Bob,\r\n\r\nBye."; got != want {
		t.Errorf("Body = %q, want %q", got, want)
	}

	ev, err := p.End()
	if err != nil {
		t.Fatalf("End(): %v", err)
	}
	if _, ok := ev.(DoneEvent); !ok {
		t.Fatalf("End() = %v, want DoneEvent", ev)
	}
	if _, err := p.End(); err != io.EOF {
		t.Fatalf("second End() = %v, want io.EOF", err)
	}
}

func TestParserMailFrom(t *testing.T) {
	tests := []struct {
		name string
		line string
		from string // "" means null sender
		kind ErrorKind
		fail bool
	}{
		{name: "bracketed", line: "MAIL FROM:<alice@example.com>", from: "alice@example.com"},
		{name: "space before brackets", line: "MAIL FROM: <alice@example.com>", from: "alice@example.com"},
		{name: "bare address", line: "MAIL FROM:alice@example.com", from: "alice@example.com"},
		{name: "trailing parameters ignored", line: "MAIL FROM:<alice@example.com> SIZE=1024", from: "alice@example.com"},
		{name: "lowercase keyword", line: "mail from:<alice@example.com>", from: "alice@example.com"},
		{name: "null sender", line: "MAIL FROM:<>", from: ""},
		{name: "empty argument is null sender", line: "MAIL FROM:", from: ""},
		{name: "no at sign", line: "MAIL FROM:<alice>", fail: true, kind: KindInvalidSender},
		{name: "unmatched open bracket", line: "MAIL FROM:<alice@example.com", fail: true, kind: KindInvalidSender},
		{name: "unmatched close bracket", line: "MAIL FROM:alice@example.com>", fail: true, kind: KindInvalidSender},
		{name: "wrong command", line: "RCPT TO:<bob@example.com>", fail: true, kind: KindBadSequence},
		{name: "garbage", line: "BLAH blah", fail: true, kind: KindUnrecognizedCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := advanceAll(t, []string{"HELO localhost"})
			ev, reply, err := p.Advance(tt.line)

			if tt.fail {
				if err == nil {
					t.Fatalf("Advance(%q) succeeded, want error", tt.line)
				}
				if got := kindOf(t, err); got != tt.kind {
					t.Fatalf("error kind = %v, want %v", got, tt.kind)
				}
				return
			}

			if err != nil {
				t.Fatalf("Advance(%q): %v", tt.line, err)
			}
			if reply != ReplyOK {
				t.Errorf("reply = %v, want %v", reply, ReplyOK)
			}
			from, ok := ev.(FromEvent)
			if !ok {
				t.Fatalf("event = %T, want FromEvent", ev)
			}
			if tt.from == "" {
				if from.Mailbox != nil {
					t.Fatalf("Mailbox = %v, want nil for null sender", from.Mailbox)
				}
				return
			}
			if from.Mailbox == nil || from.Mailbox.String() != tt.from {
				t.Fatalf("Mailbox = %v, want %q", from.Mailbox, tt.from)
			}
		})
	}
}

func TestParserRcptTo(t *testing.T) {
	preamble := []string{"HELO localhost", "MAIL FROM:<alice@example.com>"}

	t.Run("multiple recipients keep order", func(t *testing.T) {
		p := advanceAll(t, preamble)
		for _, line := range []string{
			"RCPT TO:<bob@example.com>",
			"RCPT TO: <carol@example.com>",
		} {
			ev, _, err := p.Advance(line)
			if err != nil {
				t.Fatalf("Advance(%q): %v", line, err)
			}
			if _, ok := ev.(ToEvent); !ok {
				t.Fatalf("event = %T, want ToEvent", ev)
			}
		}

		if _, _, err := p.Advance("DATA"); err != nil {
			t.Fatalf("Advance(DATA): %v", err)
		}
		for _, line := range []string{"", "."} {
			if _, _, err := p.Advance(line); err != nil {
				t.Fatalf("Advance(%q): %v", line, err)
			}
		}

		got := p.Message().Recipients()
		want := []string{"bob@example.com", "carol@example.com"}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Recipients() = %v, want %v", got, want)
		}
	})

	t.Run("null recipient rejected", func(t *testing.T) {
		p := advanceAll(t, preamble)
		_, _, err := p.Advance("RCPT TO:<>")
		if got := kindOf(t, err); got != KindInvalidRecipient {
			t.Fatalf("error kind = %v, want %v", got, KindInvalidRecipient)
		}
	})

	t.Run("invalid recipient rejected", func(t *testing.T) {
		p := advanceAll(t, preamble)
		_, _, err := p.Advance("RCPT TO:<not-an-address>")
		if got := kindOf(t, err); got != KindInvalidRecipient {
			t.Fatalf("error kind = %v, want %v", got, KindInvalidRecipient)
		}
	})

	t.Run("data before any recipient", func(t *testing.T) {
		p := advanceAll(t, preamble)
		_, _, err := p.Advance("DATA")
		if got := kindOf(t, err); got != KindBadSequence {
			t.Fatalf("error kind = %v, want %v", got, KindBadSequence)
		}
	})
}

func TestParserHeaderFolding(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		value string
	}{
		{name: "single space stripped", lines: []string{"Subject: Hi"}, value: "Hi"},
		{name: "extra space kept", lines: []string{"Subject:  Test"}, value: " Test"},
		{name: "no space after colon", lines: []string{"Subject:Test"}, value: "Test"},
		{name: "value on continuation", lines: []string{"Subject:", " Test"}, value: " Test"},
		{name: "folded", lines: []string{"Subject: First", " Second"}, value: "First Second"},
		{name: "tab continuation", lines: []string{"Subject: First", "\tSecond"}, value: "First Second"},
		{name: "empty continuation part", lines: []string{"Subject: First", " ", " Second"}, value: "First  Second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := advanceAll(t, []string{
				"HELO localhost",
				"MAIL FROM:<alice@example.com>",
				"RCPT TO:<bob@example.com>",
				"DATA",
			})
			p = feedHeaders(t, p, tt.lines)

			msg := p.Message()
			if got := msg.Headers.Get("Subject"); got != tt.value {
				t.Fatalf("Subject = %q, want %q", got, tt.value)
			}
			if got := msg.Subject; got != tt.value {
				t.Fatalf("msg.Subject = %q, want %q", got, tt.value)
			}
		})
	}
}

// feedHeaders feeds the header lines plus the blank separator and terminator.
func feedHeaders(t *testing.T, p *Parser, lines []string) *Parser {
	t.Helper()
	for _, line := range append(append([]string{}, lines...), "", ".") {
		if _, _, err := p.Advance(line); err != nil {
			t.Fatalf("Advance(%q): %v", line, err)
		}
	}
	return p
}

func TestParserMalformedHeaders(t *testing.T) {
	preamble := []string{
		"HELO localhost",
		"MAIL FROM:<alice@example.com>",
		"RCPT TO:<bob@example.com>",
		"DATA",
	}

	tests := []struct {
		name string
		line string
	}{
		{name: "no colon", line: "this is not a header"},
		{name: "terminator in header block", line: "."},
		{name: "empty name", line: ": value"},
		{name: "continuation with no open header", line: " folded into nothing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := advanceAll(t, preamble)
			_, _, err := p.Advance(tt.line)
			if got := kindOf(t, err); got != KindMalformedHeader {
				t.Fatalf("error kind = %v, want %v", got, KindMalformedHeader)
			}
		})
	}
}

func TestParserBodyDotUnstuffing(t *testing.T) {
	p := advanceAll(t, []string{
		"HELO localhost",
		"MAIL FROM:<alice@example.com>",
		"RCPT TO:<bob@example.com>",
		"DATA",
		"",
		"..leading dot",
		"...two dots",
		".",
	})

	got := p.Message().Body
	want := ".leading dot\r\n..two dots"
	if got != want {
		t.Fatalf("Body = %q, want %q", got, want)
	}
}

func TestParserGreeting(t *testing.T) {
	for _, line := range []string{"HELO localhost", "EHLO localhost", "helo mixed.example"} {
		t.Run(line, func(t *testing.T) {
			p := NewParser()
			ev, reply, err := p.Advance(line)
			if err != nil {
				t.Fatalf("Advance(%q): %v", line, err)
			}
			if ev != nil {
				t.Errorf("event = %v, want nil", ev)
			}
			if reply != ReplyHello {
				t.Errorf("reply = %v, want %v", reply, ReplyHello)
			}
		})
	}

	t.Run("known verb out of order", func(t *testing.T) {
		p := NewParser()
		_, _, err := p.Advance("MAIL FROM:<alice@example.com>")
		if got := kindOf(t, err); got != KindBadSequence {
			t.Fatalf("error kind = %v, want %v", got, KindBadSequence)
		}
	})

	t.Run("unknown verb", func(t *testing.T) {
		p := NewParser()
		_, _, err := p.Advance("WAVE hello")
		if got := kindOf(t, err); got != KindUnrecognizedCommand {
			t.Fatalf("error kind = %v, want %v", got, KindUnrecognizedCommand)
		}
	})
}

func TestParserDataAfterEnd(t *testing.T) {
	p := advanceAll(t, []string{
		"HELO localhost",
		"MAIL FROM:<alice@example.com>",
		"RCPT TO:<bob@example.com>",
		"DATA",
		"",
		"body",
		".",
	})

	_, _, err := p.Advance("more")
	if got := kindOf(t, err); got != KindDataAfterEnd {
		t.Fatalf("error kind = %v, want %v", got, KindDataAfterEnd)
	}
}

func TestParserUnexpectedEnd(t *testing.T) {
	p := advanceAll(t, []string{
		"HELO localhost",
		"MAIL FROM:<alice@example.com>",
	})

	_, err := p.End()
	if got := kindOf(t, err); got != KindUnexpectedEnd {
		t.Fatalf("error kind = %v, want %v", got, KindUnexpectedEnd)
	}
}

// sliceSource yields canned lines.
type sliceSource struct {
	lines []string
	i     int
}

func (s *sliceSource) ReadLine() (string, error) {
	if s.i >= len(s.lines) {
		return "", io.EOF
	}
	line := s.lines[s.i]
	s.i++
	return line, nil
}

func TestEventReader(t *testing.T) {
	r := NewEventReader(&sliceSource{lines: []string{
		"HELO localhost",
		"MAIL FROM:<alice@example.com>",
		"RCPT TO:<bob@example.com>",
		"DATA",
		"Subject: Hi",
		"",
		"Hello",
		".",
	}})

	var events []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next(): %v", err)
		}
		events = append(events, ev)
	}

	if len(events) != 5 {
		t.Fatalf("got %d events, want 5: %v", len(events), events)
	}
	if _, ok := events[len(events)-1].(DoneEvent); !ok {
		t.Fatalf("last event = %T, want DoneEvent", events[len(events)-1])
	}
	if _, ok := events[len(events)-2].(BodyEvent); !ok {
		t.Fatalf("second to last event = %T, want BodyEvent", events[len(events)-2])
	}
	if r.Parser().Message() == nil {
		t.Fatal("Message() = nil after dialog completed")
	}
}

func TestEventReaderTruncatedStream(t *testing.T) {
	r := NewEventReader(&sliceSource{lines: []string{
		"HELO localhost",
		"MAIL FROM:<alice@example.com>",
	}})

	var err error
	for err == nil {
		_, err = r.Next()
	}
	if got := kindOf(t, err); got != KindUnexpectedEnd {
		t.Fatalf("error kind = %v, want %v", got, KindUnexpectedEnd)
	}
}
