package remail

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestParseErrorReply(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		code int
		ok   bool
	}{
		{KindUnrecognizedCommand, 500, true},
		{KindBadSequence, 503, true},
		{KindDataAfterEnd, 503, true},
		{KindInvalidSender, 501, true},
		{KindInvalidRecipient, 501, true},
		{KindMalformedHeader, 501, true},
		{KindIO, 0, false},
		{KindUnexpectedEnd, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			perr := &ParseError{Kind: tt.kind}
			reply, ok := perr.Reply()
			if ok != tt.ok {
				t.Fatalf("Reply() ok = %v, want %v", ok, tt.ok)
			}
			if ok && reply.Code != tt.code {
				t.Fatalf("Reply() code = %d, want %d", reply.Code, tt.code)
			}
		})
	}
}

func TestParseErrorMessage(t *testing.T) {
	perr := &ParseError{Kind: KindUnrecognizedCommand, Line: "WAVE hello"}
	if got := perr.Error(); !strings.Contains(got, "WAVE hello") {
		t.Errorf("Error() = %q, want offending line included", got)
	}

	wrapped := &ParseError{Kind: KindIO, Err: io.ErrUnexpectedEOF}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Error("errors.Is failed to unwrap the cause")
	}
}
