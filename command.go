package remail

import (
	"errors"
	"strings"
)

// isKnownVerb reports whether the line starts with a recognized SMTP verb.
// The verb is the text up to the first space or colon, compared
// case-insensitively. Used to distinguish "bad sequence of commands" (known
// verb, wrong state) from "unrecognized command".
func isKnownVerb(line string) bool {
	verb := line
	if i := strings.IndexAny(line, " :"); i >= 0 {
		verb = line[:i]
	}
	switch len(verb) {
	case 4:
		for _, known := range [...]string{
			"HELO", "EHLO", "MAIL", "RCPT", "DATA",
			"QUIT", "RSET", "NOOP", "VRFY", "EXPN", "HELP", "AUTH",
		} {
			if strings.EqualFold(verb, known) {
				return true
			}
		}
	case 8:
		return strings.EqualFold(verb, "STARTTLS")
	}
	return false
}

// commandError classifies a line that did not match the expected command for
// the current state.
func commandError(line string) *ParseError {
	if isKnownVerb(line) {
		return &ParseError{Kind: KindBadSequence, Line: line}
	}
	return &ParseError{Kind: KindUnrecognizedCommand, Line: line}
}

// hasKeyword reports whether line begins with the fixed command keyword,
// compared case-insensitively. Keywords shorter than the line's length never
// match ("a line shorter than the keyword is unrecognized, not ignored").
func hasKeyword(line, keyword string) bool {
	return len(line) >= len(keyword) && strings.EqualFold(line[:len(keyword)], keyword)
}

// extractPath extracts the address token from the text following a
// "MAIL FROM:" or "RCPT TO:" keyword. It takes the first whitespace-delimited
// token, ignores any trailing parameters ("param1=ignored"), and strips a
// matched pair of angle brackets. An empty result means the null path.
func extractPath(args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", nil
	}

	token := fields[0]
	open := strings.HasPrefix(token, "<")
	closed := strings.HasSuffix(token, ">")
	switch {
	case open && closed:
		token = token[1 : len(token)-1]
	case open || closed:
		return "", errors.New("unmatched angle bracket")
	}

	return token, nil
}
