// Package lineio reads length-limited text lines from a byte stream.
//
// It is the line source for the SMTP engine: each ReadLine call returns one
// line with the terminator stripped. Lines are expected to end in CRLF but a
// bare LF is tolerated, matching what permissive mail tooling sends during
// local development.
package lineio

import (
	"bufio"
	"errors"
	"io"
)

// ErrLineTooLong is returned when a line exceeds the reader's limit.
var ErrLineTooLong = errors.New("lineio: line too long")

// DefaultMaxLineLength bounds a line when no limit is configured. RFC 5321
// limits command lines to 512 octets and text lines to 1000; the default
// leaves headroom for long folded headers sent unfolded.
const DefaultMaxLineLength = 4096

// Reader yields terminator-stripped lines from an underlying stream.
type Reader struct {
	r   *bufio.Reader
	max int
}

// NewReader returns a Reader over r. A max of zero or less selects
// DefaultMaxLineLength.
func NewReader(r io.Reader, max int) *Reader {
	if max <= 0 {
		max = DefaultMaxLineLength
	}
	return &Reader{
		r:   bufio.NewReaderSize(r, min(max, 4096)),
		max: max,
	}
}

// ReadLine returns the next line without its terminator. At end of input it
// returns a final unterminated line if one is pending, then io.EOF.
func (l *Reader) ReadLine() (string, error) {
	// Fast path: the whole line fits in the buffer.
	slice, err := l.r.ReadSlice('\n')
	if err == nil {
		return trim(slice, l.max)
	}
	if err == io.EOF {
		if len(slice) == 0 {
			return "", io.EOF
		}
		return trim(slice, l.max)
	}
	if err != bufio.ErrBufferFull {
		return "", err
	}

	// Slow path: accumulate chunks until the newline arrives. The first
	// chunk must be copied before the next ReadSlice invalidates it.
	buf := append([]byte(nil), slice...)
	for {
		if len(buf) > l.max {
			return "", ErrLineTooLong
		}
		slice, err = l.r.ReadSlice('\n')
		buf = append(buf, slice...)
		if err == nil {
			return trim(buf, l.max)
		}
		if err == io.EOF {
			if len(buf) == 0 {
				return "", io.EOF
			}
			return trim(buf, l.max)
		}
		if err != bufio.ErrBufferFull {
			return "", err
		}
	}
}

// trim strips the line terminator and enforces the length limit, which
// counts content only.
func trim(b []byte, max int) (string, error) {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	if len(b) > max {
		return "", ErrLineTooLong
	}
	return string(b), nil
}
