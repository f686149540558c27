package remail

import "strconv"

// Reply is a single-line SMTP reply (RFC 5321 Section 4.2).
type Reply struct {
	Code int
	Text string
}

// Canned replies for the commands and failures this engine produces.
var (
	ReplyHello        = Reply{250, "Hello"}
	ReplyOK           = Reply{250, "OK"}
	ReplyStartMail    = Reply{354, "Start mail input; end with <CRLF>.<CRLF>"}
	ReplyAccepted     = Reply{250, "OK: Message accepted for delivery"}
	ReplyUnrecognized = Reply{500, "Unrecognized command"}
	ReplySyntax       = Reply{501, "Syntax error in parameters or arguments"}
	ReplyBadSequence  = Reply{503, "Bad sequence of commands"}
	ReplyLocalError   = Reply{550, "Internal server error"}
	ReplyLineTooLong  = Reply{500, "Line too long"}
)

// Greeting returns the 220 reply sent when a client connects.
func Greeting(hostname string) Reply {
	return Reply{220, hostname + " ESMTP remail"}
}

// String formats the reply as a wire line without the trailing CRLF.
func (r Reply) String() string {
	return strconv.Itoa(r.Code) + " " + r.Text
}

// IsZero reports whether the reply is unset. The parser returns a zero reply
// for lines that do not require one (header and body content lines).
func (r Reply) IsZero() bool {
	return r.Code == 0
}

// IsError reports whether the reply is a 4xx or 5xx failure.
func (r Reply) IsError() bool {
	return r.Code >= 400
}
