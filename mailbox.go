package remail

import (
	"errors"
	"net/mail"
)

// Mailbox is a validated email address split into its RFC 5321 parts.
// A successfully parsed Mailbox is never empty; the null reverse-path is
// represented by a nil *Mailbox, not by a zero value.
type Mailbox struct {
	// LocalPart is the portion before the @ sign. Case is preserved;
	// local-parts are never case-folded.
	LocalPart string `json:"local_part"`

	// Domain is the portion after the @ sign.
	Domain string `json:"domain"`
}

// ParseMailbox validates addr and splits it into local-part and domain.
func ParseMailbox(addr string) (Mailbox, error) {
	if addr == "" {
		return Mailbox{}, errors.New("empty address")
	}

	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return Mailbox{}, err
	}

	// Split at the last @ so quoted local-parts containing @ stay intact.
	address := parsed.Address
	for i := len(address) - 1; i >= 0; i-- {
		if address[i] == '@' {
			return Mailbox{
				LocalPart: address[:i],
				Domain:    address[i+1:],
			}, nil
		}
	}

	return Mailbox{}, errors.New("address has no domain")
}

// String returns the address in local-part@domain form.
func (m Mailbox) String() string {
	return m.LocalPart + "@" + m.Domain
}
