package remail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tinylib/msgp/msgp"
)

// Header is a single message header field. Repeated fields with the same
// name are kept as separate entries, in the order they appeared.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Headers is an ordered collection of header fields.
type Headers []Header

// Get returns the first value for name, compared case-insensitively, or ""
// if the header is absent.
func (h Headers) Get(name string) string {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value
		}
	}
	return ""
}

// GetAll returns every value for name, compared case-insensitively.
func (h Headers) GetAll(name string) []string {
	var values []string
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			values = append(values, hdr.Value)
		}
	}
	return values
}

// Message is the immutable snapshot of a completed transaction, handed to
// the persistence collaborator exactly once.
type Message struct {
	// From is the envelope sender. Nil means the null reverse-path.
	From *Mailbox `json:"from"`

	// To holds the envelope recipients in submission order; never empty.
	To []Mailbox `json:"to"`

	// Subject is the value of the first header named "Subject"
	// (case-insensitive), or "" when the message has none.
	Subject string `json:"subject"`

	// Headers is the parsed header block.
	Headers Headers `json:"headers"`

	// Body is the dot-unstuffed message body with lines joined by CRLF.
	Body string `json:"body"`
}

// Sender returns the sender in local-part@domain form, or "" for the null
// reverse-path.
func (m *Message) Sender() string {
	if m.From == nil {
		return ""
	}
	return m.From.String()
}

// Recipients returns the recipient addresses as strings, in submission order.
func (m *Message) Recipients() []string {
	rcpts := make([]string, len(m.To))
	for i, to := range m.To {
		rcpts[i] = to.String()
	}
	return rcpts
}

// ToJSON serializes the message to JSON bytes.
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON deserializes a message from JSON bytes.
func FromJSON(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ToMessagePack serializes the message to MessagePack bytes. The null
// reverse-path is encoded as an empty sender string.
func (m *Message) ToMessagePack() ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)
	if err := m.EncodeMsg(w); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromMessagePack deserializes a message from MessagePack bytes.
func FromMessagePack(data []byte) (*Message, error) {
	var m Message
	r := msgp.NewReader(bytes.NewReader(data))
	if err := m.DecodeMsg(r); err != nil {
		return nil, err
	}
	return &m, nil
}

// EncodeMsg writes the message to w in MessagePack map form.
func (m *Message) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteMapHeader(5); err != nil {
		return err
	}
	if err := w.WriteString("from"); err != nil {
		return err
	}
	if err := w.WriteString(m.Sender()); err != nil {
		return err
	}
	if err := w.WriteString("to"); err != nil {
		return err
	}
	if err := w.WriteArrayHeader(uint32(len(m.To))); err != nil {
		return err
	}
	for _, to := range m.To {
		if err := w.WriteString(to.String()); err != nil {
			return err
		}
	}
	if err := w.WriteString("subject"); err != nil {
		return err
	}
	if err := w.WriteString(m.Subject); err != nil {
		return err
	}
	if err := w.WriteString("headers"); err != nil {
		return err
	}
	if err := encodeHeaders(w, m.Headers); err != nil {
		return err
	}
	if err := w.WriteString("body"); err != nil {
		return err
	}
	return w.WriteString(m.Body)
}

// DecodeMsg reads a message written by EncodeMsg.
func (m *Message) DecodeMsg(r *msgp.Reader) error {
	sz, err := r.ReadMapHeader()
	if err != nil {
		return err
	}
	for i := uint32(0); i < sz; i++ {
		key, err := r.ReadString()
		if err != nil {
			return err
		}
		switch key {
		case "from":
			sender, err := r.ReadString()
			if err != nil {
				return err
			}
			if sender == "" {
				m.From = nil
				continue
			}
			mb, err := ParseMailbox(sender)
			if err != nil {
				return fmt.Errorf("invalid sender %q: %w", sender, err)
			}
			m.From = &mb
		case "to":
			n, err := r.ReadArrayHeader()
			if err != nil {
				return err
			}
			m.To = make([]Mailbox, 0, n)
			for i := uint32(0); i < n; i++ {
				addr, err := r.ReadString()
				if err != nil {
					return err
				}
				mb, err := ParseMailbox(addr)
				if err != nil {
					return fmt.Errorf("invalid recipient %q: %w", addr, err)
				}
				m.To = append(m.To, mb)
			}
		case "subject":
			if m.Subject, err = r.ReadString(); err != nil {
				return err
			}
		case "headers":
			if m.Headers, err = decodeHeaders(r); err != nil {
				return err
			}
		case "body":
			if m.Body, err = r.ReadString(); err != nil {
				return err
			}
		default:
			if err := r.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

// encodeHeaders writes headers as an array of [name, value] pairs.
func encodeHeaders(w *msgp.Writer, headers Headers) error {
	if err := w.WriteArrayHeader(uint32(len(headers))); err != nil {
		return err
	}
	for _, h := range headers {
		if err := w.WriteArrayHeader(2); err != nil {
			return err
		}
		if err := w.WriteString(h.Name); err != nil {
			return err
		}
		if err := w.WriteString(h.Value); err != nil {
			return err
		}
	}
	return nil
}

func decodeHeaders(r *msgp.Reader) (Headers, error) {
	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	headers := make(Headers, 0, n)
	for i := uint32(0); i < n; i++ {
		pair, err := r.ReadArrayHeader()
		if err != nil {
			return nil, err
		}
		if pair != 2 {
			return nil, fmt.Errorf("header pair has %d elements", pair)
		}
		var h Header
		if h.Name, err = r.ReadString(); err != nil {
			return nil, err
		}
		if h.Value, err = r.ReadString(); err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, nil
}
