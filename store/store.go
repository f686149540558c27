// Package store persists captured messages and lists them for the HTTP API.
//
// Three implementations share the Store interface: Memory (tests and
// throwaway runs), SQLite (the default relational store), and Spool (an
// append-only MessagePack file). All are safe for concurrent use by many
// SMTP sessions plus the API reader.
package store

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vieiralucas/remail"
)

// Stored is a persisted message with its storage identity.
type Stored struct {
	// ID is a ULID, so lexicographic order is creation order.
	ID string `json:"id"`

	// From is the envelope sender; "" for the null reverse-path.
	From string `json:"from"`

	// To holds the envelope recipients in submission order.
	To []string `json:"to"`

	Subject string         `json:"subject"`
	Headers remail.Headers `json:"headers"`
	Body    string         `json:"body"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store saves completed messages and lists them newest-first.
type Store interface {
	Save(ctx context.Context, msg *remail.Message) (Stored, error)
	List(ctx context.Context) ([]Stored, error)
	Close() error
}

// AsPersistor adapts a Store to the engine's narrow persistence contract.
func AsPersistor(s Store) remail.Persistor {
	return remail.PersistorFunc(func(ctx context.Context, msg *remail.Message) error {
		_, err := s.Save(ctx, msg)
		return err
	})
}

// newStored assigns identity and timestamps to a completed message.
func newStored(msg *remail.Message) Stored {
	now := time.Now().UTC()
	return Stored{
		ID:        ulid.Make().String(),
		From:      msg.Sender(),
		To:        msg.Recipients(),
		Subject:   msg.Subject,
		Headers:   append(remail.Headers(nil), msg.Headers...),
		Body:      msg.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
