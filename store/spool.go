package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tinylib/msgp/msgp"

	"github.com/vieiralucas/remail"
)

// Spool is a Store backed by an append-only file of MessagePack records.
// It trades queryability for a dependency-free on-disk format that can be
// tailed or shipped elsewhere.
type Spool struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *msgp.Writer
}

// OpenSpool opens (and if needed creates) the spool file at path.
func OpenSpool(path string) (*Spool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}
	return &Spool{
		path: path,
		f:    f,
		w:    msgp.NewWriter(f),
	}, nil
}

// Save appends one record and flushes it to the file.
func (s *Spool) Save(_ context.Context, msg *remail.Message) (Stored, error) {
	stored := newStored(msg)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := encodeStored(s.w, stored); err != nil {
		return Stored{}, fmt.Errorf("encode record: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return Stored{}, fmt.Errorf("flush spool: %w", err)
	}
	return stored, nil
}

// List reads the whole spool and returns records newest first.
func (s *Spool) List(_ context.Context) ([]Stored, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}
	defer f.Close()

	r := msgp.NewReader(f)
	var msgs []Stored
	for {
		stored, err := decodeStored(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		msgs = append(msgs, stored)
	}

	// Records are appended oldest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Close closes the spool file.
func (s *Spool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.w.Flush(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}

func encodeStored(w *msgp.Writer, stored Stored) error {
	if err := w.WriteMapHeader(8); err != nil {
		return err
	}
	if err := writeStringField(w, "id", stored.ID); err != nil {
		return err
	}
	if err := writeStringField(w, "from", stored.From); err != nil {
		return err
	}
	if err := w.WriteString("to"); err != nil {
		return err
	}
	if err := w.WriteArrayHeader(uint32(len(stored.To))); err != nil {
		return err
	}
	for _, to := range stored.To {
		if err := w.WriteString(to); err != nil {
			return err
		}
	}
	if err := writeStringField(w, "subject", stored.Subject); err != nil {
		return err
	}
	if err := w.WriteString("headers"); err != nil {
		return err
	}
	if err := w.WriteArrayHeader(uint32(len(stored.Headers))); err != nil {
		return err
	}
	for _, h := range stored.Headers {
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
	if err := writeStringField(w, "body", stored.Body); err != nil {
		return err
	}
	if err := w.WriteString("created_at"); err != nil {
		return err
	}
	if err := w.WriteTime(stored.CreatedAt); err != nil {
		return err
	}
	if err := w.WriteString("updated_at"); err != nil {
		return err
	}
	return w.WriteTime(stored.UpdatedAt)
}

func writeStringField(w *msgp.Writer, name, value string) error {
	if err := w.WriteString(name); err != nil {
		return err
	}
	return w.WriteString(value)
}

func decodeStored(r *msgp.Reader) (Stored, error) {
	var stored Stored

	sz, err := r.ReadMapHeader()
	if err != nil {
		return Stored{}, err
	}

	for i := uint32(0); i < sz; i++ {
		key, err := r.ReadString()
		if err != nil {
			return Stored{}, err
		}
		switch key {
		case "id":
			stored.ID, err = r.ReadString()
		case "from":
			stored.From, err = r.ReadString()
		case "to":
			stored.To, err = readStringArray(r)
		case "subject":
			stored.Subject, err = r.ReadString()
		case "headers":
			stored.Headers, err = readHeaders(r)
		case "body":
			stored.Body, err = r.ReadString()
		case "created_at":
			stored.CreatedAt, err = readTime(r)
		case "updated_at":
			stored.UpdatedAt, err = readTime(r)
		default:
			err = r.Skip()
		}
		if err != nil {
			return Stored{}, err
		}
	}
	return stored, nil
}

func readStringArray(r *msgp.Reader) ([]string, error) {
	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func readHeaders(r *msgp.Reader) (remail.Headers, error) {
	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	headers := make(remail.Headers, 0, n)
	for i := uint32(0); i < n; i++ {
		pair, err := r.ReadArrayHeader()
		if err != nil {
			return nil, err
		}
		if pair != 2 {
			return nil, fmt.Errorf("header pair has %d elements", pair)
		}
		var h remail.Header
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

func readTime(r *msgp.Reader) (time.Time, error) {
	t, err := r.ReadTime()
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
