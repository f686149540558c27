package store

import (
	"context"
	"sync"

	"github.com/vieiralucas/remail"
)

// Memory is an in-memory Store. Contents are lost on process exit.
type Memory struct {
	mu   sync.Mutex
	msgs []Stored
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Save appends the message.
func (m *Memory) Save(_ context.Context, msg *remail.Message) (Stored, error) {
	stored := newStored(msg)

	m.mu.Lock()
	m.msgs = append(m.msgs, stored)
	m.mu.Unlock()

	return stored, nil
}

// List returns all messages, newest first.
func (m *Memory) List(_ context.Context) ([]Stored, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Stored, len(m.msgs))
	for i, msg := range m.msgs {
		out[len(m.msgs)-1-i] = msg
	}
	return out, nil
}

// Len returns the number of stored messages.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
