package export

import (
	"context"
	"fmt"
	"sync"
)

// MemorySink keeps rows in process. Used when no spreadsheet is configured
// and in tests.
type MemorySink struct {
	mu   sync.Mutex
	rows []Row
	err  error
}

var _ Sink = (*MemorySink)(nil)

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// AppendRow stores the row and returns a synthetic reference.
func (m *MemorySink) AppendRow(_ context.Context, row Row) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.rows = append(m.rows, row)
	return fmt.Sprintf("mem:%d", len(m.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (m *MemorySink) Rows() []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Row(nil), m.rows...)
}

// FailWith makes subsequent appends fail with err; nil restores success.
func (m *MemorySink) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
