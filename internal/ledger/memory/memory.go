package memory

import (
	"context"
	"fmt"
	"sync"

	"raisin/internal/ledger"
)

// Store is an in-memory receipt mirror used in development and tests.
type Store struct {
	mu   sync.Mutex
	rows []ledger.ReceiptRow
}

func New() *Store {
	return &Store{}
}

// Append stores the receipt and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, row ledger.ReceiptRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything mirrored so far.
func (s *Store) Rows() []ledger.ReceiptRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.ReceiptRow(nil), s.rows...)
}
