package backend

import (
	"context"

	"raisin/internal/ledger"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// MirrorResult contains the receipt writer and optional cleanup function
type MirrorResult struct {
	Writer  ledger.ReceiptWriter
	Cleanup CleanupFunc
}

// Factory creates ledger mirrors based on configuration
type Factory interface {
	// CreateMirror creates a receipt writer instance based on the provided config
	CreateMirror(ctx context.Context, config Config) (*MirrorResult, error)
}

// MirrorType represents the kind of ledger mirror to write receipts to
type MirrorType string

const (
	// NoneMirror drains the sync queue without writing anywhere.
	NoneMirror MirrorType = "none"
	// MemoryMirror keeps receipts in process memory, for dev and tests.
	MemoryMirror MirrorType = "memory"
	// SheetsMirror appends receipts to a Google Sheets spreadsheet.
	SheetsMirror MirrorType = "sheets"
)

// String implements fmt.Stringer
func (mt MirrorType) String() string {
	return string(mt)
}

// IsValid returns true if the mirror type is valid
func (mt MirrorType) IsValid() bool {
	switch mt {
	case NoneMirror, MemoryMirror, SheetsMirror:
		return true
	default:
		return false
	}
}

// GetMirrorTypes returns all valid mirror types
func GetMirrorTypes() []MirrorType {
	return []MirrorType{NoneMirror, MemoryMirror, SheetsMirror}
}
