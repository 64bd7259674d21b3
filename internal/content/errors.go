package content

import (
	"fmt"
	"strings"
)

// MaxDocumentBytes is the largest encoded document the local store accepts.
const MaxDocumentBytes = 5_000_000

// CapacityError reports a document whose encoding exceeds MaxDocumentBytes.
type CapacityError struct {
	Size  int
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("Datos demasiado grandes (%sMB). Límite: ~%sMB", SizeInMB(e.Size), SizeInMB(e.Limit))
}

// StorageError wraps a failure of the backing store with a message fit for the admin UI.
type StorageError struct {
	Message string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError lists every rule a document or item failed.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid content: " + strings.Join(e.Problems, "; ")
}

// CheckSize returns a *CapacityError when size exceeds MaxDocumentBytes.
func CheckSize(size int) error {
	if size > MaxDocumentBytes {
		return &CapacityError{Size: size, Limit: MaxDocumentBytes}
	}
	return nil
}

// SizeInMB formats a byte count the way the admin UI reports it.
func SizeInMB(size int) string {
	return fmt.Sprintf("%.2f", float64(size)/1024/1024)
}
