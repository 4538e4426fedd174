package types

import "fmt"

// ErrorKind classifies a storage failure for callers that branch on the
// failure class rather than the message.
type ErrorKind string

const (
	// KindConnection covers store-unreachable and schema bootstrap
	// failures. Fatal: callers abort startup.
	KindConnection ErrorKind = "connection"
	// KindWrite covers constraint violations and serialization failures
	// surfaced after transaction rollback.
	KindWrite ErrorKind = "write"
	// KindRead covers query failures. "Not found" is not a read error;
	// it is signaled separately as a non-error outcome.
	KindRead ErrorKind = "read"
)

// StorageError wraps an underlying store error with an operation-specific
// message and a kind code. Raw driver errors never cross the storage
// boundary unwrapped.
type StorageError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error in %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewConnectionError wraps a connection or initialization failure.
func NewConnectionError(op string, err error) *StorageError {
	return &StorageError{Kind: KindConnection, Op: op, Err: err}
}

// NewWriteError wraps a write failure after rollback.
func NewWriteError(op string, err error) *StorageError {
	return &StorageError{Kind: KindWrite, Op: op, Err: err}
}

// NewReadError wraps a query failure.
func NewReadError(op string, err error) *StorageError {
	return &StorageError{Kind: KindRead, Op: op, Err: err}
}
