package memory

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a memory id does not exist for the caller.
var ErrNotFound = errors.New("memory not found")

// ValidationError rejects malformed input synchronously. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError means the authoritative store failed. Fatal for the request.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }

// IndexError means the derived vector index failed. Non-fatal for writes,
// degrades reads to the fallback path.
type IndexError struct {
	Op  string
	Err error
}

func (e IndexError) Error() string {
	return fmt.Sprintf("index %s: %v", e.Op, e.Err)
}

func (e IndexError) Unwrap() error { return e.Err }

// ProviderError means the embedding provider failed or timed out. Treated
// like IndexError for writes and forces fallback-only retrieval for reads.
type ProviderError struct {
	Op  string
	Err error
}

func (e ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Op, e.Err)
}

func (e ProviderError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

func IsStorage(err error) bool {
	var s StorageError
	return errors.As(err, &s)
}

// IsRecoverable reports whether err is an index or provider failure, i.e.
// one the read path may absorb by falling back to the authoritative store.
func IsRecoverable(err error) bool {
	var i IndexError
	var p ProviderError
	return errors.As(err, &i) || errors.As(err, &p)
}
