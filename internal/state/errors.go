package state

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrDuplicateRun is returned by CreateRun when the run id already exists.
	ErrDuplicateRun = errors.New("state: run already exists")
	// ErrNotFound marks a lookup by id with no matching record.
	ErrNotFound = errors.New("state: not found")
)

// StorageError wraps a failure of the underlying datastore. Nothing in this
// package retries; Retryable tells the caller whether a retry can succeed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// Retryable reports whether the failure was a lock-wait timeout.
func (e *StorageError) Retryable() bool {
	code, ok := sqliteCode(e.Err)
	if !ok {
		return false
	}
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	default:
		return false
	}
}

// WrapStorage tags err as a StorageError for op. nil stays nil.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsRetryable reports whether err is a StorageError worth retrying.
func IsRetryable(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Retryable()
}

func isConstraint(err error) bool {
	code, ok := sqliteCode(err)
	return ok && code&0xff == sqlite3.SQLITE_CONSTRAINT
}

func sqliteCode(err error) (int, bool) {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return 0, false
	}
	return se.Code(), true
}
