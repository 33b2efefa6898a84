package storage

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicate is returned when attempting to create a resource that already exists.
	ErrDuplicate = errors.New("resource already exists")

	// ErrAlreadyInside is returned when an entry log is already open for the tag.
	ErrAlreadyInside = errors.New("tag already inside")

	// ErrAlreadyOutside is returned when there is no open entry log to close.
	ErrAlreadyOutside = errors.New("tag already outside")

	// ErrInsufficientBalance is returned when a conditional deduction matched no row.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// isConstraintViolation reports whether err is a SQLite UNIQUE/constraint failure.
// The extended error code for UNIQUE constraint is 2067.
func isConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == 2067 || (sqliteErr.Code()&0xFF) == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
