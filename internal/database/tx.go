package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/lib/pq"
)

// ErrStoreUnavailable means a transaction could not even be started.
var ErrStoreUnavailable = errors.New("backing store unavailable")

// TransactionConflictError is returned when a serializable transaction kept
// conflicting with concurrent writers after every retry was spent.
type TransactionConflictError struct {
	Attempts int
	Err      error
}

func (e *TransactionConflictError) Error() string {
	return fmt.Sprintf("transaction conflict after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransactionConflictError) Unwrap() error { return e.Err }

// TxFunc is the body of a transaction. It must not commit or roll back.
type TxFunc func(tx *sql.Tx) error

// RunInTx executes fn inside a serializable transaction and re-runs it when
// Postgres reports a serialization failure or deadlock.
func RunInTx(ctx context.Context, db *sql.DB, maxAttempts int, fn TxFunc) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := runOnce(ctx, db, fn)
		if err == nil {
			return nil
		}
		if !IsSerializationFailure(err) {
			return err
		}
		lastErr = err
		log.Printf("[DB] Serialization conflict (attempt %d/%d): %v", attempt, maxAttempts, err)
	}

	return &TransactionConflictError{Attempts: maxAttempts, Err: lastErr}
}

func runOnce(ctx context.Context, db *sql.DB, fn TxFunc) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// IsSerializationFailure reports whether err is a retryable Postgres conflict.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// IsUniqueViolation reports whether err is a Postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
