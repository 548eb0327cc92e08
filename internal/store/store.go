package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrInvalidUser indicates validation failure for signup data.
	ErrInvalidUser = errors.New("invalid user")
	// ErrUserExists signals the username is already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound signals a missing user record.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials indicates a login failure.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrForbidden indicates the caller lacks access to the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidCollection indicates validation failure for collection data.
	ErrInvalidCollection = errors.New("invalid collection")
	// ErrCollectionNotFound signals a missing collection record.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrPersonalCollection rejects rename, delete and sharing of the built-in personal collection.
	ErrPersonalCollection = errors.New("personal collection cannot be modified this way")

	// ErrSongNotFound signals a missing song record.
	ErrSongNotFound = errors.New("song not found")
	// ErrPlaylistNotLinked signals the playlist is not linked to the collection.
	ErrPlaylistNotLinked = errors.New("playlist not linked to collection")
	// ErrPlaylistNotRemembered signals the playlist is absent from the user's import history.
	ErrPlaylistNotRemembered = errors.New("playlist not in import history")

	// ErrRequestNotFound signals a missing access request.
	ErrRequestNotFound = errors.New("access request not found")
	// ErrRequestExists signals a pending access request already exists.
	ErrRequestExists = errors.New("access request already pending")
)

// Store provides persistence backed by Postgres.
type Store struct {
	db *sql.DB
}

// New sets up a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// Serialization failures (40001) and deadlocks (40P01) are safe to retry.
func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

const (
	txRetryAttempts = 5
	txRetryBase     = 10 * time.Millisecond
	txRetryCap      = 200 * time.Millisecond
)

// retryTxConflict re-runs op while it keeps failing with a retryable
// transaction error, backing off between attempts.
func retryTxConflict(ctx context.Context, op func() error) error {
	backoff := txRetryBase
	var err error
	for attempt := 0; attempt < txRetryAttempts; attempt++ {
		err = op()
		if err == nil || !isRetryableTxError(err) {
			return err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > txRetryCap {
			backoff = txRetryCap
		}
	}
	return err
}
