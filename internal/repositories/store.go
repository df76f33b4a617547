package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store groups the repositories and runs them inside a transaction when
// required. A Store handed to a WithinTx callback is bound to that
// transaction.
type Store interface {
	Users() UserRepository
	Conversations() ConversationRepository
	Messages() MessageRepository
	Notifications() NotificationRepository
	History() HistoryRepository
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type Queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

const maxTxRetries = 3

// SQLStore is the Postgres-backed Store.
type SQLStore struct {
	db *sqlx.DB
	q  Queryer
}

// NewSQLStore constructs a SQLStore.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, q: db}
}

func (s *SQLStore) Users() UserRepository                 { return NewUserRepo(s.q) }
func (s *SQLStore) Conversations() ConversationRepository { return NewConversationRepo(s.q) }
func (s *SQLStore) Messages() MessageRepository           { return NewMessageRepo(s.q) }
func (s *SQLStore) Notifications() NotificationRepository { return NewNotificationRepo(s.q) }
func (s *SQLStore) History() HistoryRepository            { return NewHistoryRepo(s.q) }

// WithinTx runs fn in a transaction, committing when it returns nil.
// Serialization failures and deadlocks are retried with backoff.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if _, ok := s.q.(*sqlx.Tx); ok {
		return fn(s)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond

	op := func() error {
		err := s.runTx(ctx, fn)
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, maxTxRetries), ctx))
}

func (s *SQLStore) runTx(ctx context.Context, fn func(tx Store) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(&SQLStore{db: s.db, q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", "40P01":
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
