package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLStore(sqlx.NewDb(db, "postgres")), mock
}

func messageRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "conversation_id", "sender_id", "receiver_id", "parent_id", "content", "edited", "read", "created_at", "updated_at"})
}

func TestListDescendantsBoundsRecursion(t *testing.T) {
	store, mock := newMockStore(t)
	rootID, convID, sender, receiver := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	replyID := uuid.New()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WITH RECURSIVE thread AS .* 1 AS depth .* t\.depth \+ 1 .* WHERE t\.depth < \$2`).
		WithArgs(rootID, 4).
		WillReturnRows(messageRows().AddRow(replyID.String(), convID.String(), sender.String(), receiver.String(), rootID.String(), "hi", false, false, at, at))

	msgs, err := store.Messages().ListDescendants(context.Background(), rootID, 4)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, replyID, msgs[0].ID)
	require.NotNil(t, msgs[0].ParentID)
	assert.Equal(t, rootID, *msgs[0].ParentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserRemovesAuthoredRowsFirst(t *testing.T) {
	store, mock := newMockStore(t)
	userID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM messages WHERE sender_id=$1`)).WithArgs(userID).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM message_history WHERE edited_by=$1`)).WithArgs(userID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id=$1`)).WithArgs(userID).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Users().DeleteUser(context.Background(), userID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	userID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM messages WHERE sender_id=$1`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM message_history WHERE edited_by=$1`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id=$1`)).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, store.Users().DeleteUser(context.Background(), userID), ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMessageForUpdateLocksInsideTx(t *testing.T) {
	store, mock := newMockStore(t)
	msgID, convID, sender, receiver := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM messages WHERE id=\$1 FOR UPDATE`).
		WithArgs(msgID).
		WillReturnRows(messageRows().AddRow(msgID.String(), convID.String(), sender.String(), receiver.String(), nil, "old", false, false, at, at))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(tx Store) error {
		msg, err := tx.Messages().GetMessageForUpdate(context.Background(), msgID)
		if err != nil {
			return err
		}
		assert.Equal(t, "old", msg.Content)
		assert.Nil(t, msg.ParentID)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRetriesSerializationFailure(t *testing.T) {
	store, mock := newMockStore(t)
	msgID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE messages SET read=TRUE WHERE id=$1`)).WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE messages SET read=TRUE WHERE id=$1`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(tx Store) error {
		return tx.Messages().MarkRead(context.Background(), msgID)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
