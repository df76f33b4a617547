package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// UserRepository abstracts the user directory.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUsers(ctx context.Context, userIDs []uuid.UUID) ([]models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db Queryer
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db Queryer) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, username, first_name, last_name, password_hash, role, created_at`

// CreateUser inserts a user; the caller assigns the id.
func (r *UserRepo) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	var created models.User
	err := r.db.QueryRowxContext(ctx, `INSERT INTO users (id, email, username, first_name, last_name, password_hash, role, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING `+userColumns,
		user.ID, user.Email, user.Username, user.FirstName, user.LastName, user.PasswordHash, user.Role, user.CreatedAt).
		StructScan(&created)
	if isUniqueViolation(err) {
		return models.User{}, ErrEmailTaken
	}
	return created, err
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUsers returns the users among userIDs that exist.
func (r *UserRepo) GetUsers(ctx context.Context, userIDs []uuid.UUID) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}
	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		ids = append(ids, id.String())
	}
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[]) ORDER BY created_at ASC`, pq.Array(ids))
	return users, err
}

// ListUsers returns every user ordered by registration time.
func (r *UserRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	return users, err
}

// DeleteUser removes the messages the user sent and the history entries they
// authored, then the user row itself. Remaining dependents go through the
// foreign key cascades. Run it inside a transaction.
func (r *UserRepo) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE sender_id=$1`, userID); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM message_history WHERE edited_by=$1`, userID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}
