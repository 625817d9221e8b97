package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/studymate/study-mate-backend/internal/auth/domain"
)

const userColumns = `
	id::text, firebase_uid, email, name, password_hash, role, bio, location, phone,
	photo_url, interests, sent_requests, received_requests, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var firebaseUID, passwordHash sql.NullString

	err := row.Scan(
		&u.ID,
		&firebaseUID,
		&u.Email,
		&u.Name,
		&passwordHash,
		&u.Role,
		&u.Bio,
		&u.Location,
		&u.Phone,
		&u.PhotoURL,
		pq.Array(&u.Interests),
		pq.Array(&u.SentRequests),
		pq.Array(&u.ReceivedRequests),
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if firebaseUID.Valid {
		u.FirebaseUID = &firebaseUID.String
	}
	if passwordHash.Valid {
		u.PasswordHash = &passwordHash.String
	}
	normalizeSlices(&u)

	return &u, nil
}

func normalizeSlices(u *domain.User) {
	if u.Interests == nil {
		u.Interests = []string{}
	}
	if u.SentRequests == nil {
		u.SentRequests = []string{}
	}
	if u.ReceivedRequests == nil {
		u.ReceivedRequests = []string{}
	}
}

// GetByID retrieves a user by primary key
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by lower-cased email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = lower($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetByFirebaseUID retrieves a user by their Firebase UID
func (r *UserRepository) GetByFirebaseUID(ctx context.Context, uid string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE firebase_uid = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, uid))
}

// Create inserts a new user. A duplicate email maps to ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	normalizeSlices(user)

	query := `
		INSERT INTO users (id, firebase_uid, email, name, password_hash, role, photo_url, interests)
		VALUES ($1, $2, lower($3), $4, $5, $6, $7, $8)
		RETURNING email, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		user.ID,
		user.FirebaseUID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Role,
		user.PhotoURL,
		pq.Array(user.Interests),
	).Scan(&user.Email, &user.CreatedAt, &user.UpdatedAt)

	if isUniqueViolation(err) {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// LinkFirebaseUID attaches a federated identity to an existing account
func (r *UserRepository) LinkFirebaseUID(ctx context.Context, id, uid string) error {
	query := `UPDATE users SET firebase_uid = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, uid)
	if err != nil {
		return fmt.Errorf("failed to link firebase uid: %w", err)
	}
	return requireAffected(result)
}

// UpdateProfile writes the editable profile fields
func (r *UserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET name = $2, bio = $3, location = $4, phone = $5, photo_url = $6,
		    interests = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Bio,
		user.Location,
		user.Phone,
		user.PhotoURL,
		pq.Array(user.Interests),
	).Scan(&user.UpdatedAt)

	if err == sql.ErrNoRows {
		return domain.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}

// Delete removes the user and strips its id from every other user's request
// arrays in the same transaction. Its connection requests cascade.
func (r *UserRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		UPDATE users
		SET sent_requests = array_remove(sent_requests, $1),
		    received_requests = array_remove(received_requests, $1),
		    updated_at = NOW()
		WHERE $1 = ANY(sent_requests) OR $1 = ANY(received_requests)
	`, id); err != nil {
		return fmt.Errorf("failed to detach user from requests: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err = requireAffected(result); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
