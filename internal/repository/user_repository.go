package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetAll(ctx context.Context) ([]models.User, error)
	GetAssignable(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) (bool, error)
}

type userRepository struct {
	*PostgresRepository
}

func NewUserRepository(db *sql.DB, logger zerolog.Logger) UserRepository {
	return &userRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

const userColumns = `id, email, full_name, password_hash, password_salt, is_admin, is_active, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.PasswordSalt,
		&user.IsAdmin,
		&user.IsActive,
		&user.CreatedAt,
	)
	return user, err
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, full_name, password_hash, password_salt, is_admin, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.PasswordSalt,
		user.IsAdmin,
		user.IsActive,
		user.CreatedAt,
	)

	return classify(err, "failed to create user")
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to get user")
	}

	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to get user by email")
	}

	return user, nil
}

func (r *userRepository) GetAll(ctx context.Context) ([]models.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY full_name`)
}

// GetAssignable returns active, non-admin users ordered by name.
func (r *userRepository) GetAssignable(ctx context.Context) ([]models.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE is_active = TRUE AND is_admin = FALSE ORDER BY full_name`)
}

func (r *userRepository) list(ctx context.Context, query string) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err, "failed to list users")
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, classify(err, "failed to scan user")
		}
		users = append(users, *user)
	}

	return users, classify(rows.Err(), "failed to list users")
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $1, full_name = $2, password_hash = $3, password_salt = $4, is_admin = $5, is_active = $6
		WHERE id = $7
	`

	_, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.PasswordSalt,
		user.IsAdmin,
		user.IsActive,
		user.ID,
	)

	return classify(err, "failed to update user")
}

func (r *userRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, classify(err, "failed to delete user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, "failed to delete user")
	}
	return n > 0, nil
}
