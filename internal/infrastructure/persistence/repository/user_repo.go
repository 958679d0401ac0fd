package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/persistence/sqlite"
)

// ErrDuplicateUsername is returned when a username is already taken
var ErrDuplicateUsername = errors.New("username already exists")

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

const userSelect = `
	SELECT id, username, email, password_hash, first_name, last_name,
		is_staff, is_superuser, is_active, date_joined
	FROM users`

// Create inserts a user. A taken username yields a validation error on the
// username field.
func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `
		INSERT INTO users (
			username, email, password_hash, first_name, last_name,
			is_staff, is_superuser, is_active, date_joined
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		u.IsStaff, u.IsSuperuser, u.IsActive, u.DateJoined.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.username") {
			return fmt.Errorf("%w: %w", ErrDuplicateUsername, entity.FieldError("username", "A user with that username already exists."))
		}
		r.logger.Error("Failed to create user", zap.String("username", u.Username), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	u.ID = id
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return r.getOne(ctx, userSelect+` WHERE id = ?`, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.getOne(ctx, userSelect+` WHERE username = ?`, username)
}

func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, userSelect+` ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateFlags changes the staff and active flags of a user
func (r *UserRepository) UpdateFlags(ctx context.Context, id int64, isStaff, isActive bool) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET is_staff = ?, is_active = ? WHERE id = ?`, isStaff, isActive, id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireAffected(result, "user", id)
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.User, error) {
	u, err := scanUser(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func scanUser(s scanner) (*entity.User, error) {
	var u entity.User
	err := s.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.IsStaff,
		&u.IsSuperuser,
		&u.IsActive,
		&u.DateJoined,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
