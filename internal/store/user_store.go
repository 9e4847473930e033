package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/visioncraft/storefront/internal/apperr"
	"github.com/visioncraft/storefront/internal/models"
)

const userColumns = "id, username, email, password_hash, first_name, last_name, role, created_at"

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts u with a fresh id. Role defaults to customer.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	u.ID = uuid.NewString()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = models.RoleCustomer
	}
	u.CreatedAt = time.Now().UTC().Truncate(time.Second)

	query := "INSERT INTO users (" + userColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := s.db.ExecContext(ctx, query, u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return apperr.Conflict("Username or email already exists")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, id string) (*models.User, error) {
	return s.getBy(ctx, "id = ?", id)
}

// GetByLogin matches either the username or the email.
func (s *UserStore) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	login = strings.TrimSpace(login)
	return s.getBy(ctx, "username = ? OR email = ?", login, strings.ToLower(login))
}

func (s *UserStore) getBy(ctx context.Context, where string, args ...interface{}) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// Role is read on every authenticated request.
func (s *UserStore) Role(ctx context.Context, id string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, "SELECT role FROM users WHERE id = ?", id).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperr.Unauthorized("User not found")
		}
		return "", fmt.Errorf("failed to get user role: %w", err)
	}
	return role, nil
}

func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*patch.Email))
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE users SET role = ?, first_name = ?, last_name = ?, email = ? WHERE id = ?",
		u.Role, u.FirstName, u.LastName, u.Email, u.ID)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, apperr.Conflict("Email already exists")
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}
