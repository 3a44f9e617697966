package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fleetwatch-backend/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

func GetUserByEmail(ctx context.Context, db *sqlx.DB, email string) (*models.User, error) {
	var user models.User
	err := db.GetContext(ctx, &user,
		`SELECT id, email, password, name, role, created_at FROM users WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

var ErrUserExists = errors.New("user already exists")

// CreateUser inserts a user whose password is already hashed
func CreateUser(ctx context.Context, db *sqlx.DB, user *models.User) error {
	var exists bool
	if err := db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, user.Email); err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if exists {
		return ErrUserExists
	}

	query := `
		INSERT INTO users (id, email, password, name, role, created_at)
		VALUES (:id, :email, :password, :name, :role, :created_at)
	`
	if _, err := db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}
