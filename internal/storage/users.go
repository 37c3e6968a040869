package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/moneyfeed/internal/common"
	"github.com/Veraticus/moneyfeed/internal/model"
)

// CreateUser stores a new user. passwordHash must already be hashed.
func (s *SQLiteStorage) CreateUser(ctx context.Context, username, passwordHash string) (model.User, error) {
	if err := validateContext(ctx); err != nil {
		return model.User{}, err
	}
	if err := validateString(username, "username"); err != nil {
		return model.User{}, err
	}
	if err := validateString(passwordHash, "passwordHash"); err != nil {
		return model.User{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, fmt.Errorf("%w: user %q", common.ErrDuplicateEntry, username)
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("failed to read user id: %w", err)
	}
	return model.User{ID: id, Username: username}, nil
}

// GetUserByUsername returns the user and their password hash.
func (s *SQLiteStorage) GetUserByUsername(ctx context.Context, username string) (model.User, string, error) {
	if err := validateContext(ctx); err != nil {
		return model.User{}, "", err
	}

	var (
		user model.User
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM users WHERE username = ?`,
		username).Scan(&user.ID, &user.Username, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, "", notFound("user", username)
	}
	if err != nil {
		return model.User{}, "", fmt.Errorf("failed to get user: %w", err)
	}
	return user, hash, nil
}

// GetUser returns a user by id.
func (s *SQLiteStorage) GetUser(ctx context.Context, id int64) (model.User, error) {
	if err := validateContext(ctx); err != nil {
		return model.User{}, err
	}

	var user model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username FROM users WHERE id = ?`, id).Scan(&user.ID, &user.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, notFound("user", id)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers returns every user ordered by id.
func (s *SQLiteStorage) ListUsers(ctx context.Context) ([]model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, username FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
