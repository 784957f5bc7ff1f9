package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

type SQLiteUserStore struct {
	db *sql.DB
}

func NewSQLiteUserStore(db *sql.DB) *SQLiteUserStore {
	return &SQLiteUserStore{
		db: db,
	}
}

func (s *SQLiteUserStore) CreateUser(ctx context.Context, user User) error {
	eu, err := s.GetUserByUsername(ctx, user.Username)
	if err != nil {
		return fmt.Errorf("checking if user exists: %w", err)
	}
	if eu != nil {
		return ErrConflictedUser
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (name, username, password) VALUES (@name, @username, @password)",
		sql.Named("name", user.Name), sql.Named("username", user.Username),
		sql.Named("password", string(hashed)))
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	return nil
}

func (s *SQLiteUserStore) GetUserByUsername(ctx context.Context, username string) (*UserWithoutSecrets, error) {
	row := s.db.QueryRowContext(ctx, "SELECT name, username FROM users WHERE username = ? LIMIT 1", username)

	user := new(UserWithoutSecrets)
	err := row.Scan(
		&user.Name,
		&user.Username,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	return user, nil
}

func (s *SQLiteUserStore) ComparePassword(ctx context.Context, username, password string) (bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT password FROM users WHERE username = ? LIMIT 1", username)

	var storedPassword string
	err := row.Scan(&storedPassword)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("scanning password: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(storedPassword), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}
