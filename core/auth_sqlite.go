package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteAuthStore issues JWT sessions backed by the user store and keeps a
// blacklist of signed-out tokens so a destroyed session cannot be replayed
// before its expiry.
type SQLiteAuthStore struct {
	tokenExp  time.Duration
	secret    []byte
	userStore UserStore
	db        *sql.DB
}

type AuthOption func(*SQLiteAuthStore)

func WithTokenExp(exp time.Duration) AuthOption {
	return func(a *SQLiteAuthStore) {
		a.tokenExp = exp
	}
}

func NewSQLiteAuthStore(db *sql.DB, userStore UserStore, secret []byte, opts ...AuthOption) *SQLiteAuthStore {
	auth := &SQLiteAuthStore{
		tokenExp:  time.Hour * 24,
		secret:    secret,
		userStore: userStore,
		db:        db,
	}
	for _, opt := range opts {
		opt(auth)
	}
	return auth
}

func (a *SQLiteAuthStore) NewSession(ctx context.Context, username, password string) (*Session, error) {
	user, err := a.userStore.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	if user == nil {
		return nil, ErrBadCredentials
	}

	ok, err := a.userStore.ComparePassword(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return nil, ErrBadCredentials
	}

	token, exp, err := NewToken(*user, a.tokenExp, a.secret)
	if err != nil {
		return nil, fmt.Errorf("creating token: %w", err)
	}

	if err := a.unblacklistToken(ctx, token); err != nil {
		return nil, fmt.Errorf("unblacklisting token: %w", err)
	}

	return &Session{
		Username:  user.Username,
		Token:     token,
		ExpiresAt: exp,
	}, nil
}

func (a *SQLiteAuthStore) DestroySession(ctx context.Context, session Session) error {
	if err := a.blacklistToken(ctx, session.Token); err != nil {
		return fmt.Errorf("blacklisting token: %w", err)
	}
	return nil
}

func (a *SQLiteAuthStore) Session(ctx context.Context, token string) (*Session, error) {
	claims, err := VerifyToken(token, a.secret)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenInvalid) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("verifying token: %w", err)
	}

	blacklisted, err := a.isBlacklisted(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("checking blacklist: %w", err)
	}
	if blacklisted {
		return nil, ErrUnauthenticated
	}

	return &Session{
		Username:  claims.Username,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (a *SQLiteAuthStore) unblacklistToken(ctx context.Context, token string) error {
	_, err := a.db.ExecContext(ctx, "DELETE FROM blacklists WHERE token = @token", sql.Named("token", token))
	return err
}

func (a *SQLiteAuthStore) blacklistToken(ctx context.Context, token string) error {
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO blacklists (token) VALUES (@token) ON CONFLICT DO NOTHING",
		sql.Named("token", token))
	return err
}

func (a *SQLiteAuthStore) isBlacklisted(ctx context.Context, token string) (bool, error) {
	row := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blacklists WHERE token = @token", sql.Named("token", token))
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("scanning count: %w", err)
	}
	return count > 0, nil
}
