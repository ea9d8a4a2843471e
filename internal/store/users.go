package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"readi/internal/models"
)

const userColumns = `id, email, google_id, name, created_at, updated_at`

// UpsertUser creates or updates the user identified by the Google account ID.
// An empty name never overwrites a stored one.
func (s *Store) UpsertUser(ctx context.Context, identity *models.GoogleIdentity) (*models.User, error) {
	if identity == nil || identity.ID == "" || identity.Email == "" {
		return nil, fmt.Errorf("google identity requires an id and an email")
	}
	now := formatTime(s.now())

	var id string
	err := s.db.QueryRowContext(ctx, `
INSERT INTO users (id, email, google_id, name, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(google_id) DO UPDATE SET
    email = excluded.email,
    name = CASE WHEN excluded.name = '' THEN users.name ELSE excluded.name END,
    updated_at = excluded.updated_at
RETURNING id`,
		newID(), identity.Email, identity.ID, identity.Name, now, now).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return s.GetUser(ctx, id)
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail returns the user with the given address, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = ? ORDER BY created_at LIMIT 1`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// UpdateUserName sets the user's display name.
func (s *Store) UpdateUserName(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, updated_at = ? WHERE id = ?`, name, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("failed to update user name: %w", err)
	}
	return requireAffected(res)
}

// ListSyncableUsers returns every user with stored Google credentials.
func (s *Store) ListSyncableUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT u.id, u.email, u.google_id, u.name, u.created_at, u.updated_at
FROM users u JOIN user_tokens t ON t.user_id = u.id
ORDER BY u.created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SaveToken stores the user's Google token. A token without a refresh token
// keeps the previously stored one, since Google only returns it on consent.
func (s *Store) SaveToken(ctx context.Context, userID string, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("token has no access token")
	}
	scope, _ := tok.Extra("scope").(string)
	now := formatTime(s.now())

	_, err := s.db.ExecContext(ctx, `
INSERT INTO user_tokens (id, user_id, access_token, refresh_token, token_type, expires_at, scope, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
    access_token = excluded.access_token,
    refresh_token = CASE WHEN excluded.refresh_token = '' THEN user_tokens.refresh_token ELSE excluded.refresh_token END,
    token_type = excluded.token_type,
    expires_at = excluded.expires_at,
    scope = CASE WHEN excluded.scope = '' THEN user_tokens.scope ELSE excluded.scope END,
    updated_at = excluded.updated_at`,
		newID(), userID, tok.AccessToken, tok.RefreshToken, tok.TokenType, formatTime(tok.Expiry), scope, now)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Token loads the user's stored Google token.
func (s *Store) Token(ctx context.Context, userID string) (*oauth2.Token, error) {
	var (
		tok    oauth2.Token
		expiry string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, token_type, expires_at FROM user_tokens WHERE user_id = ?`, userID).
		Scan(&tok.AccessToken, &tok.RefreshToken, &tok.TokenType, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if tok.Expiry, err = parseTime(expiry); err != nil {
		return nil, err
	}
	return &tok, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                    models.User
		createdAt, updatedAt string
	)
	err := row.Scan(&u.ID, &u.Email, &u.GoogleID, &u.Name, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
