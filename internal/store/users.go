package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a login account, optionally linked to a team member.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Salt         string
	MemberID     string
	CreatedAt    time.Time
	LastLogin    time.Time
}

// UserStore handles credential rows. Accounts are provisioned
// administratively (the seed command), not self-registered.
type UserStore struct {
	db *DB
}

func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a new user account.
func (s *UserStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = "user_" + strings.ReplaceAll(uuid.New().String()[:8], "-", "")
	}
	u.CreatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, salt, member_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.Salt, nullStr(u.MemberID), u.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindByUsername returns the user with the given username, or ErrNotFound.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	var memberID sql.NullString
	var createdAt int64
	var lastLogin sql.NullInt64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, salt, member_id, created_at, last_login
		FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Salt, &memberID, &createdAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	u.MemberID = memberID.String
	u.CreatedAt = time.Unix(createdAt, 0)
	if lastLogin.Valid {
		u.LastLogin = time.Unix(lastLogin.Int64, 0)
	}
	return &u, nil
}

// TouchLogin records a successful login.
func (s *UserStore) TouchLogin(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET last_login = ? WHERE id = ?", time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("touch login: %w", err)
	}
	return nil
}
