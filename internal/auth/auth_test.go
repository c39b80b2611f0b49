package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fillteam/filltrack/internal/model"
	"github.com/fillteam/filltrack/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.MemberStore) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	members := store.NewMemberStore(db, nil)

	salt := NewSalt()
	err = users.Create(context.Background(), &store.User{
		Username:     "ana",
		PasswordHash: HashPassword("123456", salt),
		Salt:         salt,
		MemberID:     "m1",
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return NewService(users, members, nil, 0), members
}

func TestLoginSuccess(t *testing.T) {
	svc, members := newTestService(t)
	ctx := context.Background()

	if err := members.Save(ctx, &model.TeamMember{ID: "m1", Name: "Ana Ruiz", Role: model.RoleManager}); err != nil {
		t.Fatal(err)
	}

	su, err := svc.Login(ctx, "ana", "123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if su.Username != "ana" {
		t.Errorf("username: %q", su.Username)
	}
	m := su.Member()
	if m == nil || m.Role != model.RoleManager {
		t.Errorf("linked member: %+v", m)
	}
	if svc.Current() != su {
		t.Error("Current() should return the session user")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Login(context.Background(), "ana", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "ghost", "123456"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: expected ErrInvalidCredentials, got %v", err)
	}
	if svc.Current() != nil {
		t.Error("failed login left a session behind")
	}
}

func TestLoginDanglingMemberLink(t *testing.T) {
	svc, _ := newTestService(t)

	// m1 was never provisioned: session proceeds without a profile.
	su, err := svc.Login(context.Background(), "ana", "123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if su.Member() != nil {
		t.Errorf("expected nil member for dangling link, got %+v", su.Member())
	}
}

func TestLogoutIdempotent(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Login(context.Background(), "ana", "123456"); err != nil {
		t.Fatal(err)
	}
	svc.Logout()
	if svc.Current() != nil {
		t.Error("session survived logout")
	}
	svc.Logout() // no session; must not panic
}

func TestPasswordHashing(t *testing.T) {
	salt := NewSalt()
	hash := HashPassword("secret", salt)

	if !VerifyPassword("secret", salt, hash) {
		t.Error("correct password rejected")
	}
	if VerifyPassword("Secret", salt, hash) {
		t.Error("wrong password accepted")
	}
	if HashPassword("secret", NewSalt()) == hash {
		t.Error("salts do not differentiate hashes")
	}
}
