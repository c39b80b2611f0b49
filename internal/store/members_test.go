package store

import (
	"context"
	"errors"
	"testing"

	"github.com/fillteam/filltrack/internal/model"
)

func TestMemberStoreCRUD(t *testing.T) {
	ctx := context.Background()
	ms := NewMemberStore(newTestDB(t), nil)

	members := []model.TeamMember{
		{ID: "m2", Name: "Li Wei", Role: model.RoleMember},
		{ID: "m1", Name: "Ana Ruiz", Role: model.RoleManager, Avatar: "ana.png"},
	}
	for i := range members {
		if err := ms.Save(ctx, &members[i]); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	all, err := ms.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d members", len(all))
	}
	// Ordered by name.
	if all[0].Name != "Ana Ruiz" || all[1].Name != "Li Wei" {
		t.Errorf("ordering: %+v", all)
	}

	got, err := ms.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Role != model.RoleManager || got.Avatar != "ana.png" {
		t.Errorf("member fields: %+v", got)
	}

	// Upsert updates in place.
	got.Name = "Ana R."
	if err := ms.Save(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := ms.Get(ctx, "m1")
	if again.Name != "Ana R." {
		t.Errorf("update lost: %q", again.Name)
	}

	if _, err := ms.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	us := NewUserStore(newTestDB(t))

	u := &User{Username: "liwei", PasswordHash: "hash", Salt: "salt", MemberID: "m2"}
	if err := us.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated user id")
	}

	got, err := us.FindByUsername(ctx, "liwei")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if got.MemberID != "m2" || got.PasswordHash != "hash" {
		t.Errorf("user fields: %+v", got)
	}
	if !got.LastLogin.IsZero() {
		t.Errorf("fresh user has last_login: %v", got.LastLogin)
	}

	if err := us.TouchLogin(ctx, u.ID); err != nil {
		t.Fatalf("TouchLogin: %v", err)
	}
	got, _ = us.FindByUsername(ctx, "liwei")
	if got.LastLogin.IsZero() {
		t.Error("last_login not recorded")
	}

	// Duplicate usernames rejected by the unique constraint.
	if err := us.Create(ctx, &User{Username: "liwei", PasswordHash: "x", Salt: "y"}); err == nil {
		t.Fatal("expected unique violation")
	}

	if _, err := us.FindByUsername(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
