package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fillteam/filltrack/internal/events"
	"github.com/fillteam/filltrack/internal/model"
)

// MemberStore handles CRUD for the team member directory.
type MemberStore struct {
	db  *DB
	bus *events.Bus
}

// NewMemberStore creates a MemberStore. The bus may be nil.
func NewMemberStore(db *DB, bus *events.Bus) *MemberStore {
	return &MemberStore{db: db, bus: bus}
}

// FetchAll returns all team members ordered by name.
func (s *MemberStore) FetchAll(ctx context.Context) ([]model.TeamMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, role, COALESCE(avatar, '') FROM team_members ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("fetch members: %w", err)
	}
	defer rows.Close()

	var members []model.TeamMember
	for rows.Next() {
		var m model.TeamMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Role, &m.Avatar); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch members: %w", err)
	}
	return members, nil
}

// Get returns a member by id, or ErrNotFound.
func (s *MemberStore) Get(ctx context.Context, id string) (*model.TeamMember, error) {
	var m model.TeamMember
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, role, COALESCE(avatar, '') FROM team_members WHERE id = ?`, id).
		Scan(&m.ID, &m.Name, &m.Role, &m.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

// Save upserts a team member row.
func (s *MemberStore) Save(ctx context.Context, m *model.TeamMember) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO team_members (id, name, role, avatar, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, role = excluded.role,
			avatar = excluded.avatar, updated_at = excluded.updated_at`,
		m.ID, m.Name, string(m.Role), nullStr(m.Avatar), now, now,
	)
	if err != nil {
		return fmt.Errorf("save member: %w", err)
	}

	if s.bus != nil {
		s.bus.Publish(events.NewEvent(events.EventMemberChanged, events.SourceStore, map[string]any{
			"member_id": m.ID,
		}))
	}
	return nil
}
