package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Postgres is the durable Registry backed by PostgreSQL.
type Postgres struct {
	db    *sqlx.DB
	limit int
}

// NewPostgres wraps an open connection pool. A non-positive limit falls
// back to DefaultGroupLimit.
func NewPostgres(db *sqlx.DB, limit int) *Postgres {
	if limit <= 0 {
		limit = DefaultGroupLimit
	}
	return &Postgres{db: db, limit: limit}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// CreateGroup inserts a group inside a transaction. An advisory lock on
// the chat serializes concurrent creates so the per-chat limit cannot be
// exceeded by a race.
func (p *Postgres) CreateGroup(ctx context.Context, chatID int64, name string) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, chatID); err != nil {
		return fmt.Errorf("lock chat: %w", err)
	}

	// The duplicate check runs before the capacity check so a repeated
	// name reports ErrGroupExists even when the chat is full.
	var exists bool
	if err := tx.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM tag_groups WHERE chat_id = $1 AND name = $2)`,
		chatID, name); err != nil {
		return fmt.Errorf("lookup group: %w", err)
	}
	if exists {
		return ErrGroupExists
	}

	var count int
	if err := tx.GetContext(ctx, &count,
		`SELECT count(*) FROM tag_groups WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("count groups: %w", err)
	}
	if count >= p.limit {
		return ErrGroupLimit
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tag_groups (chat_id, name) VALUES ($1, $2)`, chatID, name)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrGroupExists
		}
		return fmt.Errorf("insert group: %w", err)
	}
	return tx.Commit()
}

func (p *Postgres) DeleteGroup(ctx context.Context, chatID int64, name string) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM tag_groups WHERE chat_id = $1 AND name = $2`, chatID, name)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if rows == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (p *Postgres) ListGroups(ctx context.Context, chatID int64) ([]GroupInfo, error) {
	rows := []struct {
		Name        string `db:"name"`
		MemberCount int    `db:"member_count"`
	}{}
	err := p.db.SelectContext(ctx, &rows, `
		SELECT g.name, count(m.user_id) AS member_count
		FROM tag_groups g
		LEFT JOIN tag_group_members m ON m.group_id = g.id
		WHERE g.chat_id = $1
		GROUP BY g.id, g.name
		ORDER BY g.id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	infos := make([]GroupInfo, 0, len(rows))
	for _, r := range rows {
		infos = append(infos, GroupInfo{Name: r.Name, MemberCount: r.MemberCount})
	}
	return infos, nil
}

func (p *Postgres) groupID(ctx context.Context, q sqlx.QueryerContext, chatID int64, name string) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id,
		`SELECT id FROM tag_groups WHERE chat_id = $1 AND name = $2`, chatID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrGroupNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup group: %w", err)
	}
	return id, nil
}

func (p *Postgres) AddMember(ctx context.Context, chatID int64, name string, userID int64) error {
	id, err := p.groupID(ctx, p.db, chatID, name)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO tag_group_members (group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (group_id, user_id) DO NOTHING`, id, userID)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyMember
	}
	return nil
}

func (p *Postgres) RemoveMember(ctx context.Context, chatID int64, name string, userID int64) error {
	id, err := p.groupID(ctx, p.db, chatID, name)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM tag_group_members WHERE group_id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if rows == 0 {
		return ErrNotMember
	}
	return nil
}

func (p *Postgres) GetMembers(ctx context.Context, chatID int64, name string) ([]int64, error) {
	id, err := p.groupID(ctx, p.db, chatID, name)
	if err != nil {
		return nil, err
	}
	var members []int64
	err = p.db.SelectContext(ctx, &members, `
		SELECT user_id FROM tag_group_members
		WHERE group_id = $1
		ORDER BY joined_at, user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("get members: %w", err)
	}
	return members, nil
}

func (p *Postgres) SetOptOut(ctx context.Context, chatID, userID int64) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO tag_optouts (chat_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (chat_id, user_id) DO NOTHING`, chatID, userID)
	if err != nil {
		return fmt.Errorf("set optout: %w", err)
	}
	return nil
}

func (p *Postgres) ClearOptOut(ctx context.Context, chatID, userID int64) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM tag_optouts WHERE chat_id = $1 AND user_id = $2`, chatID, userID)
	if err != nil {
		return fmt.Errorf("clear optout: %w", err)
	}
	return nil
}

func (p *Postgres) IsOptOut(ctx context.Context, chatID, userID int64) (bool, error) {
	var exists bool
	err := p.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM tag_optouts WHERE chat_id = $1 AND user_id = $2
		)`, chatID, userID)
	if err != nil {
		return false, fmt.Errorf("check optout: %w", err)
	}
	return exists, nil
}
