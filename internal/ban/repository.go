// AngelaMos | 2026
// repository.go

package ban

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/someoneelse131/purfacted-sub003/internal/core"
)

type Repository interface {
	GetBanState(ctx context.Context, userID string) (*BanState, error)
	// Escalate records the ban row and bumps the user's enforcement columns
	// only if ban_level still equals fromLevel, so concurrent escalations
	// for the same user cannot double-apply. Returns core.ErrConflict when
	// the guard fails. Blocklist hashes are inserted in the same
	// transaction when non-empty.
	Escalate(
		ctx context.Context,
		b *Ban,
		fromLevel int,
		emailHash, ipHash string,
	) error
	ClearExpiry(ctx context.Context, userID string) error
	History(ctx context.Context, userID string) ([]Ban, error)
	IsEmailBlocked(ctx context.Context, hash string) (bool, error)
	IsIPBlocked(ctx context.Context, hash string) (bool, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetBanState(
	ctx context.Context,
	userID string,
) (*BanState, error) {
	query := `
		SELECT id, email, ban_level, banned_until
		FROM users
		WHERE id = $1 AND deleted_at IS NULL`

	var state BanState
	err := r.db.GetContext(ctx, &state, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get ban state: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get ban state: %w", err)
	}

	return &state, nil
}

func (r *repository) Escalate(
	ctx context.Context,
	b *Ban,
	fromLevel int,
	emailHash, ipHash string,
) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		updateQuery := `
			UPDATE users
			SET ban_level = $3, banned_until = $4, updated_at = NOW()
			WHERE id = $1 AND ban_level = $2 AND deleted_at IS NULL`

		result, err := tx.ExecContext(ctx, updateQuery,
			b.UserID,
			fromLevel,
			b.Level,
			b.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("escalate ban: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("escalate ban: %w", err)
		}

		if rows == 0 {
			return fmt.Errorf("escalate ban: %w", core.ErrConflict)
		}

		insertQuery := `
			INSERT INTO bans (id, user_id, level, reason, banned_by_id, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at`

		err = tx.GetContext(ctx, &b.CreatedAt, insertQuery,
			b.ID,
			b.UserID,
			b.Level,
			b.Reason,
			b.BannedByID,
			b.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("record ban: %w", err)
		}

		if emailHash != "" {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO banned_emails (hash)
				VALUES ($1)
				ON CONFLICT (hash) DO NOTHING`, emailHash)
			if err != nil {
				return fmt.Errorf("block email: %w", err)
			}
		}

		if ipHash != "" {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO banned_ips (hash)
				VALUES ($1)
				ON CONFLICT (hash) DO NOTHING`, ipHash)
			if err != nil {
				return fmt.Errorf("block ip: %w", err)
			}
		}

		return nil
	})
}

func (r *repository) ClearExpiry(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET banned_until = NULL, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("clear ban expiry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("clear ban expiry: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("clear ban expiry: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) History(
	ctx context.Context,
	userID string,
) ([]Ban, error) {
	query := `
		SELECT id, user_id, level, reason, banned_by_id, expires_at, created_at
		FROM bans
		WHERE user_id = $1
		ORDER BY created_at DESC`

	var bans []Ban
	if err := r.db.SelectContext(ctx, &bans, query, userID); err != nil {
		return nil, fmt.Errorf("ban history: %w", err)
	}

	return bans, nil
}

func (r *repository) IsEmailBlocked(
	ctx context.Context,
	hash string,
) (bool, error) {
	return r.blocked(ctx, "banned_emails", hash)
}

func (r *repository) IsIPBlocked(
	ctx context.Context,
	hash string,
) (bool, error) {
	return r.blocked(ctx, "banned_ips", hash)
}

func (r *repository) blocked(
	ctx context.Context,
	table, hash string,
) (bool, error) {
	query := fmt.Sprintf(
		"SELECT EXISTS(SELECT 1 FROM %s WHERE hash = $1)",
		table,
	)

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, hash); err != nil {
		return false, fmt.Errorf("check blocklist: %w", err)
	}

	return exists, nil
}
