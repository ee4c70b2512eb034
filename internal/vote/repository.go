// AngelaMos | 2026
// repository.go

package vote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/someoneelse131/purfacted-sub003/internal/core"
)

type Repository interface {
	// Cast upserts the ballot and moves the target's stored aggregate by
	// the weighted delta in one transaction.
	Cast(ctx context.Context, v *Vote, target Target) (*CastResult, error)
	Get(
		ctx context.Context,
		voterID, targetType, targetID string,
	) (*Vote, error)
	ListByTarget(
		ctx context.Context,
		targetType, targetID string,
	) ([]Vote, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Cast(
	ctx context.Context,
	v *Vote,
	target Target,
) (*CastResult, error) {
	agg := target.aggregate()
	res := &CastResult{Vote: v}

	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		authorQuery := fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE id = $1 AND deleted_at IS NULL`,
			agg.authorCol, agg.table)

		err := tx.GetContext(ctx, &res.AuthorID, authorQuery, v.TargetID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("cast vote: target: %w", core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("cast vote: %w", err)
		}

		var prev struct {
			Value  int     `db:"value"`
			Weight float64 `db:"weight"`
		}
		prevQuery := `
			SELECT value, weight
			FROM votes
			WHERE voter_id = $1 AND target_type = $2 AND target_id = $3
			FOR UPDATE`

		err = tx.GetContext(ctx, &prev, prevQuery,
			v.VoterID, v.TargetType, v.TargetID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res.Created = true
		case err != nil:
			return fmt.Errorf("cast vote: %w", err)
		}

		upsert := `
			INSERT INTO votes (
				id, voter_id, target_type, target_id, value, weight
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (voter_id, target_type, target_id) DO UPDATE
			SET value = EXCLUDED.value, weight = EXCLUDED.weight,
			    updated_at = NOW()
			RETURNING created_at, updated_at`

		err = tx.GetContext(ctx, v, upsert,
			v.ID, v.VoterID, v.TargetType, v.TargetID, v.Value, v.Weight)
		if err != nil {
			return fmt.Errorf("cast vote: %w", err)
		}

		delta := float64(v.Value)*v.Weight -
			float64(prev.Value)*prev.Weight

		scoreQuery := fmt.Sprintf(`
			UPDATE %s
			SET %s = %s + $2, updated_at = NOW()
			WHERE id = $1
			RETURNING %s`,
			agg.table, agg.scoreColumn, agg.scoreColumn, agg.scoreColumn)

		err = tx.GetContext(ctx, &res.NewScore, scoreQuery, v.TargetID, delta)
		if err != nil {
			return fmt.Errorf("cast vote: update score: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (r *repository) Get(
	ctx context.Context,
	voterID, targetType, targetID string,
) (*Vote, error) {
	query := `
		SELECT id, voter_id, target_type, target_id, value, weight,
		       created_at, updated_at
		FROM votes
		WHERE voter_id = $1 AND target_type = $2 AND target_id = $3`

	var v Vote
	err := r.db.GetContext(ctx, &v, query, voterID, targetType, targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get vote: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get vote: %w", err)
	}

	return &v, nil
}

func (r *repository) ListByTarget(
	ctx context.Context,
	targetType, targetID string,
) ([]Vote, error) {
	query := `
		SELECT id, voter_id, target_type, target_id, value, weight,
		       created_at, updated_at
		FROM votes
		WHERE target_type = $1 AND target_id = $2
		ORDER BY created_at ASC`

	var votes []Vote
	err := r.db.SelectContext(ctx, &votes, query, targetType, targetID)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}

	return votes, nil
}
