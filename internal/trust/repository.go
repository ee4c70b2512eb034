// AngelaMos | 2026
// repository.go

package trust

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/someoneelse131/purfacted-sub003/internal/core"
)

type Repository interface {
	// Apply appends the event and additively bumps the user's cached score
	// in one transaction. Returns the new score, or core.ErrNotFound when
	// the user row does not exist.
	Apply(ctx context.Context, event *TrustEvent) (float64, error)
	SumDeltas(ctx context.Context, userID string) (float64, error)
	GetScore(ctx context.Context, userID string) (float64, error)
	SetScore(ctx context.Context, userID string, score float64) error
	EventsForUser(
		ctx context.Context,
		userID string,
		limit int,
	) ([]TrustEvent, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Apply(
	ctx context.Context,
	event *TrustEvent,
) (float64, error) {
	var newScore float64

	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		// trust_score = trust_score + delta is additive at the store, so
		// concurrent events for the same user never lose updates.
		updateQuery := `
			UPDATE users
			SET trust_score = trust_score + $2, updated_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL
			RETURNING trust_score`

		err := tx.GetContext(ctx, &newScore, updateQuery,
			event.UserID,
			event.Delta,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("apply trust event: %w", core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("apply trust event: %w", err)
		}

		insertQuery := `
			INSERT INTO trust_events (id, user_id, action, delta)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at`

		err = tx.GetContext(ctx, &event.CreatedAt, insertQuery,
			event.ID,
			event.UserID,
			event.Action,
			event.Delta,
		)
		if err != nil {
			return fmt.Errorf("append trust event: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return newScore, nil
}

func (r *repository) SumDeltas(
	ctx context.Context,
	userID string,
) (float64, error) {
	query := `
		SELECT COALESCE(SUM(delta), 0)
		FROM trust_events
		WHERE user_id = $1`

	var sum float64
	if err := r.db.GetContext(ctx, &sum, query, userID); err != nil {
		return 0, fmt.Errorf("sum trust deltas: %w", err)
	}

	return sum, nil
}

func (r *repository) GetScore(
	ctx context.Context,
	userID string,
) (float64, error) {
	query := `
		SELECT trust_score
		FROM users
		WHERE id = $1 AND deleted_at IS NULL`

	var score float64
	err := r.db.GetContext(ctx, &score, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("get trust score: %w", core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get trust score: %w", err)
	}

	return score, nil
}

func (r *repository) SetScore(
	ctx context.Context,
	userID string,
	score float64,
) error {
	query := `
		UPDATE users
		SET trust_score = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, userID, score)
	if err != nil {
		return fmt.Errorf("set trust score: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set trust score: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("set trust score: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) EventsForUser(
	ctx context.Context,
	userID string,
	limit int,
) ([]TrustEvent, error) {
	query := `
		SELECT id, user_id, action, delta, created_at
		FROM trust_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var events []TrustEvent
	if err := r.db.SelectContext(ctx, &events, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list trust events: %w", err)
	}

	return events, nil
}
