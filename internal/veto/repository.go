// AngelaMos | 2026
// repository.go

package veto

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/someoneelse131/purfacted-sub003/internal/core"
)

type Repository interface {
	Create(ctx context.Context, v *Veto) error
	GetByID(ctx context.Context, id string) (*Veto, error)
	// UpsertVote writes the ballot only while the veto is still PENDING;
	// a vote racing a concurrent resolution fails with core.ErrConflict
	// instead of landing silently on a settled veto.
	UpsertVote(ctx context.Context, vote *VetoVote) error
	// NetWeight is the sum of value*weight over all votes on the veto.
	NetWeight(ctx context.Context, vetoID string) (float64, error)
	// ResolveIfPending flips the status only when the veto is still
	// PENDING. Returns false when another caller already resolved it;
	// that single conditional is what makes resolution exactly-once.
	ResolveIfPending(
		ctx context.Context,
		vetoID, status string,
	) (bool, error)
	ListByFact(ctx context.Context, factID string) ([]Veto, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, v *Veto) error {
	query := `
		INSERT INTO vetoes (id, fact_id, submitter_id, reason, sources, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &v.CreatedAt, query,
		v.ID,
		v.FactID,
		v.SubmitterID,
		v.Reason,
		v.Sources,
		v.Status,
	)
	if err != nil {
		return fmt.Errorf("create veto: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Veto, error) {
	query := `
		SELECT id, fact_id, submitter_id, reason, sources, status,
		       created_at, resolved_at
		FROM vetoes
		WHERE id = $1`

	var v Veto
	err := r.db.GetContext(ctx, &v, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get veto: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get veto: %w", err)
	}

	return &v, nil
}

func (r *repository) UpsertVote(ctx context.Context, vote *VetoVote) error {
	// The insert is gated on the veto's status in the same statement, so a
	// ballot cannot land between a resolution's conditional update and its
	// commit.
	query := `
		INSERT INTO veto_votes (veto_id, voter_id, value, weight)
		SELECT $1, $2, $3, $4
		WHERE EXISTS (
			SELECT 1 FROM vetoes WHERE id = $1 AND status = 'PENDING'
		)
		ON CONFLICT (veto_id, voter_id)
		DO UPDATE SET value = EXCLUDED.value, weight = EXCLUDED.weight,
		              updated_at = NOW()
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, vote, query,
		vote.VetoID,
		vote.VoterID,
		vote.Value,
		vote.Weight,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("upsert veto vote: veto resolved: %w", core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("upsert veto vote: %w", err)
	}

	return nil
}

func (r *repository) NetWeight(
	ctx context.Context,
	vetoID string,
) (float64, error) {
	query := `
		SELECT COALESCE(SUM(value * weight), 0)
		FROM veto_votes
		WHERE veto_id = $1`

	var net float64
	if err := r.db.GetContext(ctx, &net, query, vetoID); err != nil {
		return 0, fmt.Errorf("net veto weight: %w", err)
	}

	return net, nil
}

func (r *repository) ResolveIfPending(
	ctx context.Context,
	vetoID, status string,
) (bool, error) {
	query := `
		UPDATE vetoes
		SET status = $2, resolved_at = NOW()
		WHERE id = $1 AND status = 'PENDING'`

	result, err := r.db.ExecContext(ctx, query, vetoID, status)
	if err != nil {
		return false, fmt.Errorf("resolve veto: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve veto: %w", err)
	}

	return rows > 0, nil
}

func (r *repository) ListByFact(
	ctx context.Context,
	factID string,
) ([]Veto, error) {
	query := `
		SELECT id, fact_id, submitter_id, reason, sources, status,
		       created_at, resolved_at
		FROM vetoes
		WHERE fact_id = $1
		ORDER BY created_at DESC`

	var vetoes []Veto
	if err := r.db.SelectContext(ctx, &vetoes, query, factID); err != nil {
		return nil, fmt.Errorf("list vetoes by fact: %w", err)
	}

	return vetoes, nil
}
