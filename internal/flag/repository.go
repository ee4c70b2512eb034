// AngelaMos | 2026
// repository.go

package flag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/someoneelse131/purfacted-sub003/internal/core"
)

const flagColumns = `id, user_id, reason, details, status, reviewed_by_id,
	       resolution, comment, created_at, resolved_at`

type Repository interface {
	// Create inserts a new flag. The partial unique index over active
	// statuses turns a duplicate active flag into core.ErrConflict, which
	// is what keeps concurrent sweeps from double-flagging.
	Create(ctx context.Context, f *AccountFlag) error
	GetByID(ctx context.Context, id string) (*AccountFlag, error)
	HasActive(ctx context.Context, userID string) (bool, error)
	// MarkReviewing claims a pending flag for a reviewer. Returns false
	// when the flag is no longer PENDING.
	MarkReviewing(ctx context.Context, flagID, reviewerID string) (bool, error)
	// Resolve applies reviewer, resolution and final status only while the
	// flag is still active. Returns false when already resolved.
	Resolve(
		ctx context.Context,
		flagID, status, reviewerID, resolution, comment string,
	) (bool, error)
	CountRejectedVetoes(ctx context.Context, userID string) (int, error)
	// UsersOverRejectionThreshold returns user ids with at least threshold
	// REJECTED vetoes and no active flag.
	UsersOverRejectionThreshold(
		ctx context.Context,
		threshold int,
	) ([]string, error)
	List(ctx context.Context, status string, limit int) ([]AccountFlag, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, f *AccountFlag) error {
	query := `
		INSERT INTO account_flags (id, user_id, reason, details, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &f.CreatedAt, query,
		f.ID,
		f.UserID,
		f.Reason,
		f.Details,
		f.Status,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create flag: %w", core.ErrConflict)
		}
		return fmt.Errorf("create flag: %w", err)
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	id string,
) (*AccountFlag, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM account_flags
		WHERE id = $1`, flagColumns)

	var f AccountFlag
	err := r.db.GetContext(ctx, &f, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get flag: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get flag: %w", err)
	}

	return &f, nil
}

func (r *repository) HasActive(
	ctx context.Context,
	userID string,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM account_flags
			WHERE user_id = $1 AND status IN ('PENDING', 'REVIEWING')
		)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID); err != nil {
		return false, fmt.Errorf("check active flag: %w", err)
	}

	return exists, nil
}

func (r *repository) MarkReviewing(
	ctx context.Context,
	flagID, reviewerID string,
) (bool, error) {
	query := `
		UPDATE account_flags
		SET status = 'REVIEWING', reviewed_by_id = $2
		WHERE id = $1 AND status = 'PENDING'`

	result, err := r.db.ExecContext(ctx, query, flagID, reviewerID)
	if err != nil {
		return false, fmt.Errorf("mark flag reviewing: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark flag reviewing: %w", err)
	}

	return rows > 0, nil
}

func (r *repository) Resolve(
	ctx context.Context,
	flagID, status, reviewerID, resolution, comment string,
) (bool, error) {
	query := `
		UPDATE account_flags
		SET status = $2, reviewed_by_id = $3, resolution = $4, comment = $5,
		    resolved_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'REVIEWING')`

	result, err := r.db.ExecContext(ctx, query,
		flagID,
		status,
		reviewerID,
		resolution,
		comment,
	)
	if err != nil {
		return false, fmt.Errorf("resolve flag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve flag: %w", err)
	}

	return rows > 0, nil
}

func (r *repository) CountRejectedVetoes(
	ctx context.Context,
	userID string,
) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM vetoes
		WHERE submitter_id = $1 AND status = 'REJECTED'`

	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count rejected vetoes: %w", err)
	}

	return count, nil
}

func (r *repository) UsersOverRejectionThreshold(
	ctx context.Context,
	threshold int,
) ([]string, error) {
	query := `
		SELECT v.submitter_id
		FROM vetoes v
		WHERE v.status = 'REJECTED'
		  AND NOT EXISTS (
			SELECT 1 FROM account_flags f
			WHERE f.user_id = v.submitter_id
			  AND f.status IN ('PENDING', 'REVIEWING')
		  )
		GROUP BY v.submitter_id
		HAVING COUNT(*) >= $1`

	var userIDs []string
	if err := r.db.SelectContext(ctx, &userIDs, query, threshold); err != nil {
		return nil, fmt.Errorf("users over rejection threshold: %w", err)
	}

	return userIDs, nil
}

func (r *repository) List(
	ctx context.Context,
	status string,
	limit int,
) ([]AccountFlag, error) {
	var flags []AccountFlag
	var err error

	if status != "" {
		query := fmt.Sprintf(`
			SELECT %s
			FROM account_flags
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2`, flagColumns)
		err = r.db.SelectContext(ctx, &flags, query, status, limit)
	} else {
		query := fmt.Sprintf(`
			SELECT %s
			FROM account_flags
			ORDER BY created_at DESC
			LIMIT $1`, flagColumns)
		err = r.db.SelectContext(ctx, &flags, query, limit)
	}

	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}

	return flags, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
