// AngelaMos | 2026
// repository.go

package moderator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/someoneelse131/purfacted-sub003/internal/core"
)

// eligibleWhere filters users down to the election pool: verified accounts
// in good standing. Organizations vote with full weight but never moderate.
const eligibleWhere = `
	deleted_at IS NULL
	AND email_verified = true
	AND ban_level = 0
	AND user_type NOT IN ('ORGANIZATION', 'ANONYMOUS')`

type Repository interface {
	CountActive(ctx context.Context) (int, error)
	CountEligible(ctx context.Context) (int, error)
	CountTrusted(ctx context.Context, minScore float64) (int, error)
	// CutoffScore returns the trust score of the last user inside the top
	// fraction of the eligible pool, false when the pool is empty.
	CutoffScore(ctx context.Context, topFraction float64) (float64, bool, error)
	TopCandidates(ctx context.Context, limit int) ([]Candidate, error)
	// InsertActive claims a seat only while active seats stay under
	// maxActive. ErrCapacityExceeded when full, ErrConflict when the user
	// already holds a slot.
	InsertActive(ctx context.Context, slot *Slot, maxActive int) error
	InsertWaitlisted(ctx context.Context, slot *Slot) error
	GetHeldByUser(ctx context.Context, userID string) (*Slot, error)
	SetStatus(ctx context.Context, userID, from, to string) (bool, error)
	// ActivateIfCapacity is SetStatus(from -> ACTIVE) gated on the seat cap.
	ActivateIfCapacity(
		ctx context.Context,
		userID, from string,
		maxActive int,
	) (bool, error)
	Demote(ctx context.Context, userID string) (bool, error)
	LowestActive(ctx context.Context) (*Candidate, error)
	ActiveModerators(ctx context.Context) ([]Candidate, error)
	Waitlist(ctx context.Context) ([]Candidate, error)
}

// seatClaimLockID keys the transaction-scoped advisory lock that serializes
// seat claims. Under read committed, two concurrent COUNT checks can both
// see a free seat; the lock makes check and claim atomic.
const seatClaimLockID = 0x6d6f6473 // "mods"

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CountActive(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM moderator_slots WHERE status = 'ACTIVE'`

	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count active moderators: %w", err)
	}

	return count, nil
}

func (r *repository) CountEligible(ctx context.Context) (int, error) {
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM users WHERE %s`,
		eligibleWhere,
	)

	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count eligible users: %w", err)
	}

	return count, nil
}

func (r *repository) CountTrusted(
	ctx context.Context,
	minScore float64,
) (int, error) {
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM users WHERE %s AND trust_score >= $1`,
		eligibleWhere,
	)

	var count int
	if err := r.db.GetContext(ctx, &count, query, minScore); err != nil {
		return 0, fmt.Errorf("count trusted users: %w", err)
	}

	return count, nil
}

func (r *repository) CutoffScore(
	ctx context.Context,
	topFraction float64,
) (float64, bool, error) {
	pool, err := r.CountEligible(ctx)
	if err != nil {
		return 0, false, err
	}
	if pool == 0 {
		return 0, false, nil
	}

	rank := int(float64(pool) * topFraction)
	if rank < 1 {
		rank = 1
	}

	// Equal scores rank by account age then id, so the cutoff is stable
	// across sweeps.
	query := fmt.Sprintf(`
		SELECT trust_score
		FROM users
		WHERE %s
		ORDER BY trust_score DESC, created_at ASC, id ASC
		OFFSET $1 LIMIT 1`, eligibleWhere)

	var score float64
	err = r.db.GetContext(ctx, &score, query, rank-1)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("cutoff score: %w", err)
	}

	return score, true, nil
}

func (r *repository) TopCandidates(
	ctx context.Context,
	limit int,
) ([]Candidate, error) {
	query := fmt.Sprintf(`
		SELECT id AS user_id, user_type, trust_score, last_login_at, created_at
		FROM users
		WHERE %s
		ORDER BY trust_score DESC, created_at ASC, id ASC
		LIMIT $1`, eligibleWhere)

	var candidates []Candidate
	if err := r.db.SelectContext(ctx, &candidates, query, limit); err != nil {
		return nil, fmt.Errorf("top candidates: %w", err)
	}

	return candidates, nil
}

func (r *repository) InsertActive(
	ctx context.Context,
	slot *Slot,
	maxActive int,
) error {
	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockSeatClaims(ctx, tx); err != nil {
			return err
		}

		query := `
			INSERT INTO moderator_slots (id, user_id, status, appointed_by)
			SELECT $1, $2, 'ACTIVE', $3
			WHERE (SELECT COUNT(*) FROM moderator_slots WHERE status = 'ACTIVE') < $4
			RETURNING created_at, updated_at`

		return tx.GetContext(ctx, slot, query,
			slot.ID,
			slot.UserID,
			slot.AppointedBy,
			maxActive,
		)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("insert moderator slot: %w", core.ErrCapacityExceeded)
	}
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("insert moderator slot: %w", core.ErrConflict)
		}
		return fmt.Errorf("insert moderator slot: %w", err)
	}

	slot.Status = StatusActive
	return nil
}

func (r *repository) InsertWaitlisted(ctx context.Context, slot *Slot) error {
	query := `
		INSERT INTO moderator_slots (id, user_id, status, appointed_by)
		VALUES ($1, $2, 'WAITLISTED', $3)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, slot, query,
		slot.ID,
		slot.UserID,
		slot.AppointedBy,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("insert waitlist slot: %w", core.ErrConflict)
		}
		return fmt.Errorf("insert waitlist slot: %w", err)
	}

	slot.Status = StatusWaitlisted
	return nil
}

func (r *repository) GetHeldByUser(
	ctx context.Context,
	userID string,
) (*Slot, error) {
	query := `
		SELECT id, user_id, status, appointed_by, created_at, updated_at,
		       demoted_at
		FROM moderator_slots
		WHERE user_id = $1 AND status != 'DEMOTED'`

	var slot Slot
	err := r.db.GetContext(ctx, &slot, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get moderator slot: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get moderator slot: %w", err)
	}

	return &slot, nil
}

func (r *repository) SetStatus(
	ctx context.Context,
	userID, from, to string,
) (bool, error) {
	query := `
		UPDATE moderator_slots
		SET status = $3, updated_at = NOW()
		WHERE user_id = $1 AND status = $2`

	result, err := r.db.ExecContext(ctx, query, userID, from, to)
	if err != nil {
		return false, fmt.Errorf("set slot status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set slot status: %w", err)
	}

	return rows > 0, nil
}

func (r *repository) ActivateIfCapacity(
	ctx context.Context,
	userID, from string,
	maxActive int,
) (bool, error) {
	var activated bool
	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockSeatClaims(ctx, tx); err != nil {
			return err
		}

		query := `
			UPDATE moderator_slots
			SET status = 'ACTIVE', updated_at = NOW()
			WHERE user_id = $1 AND status = $2
			AND (SELECT COUNT(*) FROM moderator_slots WHERE status = 'ACTIVE') < $3`

		result, err := tx.ExecContext(ctx, query, userID, from, maxActive)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}

		activated = rows > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("activate slot: %w", err)
	}

	return activated, nil
}

// lockSeatClaims takes the advisory lock that every seat-claiming statement
// runs under. Released automatically at transaction end.
func lockSeatClaims(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(
		ctx,
		`SELECT pg_advisory_xact_lock($1)`,
		seatClaimLockID,
	)
	if err != nil {
		return fmt.Errorf("lock seat claims: %w", err)
	}
	return nil
}

func (r *repository) Demote(ctx context.Context, userID string) (bool, error) {
	query := `
		UPDATE moderator_slots
		SET status = 'DEMOTED', demoted_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND status != 'DEMOTED'`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("demote slot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("demote slot: %w", err)
	}

	return rows > 0, nil
}

func (r *repository) LowestActive(ctx context.Context) (*Candidate, error) {
	query := `
		SELECT u.id AS user_id, u.user_type, u.trust_score, u.last_login_at,
		       u.created_at
		FROM moderator_slots ms
		JOIN users u ON u.id = ms.user_id
		WHERE ms.status = 'ACTIVE' AND u.deleted_at IS NULL
		ORDER BY u.trust_score ASC, u.created_at DESC, u.id DESC
		LIMIT 1`

	var c Candidate
	err := r.db.GetContext(ctx, &c, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lowest active moderator: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lowest active moderator: %w", err)
	}

	return &c, nil
}

func (r *repository) ActiveModerators(
	ctx context.Context,
) ([]Candidate, error) {
	query := `
		SELECT u.id AS user_id, u.user_type, u.trust_score, u.last_login_at,
		       u.created_at
		FROM moderator_slots ms
		JOIN users u ON u.id = ms.user_id
		WHERE ms.status = 'ACTIVE' AND u.deleted_at IS NULL
		ORDER BY u.trust_score DESC, u.created_at ASC, u.id ASC`

	var mods []Candidate
	if err := r.db.SelectContext(ctx, &mods, query); err != nil {
		return nil, fmt.Errorf("active moderators: %w", err)
	}

	return mods, nil
}

func (r *repository) Waitlist(ctx context.Context) ([]Candidate, error) {
	query := `
		SELECT u.id AS user_id, u.user_type, u.trust_score, u.last_login_at,
		       u.created_at
		FROM moderator_slots ms
		JOIN users u ON u.id = ms.user_id
		WHERE ms.status = 'WAITLISTED' AND u.deleted_at IS NULL
		ORDER BY ms.created_at ASC`

	var queued []Candidate
	if err := r.db.SelectContext(ctx, &queued, query); err != nil {
		return nil, fmt.Errorf("waitlist: %w", err)
	}

	return queued, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
