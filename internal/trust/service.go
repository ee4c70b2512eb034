// AngelaMos | 2026
// service.go

package trust

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/someoneelse131/purfacted-sub003/internal/config"
	"github.com/someoneelse131/purfacted-sub003/internal/core"
)

// Ledger applies trust point deltas and keeps each user's cached score in
// sync with their append-only event log.
type Ledger struct {
	repo Repository
	cfg  *config.Provider
}

func NewLedger(repo Repository, cfg *config.Provider) *Ledger {
	return &Ledger{repo: repo, cfg: cfg}
}

// ApplyEvent appends a TrustEvent for the named action and returns the user's
// new score. Unknown actions are a validation error; a missing user surfaces
// core.ErrNotFound.
func (l *Ledger) ApplyEvent(
	ctx context.Context,
	userID, action string,
) (float64, error) {
	delta, ok := l.deltaFor(action)
	if !ok {
		return 0, fmt.Errorf(
			"apply event: unknown action %q: %w",
			action,
			core.ErrValidation,
		)
	}

	event := &TrustEvent{
		ID:     uuid.New().String(),
		UserID: userID,
		Action: action,
		Delta:  delta,
	}

	return l.repo.Apply(ctx, event)
}

func (l *Ledger) Score(ctx context.Context, userID string) (float64, error) {
	return l.repo.GetScore(ctx, userID)
}

func (l *Ledger) Events(
	ctx context.Context,
	userID string,
	limit int,
) ([]TrustEvent, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return l.repo.EventsForUser(ctx, userID, limit)
}

type ReconcileResult struct {
	UserID      string  `json:"user_id"`
	CachedScore float64 `json:"cached_score"`
	LedgerSum   float64 `json:"ledger_sum"`
	Drifted     bool    `json:"drifted"`
	Repaired    bool    `json:"repaired"`
}

// Reconcile recomputes the user's score from the event log and repairs the
// cached value when it has drifted.
func (l *Ledger) Reconcile(
	ctx context.Context,
	userID string,
) (*ReconcileResult, error) {
	cached, err := l.repo.GetScore(ctx, userID)
	if err != nil {
		return nil, err
	}

	sum, err := l.repo.SumDeltas(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{
		UserID:      userID,
		CachedScore: cached,
		LedgerSum:   sum,
		Drifted:     math.Abs(cached-sum) > 1e-9,
	}

	if result.Drifted {
		slog.Warn("trust score drift detected",
			"user_id", userID,
			"cached", cached,
			"ledger_sum", sum,
		)

		if err := l.repo.SetScore(ctx, userID, sum); err != nil {
			return nil, err
		}
		result.Repaired = true
	}

	return result, nil
}

func (l *Ledger) deltaFor(action string) (int, bool) {
	p := l.cfg.Trust().Points

	switch action {
	case ActionFactApproved:
		return p.FactApproved, true
	case ActionFactWrong:
		return p.FactWrong, true
	case ActionFactOutdated:
		return p.FactOutdated, true
	case ActionVetoSuccess:
		return p.VetoSuccess, true
	case ActionVetoFail:
		return p.VetoFail, true
	case ActionVerificationCorrect:
		return p.VerificationCorrect, true
	case ActionVerificationWrong:
		return p.VerificationWrong, true
	case ActionUpvoted:
		return p.Upvoted, true
	case ActionDownvoted:
		return p.Downvoted, true
	default:
		return 0, false
	}
}
