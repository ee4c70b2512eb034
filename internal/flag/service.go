// AngelaMos | 2026
// service.go

package flag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/someoneelse131/purfacted-sub003/internal/ban"
	"github.com/someoneelse131/purfacted-sub003/internal/config"
	"github.com/someoneelse131/purfacted-sub003/internal/core"
)

// Banner is the slice of the ban engine a `ban` resolution needs.
type Banner interface {
	BanUser(
		ctx context.Context,
		userID, reason, bannedByID, ip string,
	) (*ban.Ban, error)
}

// Service raises review flags when users accumulate rejected vetoes and
// routes moderator review outcomes. It never bans on threshold alone: only
// an explicit `ban` resolution by a reviewer escalates.
type Service struct {
	repo   Repository
	banner Banner
	cfg    *config.Provider
}

func NewService(repo Repository, banner Banner, cfg *config.Provider) *Service {
	return &Service{repo: repo, banner: banner, cfg: cfg}
}

// AutoFlagNegativeVetoUsers sweeps for users at or over the failed-veto
// threshold without an active flag and flags each once. Safe to run
// repeatedly and concurrently: the duplicate guard is a conflict, not an
// error.
func (s *Service) AutoFlagNegativeVetoUsers(ctx context.Context) (int, error) {
	threshold := s.cfg.Moderation().FailedVetoThreshold

	userIDs, err := s.repo.UsersOverRejectionThreshold(ctx, threshold)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for _, userID := range userIDs {
		f := &AccountFlag{
			ID:      uuid.New().String(),
			UserID:  userID,
			Reason:  ReasonNegativeVetoThreshold,
			Details: fmt.Sprintf("at least %d rejected vetoes", threshold),
			Status:  StatusPending,
		}

		if err := s.repo.Create(ctx, f); err != nil {
			if errors.Is(err, core.ErrConflict) {
				continue
			}
			return flagged, err
		}

		flagged++
		slog.Info("account auto-flagged",
			"user_id", userID,
			"reason", ReasonNegativeVetoThreshold,
		)
	}

	return flagged, nil
}

// OnVetoRejected is the per-event path: called by the veto engine when a
// veto it resolved came back REJECTED.
func (s *Service) OnVetoRejected(ctx context.Context, userID string) error {
	count, err := s.repo.CountRejectedVetoes(ctx, userID)
	if err != nil {
		return err
	}

	if count < s.cfg.Moderation().FailedVetoThreshold {
		return nil
	}

	f := &AccountFlag{
		ID:      uuid.New().String(),
		UserID:  userID,
		Reason:  ReasonNegativeVetoThreshold,
		Details: fmt.Sprintf("%d rejected vetoes", count),
		Status:  StatusPending,
	}

	if err := s.repo.Create(ctx, f); err != nil {
		if errors.Is(err, core.ErrConflict) {
			// already under review, nothing to raise
			return nil
		}
		return err
	}

	slog.Info("account auto-flagged",
		"user_id", userID,
		"rejected_vetoes", count,
	)

	return nil
}

// FlagAccount is the manual path, same duplicate guard as the sweep.
func (s *Service) FlagAccount(
	ctx context.Context,
	userID, reason, details string,
) (*AccountFlag, error) {
	if reason == "" {
		reason = ReasonManualReview
	}

	active, err := s.repo.HasActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, fmt.Errorf(
			"flag account: already flagged: %w",
			core.ErrConflict,
		)
	}

	f := &AccountFlag{
		ID:      uuid.New().String(),
		UserID:  userID,
		Reason:  reason,
		Details: details,
		Status:  StatusPending,
	}

	if err := s.repo.Create(ctx, f); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return nil, fmt.Errorf(
				"flag account: already flagged: %w",
				core.ErrConflict,
			)
		}
		return nil, err
	}

	return f, nil
}

// Review records the reviewer's decision. Claiming the flag is a conditional
// update on its active status, so a second concurrent review loses with a
// conflict instead of re-applying effects.
func (s *Service) Review(
	ctx context.Context,
	flagID, reviewerID, resolution, comment string,
) (*AccountFlag, error) {
	if !ValidResolution(resolution) {
		return nil, fmt.Errorf(
			"review flag: invalid resolution %q: %w",
			resolution,
			core.ErrValidation,
		)
	}

	f, err := s.repo.GetByID(ctx, flagID)
	if err != nil {
		return nil, err
	}

	if !f.Active() {
		return nil, fmt.Errorf(
			"review flag: already resolved: %w",
			core.ErrConflict,
		)
	}

	if f.UserID == reviewerID {
		return nil, fmt.Errorf(
			"review flag: cannot review own flag: %w",
			core.ErrPermissionDenied,
		)
	}

	// Claim the flag for this reviewer before settling it. Losing the
	// claim is fine, the conditional Resolve below picks the winner.
	if f.Status == StatusPending {
		if _, err := s.repo.MarkReviewing(ctx, flagID, reviewerID); err != nil {
			return nil, err
		}
	}

	status := StatusResolved
	if resolution == ResolutionDismiss {
		status = StatusDismissed
	}

	claimed, err := s.repo.Resolve(
		ctx,
		flagID,
		status,
		reviewerID,
		resolution,
		comment,
	)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf(
			"review flag: already resolved: %w",
			core.ErrConflict,
		)
	}

	if resolution == ResolutionBan {
		if _, err := s.banner.BanUser(
			ctx,
			f.UserID,
			"flag review: "+f.Reason,
			reviewerID,
			"",
		); err != nil {
			slog.Error("flag review ban failed",
				"flag_id", flagID,
				"user_id", f.UserID,
				"error", err,
			)
			return nil, err
		}
	}

	return s.repo.GetByID(ctx, flagID)
}

// HasActiveFlag tells calling layers whether the user is blocked from
// voting, posting facts and submitting verifications.
func (s *Service) HasActiveFlag(
	ctx context.Context,
	userID string,
) (bool, error) {
	return s.repo.HasActive(ctx, userID)
}

func (s *Service) Get(ctx context.Context, flagID string) (*AccountFlag, error) {
	return s.repo.GetByID(ctx, flagID)
}

func (s *Service) List(
	ctx context.Context,
	status string,
	limit int,
) ([]AccountFlag, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.repo.List(ctx, status, limit)
}
