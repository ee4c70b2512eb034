// AngelaMos | 2026
// service.go

package moderator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/someoneelse131/purfacted-sub003/internal/config"
	"github.com/someoneelse131/purfacted-sub003/internal/core"
	"github.com/someoneelse131/purfacted-sub003/internal/user"
)

// trustedScoreFloor qualifies a user as "trusted" for the mature-phase
// gate. Matches the score band where the vote-weight modifier first rises
// above neutral.
const trustedScoreFloor = 50.0

// Directory is the slice of the user store the election needs. Satisfied
// by user.Repository.
type Directory interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	SetUserType(ctx context.Context, id, fromType, toType string) error
}

// Service runs the moderator election policy: manual appointment, trust
// and inactivity based demotion, reinstatement and the periodic reconcile
// sweep. It owns every MODERATOR type transition.
type Service struct {
	repo  Repository
	users Directory
	cfg   *config.Provider
	now   func() time.Time
}

func NewService(repo Repository, users Directory, cfg *config.Provider) *Service {
	return &Service{repo: repo, users: users, cfg: cfg, now: time.Now}
}

// Phase classifies the current election phase by eligible population.
// mature additionally requires enough trusted users, otherwise the policy
// stays in early.
func (s *Service) Phase(ctx context.Context) (string, error) {
	mod := s.cfg.Moderation()

	population, err := s.repo.CountEligible(ctx)
	if err != nil {
		return "", err
	}

	if population <= mod.BootstrapThreshold {
		return PhaseBootstrap, nil
	}
	if population <= mod.EarlyThreshold {
		return PhaseEarly, nil
	}

	trusted, err := s.repo.CountTrusted(ctx, trustedScoreFloor)
	if err != nil {
		return "", err
	}
	if trusted < mod.MinTrustedForAuto {
		return PhaseEarly, nil
	}

	return PhaseMature, nil
}

// Appoint grants a moderator seat manually. Available in every phase.
func (s *Service) Appoint(
	ctx context.Context,
	userID, appointerID string,
) (*Slot, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if u.IsModerator() {
		return nil, fmt.Errorf(
			"appoint moderator: already a moderator: %w",
			core.ErrConflict,
		)
	}
	if u.IsOrganization() {
		return nil, fmt.Errorf(
			"appoint moderator: organizations cannot moderate: %w",
			core.ErrPermissionDenied,
		)
	}

	slot := &Slot{
		ID:          uuid.New().String(),
		UserID:      userID,
		AppointedBy: &appointerID,
	}

	if err := s.repo.InsertActive(ctx, slot, s.cfg.Moderation().MaxModerators); err != nil {
		return nil, err
	}

	if err := s.users.SetUserType(ctx, userID, u.UserType, user.TypeModerator); err != nil {
		// seat claimed but type transition lost the race; release the seat
		if _, demErr := s.repo.Demote(ctx, userID); demErr != nil {
			slog.Error("appoint rollback failed",
				"user_id", userID,
				"error", demErr,
			)
		}
		return nil, err
	}

	slog.Info("moderator appointed",
		"user_id", userID,
		"appointed_by", appointerID,
	)

	return slot, nil
}

// Demote removes the seat and reverts the user type to their verified
// credential tier.
func (s *Service) Demote(ctx context.Context, userID string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !u.IsModerator() {
		return fmt.Errorf(
			"demote moderator: not a moderator: %w",
			core.ErrConflict,
		)
	}

	demoted, err := s.repo.Demote(ctx, userID)
	if err != nil {
		return err
	}
	if !demoted {
		return fmt.Errorf(
			"demote moderator: no held slot: %w",
			core.ErrConflict,
		)
	}

	if err := s.users.SetUserType(ctx, userID, user.TypeModerator, u.DemotedType()); err != nil {
		return err
	}

	slog.Info("moderator demoted",
		"user_id", userID,
		"reverted_to", u.DemotedType(),
	)

	return nil
}

// HandleReturning reinstates an inactive moderator who logs back in.
// Still above the cutoff: reactivate, displacing the weakest active
// moderator when full, or queue on the waitlist. Below the cutoff: full
// demotion.
func (s *Service) HandleReturning(ctx context.Context, userID string) error {
	slot, err := s.repo.GetHeldByUser(ctx, userID)
	if err != nil {
		return err
	}
	if slot.Status != StatusInactive {
		return fmt.Errorf(
			"reinstate moderator: slot not inactive: %w",
			core.ErrConflict,
		)
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	cutoff, ok, err := s.repo.CutoffScore(ctx, s.cfg.Moderation().TopPercentage)
	if err != nil {
		return err
	}
	if ok && u.TrustScore < cutoff {
		return s.Demote(ctx, userID)
	}

	maxActive := s.cfg.Moderation().MaxModerators

	reactivated, err := s.repo.ActivateIfCapacity(
		ctx, userID, StatusInactive, maxActive)
	if err != nil {
		return err
	}
	if reactivated {
		slog.Info("moderator reinstated", "user_id", userID)
		return nil
	}

	// no free seat: displace the weakest active moderator if strictly
	// weaker, otherwise wait for one to open
	lowest, err := s.repo.LowestActive(ctx)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}

	if lowest != nil && u.TrustScore > lowest.TrustScore {
		if err := s.Demote(ctx, lowest.UserID); err != nil {
			return err
		}
		reactivated, err = s.repo.ActivateIfCapacity(
			ctx, userID, StatusInactive, maxActive)
		if err != nil {
			return err
		}
		if reactivated {
			slog.Info("moderator reinstated by displacement",
				"user_id", userID,
				"displaced", lowest.UserID,
			)
			return nil
		}
	}

	if _, err := s.repo.SetStatus(
		ctx, userID, StatusInactive, StatusWaitlisted); err != nil {
		return err
	}

	slog.Info("moderator waitlisted", "user_id", userID)
	return nil
}

// Reconcile is the idempotent sweep: inactivity, trust-based auto
// demotion, waitlist promotion and, in the mature phase, automatic
// election into free seats. Safe to run repeatedly and concurrently; every
// transition is a conditional update that at most one sweep wins.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	mod := s.cfg.Moderation()

	phase, err := s.Phase(ctx)
	if err != nil {
		return nil, err
	}

	population, err := s.repo.CountEligible(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{Phase: phase, Population: population}

	active, err := s.repo.ActiveModerators(ctx)
	if err != nil {
		return nil, err
	}

	deadline := s.now().AddDate(0, 0, -mod.InactiveDays)
	for _, m := range active {
		if m.LastLoginAt != nil && m.LastLoginAt.After(deadline) {
			continue
		}
		if m.LastLoginAt == nil && m.CreatedAt.After(deadline) {
			continue
		}

		moved, err := s.repo.SetStatus(
			ctx, m.UserID, StatusActive, StatusInactive)
		if err != nil {
			return report, err
		}
		if moved {
			report.MarkedInactive++
			slog.Info("moderator marked inactive", "user_id", m.UserID)
		}
	}

	cutoff, haveCutoff, err := s.repo.CutoffScore(ctx, mod.TopPercentage)
	if err != nil {
		return report, err
	}

	if haveCutoff && phase != PhaseBootstrap {
		for _, m := range active {
			if m.TrustScore >= cutoff {
				continue
			}
			if err := s.Demote(ctx, m.UserID); err != nil {
				if errors.Is(err, core.ErrConflict) ||
					errors.Is(err, core.ErrNotFound) {
					continue
				}
				return report, err
			}
			report.AutoDemoted++
		}
	}

	promoted, err := s.promoteWaitlist(ctx, mod.MaxModerators)
	if err != nil {
		return report, err
	}
	report.Promoted = promoted

	if phase == PhaseMature {
		elected, err := s.autoElect(ctx, cutoff, haveCutoff)
		if err != nil {
			return report, err
		}
		report.Elected = elected
	}

	return report, nil
}

func (s *Service) promoteWaitlist(
	ctx context.Context,
	maxActive int,
) (int, error) {
	queued, err := s.repo.Waitlist(ctx)
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, c := range queued {
		moved, err := s.repo.ActivateIfCapacity(
			ctx, c.UserID, StatusWaitlisted, maxActive)
		if err != nil {
			return promoted, err
		}
		if !moved {
			break
		}
		promoted++
		slog.Info("waitlisted moderator promoted", "user_id", c.UserID)
	}

	return promoted, nil
}

// autoElect fills free seats from the top of the eligible ranking. Only
// candidates above the cutoff qualify.
func (s *Service) autoElect(
	ctx context.Context,
	cutoff float64,
	haveCutoff bool,
) (int, error) {
	if !haveCutoff {
		return 0, nil
	}

	maxActive := s.cfg.Moderation().MaxModerators

	activeCount, err := s.repo.CountActive(ctx)
	if err != nil {
		return 0, err
	}
	free := maxActive - activeCount
	if free <= 0 {
		return 0, nil
	}

	candidates, err := s.repo.TopCandidates(ctx, maxActive)
	if err != nil {
		return 0, err
	}

	elected := 0
	for _, c := range candidates {
		if elected >= free {
			break
		}
		if c.UserType == user.TypeModerator {
			continue
		}
		if c.TrustScore < cutoff {
			break
		}

		slot := &Slot{ID: uuid.New().String(), UserID: c.UserID}
		err := s.repo.InsertActive(ctx, slot, maxActive)
		if errors.Is(err, core.ErrCapacityExceeded) {
			break
		}
		if errors.Is(err, core.ErrConflict) {
			continue
		}
		if err != nil {
			return elected, err
		}

		if err := s.users.SetUserType(
			ctx, c.UserID, c.UserType, user.TypeModerator); err != nil {
			if _, demErr := s.repo.Demote(ctx, c.UserID); demErr != nil {
				slog.Error("auto-elect rollback failed",
					"user_id", c.UserID,
					"error", demErr,
				)
			}
			if errors.Is(err, core.ErrConflict) {
				continue
			}
			return elected, err
		}

		elected++
		slog.Info("moderator auto-elected",
			"user_id", c.UserID,
			"trust_score", c.TrustScore,
		)
	}

	return elected, nil
}

// ActiveModerators lists current seat holders ranked by trust.
func (s *Service) ActiveModerators(ctx context.Context) ([]Candidate, error) {
	return s.repo.ActiveModerators(ctx)
}
