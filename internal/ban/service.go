// AngelaMos | 2026
// service.go

package ban

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/someoneelse131/purfacted-sub003/internal/config"
	"github.com/someoneelse131/purfacted-sub003/internal/core"
)

// Service applies progressive sanctions: level 1 and 2 are timed, level 3 is
// permanent and additionally poisons the email/IP blocklists.
type Service struct {
	repo   Repository
	hasher *Hasher
	cfg    *config.Provider
	now    func() time.Time
}

func NewService(repo Repository, hasher *Hasher, cfg *config.Provider) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		cfg:    cfg,
		now:    time.Now,
	}
}

// BanUser escalates the user to the next level. The escalation itself is a
// compare-and-swap on the current level, so two concurrent calls produce one
// level bump, not two.
func (s *Service) BanUser(
	ctx context.Context,
	userID, reason, bannedByID, ip string,
) (*Ban, error) {
	state, err := s.repo.GetBanState(ctx, userID)
	if err != nil {
		return nil, err
	}

	if state.Level >= MaxLevel {
		return nil, fmt.Errorf(
			"ban user: already at maximum level: %w",
			core.ErrConflict,
		)
	}

	nextLevel := state.Level + 1

	b := &Ban{
		ID:         uuid.New().String(),
		UserID:     userID,
		Level:      nextLevel,
		Reason:     reason,
		BannedByID: bannedByID,
		ExpiresAt:  s.expiryFor(nextLevel),
	}

	var emailHash, ipHash string
	if nextLevel == MaxLevel {
		emailHash = s.hasher.HashEmail(state.Email)
		if ip != "" {
			ipHash = s.hasher.HashIP(ip)
		}
	}

	if err := s.repo.Escalate(ctx, b, state.Level, emailHash, ipHash); err != nil {
		return nil, err
	}

	slog.Info("user banned",
		"user_id", userID,
		"level", nextLevel,
		"permanent", b.ExpiresAt == nil,
	)

	return b, nil
}

// IsUserBanned reports whether enforcement currently applies. Expired timed
// bans lapse without erasing level history.
func (s *Service) IsUserBanned(
	ctx context.Context,
	userID string,
) (bool, error) {
	state, err := s.repo.GetBanState(ctx, userID)
	if err != nil {
		return false, err
	}

	return state.Active(s.now()), nil
}

// UnbanUser lifts a timed ban by clearing banned_until. Level history stays,
// and a level-3 permanent ban is not liftable this way.
func (s *Service) UnbanUser(ctx context.Context, userID string) error {
	state, err := s.repo.GetBanState(ctx, userID)
	if err != nil {
		return err
	}

	if state.Level >= MaxLevel && state.BannedUntil == nil {
		return fmt.Errorf(
			"unban user: permanent ban cannot be lifted: %w",
			core.ErrConflict,
		)
	}

	return s.repo.ClearExpiry(ctx, userID)
}

func (s *Service) History(ctx context.Context, userID string) ([]Ban, error) {
	return s.repo.History(ctx, userID)
}

// CheckRegistration rejects signups whose email or IP matches the permanent
// blocklists. Called before any account row is created.
func (s *Service) CheckRegistration(
	ctx context.Context,
	email, ip string,
) error {
	blocked, err := s.repo.IsEmailBlocked(ctx, s.hasher.HashEmail(email))
	if err != nil {
		return err
	}
	if blocked {
		return fmt.Errorf("registration blocked: %w", core.ErrForbidden)
	}

	if ip != "" {
		blocked, err = s.repo.IsIPBlocked(ctx, s.hasher.HashIP(ip))
		if err != nil {
			return err
		}
		if blocked {
			return fmt.Errorf("registration blocked: %w", core.ErrForbidden)
		}
	}

	return nil
}

func (s *Service) expiryFor(level int) *time.Time {
	m := s.cfg.Moderation()

	var days int
	switch level {
	case 1:
		days = m.Level1DurationDays
	case 2:
		days = m.Level2DurationDays
	default:
		// level 3 is permanent
		return nil
	}

	t := s.now().Add(time.Duration(days) * 24 * time.Hour)
	return &t
}
