// AngelaMos | 2026
// service.go

package veto

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/someoneelse131/purfacted-sub003/internal/config"
	"github.com/someoneelse131/purfacted-sub003/internal/core"
	"github.com/someoneelse131/purfacted-sub003/internal/trust"
	"github.com/someoneelse131/purfacted-sub003/internal/user"
)

// FactGateway is the narrow surface the engine needs from the facts
// collaborator: existence checks and the resolution status push-back.
type FactGateway interface {
	Exists(ctx context.Context, factID string) (bool, error)
	SetStatus(ctx context.Context, factID, status string) error
}

// VoterSource yields the voter fields weight computation needs.
type VoterSource interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
}

// FlagGuard blocks flagged users from participating and receives rejection
// outcomes for threshold tracking.
type FlagGuard interface {
	HasActiveFlag(ctx context.Context, userID string) (bool, error)
	OnVetoRejected(ctx context.Context, userID string) error
}

// Service drives the veto lifecycle: PENDING until the weighted net crosses
// the resolve threshold, then exactly one transition to APPROVED or REJECTED.
type Service struct {
	repo   Repository
	calc   *trust.Calculator
	ledger *trust.Ledger
	users  VoterSource
	facts  FactGateway
	flags  FlagGuard
	cfg    *config.Provider
}

func NewService(
	repo Repository,
	calc *trust.Calculator,
	ledger *trust.Ledger,
	users VoterSource,
	facts FactGateway,
	flags FlagGuard,
	cfg *config.Provider,
) *Service {
	return &Service{
		repo:   repo,
		calc:   calc,
		ledger: ledger,
		users:  users,
		facts:  facts,
		flags:  flags,
		cfg:    cfg,
	}
}

// Submit opens a challenge against a published fact. The veto starts PENDING
// and requires a reason plus at least one source.
func (s *Service) Submit(
	ctx context.Context,
	factID, submitterID, reason string,
	sources []string,
) (*Veto, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf(
			"submit veto: reason is required: %w",
			core.ErrValidation,
		)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf(
			"submit veto: at least one source is required: %w",
			core.ErrValidation,
		)
	}

	if err := s.ensureNotFlagged(ctx, submitterID); err != nil {
		return nil, err
	}

	exists, err := s.facts.Exists(ctx, factID)
	if err != nil {
		return nil, fmt.Errorf("submit veto: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("submit veto: fact: %w", core.ErrNotFound)
	}

	v := &Veto{
		ID:          uuid.New().String(),
		FactID:      factID,
		SubmitterID: submitterID,
		Reason:      reason,
		Sources:     sources,
		Status:      StatusPending,
	}

	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}

	return v, nil
}

// Vote casts or updates a weighted vote on a pending veto, then checks
// whether the aggregate crossed the resolve threshold. Votes on resolved
// vetoes fail loudly with a conflict rather than silently no-opping.
func (s *Service) Vote(
	ctx context.Context,
	userID, vetoID string,
	value int,
) (*Veto, error) {
	if value != 1 && value != -1 {
		return nil, fmt.Errorf(
			"vote on veto: value must be +1 or -1: %w",
			core.ErrValidation,
		)
	}

	v, err := s.repo.GetByID(ctx, vetoID)
	if err != nil {
		return nil, err
	}

	if v.Resolved() {
		return nil, fmt.Errorf(
			"vote on veto: already %s: %w",
			v.Status,
			core.ErrConflict,
		)
	}

	if err := s.ensureNotFlagged(ctx, userID); err != nil {
		return nil, err
	}

	voter, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	weight := s.calc.Weight(voter.UserType, voter.TrustScore)

	vote := &VetoVote{
		VetoID:  vetoID,
		VoterID: userID,
		Value:   value,
		Weight:  weight,
	}

	if err := s.repo.UpsertVote(ctx, vote); err != nil {
		return nil, err
	}

	net, err := s.repo.NetWeight(ctx, vetoID)
	if err != nil {
		return nil, err
	}

	threshold := s.cfg.Moderation().VetoResolveThreshold

	switch {
	case net >= threshold:
		return s.resolve(ctx, v, StatusApproved)
	case net <= -threshold:
		return s.resolve(ctx, v, StatusRejected)
	default:
		return v, nil
	}
}

// VoteOnVeto adapts Vote for callers that only care about the outcome,
// not the updated veto.
func (s *Service) VoteOnVeto(
	ctx context.Context,
	userID, vetoID string,
	value int,
) error {
	_, err := s.Vote(ctx, userID, vetoID, value)
	return err
}

func (s *Service) Get(ctx context.Context, vetoID string) (*Veto, error) {
	return s.repo.GetByID(ctx, vetoID)
}

func (s *Service) ListByFact(
	ctx context.Context,
	factID string,
) ([]Veto, error) {
	return s.repo.ListByFact(ctx, factID)
}

// resolve performs the exactly-once transition. The conditional update is
// the gate: only the caller that wins it fires the trust delta, the fact
// status push-back, and the rejection notification.
func (s *Service) resolve(
	ctx context.Context,
	v *Veto,
	status string,
) (*Veto, error) {
	won, err := s.repo.ResolveIfPending(ctx, v.ID, status)
	if err != nil {
		return nil, err
	}

	if !won {
		// Another vote crossed the threshold first; their resolution
		// stands and no side effects re-fire.
		return s.repo.GetByID(ctx, v.ID)
	}

	v.Status = status

	action := trust.ActionVetoSuccess
	factStatus := FactStatusDisproven
	if status == StatusRejected {
		action = trust.ActionVetoFail
		factStatus = FactStatusProven
	}

	if _, err := s.ledger.ApplyEvent(ctx, v.SubmitterID, action); err != nil {
		slog.Error("veto resolution trust update failed",
			"veto_id", v.ID,
			"submitter_id", v.SubmitterID,
			"error", err,
		)
	}

	if err := s.facts.SetStatus(ctx, v.FactID, factStatus); err != nil {
		slog.Error("veto resolution fact update failed",
			"veto_id", v.ID,
			"fact_id", v.FactID,
			"error", err,
		)
	}

	if status == StatusRejected {
		if err := s.flags.OnVetoRejected(ctx, v.SubmitterID); err != nil {
			slog.Error("veto rejection notification failed",
				"veto_id", v.ID,
				"submitter_id", v.SubmitterID,
				"error", err,
			)
		}
	}

	slog.Info("veto resolved",
		"veto_id", v.ID,
		"fact_id", v.FactID,
		"status", status,
	)

	return v, nil
}

func (s *Service) ensureNotFlagged(ctx context.Context, userID string) error {
	flagged, err := s.flags.HasActiveFlag(ctx, userID)
	if err != nil {
		return err
	}

	if flagged {
		return fmt.Errorf(
			"account is under review: %w",
			core.ErrPermissionDenied,
		)
	}

	return nil
}
