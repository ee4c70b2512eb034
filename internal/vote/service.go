// AngelaMos | 2026
// service.go

package vote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/someoneelse131/purfacted-sub003/internal/config"
	"github.com/someoneelse131/purfacted-sub003/internal/core"
	"github.com/someoneelse131/purfacted-sub003/internal/trust"
	"github.com/someoneelse131/purfacted-sub003/internal/user"
)

// VoterSource yields the voter fields weight computation needs.
type VoterSource interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
}

// FlagGuard blocks users under review from voting.
type FlagGuard interface {
	HasActiveFlag(ctx context.Context, userID string) (bool, error)
}

// BanChecker blocks actively banned users from voting.
type BanChecker interface {
	IsUserBanned(ctx context.Context, userID string) (bool, error)
}

// VetoBallots routes veto-kind ballots to the veto engine, which owns the
// resolution state machine.
type VetoBallots interface {
	VoteOnVeto(ctx context.Context, userID, vetoID string, value int) error
}

// IPHasher anonymizes voter IPs before they touch storage. Satisfied by
// ban.Hasher.
type IPHasher interface {
	HashIP(ip string) string
}

// Service casts weighted ballots on any Target variant. Authenticated
// votes carry a trust-derived weight and feed the author's trust ledger;
// anonymous votes are feature-flagged, deduplicated per (hashed IP,
// target) and quota-limited per IP per day.
type Service struct {
	repo    Repository
	calc    *trust.Calculator
	ledger  *trust.Ledger
	voters  VoterSource
	flags   FlagGuard
	bans    BanChecker
	vetoes  VetoBallots
	hasher  IPHasher
	rdb     *redis.Client
	limiter *redis_rate.Limiter
	cfg     *config.Provider
}

func NewService(
	repo Repository,
	calc *trust.Calculator,
	ledger *trust.Ledger,
	voters VoterSource,
	flags FlagGuard,
	bans BanChecker,
	vetoes VetoBallots,
	hasher IPHasher,
	rdb *redis.Client,
	cfg *config.Provider,
) *Service {
	return &Service{
		repo:    repo,
		calc:    calc,
		ledger:  ledger,
		voters:  voters,
		flags:   flags,
		bans:    bans,
		vetoes:  vetoes,
		hasher:  hasher,
		rdb:     rdb,
		limiter: redis_rate.NewLimiter(rdb),
		cfg:     cfg,
	}
}

// Cast records an authenticated ballot. Veto targets delegate to the veto
// engine and report through it; every other variant updates its stored
// aggregate and credits the author's trust.
func (s *Service) Cast(
	ctx context.Context,
	voterID string,
	target Target,
	value int,
) (*CastResult, error) {
	if value != 1 && value != -1 {
		return nil, fmt.Errorf(
			"cast vote: value must be +1 or -1: %w",
			core.ErrValidation,
		)
	}

	voter, err := s.voters.GetUser(ctx, voterID)
	if err != nil {
		return nil, err
	}

	banned, err := s.bans.IsUserBanned(ctx, voterID)
	if err != nil {
		return nil, err
	}
	if banned {
		return nil, fmt.Errorf(
			"cast vote: account banned: %w",
			core.ErrPermissionDenied,
		)
	}

	flagged, err := s.flags.HasActiveFlag(ctx, voterID)
	if err != nil {
		return nil, err
	}
	if flagged {
		return nil, fmt.Errorf(
			"cast vote: account under review: %w",
			core.ErrPermissionDenied,
		)
	}

	if vt, ok := target.(VetoTarget); ok {
		if err := s.vetoes.VoteOnVeto(ctx, voterID, vt.ID, value); err != nil {
			return nil, err
		}
		return &CastResult{Created: true}, nil
	}

	v := &Vote{
		ID:         uuid.New().String(),
		VoterID:    voterID,
		TargetType: target.Kind(),
		TargetID:   target.TargetID(),
		Value:      value,
		Weight:     s.calc.Weight(voter.UserType, voter.TrustScore),
	}

	res, err := s.repo.Cast(ctx, v, target)
	if err != nil {
		return nil, err
	}

	s.creditAuthor(ctx, res, voterID, value)

	return res, nil
}

// CastAnonymous records an unauthenticated ballot at the fixed anonymous
// weight. Identity is the salted IP hash; one ballot per (hash, target),
// capped per day.
func (s *Service) CastAnonymous(
	ctx context.Context,
	ip string,
	target Target,
	value int,
) (*CastResult, error) {
	tc := s.cfg.Trust()

	if !tc.AnonVoteEnabled {
		return nil, fmt.Errorf(
			"anonymous vote: %w",
			core.ErrFeatureDisabled,
		)
	}
	if value != 1 && value != -1 {
		return nil, fmt.Errorf(
			"anonymous vote: value must be +1 or -1: %w",
			core.ErrValidation,
		)
	}
	if _, ok := target.(VetoTarget); ok {
		return nil, fmt.Errorf(
			"anonymous vote: vetoes require an account: %w",
			core.ErrPermissionDenied,
		)
	}

	ipHash := s.hasher.HashIP(ip)

	quota, err := s.limiter.Allow(ctx, "anonvote:"+ipHash, redis_rate.Limit{
		Rate:   tc.AnonVoteDailyCap,
		Burst:  tc.AnonVoteDailyCap,
		Period: 24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("anonymous vote: quota: %w", err)
	}
	if quota.Allowed == 0 {
		return nil, fmt.Errorf(
			"anonymous vote: daily quota reached: %w",
			core.ErrRateLimited,
		)
	}

	dedupeKey := fmt.Sprintf(
		"anonvote:%s:%s:%s",
		target.Kind(), target.TargetID(), ipHash,
	)
	claimed, err := s.rdb.SetNX(ctx, dedupeKey, value, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("anonymous vote: dedupe: %w", err)
	}
	if !claimed {
		return nil, fmt.Errorf(
			"anonymous vote: already voted on this content: %w",
			core.ErrConflict,
		)
	}

	v := &Vote{
		ID:         uuid.New().String(),
		VoterID:    "anon:" + ipHash,
		TargetType: target.Kind(),
		TargetID:   target.TargetID(),
		Value:      value,
		Weight:     s.calc.AnonymousWeight(),
	}

	res, err := s.repo.Cast(ctx, v, target)
	if err != nil {
		// release the dedupe claim so a retry is possible
		if delErr := s.rdb.Del(ctx, dedupeKey).Err(); delErr != nil {
			slog.Error("anon vote dedupe release failed",
				"key", dedupeKey,
				"error", delErr,
			)
		}
		return nil, err
	}

	return res, nil
}

func (s *Service) Get(
	ctx context.Context,
	voterID string,
	target Target,
) (*Vote, error) {
	return s.repo.Get(ctx, voterID, target.Kind(), target.TargetID())
}

func (s *Service) ListByTarget(
	ctx context.Context,
	target Target,
) ([]Vote, error) {
	return s.repo.ListByTarget(ctx, target.Kind(), target.TargetID())
}

// creditAuthor applies the author-side trust delta. Self-votes carry
// weight on the aggregate but never move the voter's own trust. A failed
// credit is logged, not surfaced: the ballot itself already committed.
func (s *Service) creditAuthor(
	ctx context.Context,
	res *CastResult,
	voterID string,
	value int,
) {
	if res.AuthorID == "" || res.AuthorID == voterID {
		return
	}

	action := trust.ActionUpvoted
	if value < 0 {
		action = trust.ActionDownvoted
	}

	if _, err := s.ledger.ApplyEvent(ctx, res.AuthorID, action); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return
		}
		slog.Error("author trust credit failed",
			"author_id", res.AuthorID,
			"action", action,
			"error", err,
		)
	}
}
