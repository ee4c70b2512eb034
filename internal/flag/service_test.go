// AngelaMos | 2026
// service_test.go

package flag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/someoneelse131/purfacted-sub003/internal/ban"
	"github.com/someoneelse131/purfacted-sub003/internal/config"
	"github.com/someoneelse131/purfacted-sub003/internal/core"
)

type fakeRepo struct {
	flags          map[string]*AccountFlag
	rejectedVetoes map[string]int
	claims         []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		flags:          map[string]*AccountFlag{},
		rejectedVetoes: map[string]int{},
	}
}

func (f *fakeRepo) Create(_ context.Context, flag *AccountFlag) error {
	for _, existing := range f.flags {
		if existing.UserID == flag.UserID && existing.Active() {
			return core.ErrConflict
		}
	}
	copied := *flag
	copied.CreatedAt = time.Now()
	f.flags[flag.ID] = &copied
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*AccountFlag, error) {
	flag, ok := f.flags[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *flag
	return &copied, nil
}

func (f *fakeRepo) HasActive(_ context.Context, userID string) (bool, error) {
	for _, flag := range f.flags {
		if flag.UserID == userID && flag.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) MarkReviewing(
	_ context.Context,
	flagID, reviewerID string,
) (bool, error) {
	flag, ok := f.flags[flagID]
	if !ok || flag.Status != StatusPending {
		return false, nil
	}
	flag.Status = StatusReviewing
	flag.ReviewedByID = &reviewerID
	f.claims = append(f.claims, flagID)
	return true, nil
}

func (f *fakeRepo) Resolve(
	_ context.Context,
	flagID, status, reviewerID, resolution, comment string,
) (bool, error) {
	flag, ok := f.flags[flagID]
	if !ok || !flag.Active() {
		return false, nil
	}
	now := time.Now()
	flag.Status = status
	flag.ReviewedByID = &reviewerID
	flag.Resolution = &resolution
	flag.Comment = &comment
	flag.ResolvedAt = &now
	return true, nil
}

func (f *fakeRepo) CountRejectedVetoes(
	_ context.Context,
	userID string,
) (int, error) {
	return f.rejectedVetoes[userID], nil
}

func (f *fakeRepo) UsersOverRejectionThreshold(
	ctx context.Context,
	threshold int,
) ([]string, error) {
	var out []string
	for userID, count := range f.rejectedVetoes {
		if count < threshold {
			continue
		}
		active, _ := f.HasActive(ctx, userID)
		if !active {
			out = append(out, userID)
		}
	}
	return out, nil
}

func (f *fakeRepo) List(
	_ context.Context,
	status string,
	limit int,
) ([]AccountFlag, error) {
	var out []AccountFlag
	for _, flag := range f.flags {
		if (status == "" || flag.Status == status) && len(out) < limit {
			out = append(out, *flag)
		}
	}
	return out, nil
}

type fakeBanner struct {
	banned []string
	err    error
}

func (f *fakeBanner) BanUser(
	_ context.Context,
	userID, _, _, _ string,
) (*ban.Ban, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.banned = append(f.banned, userID)
	return &ban.Ban{UserID: userID, Level: 1}, nil
}

func newTestService() (*Service, *fakeRepo, *fakeBanner) {
	repo := newFakeRepo()
	banner := &fakeBanner{}
	svc := NewService(repo, banner, config.NewProvider(config.Defaults()))
	return svc, repo, banner
}

func activeFlagFor(repo *fakeRepo, userID string) *AccountFlag {
	for _, f := range repo.flags {
		if f.UserID == userID && f.Active() {
			return f
		}
	}
	return nil
}

func TestOnVetoRejectedBelowThreshold(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.rejectedVetoes["u1"] = 4

	require.NoError(t, svc.OnVetoRejected(context.Background(), "u1"))
	assert.Empty(t, repo.flags)
}

func TestOnVetoRejectedAtThresholdFlagsOnce(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.rejectedVetoes["u1"] = 5
	ctx := context.Background()

	require.NoError(t, svc.OnVetoRejected(ctx, "u1"))
	require.Len(t, repo.flags, 1)

	f := activeFlagFor(repo, "u1")
	require.NotNil(t, f)
	assert.Equal(t, ReasonNegativeVetoThreshold, f.Reason)
	assert.Equal(t, StatusPending, f.Status)

	// A sixth rejection while the flag is active raises nothing new.
	repo.rejectedVetoes["u1"] = 6
	require.NoError(t, svc.OnVetoRejected(ctx, "u1"))
	assert.Len(t, repo.flags, 1)
}

func TestAutoFlagSweep(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.rejectedVetoes["u1"] = 5
	repo.rejectedVetoes["u2"] = 7
	repo.rejectedVetoes["u3"] = 2
	ctx := context.Background()

	flagged, err := svc.AutoFlagNegativeVetoUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, flagged)
	assert.Len(t, repo.flags, 2)
	assert.Nil(t, activeFlagFor(repo, "u3"))

	// Idempotent: a second sweep finds nobody new.
	flagged, err = svc.AutoFlagNegativeVetoUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, flagged)
}

func TestFlagAccountDuplicateConflict(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	f, err := svc.FlagAccount(ctx, "u1", "", "spammy behavior")
	require.NoError(t, err)
	assert.Equal(t, ReasonManualReview, f.Reason)

	_, err = svc.FlagAccount(ctx, "u1", "", "again")
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestReviewDismiss(t *testing.T) {
	svc, repo, banner := newTestService()
	ctx := context.Background()

	f, err := svc.FlagAccount(ctx, "u1", "", "looked off")
	require.NoError(t, err)

	reviewed, err := svc.Review(ctx, f.ID, "mod1", ResolutionDismiss, "false positive")
	require.NoError(t, err)
	assert.Equal(t, StatusDismissed, reviewed.Status)
	require.NotNil(t, reviewed.Resolution)
	assert.Equal(t, ResolutionDismiss, *reviewed.Resolution)
	assert.Empty(t, banner.banned)

	// User can be flagged again after resolution.
	_, err = svc.FlagAccount(ctx, "u1", "", "relapsed")
	require.NoError(t, err)
	assert.Len(t, repo.flags, 2)
}

func TestReviewClaimsPendingFlag(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	f, err := svc.FlagAccount(ctx, "u1", "", "looked off")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, repo.flags[f.ID].Status)

	reviewed, err := svc.Review(ctx, f.ID, "mod1", ResolutionWarn, "warned")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, reviewed.Status)

	// The flag passed through REVIEWING before the resolution landed.
	assert.Equal(t, []string{f.ID}, repo.claims)
	require.NotNil(t, reviewed.ReviewedByID)
	assert.Equal(t, "mod1", *reviewed.ReviewedByID)
}

func TestReviewBanEscalates(t *testing.T) {
	svc, _, banner := newTestService()
	ctx := context.Background()

	f, err := svc.FlagAccount(ctx, "u1", "", "vote manipulation")
	require.NoError(t, err)

	reviewed, err := svc.Review(ctx, f.ID, "mod1", ResolutionBan, "clear abuse")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, reviewed.Status)
	assert.Equal(t, []string{"u1"}, banner.banned)
}

func TestReviewGuards(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	f, err := svc.FlagAccount(ctx, "u1", "", "details")
	require.NoError(t, err)

	_, err = svc.Review(ctx, f.ID, "mod1", "exile", "")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = svc.Review(ctx, "missing", "mod1", ResolutionWarn, "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	// The flagged user cannot clear their own flag.
	_, err = svc.Review(ctx, f.ID, "u1", ResolutionDismiss, "")
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	_, err = svc.Review(ctx, f.ID, "mod1", ResolutionWarn, "warned")
	require.NoError(t, err)

	// Already resolved.
	_, err = svc.Review(ctx, f.ID, "mod2", ResolutionWarn, "")
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestHasActiveFlagLifecycle(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	active, err := svc.HasActiveFlag(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, active)

	f, err := svc.FlagAccount(ctx, "u1", "", "details")
	require.NoError(t, err)

	active, err = svc.HasActiveFlag(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, active)

	_, err = svc.Review(ctx, f.ID, "mod1", ResolutionDismiss, "")
	require.NoError(t, err)

	active, err = svc.HasActiveFlag(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, active)
}
