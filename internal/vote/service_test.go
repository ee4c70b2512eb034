// AngelaMos | 2026
// service_test.go

package vote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/someoneelse131/purfacted-sub003/internal/ban"
	"github.com/someoneelse131/purfacted-sub003/internal/config"
	"github.com/someoneelse131/purfacted-sub003/internal/core"
	"github.com/someoneelse131/purfacted-sub003/internal/trust"
	"github.com/someoneelse131/purfacted-sub003/internal/user"
)

type fakeRepo struct {
	votes   map[string]*Vote
	scores  map[string]float64
	authors map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		votes:   map[string]*Vote{},
		scores:  map[string]float64{},
		authors: map[string]string{},
	}
}

func voteKey(voterID, targetType, targetID string) string {
	return voterID + "/" + targetType + "/" + targetID
}

func (f *fakeRepo) Cast(
	_ context.Context,
	v *Vote,
	target Target,
) (*CastResult, error) {
	targetKey := target.Kind() + "/" + target.TargetID()
	if _, ok := f.authors[targetKey]; !ok {
		return nil, core.ErrNotFound
	}

	key := voteKey(v.VoterID, v.TargetType, v.TargetID)
	var prev float64
	created := true
	if existing, ok := f.votes[key]; ok {
		prev = float64(existing.Value) * existing.Weight
		created = false
	}

	copied := *v
	f.votes[key] = &copied
	f.scores[targetKey] += float64(v.Value)*v.Weight - prev

	return &CastResult{
		Vote:     &copied,
		Created:  created,
		NewScore: f.scores[targetKey],
		AuthorID: f.authors[targetKey],
	}, nil
}

func (f *fakeRepo) Get(
	_ context.Context,
	voterID, targetType, targetID string,
) (*Vote, error) {
	v, ok := f.votes[voteKey(voterID, targetType, targetID)]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *v
	return &copied, nil
}

func (f *fakeRepo) ListByTarget(
	_ context.Context,
	targetType, targetID string,
) ([]Vote, error) {
	var out []Vote
	for _, v := range f.votes {
		if v.TargetType == targetType && v.TargetID == targetID {
			out = append(out, *v)
		}
	}
	return out, nil
}

type fakeVoters struct {
	users map[string]*user.User
}

func (f *fakeVoters) GetUser(_ context.Context, id string) (*user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return u, nil
}

type fakeFlags struct {
	flagged map[string]bool
}

func (f *fakeFlags) HasActiveFlag(_ context.Context, userID string) (bool, error) {
	return f.flagged[userID], nil
}

type fakeBans struct {
	banned map[string]bool
}

func (f *fakeBans) IsUserBanned(_ context.Context, userID string) (bool, error) {
	return f.banned[userID], nil
}

type fakeVetoes struct {
	calls []string
	err   error
}

func (f *fakeVetoes) VoteOnVeto(
	_ context.Context,
	userID, vetoID string,
	value int,
) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, userID+"/"+vetoID)
	return nil
}

type fakeTrustRepo struct {
	events []trust.TrustEvent
}

func (f *fakeTrustRepo) Apply(
	_ context.Context,
	event *trust.TrustEvent,
) (float64, error) {
	f.events = append(f.events, *event)
	return float64(event.Delta), nil
}

func (f *fakeTrustRepo) SumDeltas(context.Context, string) (float64, error) {
	return 0, nil
}

func (f *fakeTrustRepo) GetScore(context.Context, string) (float64, error) {
	return 0, nil
}

func (f *fakeTrustRepo) SetScore(context.Context, string, float64) error {
	return nil
}

func (f *fakeTrustRepo) EventsForUser(
	context.Context,
	string,
	int,
) ([]trust.TrustEvent, error) {
	return nil, nil
}

type fixture struct {
	svc       *Service
	repo      *fakeRepo
	voters    *fakeVoters
	flags     *fakeFlags
	bans      *fakeBans
	vetoes    *fakeVetoes
	trustRepo *fakeTrustRepo
	cfg       *config.Config
}

func newFixture() *fixture {
	cfg := config.Defaults()
	prov := config.NewProvider(cfg)
	repo := newFakeRepo()
	voters := &fakeVoters{users: map[string]*user.User{}}
	flags := &fakeFlags{flagged: map[string]bool{}}
	bans := &fakeBans{banned: map[string]bool{}}
	vetoes := &fakeVetoes{}
	trustRepo := &fakeTrustRepo{}

	svc := NewService(
		repo,
		trust.NewCalculator(prov),
		trust.NewLedger(trustRepo, prov),
		voters,
		flags,
		bans,
		vetoes,
		ban.NewHasher("test-salt"),
		nil,
		prov,
	)

	return &fixture{
		svc:       svc,
		repo:      repo,
		voters:    voters,
		flags:     flags,
		bans:      bans,
		vetoes:    vetoes,
		trustRepo: trustRepo,
		cfg:       cfg,
	}
}

func (fx *fixture) addVoter(id, userType string, trustScore float64) {
	fx.voters.users[id] = &user.User{
		ID:         id,
		UserType:   userType,
		TrustScore: trustScore,
	}
}

func (fx *fixture) addFact(id, authorID string) {
	fx.repo.authors[KindFact+"/"+id] = authorID
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		kind string
		want string
		ok   bool
	}{
		{KindFact, KindFact, true},
		{KindDiscussion, KindDiscussion, true},
		{KindComment, KindComment, true},
		{KindVeto, KindVeto, true},
		{"poll", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			target, ok := ParseTarget(tt.kind, "x-1")
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, target.Kind())
				assert.Equal(t, "x-1", target.TargetID())
			}
		})
	}
}

func TestCastValueValidation(t *testing.T) {
	fx := newFixture()
	fx.addVoter("u1", user.TypeVerified, 0)
	fx.addFact("f1", "author")

	for _, bad := range []int{0, 2, -3} {
		_, err := fx.svc.Cast(
			context.Background(), "u1", FactTarget{ID: "f1"}, bad)
		assert.ErrorIs(t, err, core.ErrValidation)
	}
}

func TestCastAppliesTrustWeight(t *testing.T) {
	fx := newFixture()
	fx.addVoter("u1", user.TypeVerified, 60) // 2.0 * 1.2
	fx.addFact("f1", "author")

	res, err := fx.svc.Cast(
		context.Background(), "u1", FactTarget{ID: "f1"}, 1)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.InDelta(t, 2.4, res.Vote.Weight, 1e-9)
	assert.InDelta(t, 2.4, res.NewScore, 1e-9)
}

func TestCastRevoteReplacesPriorBallot(t *testing.T) {
	fx := newFixture()
	fx.addVoter("u1", user.TypeExpert, 0) // 5.0
	fx.addFact("f1", "author")
	ctx := context.Background()

	_, err := fx.svc.Cast(ctx, "u1", FactTarget{ID: "f1"}, 1)
	require.NoError(t, err)

	res, err := fx.svc.Cast(ctx, "u1", FactTarget{ID: "f1"}, -1)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.InDelta(t, -5.0, res.NewScore, 1e-9)
}

func TestCastCreditsAuthor(t *testing.T) {
	fx := newFixture()
	fx.addVoter("u1", user.TypeVerified, 0)
	fx.addFact("f1", "author")
	ctx := context.Background()

	_, err := fx.svc.Cast(ctx, "u1", FactTarget{ID: "f1"}, 1)
	require.NoError(t, err)
	require.Len(t, fx.trustRepo.events, 1)
	assert.Equal(t, "author", fx.trustRepo.events[0].UserID)
	assert.Equal(t, trust.ActionUpvoted, fx.trustRepo.events[0].Action)

	_, err = fx.svc.Cast(ctx, "u1", FactTarget{ID: "f1"}, -1)
	require.NoError(t, err)
	require.Len(t, fx.trustRepo.events, 2)
	assert.Equal(t, trust.ActionDownvoted, fx.trustRepo.events[1].Action)
}

func TestCastSelfVoteSkipsTrustCredit(t *testing.T) {
	fx := newFixture()
	fx.addVoter("u1", user.TypeVerified, 0)
	fx.addFact("f1", "u1")

	res, err := fx.svc.Cast(
		context.Background(), "u1", FactTarget{ID: "f1"}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.NewScore, 1e-9)
	assert.Empty(t, fx.trustRepo.events)
}

func TestCastGuards(t *testing.T) {
	fx := newFixture()
	fx.addVoter("banned", user.TypeVerified, 0)
	fx.addVoter("flagged", user.TypeVerified, 0)
	fx.bans.banned["banned"] = true
	fx.flags.flagged["flagged"] = true
	fx.addFact("f1", "author")
	ctx := context.Background()

	_, err := fx.svc.Cast(ctx, "banned", FactTarget{ID: "f1"}, 1)
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	_, err = fx.svc.Cast(ctx, "flagged", FactTarget{ID: "f1"}, 1)
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	_, err = fx.svc.Cast(ctx, "ghost", FactTarget{ID: "f1"}, 1)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCastMissingTarget(t *testing.T) {
	fx := newFixture()
	fx.addVoter("u1", user.TypeVerified, 0)

	_, err := fx.svc.Cast(
		context.Background(), "u1", FactTarget{ID: "missing"}, 1)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCastVetoTargetDelegates(t *testing.T) {
	fx := newFixture()
	fx.addVoter("u1", user.TypeVerified, 0)

	res, err := fx.svc.Cast(
		context.Background(), "u1", VetoTarget{ID: "v1"}, 1)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, []string{"u1/v1"}, fx.vetoes.calls)

	// No ballot row and no aggregate move happen here.
	assert.Empty(t, fx.repo.votes)
	assert.Empty(t, fx.trustRepo.events)
}

func TestCastVetoTargetSurfacesEngineError(t *testing.T) {
	fx := newFixture()
	fx.addVoter("u1", user.TypeVerified, 0)
	fx.vetoes.err = core.ErrConflict

	_, err := fx.svc.Cast(
		context.Background(), "u1", VetoTarget{ID: "v1"}, 1)
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestCastAnonymousFeatureDisabled(t *testing.T) {
	fx := newFixture()
	fx.cfg.Trust.AnonVoteEnabled = false

	_, err := fx.svc.CastAnonymous(
		context.Background(), "203.0.113.9", FactTarget{ID: "f1"}, 1)
	assert.ErrorIs(t, err, core.ErrFeatureDisabled)
}

func TestCastAnonymousRejectsVetoTargets(t *testing.T) {
	fx := newFixture()

	_, err := fx.svc.CastAnonymous(
		context.Background(), "203.0.113.9", VetoTarget{ID: "v1"}, 1)
	assert.ErrorIs(t, err, core.ErrPermissionDenied)
}

func TestCastAnonymousValueValidation(t *testing.T) {
	fx := newFixture()

	_, err := fx.svc.CastAnonymous(
		context.Background(), "203.0.113.9", FactTarget{ID: "f1"}, 0)
	assert.ErrorIs(t, err, core.ErrValidation)
}
