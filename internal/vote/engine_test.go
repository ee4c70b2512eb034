// AngelaMos | 2026
// engine_test.go

package vote

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/someoneelse131/purfacted-sub003/internal/ban"
	"github.com/someoneelse131/purfacted-sub003/internal/config"
	"github.com/someoneelse131/purfacted-sub003/internal/core"
	accountflag "github.com/someoneelse131/purfacted-sub003/internal/flag"
	"github.com/someoneelse131/purfacted-sub003/internal/trust"
	"github.com/someoneelse131/purfacted-sub003/internal/user"
	"github.com/someoneelse131/purfacted-sub003/internal/veto"
)

// The engine fakes below keep live state across services so the real trust
// ledger, veto lifecycle, flag sweep and vote casting can be composed and
// driven end to end.

type engineTrustStore struct {
	scores map[string]float64
	events []trust.TrustEvent
}

func (s *engineTrustStore) Apply(
	_ context.Context,
	event *trust.TrustEvent,
) (float64, error) {
	if _, ok := s.scores[event.UserID]; !ok {
		return 0, core.ErrNotFound
	}
	s.scores[event.UserID] += float64(event.Delta)
	s.events = append(s.events, *event)
	return s.scores[event.UserID], nil
}

func (s *engineTrustStore) SumDeltas(
	_ context.Context,
	userID string,
) (float64, error) {
	return s.scores[userID], nil
}

func (s *engineTrustStore) GetScore(
	_ context.Context,
	userID string,
) (float64, error) {
	score, ok := s.scores[userID]
	if !ok {
		return 0, core.ErrNotFound
	}
	return score, nil
}

func (s *engineTrustStore) SetScore(
	_ context.Context,
	userID string,
	score float64,
) error {
	s.scores[userID] = score
	return nil
}

func (s *engineTrustStore) EventsForUser(
	context.Context,
	string,
	int,
) ([]trust.TrustEvent, error) {
	return nil, nil
}

// engineDirectory reads trust scores live from the store, so ledger updates
// show up in the next weight computation.
type engineDirectory struct {
	types map[string]string
	store *engineTrustStore
}

func (d *engineDirectory) GetUser(
	_ context.Context,
	id string,
) (*user.User, error) {
	userType, ok := d.types[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &user.User{
		ID:         id,
		UserType:   userType,
		TrustScore: d.store.scores[id],
	}, nil
}

type engineVetoRepo struct {
	vetoes map[string]*veto.Veto
	votes  map[string]map[string]*veto.VetoVote
}

func newEngineVetoRepo() *engineVetoRepo {
	return &engineVetoRepo{
		vetoes: map[string]*veto.Veto{},
		votes:  map[string]map[string]*veto.VetoVote{},
	}
}

func (r *engineVetoRepo) Create(_ context.Context, v *veto.Veto) error {
	copied := *v
	copied.CreatedAt = time.Now()
	r.vetoes[v.ID] = &copied
	return nil
}

func (r *engineVetoRepo) GetByID(
	_ context.Context,
	id string,
) (*veto.Veto, error) {
	v, ok := r.vetoes[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *v
	return &copied, nil
}

func (r *engineVetoRepo) UpsertVote(
	_ context.Context,
	vote *veto.VetoVote,
) error {
	v, ok := r.vetoes[vote.VetoID]
	if !ok || v.Status != veto.StatusPending {
		return core.ErrConflict
	}
	if r.votes[vote.VetoID] == nil {
		r.votes[vote.VetoID] = map[string]*veto.VetoVote{}
	}
	copied := *vote
	r.votes[vote.VetoID][vote.VoterID] = &copied
	return nil
}

func (r *engineVetoRepo) NetWeight(
	_ context.Context,
	vetoID string,
) (float64, error) {
	var net float64
	for _, vv := range r.votes[vetoID] {
		net += float64(vv.Value) * vv.Weight
	}
	return net, nil
}

func (r *engineVetoRepo) ResolveIfPending(
	_ context.Context,
	vetoID, status string,
) (bool, error) {
	v, ok := r.vetoes[vetoID]
	if !ok || v.Status != veto.StatusPending {
		return false, nil
	}
	now := time.Now()
	v.Status = status
	v.ResolvedAt = &now
	return true, nil
}

func (r *engineVetoRepo) ListByFact(
	_ context.Context,
	factID string,
) ([]veto.Veto, error) {
	var out []veto.Veto
	for _, v := range r.vetoes {
		if v.FactID == factID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (r *engineVetoRepo) countRejectedBy(userID string) int {
	n := 0
	for _, v := range r.vetoes {
		if v.SubmitterID == userID && v.Status == veto.StatusRejected {
			n++
		}
	}
	return n
}

// engineFlagRepo counts rejections straight off the veto store, the same
// join the SQL repository runs.
type engineFlagRepo struct {
	flags  map[string]*accountflag.AccountFlag
	vetoes *engineVetoRepo
}

func (r *engineFlagRepo) Create(
	_ context.Context,
	f *accountflag.AccountFlag,
) error {
	for _, existing := range r.flags {
		if existing.UserID == f.UserID && existing.Active() {
			return core.ErrConflict
		}
	}
	copied := *f
	copied.CreatedAt = time.Now()
	r.flags[f.ID] = &copied
	return nil
}

func (r *engineFlagRepo) GetByID(
	_ context.Context,
	id string,
) (*accountflag.AccountFlag, error) {
	f, ok := r.flags[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *f
	return &copied, nil
}

func (r *engineFlagRepo) HasActive(
	_ context.Context,
	userID string,
) (bool, error) {
	for _, f := range r.flags {
		if f.UserID == userID && f.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (r *engineFlagRepo) MarkReviewing(
	_ context.Context,
	flagID, reviewerID string,
) (bool, error) {
	f, ok := r.flags[flagID]
	if !ok || f.Status != accountflag.StatusPending {
		return false, nil
	}
	f.Status = accountflag.StatusReviewing
	f.ReviewedByID = &reviewerID
	return true, nil
}

func (r *engineFlagRepo) Resolve(
	_ context.Context,
	flagID, status, reviewerID, resolution, comment string,
) (bool, error) {
	f, ok := r.flags[flagID]
	if !ok || !f.Active() {
		return false, nil
	}
	now := time.Now()
	f.Status = status
	f.ReviewedByID = &reviewerID
	f.Resolution = &resolution
	f.Comment = &comment
	f.ResolvedAt = &now
	return true, nil
}

func (r *engineFlagRepo) CountRejectedVetoes(
	_ context.Context,
	userID string,
) (int, error) {
	return r.vetoes.countRejectedBy(userID), nil
}

func (r *engineFlagRepo) UsersOverRejectionThreshold(
	context.Context,
	int,
) ([]string, error) {
	return nil, nil
}

func (r *engineFlagRepo) List(
	context.Context,
	string,
	int,
) ([]accountflag.AccountFlag, error) {
	return nil, nil
}

type engineFacts struct {
	status map[string]string
}

func (f *engineFacts) Exists(_ context.Context, factID string) (bool, error) {
	_, ok := f.status[factID]
	return ok, nil
}

func (f *engineFacts) SetStatus(
	_ context.Context,
	factID, status string,
) error {
	f.status[factID] = status
	return nil
}

type nopBanner struct{}

func (nopBanner) BanUser(
	context.Context,
	string, string, string, string,
) (*ban.Ban, error) {
	return &ban.Ban{}, nil
}

type engine struct {
	votes  *Service
	vetoes *veto.Service
	flags  *accountflag.Service
	ledger *trust.Ledger
	store  *engineTrustStore
	dir    *engineDirectory
	voteDB *fakeRepo
	vetoDB *engineVetoRepo
	facts  *engineFacts
	flagDB *engineFlagRepo
}

func newEngine() *engine {
	prov := config.NewProvider(config.Defaults())
	calc := trust.NewCalculator(prov)
	store := &engineTrustStore{scores: map[string]float64{}}
	ledger := trust.NewLedger(store, prov)
	dir := &engineDirectory{types: map[string]string{}, store: store}

	vetoDB := newEngineVetoRepo()
	flagDB := &engineFlagRepo{
		flags:  map[string]*accountflag.AccountFlag{},
		vetoes: vetoDB,
	}
	flagSvc := accountflag.NewService(flagDB, nopBanner{}, prov)

	facts := &engineFacts{status: map[string]string{}}
	vetoSvc := veto.NewService(vetoDB, calc, ledger, dir, facts, flagSvc, prov)

	voteDB := newFakeRepo()
	voteSvc := NewService(
		voteDB,
		calc,
		ledger,
		dir,
		flagSvc,
		&fakeBans{banned: map[string]bool{}},
		vetoSvc,
		ban.NewHasher("test-salt"),
		nil,
		prov,
	)

	return &engine{
		votes:  voteSvc,
		vetoes: vetoSvc,
		flags:  flagSvc,
		ledger: ledger,
		store:  store,
		dir:    dir,
		voteDB: voteDB,
		vetoDB: vetoDB,
		facts:  facts,
		flagDB: flagDB,
	}
}

func (e *engine) addUser(id, userType string, trustScore float64) {
	e.dir.types[id] = userType
	e.store.scores[id] = trustScore
}

func (e *engine) addFact(id, authorID string) {
	e.facts.status[id] = "PUBLISHED"
	e.voteDB.authors[KindFact+"/"+id] = authorID
}

// Drives the full moderation pipeline through the real services: a weighted
// upvote feeding the author's ledger, a verification credit moving the
// voter's own score, then five rejected vetoes flagging the submitter and
// locking them out of voting.
func TestTrustVetoFlagLifecycle(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	e.addUser("alice", user.TypeVerified, 60)
	e.addUser("bob", user.TypeVerified, 10)
	e.addUser("org", user.TypeOrganization, 10)
	e.addUser("bad", user.TypeVerified, 20)
	e.addFact("f1", "bob")

	// Verified voter at trust 60 lands in the 1.2 modifier band.
	res, err := e.votes.Cast(ctx, "alice", FactTarget{ID: "f1"}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2.4, res.Vote.Weight, 0.001)
	assert.InDelta(t, 2.4, res.NewScore, 0.001)

	// The upvote credited the fact's author.
	assert.InDelta(t, 11.0, e.store.scores["bob"], 0.001)

	// Her verification is later confirmed correct: 60 + 3 = 63.
	score, err := e.ledger.ApplyEvent(ctx, "alice", trust.ActionVerificationCorrect)
	require.NoError(t, err)
	assert.InDelta(t, 63.0, score, 0.001)

	// Five vetoes, each driven to REJECTED by an organization downvote
	// cast through the regular voting surface.
	for i := 1; i <= 5; i++ {
		factID := fmt.Sprintf("vf%d", i)
		e.facts.status[factID] = "PUBLISHED"

		v, err := e.vetoes.Submit(
			ctx,
			factID,
			"bad",
			"cited source retracted",
			[]string{"https://example.org/retraction"},
		)
		require.NoError(t, err)

		_, err = e.votes.Cast(ctx, "org", VetoTarget{ID: v.ID}, -1)
		require.NoError(t, err)

		assert.Equal(t, veto.StatusRejected, e.vetoDB.vetoes[v.ID].Status)
		assert.Equal(t, veto.FactStatusProven, e.facts.status[factID])
	}

	// Each rejection cost 5 trust: 20 - 25 = -5.
	assert.InDelta(t, -5.0, e.store.scores["bad"], 0.001)

	// The fifth rejection crossed the threshold and raised exactly one flag.
	flagged, err := e.flags.HasActiveFlag(ctx, "bad")
	require.NoError(t, err)
	assert.True(t, flagged)
	assert.Len(t, e.flagDB.flags, 1)

	// Under review means no more ballots.
	_, err = e.votes.Cast(ctx, "bad", FactTarget{ID: "f1"}, 1)
	assert.ErrorIs(t, err, core.ErrPermissionDenied)
}
