// AngelaMos | 2026
// service_test.go

package moderator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/someoneelse131/purfacted-sub003/internal/config"
	"github.com/someoneelse131/purfacted-sub003/internal/core"
	"github.com/someoneelse131/purfacted-sub003/internal/user"
)

type fakeRepo struct {
	mu         sync.Mutex
	eligible   int
	trusted    int
	cutoff     float64
	haveCutoff bool
	slots      map[string]*Slot
	cands      map[string]Candidate
	ranking    []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		slots: map[string]*Slot{},
		cands: map[string]Candidate{},
	}
}

func (f *fakeRepo) countActive() int {
	n := 0
	for _, s := range f.slots {
		if s.Status == StatusActive {
			n++
		}
	}
	return n
}

func (f *fakeRepo) CountActive(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countActive(), nil
}

func (f *fakeRepo) CountEligible(context.Context) (int, error) {
	return f.eligible, nil
}

func (f *fakeRepo) CountTrusted(context.Context, float64) (int, error) {
	return f.trusted, nil
}

func (f *fakeRepo) CutoffScore(
	context.Context,
	float64,
) (float64, bool, error) {
	return f.cutoff, f.haveCutoff, nil
}

func (f *fakeRepo) TopCandidates(
	_ context.Context,
	limit int,
) ([]Candidate, error) {
	var out []Candidate
	for _, userID := range f.ranking {
		if len(out) >= limit {
			break
		}
		out = append(out, f.cands[userID])
	}
	return out, nil
}

func (f *fakeRepo) InsertActive(
	_ context.Context,
	slot *Slot,
	maxActive int,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.slots[slot.UserID]; ok && existing.Held() {
		return core.ErrConflict
	}
	if f.countActive() >= maxActive {
		return core.ErrCapacityExceeded
	}
	copied := *slot
	copied.Status = StatusActive
	f.slots[slot.UserID] = &copied
	return nil
}

func (f *fakeRepo) InsertWaitlisted(_ context.Context, slot *Slot) error {
	if existing, ok := f.slots[slot.UserID]; ok && existing.Held() {
		return core.ErrConflict
	}
	copied := *slot
	copied.Status = StatusWaitlisted
	f.slots[slot.UserID] = &copied
	return nil
}

func (f *fakeRepo) GetHeldByUser(
	_ context.Context,
	userID string,
) (*Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[userID]
	if !ok || !s.Held() {
		return nil, core.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeRepo) SetStatus(
	_ context.Context,
	userID, from, to string,
) (bool, error) {
	s, ok := f.slots[userID]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	return true, nil
}

func (f *fakeRepo) ActivateIfCapacity(
	_ context.Context,
	userID, from string,
	maxActive int,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[userID]
	if !ok || s.Status != from {
		return false, nil
	}
	if f.countActive() >= maxActive {
		return false, nil
	}
	s.Status = StatusActive
	return true, nil
}

func (f *fakeRepo) Demote(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[userID]
	if !ok || !s.Held() {
		return false, nil
	}
	s.Status = StatusDemoted
	return true, nil
}

func (f *fakeRepo) byStatus(status string) []Candidate {
	var out []Candidate
	for userID, s := range f.slots {
		if s.Status == status {
			out = append(out, f.cands[userID])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TrustScore > out[j].TrustScore
	})
	return out
}

func (f *fakeRepo) LowestActive(context.Context) (*Candidate, error) {
	active := f.byStatus(StatusActive)
	if len(active) == 0 {
		return nil, core.ErrNotFound
	}
	lowest := active[len(active)-1]
	return &lowest, nil
}

func (f *fakeRepo) ActiveModerators(context.Context) ([]Candidate, error) {
	return f.byStatus(StatusActive), nil
}

func (f *fakeRepo) Waitlist(context.Context) ([]Candidate, error) {
	return f.byStatus(StatusWaitlisted), nil
}

type fakeDirectory struct {
	mu      sync.Mutex
	users   map[string]*user.User
	failSet bool
}

func (f *fakeDirectory) GetByID(
	_ context.Context,
	id string,
) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeDirectory) SetUserType(
	_ context.Context,
	id, fromType, toType string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return core.ErrConflict
	}
	u, ok := f.users[id]
	if !ok {
		return core.ErrNotFound
	}
	if u.UserType != fromType {
		return core.ErrConflict
	}
	u.UserType = toType
	return nil
}

type fixture struct {
	svc  *Service
	repo *fakeRepo
	dir  *fakeDirectory
	now  time.Time
	cfg  *config.Config
	prov *config.Provider
}

func newFixture() *fixture {
	cfg := config.Defaults()
	prov := config.NewProvider(cfg)
	repo := newFakeRepo()
	dir := &fakeDirectory{users: map[string]*user.User{}}
	svc := NewService(repo, dir, prov)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return &fixture{svc: svc, repo: repo, dir: dir, now: now, cfg: cfg, prov: prov}
}

func (fx *fixture) addUser(id, userType, credential string, trustScore float64) {
	fx.dir.users[id] = &user.User{
		ID:         id,
		UserType:   userType,
		Credential: credential,
		TrustScore: trustScore,
	}
	lastLogin := fx.now.Add(-time.Hour)
	fx.repo.cands[id] = Candidate{
		UserID:      id,
		UserType:    userType,
		TrustScore:  trustScore,
		LastLoginAt: &lastLogin,
		CreatedAt:   fx.now.AddDate(0, -6, 0),
	}
}

func (fx *fixture) addActiveModerator(id string, trustScore float64) {
	fx.addUser(id, user.TypeModerator, user.CredentialNone, trustScore)
	fx.repo.slots[id] = &Slot{ID: "slot-" + id, UserID: id, Status: StatusActive}
}

func TestPhaseBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		eligible int
		trusted  int
		want     string
	}{
		{"empty pool", 0, 0, PhaseBootstrap},
		{"at bootstrap threshold", 100, 0, PhaseBootstrap},
		{"just past bootstrap", 101, 0, PhaseEarly},
		{"at early threshold", 500, 100, PhaseEarly},
		{"past early but too few trusted", 501, 99, PhaseEarly},
		{"mature", 501, 100, PhaseMature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()
			fx.repo.eligible = tt.eligible
			fx.repo.trusted = tt.trusted

			phase, err := fx.svc.Phase(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, phase)
		})
	}
}

func TestAppoint(t *testing.T) {
	fx := newFixture()
	fx.addUser("u1", user.TypeExpert, user.CredentialExpert, 40)
	ctx := context.Background()

	slot, err := fx.svc.Appoint(ctx, "u1", "admin")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, fx.repo.slots["u1"].Status)
	assert.Equal(t, user.TypeModerator, fx.dir.users["u1"].UserType)
	require.NotNil(t, slot.AppointedBy)
	assert.Equal(t, "admin", *slot.AppointedBy)

	// Already a moderator.
	_, err = fx.svc.Appoint(ctx, "u1", "admin")
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestAppointRejectsOrganizations(t *testing.T) {
	fx := newFixture()
	fx.addUser("org", user.TypeOrganization, user.CredentialNone, 90)

	_, err := fx.svc.Appoint(context.Background(), "org", "admin")
	assert.ErrorIs(t, err, core.ErrPermissionDenied)
}

func TestAppointCapacityExceeded(t *testing.T) {
	fx := newFixture()
	fx.cfg.Moderation.MaxModerators = 1
	fx.prov.Override(fx.cfg)
	fx.addActiveModerator("m1", 80)
	fx.addUser("u1", user.TypeVerified, user.CredentialNone, 70)

	_, err := fx.svc.Appoint(context.Background(), "u1", "admin")
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)
}

func TestAppointConcurrentHoldsSeatCap(t *testing.T) {
	const seats = 3
	const contenders = 12

	fx := newFixture()
	fx.cfg.Moderation.MaxModerators = seats
	fx.prov.Override(fx.cfg)
	for i := 0; i < contenders; i++ {
		fx.addUser(fmt.Sprintf("u%d", i), user.TypeVerified, user.CredentialNone, 40)
	}

	ctx := context.Background()
	errs := make(chan error, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := fx.svc.Appoint(ctx, id, "admin")
			errs <- err
		}(fmt.Sprintf("u%d", i))
	}
	wg.Wait()
	close(errs)

	seated, rejected := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			seated++
		case errors.Is(err, core.ErrCapacityExceeded):
			rejected++
		default:
			t.Fatalf("unexpected appoint error: %v", err)
		}
	}

	assert.Equal(t, seats, seated)
	assert.Equal(t, contenders-seats, rejected)
	assert.Equal(t, seats, fx.repo.countActive())
}

func TestAppointRollsBackSeatOnTypeRace(t *testing.T) {
	fx := newFixture()
	fx.addUser("u1", user.TypeVerified, user.CredentialNone, 30)
	fx.dir.failSet = true

	_, err := fx.svc.Appoint(context.Background(), "u1", "admin")
	require.Error(t, err)
	assert.Equal(t, StatusDemoted, fx.repo.slots["u1"].Status)
}

func TestDemoteRevertsCredentialTier(t *testing.T) {
	fx := newFixture()
	fx.addActiveModerator("m1", 80)
	fx.dir.users["m1"].Credential = user.CredentialPhD

	require.NoError(t, fx.svc.Demote(context.Background(), "m1"))
	assert.Equal(t, StatusDemoted, fx.repo.slots["m1"].Status)
	assert.Equal(t, user.TypePhD, fx.dir.users["m1"].UserType)
}

func TestDemoteNonModeratorConflicts(t *testing.T) {
	fx := newFixture()
	fx.addUser("u1", user.TypeVerified, user.CredentialNone, 10)

	err := fx.svc.Demote(context.Background(), "u1")
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestHandleReturningReactivates(t *testing.T) {
	fx := newFixture()
	fx.addActiveModerator("m1", 80)
	fx.repo.slots["m1"].Status = StatusInactive
	fx.repo.cutoff = 50
	fx.repo.haveCutoff = true

	require.NoError(t, fx.svc.HandleReturning(context.Background(), "m1"))
	assert.Equal(t, StatusActive, fx.repo.slots["m1"].Status)
}

func TestHandleReturningBelowCutoffDemotes(t *testing.T) {
	fx := newFixture()
	fx.addActiveModerator("m1", 20)
	fx.repo.slots["m1"].Status = StatusInactive
	fx.repo.cutoff = 50
	fx.repo.haveCutoff = true

	require.NoError(t, fx.svc.HandleReturning(context.Background(), "m1"))
	assert.Equal(t, StatusDemoted, fx.repo.slots["m1"].Status)
	assert.Equal(t, user.TypeVerified, fx.dir.users["m1"].UserType)
}

func TestHandleReturningDisplacesWeakerModerator(t *testing.T) {
	fx := newFixture()
	fx.cfg.Moderation.MaxModerators = 1
	fx.prov.Override(fx.cfg)
	fx.addActiveModerator("weak", 55)
	fx.addActiveModerator("returning", 90)
	fx.repo.slots["returning"].Status = StatusInactive
	fx.repo.cutoff = 50
	fx.repo.haveCutoff = true

	require.NoError(t, fx.svc.HandleReturning(context.Background(), "returning"))
	assert.Equal(t, StatusActive, fx.repo.slots["returning"].Status)
	assert.Equal(t, StatusDemoted, fx.repo.slots["weak"].Status)
	assert.Equal(t, user.TypeVerified, fx.dir.users["weak"].UserType)
}

func TestHandleReturningWaitlistsWhenNotStronger(t *testing.T) {
	fx := newFixture()
	fx.cfg.Moderation.MaxModerators = 1
	fx.prov.Override(fx.cfg)
	fx.addActiveModerator("strong", 95)
	fx.addActiveModerator("returning", 80)
	fx.repo.slots["returning"].Status = StatusInactive
	fx.repo.cutoff = 50
	fx.repo.haveCutoff = true

	require.NoError(t, fx.svc.HandleReturning(context.Background(), "returning"))
	assert.Equal(t, StatusWaitlisted, fx.repo.slots["returning"].Status)
	assert.Equal(t, StatusActive, fx.repo.slots["strong"].Status)
}

func TestHandleReturningRequiresInactiveSlot(t *testing.T) {
	fx := newFixture()
	fx.addActiveModerator("m1", 80)

	err := fx.svc.HandleReturning(context.Background(), "m1")
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestReconcileMarksStaleModeratorsInactive(t *testing.T) {
	fx := newFixture()
	fx.repo.eligible = 50
	fx.addActiveModerator("fresh", 80)
	fx.addActiveModerator("stale", 70)
	staleLogin := fx.now.AddDate(0, 0, -31)
	cand := fx.repo.cands["stale"]
	cand.LastLoginAt = &staleLogin
	fx.repo.cands["stale"] = cand

	report, err := fx.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseBootstrap, report.Phase)
	assert.Equal(t, 1, report.MarkedInactive)
	assert.Equal(t, StatusInactive, fx.repo.slots["stale"].Status)
	assert.Equal(t, StatusActive, fx.repo.slots["fresh"].Status)
	// Bootstrap phase never auto-demotes on trust.
	assert.Zero(t, report.AutoDemoted)
}

func TestReconcileAutoDemotesBelowCutoff(t *testing.T) {
	fx := newFixture()
	fx.repo.eligible = 200 // early phase
	fx.repo.cutoff = 60
	fx.repo.haveCutoff = true
	fx.addActiveModerator("high", 85)
	fx.addActiveModerator("low", 30)

	report, err := fx.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseEarly, report.Phase)
	assert.Equal(t, 1, report.AutoDemoted)
	assert.Equal(t, StatusDemoted, fx.repo.slots["low"].Status)
	assert.Equal(t, StatusActive, fx.repo.slots["high"].Status)
	assert.Equal(t, user.TypeVerified, fx.dir.users["low"].UserType)
}

func TestReconcilePromotesWaitlist(t *testing.T) {
	fx := newFixture()
	fx.repo.eligible = 50
	fx.addActiveModerator("queued", 75)
	fx.repo.slots["queued"].Status = StatusWaitlisted

	report, err := fx.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Promoted)
	assert.Equal(t, StatusActive, fx.repo.slots["queued"].Status)
}

func TestReconcileMatureAutoElects(t *testing.T) {
	fx := newFixture()
	fx.repo.eligible = 600
	fx.repo.trusted = 150
	fx.repo.cutoff = 60
	fx.repo.haveCutoff = true

	fx.addActiveModerator("m1", 90)
	fx.addUser("top", user.TypePhD, user.CredentialPhD, 88)
	fx.addUser("mid", user.TypeExpert, user.CredentialExpert, 65)
	fx.addUser("below", user.TypeVerified, user.CredentialNone, 40)
	fx.repo.ranking = []string{"m1", "top", "mid", "below"}

	report, err := fx.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseMature, report.Phase)
	assert.Equal(t, 2, report.Elected)

	assert.Equal(t, StatusActive, fx.repo.slots["top"].Status)
	assert.Equal(t, user.TypeModerator, fx.dir.users["top"].UserType)
	assert.Equal(t, StatusActive, fx.repo.slots["mid"].Status)

	// Below the cutoff stays a regular user.
	_, held := fx.repo.slots["below"]
	assert.False(t, held)
}

func TestReconcileMatureRespectsCapacity(t *testing.T) {
	fx := newFixture()
	fx.cfg.Moderation.MaxModerators = 1
	fx.prov.Override(fx.cfg)
	fx.repo.eligible = 600
	fx.repo.trusted = 150
	fx.repo.cutoff = 60
	fx.repo.haveCutoff = true

	fx.addActiveModerator("m1", 90)
	fx.addUser("top", user.TypePhD, user.CredentialPhD, 88)
	fx.repo.ranking = []string{"m1", "top"}

	report, err := fx.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Elected)
	_, held := fx.repo.slots["top"]
	assert.False(t, held)
}
