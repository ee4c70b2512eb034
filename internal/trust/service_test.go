// AngelaMos | 2026
// service_test.go

package trust

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/someoneelse131/purfacted-sub003/internal/config"
	"github.com/someoneelse131/purfacted-sub003/internal/core"
)

type fakeRepo struct {
	events []TrustEvent
	scores map[string]float64
	sets   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{scores: map[string]float64{}}
}

func (f *fakeRepo) Apply(_ context.Context, event *TrustEvent) (float64, error) {
	if _, ok := f.scores[event.UserID]; !ok {
		return 0, core.ErrNotFound
	}
	f.events = append(f.events, *event)
	f.scores[event.UserID] += float64(event.Delta)
	return f.scores[event.UserID], nil
}

func (f *fakeRepo) SumDeltas(_ context.Context, userID string) (float64, error) {
	var sum float64
	for _, e := range f.events {
		if e.UserID == userID {
			sum += float64(e.Delta)
		}
	}
	return sum, nil
}

func (f *fakeRepo) GetScore(_ context.Context, userID string) (float64, error) {
	score, ok := f.scores[userID]
	if !ok {
		return 0, core.ErrNotFound
	}
	return score, nil
}

func (f *fakeRepo) SetScore(_ context.Context, userID string, score float64) error {
	if _, ok := f.scores[userID]; !ok {
		return core.ErrNotFound
	}
	f.scores[userID] = score
	f.sets++
	return nil
}

func (f *fakeRepo) EventsForUser(
	_ context.Context,
	userID string,
	limit int,
) ([]TrustEvent, error) {
	var out []TrustEvent
	for _, e := range f.events {
		if e.UserID == userID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func newLedger(repo Repository) *Ledger {
	return NewLedger(repo, config.NewProvider(config.Defaults()))
}

func TestApplyEventCreditsConfiguredDelta(t *testing.T) {
	repo := newFakeRepo()
	repo.scores["u1"] = 0
	ledger := newLedger(repo)

	score, err := ledger.ApplyEvent(context.Background(), "u1", ActionFactApproved)
	require.NoError(t, err)
	assert.InDelta(t, 10, score, 1e-9)

	score, err = ledger.ApplyEvent(context.Background(), "u1", ActionVetoFail)
	require.NoError(t, err)
	assert.InDelta(t, 5, score, 1e-9)

	require.Len(t, repo.events, 2)
	assert.Equal(t, ActionFactApproved, repo.events[0].Action)
	assert.Equal(t, 10, repo.events[0].Delta)
	assert.Equal(t, -5, repo.events[1].Delta)
	assert.NotEmpty(t, repo.events[0].ID)
}

func TestApplyEventUnknownAction(t *testing.T) {
	repo := newFakeRepo()
	repo.scores["u1"] = 0
	ledger := newLedger(repo)

	_, err := ledger.ApplyEvent(context.Background(), "u1", "KARMA_BONUS")
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Empty(t, repo.events)
}

func TestApplyEventMissingUser(t *testing.T) {
	ledger := newLedger(newFakeRepo())

	_, err := ledger.ApplyEvent(context.Background(), "ghost", ActionUpvoted)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReconcileRepairsDrift(t *testing.T) {
	repo := newFakeRepo()
	repo.scores["u1"] = 0
	ledger := newLedger(repo)

	_, err := ledger.ApplyEvent(context.Background(), "u1", ActionVetoSuccess)
	require.NoError(t, err)
	_, err = ledger.ApplyEvent(context.Background(), "u1", ActionUpvoted)
	require.NoError(t, err)

	// Simulate a cached score that lost an update.
	repo.scores["u1"] = 2

	result, err := ledger.Reconcile(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, result.Drifted)
	assert.True(t, result.Repaired)
	assert.InDelta(t, 2, result.CachedScore, 1e-9)
	assert.InDelta(t, 6, result.LedgerSum, 1e-9)
	assert.InDelta(t, 6, repo.scores["u1"], 1e-9)
}

func TestReconcileLeavesConsistentScoreAlone(t *testing.T) {
	repo := newFakeRepo()
	repo.scores["u1"] = 0
	ledger := newLedger(repo)

	_, err := ledger.ApplyEvent(context.Background(), "u1", ActionVerificationCorrect)
	require.NoError(t, err)

	result, err := ledger.Reconcile(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, result.Drifted)
	assert.False(t, result.Repaired)
	assert.Zero(t, repo.sets)
}

func TestEventsClampsLimit(t *testing.T) {
	repo := newFakeRepo()
	repo.scores["u1"] = 0
	ledger := newLedger(repo)

	for range 60 {
		_, err := ledger.ApplyEvent(context.Background(), "u1", ActionUpvoted)
		require.NoError(t, err)
	}

	events, err := ledger.Events(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Len(t, events, 50)

	events, err = ledger.Events(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestReconcileSurfacesRepoErrors(t *testing.T) {
	ledger := newLedger(newFakeRepo())

	_, err := ledger.Reconcile(context.Background(), "ghost")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}
