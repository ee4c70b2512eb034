// AngelaMos | 2026
// service_test.go

package ban

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/someoneelse131/purfacted-sub003/internal/config"
	"github.com/someoneelse131/purfacted-sub003/internal/core"
)

type fakeRepo struct {
	states  map[string]*BanState
	history map[string][]Ban
	emails  map[string]bool
	ips     map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		states:  map[string]*BanState{},
		history: map[string][]Ban{},
		emails:  map[string]bool{},
		ips:     map[string]bool{},
	}
}

func (f *fakeRepo) GetBanState(_ context.Context, userID string) (*BanState, error) {
	state, ok := f.states[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *state
	return &copied, nil
}

func (f *fakeRepo) Escalate(
	_ context.Context,
	b *Ban,
	fromLevel int,
	emailHash, ipHash string,
) error {
	state := f.states[b.UserID]
	if state == nil || state.Level != fromLevel {
		return core.ErrConflict
	}
	state.Level = b.Level
	state.BannedUntil = b.ExpiresAt
	f.history[b.UserID] = append(f.history[b.UserID], *b)
	if emailHash != "" {
		f.emails[emailHash] = true
	}
	if ipHash != "" {
		f.ips[ipHash] = true
	}
	return nil
}

func (f *fakeRepo) ClearExpiry(_ context.Context, userID string) error {
	state, ok := f.states[userID]
	if !ok {
		return core.ErrNotFound
	}
	state.BannedUntil = nil
	return nil
}

func (f *fakeRepo) History(_ context.Context, userID string) ([]Ban, error) {
	return f.history[userID], nil
}

func (f *fakeRepo) IsEmailBlocked(_ context.Context, hash string) (bool, error) {
	return f.emails[hash], nil
}

func (f *fakeRepo) IsIPBlocked(_ context.Context, hash string) (bool, error) {
	return f.ips[hash], nil
}

func newTestService(repo Repository) (*Service, time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(repo, NewHasher("test-salt"), config.NewProvider(config.Defaults()))
	svc.now = func() time.Time { return now }
	return svc, now
}

func TestBanUserEscalatesThroughLevels(t *testing.T) {
	repo := newFakeRepo()
	repo.states["u1"] = &BanState{UserID: "u1", Email: "u1@example.com"}
	svc, now := newTestService(repo)
	ctx := context.Background()

	b, err := svc.BanUser(ctx, "u1", "spam", "mod1", "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Level)
	require.NotNil(t, b.ExpiresAt)
	assert.Equal(t, now.Add(3*24*time.Hour), *b.ExpiresAt)
	assert.Empty(t, repo.emails)

	b, err = svc.BanUser(ctx, "u1", "spam again", "mod1", "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Level)
	require.NotNil(t, b.ExpiresAt)
	assert.Equal(t, now.Add(30*24*time.Hour), *b.ExpiresAt)

	b, err = svc.BanUser(ctx, "u1", "incorrigible", "mod1", "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, 3, b.Level)
	assert.Nil(t, b.ExpiresAt)

	// Level 3 poisons both blocklists.
	hasher := NewHasher("test-salt")
	assert.True(t, repo.emails[hasher.HashEmail("u1@example.com")])
	assert.True(t, repo.ips[hasher.HashIP("203.0.113.7")])

	_, err = svc.BanUser(ctx, "u1", "one more", "mod1", "")
	assert.ErrorIs(t, err, core.ErrConflict)

	history, err := svc.History(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestBanUserLevelThreeWithoutIP(t *testing.T) {
	repo := newFakeRepo()
	repo.states["u1"] = &BanState{UserID: "u1", Email: "u1@example.com", Level: 2}
	svc, _ := newTestService(repo)

	_, err := svc.BanUser(context.Background(), "u1", "final", "mod1", "")
	require.NoError(t, err)
	assert.Len(t, repo.emails, 1)
	assert.Empty(t, repo.ips)
}

func TestIsUserBanned(t *testing.T) {
	repo := newFakeRepo()
	svc, now := newTestService(repo)
	ctx := context.Background()

	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	repo.states["clean"] = &BanState{UserID: "clean"}
	repo.states["timed"] = &BanState{UserID: "timed", Level: 1, BannedUntil: &future}
	repo.states["lapsed"] = &BanState{UserID: "lapsed", Level: 2, BannedUntil: &past}
	repo.states["permanent"] = &BanState{UserID: "permanent", Level: 3}

	tests := []struct {
		userID string
		want   bool
	}{
		{"clean", false},
		{"timed", true},
		{"lapsed", false},
		{"permanent", true},
	}

	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			banned, err := svc.IsUserBanned(ctx, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, banned)
		})
	}
}

func TestUnbanUserLiftsTimedBan(t *testing.T) {
	repo := newFakeRepo()
	svc, now := newTestService(repo)
	future := now.Add(48 * time.Hour)
	repo.states["u1"] = &BanState{UserID: "u1", Level: 1, BannedUntil: &future}

	require.NoError(t, svc.UnbanUser(context.Background(), "u1"))
	assert.Nil(t, repo.states["u1"].BannedUntil)

	banned, err := svc.IsUserBanned(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestUnbanUserRefusesPermanentBan(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	repo.states["u1"] = &BanState{UserID: "u1", Level: 3}

	err := svc.UnbanUser(context.Background(), "u1")
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestCheckRegistrationBlocksHashedIdentifiers(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()
	hasher := NewHasher("test-salt")

	require.NoError(t, svc.CheckRegistration(ctx, "fresh@example.com", "198.51.100.4"))

	repo.emails[hasher.HashEmail("banned@example.com")] = true
	err := svc.CheckRegistration(ctx, "Banned@Example.com", "")
	assert.ErrorIs(t, err, core.ErrForbidden)

	repo.ips[hasher.HashIP("198.51.100.9")] = true
	err = svc.CheckRegistration(ctx, "fresh@example.com", "198.51.100.9")
	assert.ErrorIs(t, err, core.ErrForbidden)
}
