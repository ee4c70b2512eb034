// AngelaMos | 2026
// entity.go

package ban

import (
	"time"
)

// Ban is one immutable history row. The enforced state (ban_level,
// banned_until) lives on the user row; history is never rewritten.
type Ban struct {
	ID         string     `db:"id"`
	UserID     string     `db:"user_id"`
	Level      int        `db:"level"`
	Reason     string     `db:"reason"`
	BannedByID string     `db:"banned_by_id"`
	ExpiresAt  *time.Time `db:"expires_at"`
	CreatedAt  time.Time  `db:"created_at"`
}

const MaxLevel = 3

// BanState is the enforcement snapshot read off the user row.
type BanState struct {
	UserID      string     `db:"id"`
	Email       string     `db:"email"`
	Level       int        `db:"ban_level"`
	BannedUntil *time.Time `db:"banned_until"`
}

// Active reports whether enforcement currently applies. A level-3 ban with no
// expiry is permanent; a timed ban lapses once banned_until passes, though
// the level history is retained.
func (s *BanState) Active(now time.Time) bool {
	if s.Level == 0 {
		return false
	}
	if s.BannedUntil == nil {
		return s.Level >= MaxLevel
	}
	return s.BannedUntil.After(now)
}
