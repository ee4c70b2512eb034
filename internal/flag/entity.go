// AngelaMos | 2026
// entity.go

package flag

import (
	"time"
)

// AccountFlag statuses. PENDING and REVIEWING are "active": at most one
// active flag exists per user, enforced by a partial unique index.
const (
	StatusPending   = "PENDING"
	StatusReviewing = "REVIEWING"
	StatusResolved  = "RESOLVED"
	StatusDismissed = "DISMISSED"
)

// Flag reasons.
const (
	ReasonNegativeVetoThreshold = "NEGATIVE_VETO_THRESHOLD"
	ReasonManualReview          = "MANUAL_REVIEW"
)

// Review resolutions.
const (
	ResolutionDismiss = "dismiss"
	ResolutionWarn    = "warn"
	ResolutionBan     = "ban"
)

type AccountFlag struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	Reason       string     `db:"reason"`
	Details      string     `db:"details"`
	Status       string     `db:"status"`
	ReviewedByID *string    `db:"reviewed_by_id"`
	Resolution   *string    `db:"resolution"`
	Comment      *string    `db:"comment"`
	CreatedAt    time.Time  `db:"created_at"`
	ResolvedAt   *time.Time `db:"resolved_at"`
}

func (f *AccountFlag) Active() bool {
	return f.Status == StatusPending || f.Status == StatusReviewing
}

func ValidResolution(r string) bool {
	switch r {
	case ResolutionDismiss, ResolutionWarn, ResolutionBan:
		return true
	default:
		return false
	}
}
