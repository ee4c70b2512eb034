// AngelaMos | 2026
// entity.go

package moderator

import "time"

// Election phases by eligible population size.
const (
	PhaseBootstrap = "bootstrap"
	PhaseEarly     = "early"
	PhaseMature    = "mature"
)

// Slot statuses. A user holds at most one non-DEMOTED slot; DEMOTED rows
// remain as history.
const (
	StatusActive     = "ACTIVE"
	StatusInactive   = "INACTIVE"
	StatusWaitlisted = "WAITLISTED"
	StatusDemoted    = "DEMOTED"
)

// Slot is one moderator seat assignment. INACTIVE keeps the user's
// MODERATOR type and credential but does not count against capacity.
type Slot struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Status      string     `db:"status" json:"status"`
	AppointedBy *string    `db:"appointed_by" json:"appointed_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DemotedAt   *time.Time `db:"demoted_at" json:"demoted_at,omitempty"`
}

func (s *Slot) Held() bool {
	return s.Status == StatusActive ||
		s.Status == StatusInactive ||
		s.Status == StatusWaitlisted
}

// Candidate is an eligibility-ranked user as seen by the election queries.
type Candidate struct {
	UserID      string     `db:"user_id" json:"user_id"`
	UserType    string     `db:"user_type" json:"user_type"`
	TrustScore  float64    `db:"trust_score" json:"trust_score"`
	LastLoginAt *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// ReconcileReport summarizes one idempotent election sweep.
type ReconcileReport struct {
	Phase          string `json:"phase"`
	Population     int    `json:"population"`
	MarkedInactive int    `json:"marked_inactive"`
	AutoDemoted    int    `json:"auto_demoted"`
	Promoted       int    `json:"promoted"`
	Elected        int    `json:"elected"`
}
