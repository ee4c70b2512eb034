// AngelaMos | 2026
// entity.go

package veto

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Veto statuses. PENDING is the only non-terminal state.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Fact statuses pushed back through the facts collaborator on resolution.
const (
	FactStatusDisproven = "DISPROVEN"
	FactStatusProven    = "PROVEN"
)

type Veto struct {
	ID          string     `db:"id"`
	FactID      string     `db:"fact_id"`
	SubmitterID string     `db:"submitter_id"`
	Reason      string     `db:"reason"`
	Sources     StringList `db:"sources"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ResolvedAt  *time.Time `db:"resolved_at"`
}

func (v *Veto) Resolved() bool {
	return v.Status != StatusPending
}

// VetoVote is a weighted vote on a veto. One row per (veto, voter);
// re-voting updates value and weight in place.
type VetoVote struct {
	VetoID    string    `db:"veto_id"`
	VoterID   string    `db:"voter_id"`
	Value     int       `db:"value"`
	Weight    float64   `db:"weight"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// StringList stores the source URLs as a JSONB column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	case nil:
		*l = nil
		return nil
	default:
		return fmt.Errorf("unsupported source type %T for StringList", src)
	}
}
