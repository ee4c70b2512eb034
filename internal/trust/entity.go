// AngelaMos | 2026
// entity.go

package trust

import (
	"time"
)

// TrustEvent is one append-only ledger row. Rows are never mutated or
// deleted; a user's cached trust_score must always equal the sum of their
// deltas and is recomputable from the log.
type TrustEvent struct {
	ID        string    `db:"id"         json:"id"`
	UserID    string    `db:"user_id"    json:"user_id"`
	Action    string    `db:"action"     json:"action"`
	Delta     int       `db:"delta"      json:"delta"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Ledger actions.
const (
	ActionFactApproved        = "FACT_APPROVED"
	ActionFactWrong           = "FACT_WRONG"
	ActionFactOutdated        = "FACT_OUTDATED"
	ActionVetoSuccess         = "VETO_SUCCESS"
	ActionVetoFail            = "VETO_FAIL"
	ActionVerificationCorrect = "VERIFICATION_CORRECT"
	ActionVerificationWrong   = "VERIFICATION_WRONG"
	ActionUpvoted             = "UPVOTED"
	ActionDownvoted           = "DOWNVOTED"
)
