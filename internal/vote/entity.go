// AngelaMos | 2026
// entity.go

package vote

import "time"

// Vote is one weighted ballot on a piece of content. One row per
// (voter, target kind, target id); re-voting updates value and weight in
// place.
type Vote struct {
	ID         string    `db:"id" json:"id"`
	VoterID    string    `db:"voter_id" json:"voter_id"`
	TargetType string    `db:"target_type" json:"target_type"`
	TargetID   string    `db:"target_id" json:"target_id"`
	Value      int       `db:"value" json:"value"`
	Weight     float64   `db:"weight" json:"weight"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

const (
	KindFact       = "fact"
	KindDiscussion = "discussion"
	KindComment    = "comment"
	KindVeto       = "veto"
)

// Target is a closed union of votable content kinds. Each variant carries
// the capability to locate its row, its author and its stored aggregate,
// so the casting routine never branches on a kind string.
type Target interface {
	Kind() string
	TargetID() string
	// aggregate keeps the union closed to this package.
	aggregate() targetAggregate
}

// targetAggregate names where a variant keeps its score and author.
type targetAggregate struct {
	table       string
	scoreColumn string
	authorCol   string
}

type FactTarget struct{ ID string }

func (t FactTarget) Kind() string     { return KindFact }
func (t FactTarget) TargetID() string { return t.ID }
func (t FactTarget) aggregate() targetAggregate {
	return targetAggregate{
		table:       "facts",
		scoreColumn: "score",
		authorCol:   "creator_id",
	}
}

type DiscussionTarget struct{ ID string }

func (t DiscussionTarget) Kind() string     { return KindDiscussion }
func (t DiscussionTarget) TargetID() string { return t.ID }
func (t DiscussionTarget) aggregate() targetAggregate {
	return targetAggregate{
		table:       "discussions",
		scoreColumn: "score",
		authorCol:   "author_id",
	}
}

type CommentTarget struct{ ID string }

func (t CommentTarget) Kind() string     { return KindComment }
func (t CommentTarget) TargetID() string { return t.ID }
func (t CommentTarget) aggregate() targetAggregate {
	return targetAggregate{
		table:       "comments",
		scoreColumn: "score",
		authorCol:   "author_id",
	}
}

// VetoTarget exists so callers can address vetoes through the same union;
// its ballots route to the veto engine, which owns resolution.
type VetoTarget struct{ ID string }

func (t VetoTarget) Kind() string     { return KindVeto }
func (t VetoTarget) TargetID() string { return t.ID }
func (t VetoTarget) aggregate() targetAggregate {
	return targetAggregate{}
}

// ParseTarget builds the union variant for a wire-level kind string.
func ParseTarget(kind, id string) (Target, bool) {
	switch kind {
	case KindFact:
		return FactTarget{ID: id}, true
	case KindDiscussion:
		return DiscussionTarget{ID: id}, true
	case KindComment:
		return CommentTarget{ID: id}, true
	case KindVeto:
		return VetoTarget{ID: id}, true
	default:
		return nil, false
	}
}

// CastResult reports what one ballot did to the target.
type CastResult struct {
	Vote     *Vote   `json:"vote"`
	Created  bool    `json:"created"`
	NewScore float64 `json:"new_score"`
	AuthorID string  `json:"-"`
}
