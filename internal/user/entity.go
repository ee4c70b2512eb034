// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID            string     `db:"id"`
	Email         string     `db:"email"`
	PasswordHash  string     `db:"password_hash"`
	Name          string     `db:"name"`
	UserType      string     `db:"user_type"`
	Credential    string     `db:"credential"`
	TrustScore    float64    `db:"trust_score"`
	BanLevel      int        `db:"ban_level"`
	BannedUntil   *time.Time `db:"banned_until"`
	EmailVerified bool       `db:"email_verified"`
	TokenVersion  int        `db:"token_version"`
	LastLoginAt   *time.Time `db:"last_login_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at"`
}

// User types. ANONYMOUS never appears on a stored row; it is the synthetic
// type of an unauthenticated voter.
const (
	TypeAnonymous    = "ANONYMOUS"
	TypeVerified     = "VERIFIED"
	TypeExpert       = "EXPERT"
	TypePhD          = "PHD"
	TypeOrganization = "ORGANIZATION"
	TypeModerator    = "MODERATOR"
)

// Verified credential tiers, preserved across moderator promotion so a
// demotion can restore the right type.
const (
	CredentialNone   = "NONE"
	CredentialExpert = "EXPERT"
	CredentialPhD    = "PHD"
)

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

func (u *User) IsModerator() bool {
	return u.UserType == TypeModerator
}

func (u *User) IsOrganization() bool {
	return u.UserType == TypeOrganization
}

// DemotedType is the user type a moderator reverts to: the verified
// credential tier if one is held, otherwise plain VERIFIED.
func (u *User) DemotedType() string {
	switch u.Credential {
	case CredentialExpert:
		return TypeExpert
	case CredentialPhD:
		return TypePhD
	default:
		return TypeVerified
	}
}

func ValidUserType(t string) bool {
	switch t {
	case TypeVerified, TypeExpert, TypePhD, TypeOrganization, TypeModerator:
		return true
	default:
		return false
	}
}
