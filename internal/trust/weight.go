// AngelaMos | 2026
// weight.go

package trust

import (
	"github.com/someoneelse131/purfacted-sub003/internal/config"
	"github.com/someoneelse131/purfacted-sub003/internal/user"
)

// Calculator turns (user type, trust score) into a vote weight. It is a pure
// lookup over the configured base weights and the fixed trust modifier bands;
// it never errors and never touches storage.
type Calculator struct {
	cfg *config.Provider
}

func NewCalculator(cfg *config.Provider) *Calculator {
	return &Calculator{cfg: cfg}
}

// Weight is base(userType) * Modifier(trustScore). Unknown types weigh
// nothing rather than failing: a vote from a malformed account must not be
// able to move an aggregate.
func (c *Calculator) Weight(userType string, trustScore float64) float64 {
	return c.base(userType) * Modifier(trustScore)
}

// AnonymousWeight is the fixed weight of an unauthenticated vote. There is no
// persistent trust record behind it, so the modifier does not apply.
func (c *Calculator) AnonymousWeight() float64 {
	return c.cfg.Trust().Weights.Anonymous
}

func (c *Calculator) base(userType string) float64 {
	w := c.cfg.Trust().Weights

	switch userType {
	case user.TypeAnonymous:
		return w.Anonymous
	case user.TypeVerified:
		return w.Verified
	case user.TypeExpert:
		return w.Expert
	case user.TypePhD:
		return w.PhD
	case user.TypeOrganization:
		return w.Organization
	case user.TypeModerator:
		return w.Moderator
	default:
		return 0
	}
}

// Modifier is the trust step function. Band edges are inclusive on the lower
// bound: a score of exactly 50 earns 1.2, exactly -50 earns 0.25.
func Modifier(trustScore float64) float64 {
	switch {
	case trustScore >= 100:
		return 1.5
	case trustScore >= 50:
		return 1.2
	case trustScore >= 0:
		return 1.0
	case trustScore >= -25:
		return 0.5
	case trustScore >= -50:
		return 0.25
	default:
		return 0
	}
}
