// AngelaMos | 2026
// weight_test.go

package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/someoneelse131/purfacted-sub003/internal/config"
	"github.com/someoneelse131/purfacted-sub003/internal/user"
)

func TestModifierBands(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  float64
	}{
		{"well above top band", 250, 1.5},
		{"exactly 100", 100, 1.5},
		{"just under 100", 99.9, 1.2},
		{"exactly 50", 50, 1.2},
		{"just under 50", 49.9, 1.0},
		{"zero", 0, 1.0},
		{"just below zero", -0.1, 0.5},
		{"exactly -25", -25, 0.5},
		{"just under -25", -25.1, 0.25},
		{"exactly -50", -50, 0.25},
		{"just under -50", -50.1, 0},
		{"deeply negative", -500, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Modifier(tt.score), 1e-9)
		})
	}
}

func TestCalculatorWeight(t *testing.T) {
	calc := NewCalculator(config.NewProvider(config.Defaults()))

	tests := []struct {
		name     string
		userType string
		score    float64
		want     float64
	}{
		{"verified neutral", user.TypeVerified, 0, 2.0},
		{"verified trusted", user.TypeVerified, 60, 2.4},
		{"expert top band", user.TypeExpert, 120, 7.5},
		{"phd top band", user.TypePhD, 150, 12.0},
		{"organization untouched by modifier edge", user.TypeOrganization, 0, 100.0},
		{"moderator neutral", user.TypeModerator, 10, 3.0},
		{"negative trust halves", user.TypeExpert, -10, 2.5},
		{"rock bottom silences", user.TypePhD, -80, 0},
		{"anonymous rock bottom", user.TypeAnonymous, -100, 0},
		{"unknown type weighs nothing", "SUPERUSER", 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calc.Weight(tt.userType, tt.score), 1e-9)
		})
	}
}

func TestAnonymousWeightIgnoresModifier(t *testing.T) {
	calc := NewCalculator(config.NewProvider(config.Defaults()))

	assert.InDelta(t, 0.1, calc.AnonymousWeight(), 1e-9)
}
