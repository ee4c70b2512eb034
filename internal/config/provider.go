// AngelaMos | 2026
// provider.go

package config

import (
	"sync/atomic"
)

// Provider is an explicitly constructed, injectable config holder. Engine
// services deref it per call, so an Override or Reload swapping the snapshot
// takes effect without restarting anything.
type Provider struct {
	v atomic.Pointer[Config]
}

func NewProvider(c *Config) *Provider {
	p := &Provider{}
	p.v.Store(c)
	return p
}

func (p *Provider) Current() *Config {
	return p.v.Load()
}

func (p *Provider) Override(c *Config) {
	p.v.Store(c)
}

// Reload re-reads the config sources and swaps the snapshot. Services deref
// the Provider per call, so the new values take effect on their next read.
func (p *Provider) Reload(configPath string) (*Config, error) {
	c, err := load(configPath)
	if err != nil {
		return nil, err
	}

	p.v.Store(c)
	return c, nil
}

func (p *Provider) Trust() TrustConfig {
	return p.v.Load().Trust
}

func (p *Provider) Moderation() ModerationConfig {
	return p.v.Load().Moderation
}

// Defaults builds a config snapshot carrying only the built-in policy
// defaults. Used by tests and tooling that never touch external sources.
func Defaults() *Config {
	return &Config{
		Trust: TrustConfig{
			Weights: WeightConfig{
				Anonymous:    0.1,
				Verified:     2.0,
				Expert:       5.0,
				PhD:          8.0,
				Organization: 100.0,
				Moderator:    3.0,
			},
			Points: PointsConfig{
				FactApproved:        10,
				FactWrong:           -20,
				FactOutdated:        0,
				VetoSuccess:         5,
				VetoFail:            -5,
				VerificationCorrect: 3,
				VerificationWrong:   -10,
				Upvoted:             1,
				Downvoted:           -1,
			},
			AnonVoteEnabled:  true,
			AnonVoteDailyCap: 20,
			BlocklistSalt:    "dev-only-salt",
		},
		Moderation: ModerationConfig{
			VetoResolveThreshold: 10.0,
			FailedVetoThreshold:  5,
			Level1DurationDays:   3,
			Level2DurationDays:   30,
			BootstrapThreshold:   100,
			EarlyThreshold:       500,
			TopPercentage:        0.10,
			MinTrustedForAuto:    100,
			MaxModerators:        50,
			InactiveDays:         30,
		},
	}
}
