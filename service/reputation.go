package service

import (
	"bingocore/config"
)

// LinearReputation scores completion history linearly up to a cap. The curve
// is deliberately monotonic: more completed events never lower the score.
type LinearReputation struct {
	PerEvent int
	Cap      int
}

// Score returns the reputation score after the given number of completions.
func (s LinearReputation) Score(completedEvents int) int {
	score := completedEvents * s.PerEvent
	if s.Cap > 0 && score > s.Cap {
		return s.Cap
	}
	return score
}

// NewReputationStrategy builds the configured scoring strategy.
func NewReputationStrategy(cfg *config.Config) ReputationStrategy {
	return LinearReputation{
		PerEvent: cfg.ReputationPerEvent,
		Cap:      cfg.ReputationCap,
	}
}
