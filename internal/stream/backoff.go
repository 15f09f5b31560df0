package stream

import (
	"math"
	"time"
)

// Backoff is the reconnect policy of a Connection.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	MaxAttempts int
}

func DefaultBackoff() Backoff {
	return Backoff{
		Initial:     time.Second,
		Max:         30 * time.Second,
		Multiplier:  2,
		MaxAttempts: 5,
	}
}

// Delay returns min(Initial * Multiplier^attempts, Max).
func (b Backoff) Delay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	delay := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempts))
	if b.Max > 0 && (delay > float64(b.Max) || math.IsInf(delay, 0)) {
		return b.Max
	}
	return time.Duration(delay)
}

func (b Backoff) withDefaults() Backoff {
	def := DefaultBackoff()
	if b.Initial <= 0 {
		b.Initial = def.Initial
	}
	if b.Max <= 0 {
		b.Max = def.Max
	}
	if b.Multiplier < 1 {
		b.Multiplier = def.Multiplier
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = def.MaxAttempts
	}
	return b
}
