package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Policy decides how long to wait before reconnect attempt n (1-based).
// ok is false once no further attempt should be made.
type Policy interface {
	Next(attempt int) (delay time.Duration, ok bool)
}

// Exponential doubles the delay on every attempt:
// base * 2^(attempt-1), capped at Max, spread by ±Jitter.
type Exponential struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64 // fraction of the delay, 0..1
	Limit  int     // 0 retries forever

	random func() float64
}

// NewExponential creates an exponential policy.
func NewExponential(base, max time.Duration, jitter float64, limit int) *Exponential {
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return &Exponential{
		Base:   base,
		Max:    max,
		Jitter: jitter,
		Limit:  limit,
		random: rand.Float64,
	}
}

// Next implements Policy.
func (e *Exponential) Next(attempt int) (time.Duration, bool) {
	if e.Limit > 0 && attempt > e.Limit {
		return 0, false
	}

	exponent := float64(attempt - 1)
	if exponent < 0 {
		exponent = 0
	}
	delay := float64(e.Base) * math.Pow(2, exponent)
	if e.Max > 0 && delay > float64(e.Max) {
		delay = float64(e.Max)
	}

	if e.Jitter > 0 {
		r := rand.Float64
		if e.random != nil {
			r = e.random
		}
		// r() in [0,1) maps to a factor in [1-Jitter, 1+Jitter).
		delay *= 1 + e.Jitter*(2*r()-1)
	}

	return time.Duration(delay), true
}

// Constant waits the same delay between attempts.
type Constant struct {
	Delay time.Duration
	Limit int
}

// Next implements Policy.
func (c Constant) Next(attempt int) (time.Duration, bool) {
	if c.Limit > 0 && attempt > c.Limit {
		return 0, false
	}
	return c.Delay, true
}
