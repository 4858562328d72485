// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package admission bounds the rate at which the supervisor accepts new
// connections. This is a global admission control, not a per-client quota:
// the latter is explicitly out of scope.
package admission

import "golang.org/x/time/rate"

// Limiter wraps a token bucket gating connection admission.
type Limiter struct {
	bucket *rate.Limiter
}

// New builds a Limiter allowing eventsPerSec sustained admissions with the
// given burst. A non-positive eventsPerSec means unlimited.
func New(eventsPerSec float64, burst int) *Limiter {
	if eventsPerSec <= 0 {
		return nil
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(eventsPerSec), burst)}
}

// Allow reports whether a new connection may be admitted right now. A nil
// Limiter always allows.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.bucket.Allow()
}
