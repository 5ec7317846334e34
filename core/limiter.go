package core

import "sync"

// TurnLimiter counts completion requests against a caller supplied ceiling.
type TurnLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewTurnLimiter creates a limiter allowing at most max completions. Values
// below 1 are raised to 1: every call performs at least one completion.
func NewTurnLimiter(max int) *TurnLimiter {
	if max < 1 {
		max = 1
	}
	return &TurnLimiter{max: max}
}

// Acquire reserves the next completion. It returns false once max
// completions have been reserved.
func (l *TurnLimiter) Acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count >= l.max {
		return false
	}
	l.count++
	return true
}

// Count returns the number of completions reserved so far.
func (l *TurnLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Max returns the ceiling.
func (l *TurnLimiter) Max() int { return l.max }

// Exhausted reports whether no further completion may be issued.
func (l *TurnLimiter) Exhausted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count >= l.max
}
