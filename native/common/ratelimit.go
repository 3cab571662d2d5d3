package common

import (
	"errors"
	"math"
)

var (
	// ErrRateLimitCooldown rejects a caller still inside its cooldown period.
	ErrRateLimitCooldown = errors.New("rate limit cooldown active")
	// ErrRateLimitExceeded rejects a caller that exhausted its window budget.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrRateLimitOverflow marks counter overflow, which should never occur
	// with sane window sizes.
	ErrRateLimitOverflow = errors.New("rate limit counter overflow")
)

// RateLimitState captures the persisted usage counters for one caller.
type RateLimitState struct {
	WindowStart    uint64
	OperationCount uint32
	LastOperation  uint64
}

// RateLimitConfig defines the sliding-window and cooldown admission policy.
// Zero values disable the corresponding check.
type RateLimitConfig struct {
	WindowSize     uint64
	MaxOperations  uint32
	CooldownPeriod uint64
}

// CheckRateLimit verifies whether one more operation by the caller fits the
// configured policy at the given time. The returned state reflects the
// updated counters when admission succeeds; on rejection the previous state
// is returned unchanged so the caller persists nothing. The function is pure
// over its inputs, which keeps admission decisions replayable from persisted
// counters alone. Whitelisted callers bypass every check.
func CheckRateLimit(cfg RateLimitConfig, prev RateLimitState, now uint64, whitelisted bool) (RateLimitState, error) {
	if whitelisted {
		return prev, nil
	}
	if cfg.CooldownPeriod > 0 && prev.LastOperation > 0 && now < prev.LastOperation+cfg.CooldownPeriod {
		return prev, ErrRateLimitCooldown
	}

	next := prev
	if cfg.WindowSize > 0 && now >= prev.WindowStart+cfg.WindowSize {
		next = RateLimitState{WindowStart: now}
	}
	if next.OperationCount == math.MaxUint32 {
		return prev, ErrRateLimitOverflow
	}
	next.OperationCount++
	if cfg.MaxOperations > 0 && next.OperationCount > cfg.MaxOperations {
		return prev, ErrRateLimitExceeded
	}
	next.LastOperation = now
	return next, nil
}
