package common

import (
	"errors"
	"math"
	"testing"
)

func TestCheckRateLimitWindow(t *testing.T) {
	cfg := RateLimitConfig{WindowSize: 100, MaxOperations: 2}
	var state RateLimitState
	var err error

	state, err = CheckRateLimit(cfg, state, 1_000, false)
	if err != nil {
		t.Fatalf("first op: %v", err)
	}
	if state.WindowStart != 1_000 || state.OperationCount != 1 {
		t.Fatalf("state = %+v", state)
	}
	state, err = CheckRateLimit(cfg, state, 1_050, false)
	if err != nil {
		t.Fatalf("second op: %v", err)
	}
	if _, err = CheckRateLimit(cfg, state, 1_060, false); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("third op in window: got %v", err)
	}
	// the window rolls over and the budget resets
	state, err = CheckRateLimit(cfg, state, 1_100, false)
	if err != nil {
		t.Fatalf("op after rollover: %v", err)
	}
	if state.WindowStart != 1_100 || state.OperationCount != 1 {
		t.Fatalf("rolled state = %+v", state)
	}
}

func TestCheckRateLimitCooldown(t *testing.T) {
	cfg := RateLimitConfig{CooldownPeriod: 50}
	state, err := CheckRateLimit(cfg, RateLimitState{}, 1_000, false)
	if err != nil {
		t.Fatalf("first op: %v", err)
	}
	if _, err = CheckRateLimit(cfg, state, 1_049, false); !errors.Is(err, ErrRateLimitCooldown) {
		t.Fatalf("inside cooldown: got %v", err)
	}
	if _, err = CheckRateLimit(cfg, state, 1_050, false); err != nil {
		t.Fatalf("cooldown boundary: %v", err)
	}
}

func TestCheckRateLimitRejectionLeavesStateUntouched(t *testing.T) {
	cfg := RateLimitConfig{WindowSize: 100, MaxOperations: 1}
	state, err := CheckRateLimit(cfg, RateLimitState{}, 1_000, false)
	if err != nil {
		t.Fatalf("first op: %v", err)
	}
	rejected, err := CheckRateLimit(cfg, state, 1_010, false)
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if rejected != state {
		t.Fatalf("rejected call mutated state: %+v != %+v", rejected, state)
	}
}

func TestCheckRateLimitWhitelistBypass(t *testing.T) {
	cfg := RateLimitConfig{WindowSize: 100, MaxOperations: 1, CooldownPeriod: 1_000}
	state := RateLimitState{WindowStart: 1_000, OperationCount: 99, LastOperation: 1_000}
	next, err := CheckRateLimit(cfg, state, 1_001, true)
	if err != nil {
		t.Fatalf("whitelisted: %v", err)
	}
	if next != state {
		t.Fatalf("whitelisted call mutated state")
	}
}

func TestCheckRateLimitZeroConfigAdmitsAll(t *testing.T) {
	var cfg RateLimitConfig
	state := RateLimitState{}
	var err error
	for i := uint64(0); i < 100; i++ {
		if state, err = CheckRateLimit(cfg, state, 1_000+i, false); err != nil {
			t.Fatalf("op %d: %v", i, err)
		}
	}
	if state.OperationCount != 100 {
		t.Fatalf("count = %d, want 100", state.OperationCount)
	}
}

func TestCheckRateLimitOverflow(t *testing.T) {
	cfg := RateLimitConfig{}
	state := RateLimitState{OperationCount: math.MaxUint32}
	if _, err := CheckRateLimit(cfg, state, 1_000, false); !errors.Is(err, ErrRateLimitOverflow) {
		t.Fatalf("overflow: got %v", err)
	}
}
