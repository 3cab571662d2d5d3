package escrow

import (
	"errors"
	"math/big"
	"testing"
)

func lockItem(depositor [20]byte, id uint64, amount int64) LockItem {
	return LockItem{Depositor: depositor, BountyID: id, Amount: big.NewInt(amount), Deadline: 5_000}
}

func TestBatchLockAllOrNothing(t *testing.T) {
	engine, state, emitter, _ := newInitializedEngine(t)
	state.setBalance(depositorAddr, 3_000)

	locked, err := engine.BatchLock([]LockItem{
		lockItem(depositorAddr, 1, 1_000),
		lockItem(depositorAddr, 2, 2_000),
	})
	if err != nil {
		t.Fatalf("batch lock: %v", err)
	}
	if locked != 2 {
		t.Fatalf("locked = %d, want 2", locked)
	}
	if got := state.balance(VaultAddress); got.Cmp(big.NewInt(3_000)) != 0 {
		t.Fatalf("custody = %s, want 3000", got)
	}
	if emitter.lastType() != EventTypeBatchLocked {
		t.Fatalf("expected batch event, got %q", emitter.lastType())
	}
	stats, _ := engine.Stats()
	if stats.TotalBounties != 2 || stats.TotalLocked.Cmp(big.NewInt(3_000)) != 0 {
		t.Fatalf("stats = %d/%s", stats.TotalBounties, stats.TotalLocked)
	}
}

func TestBatchLockRejectsWholeBatchOnOneBadItem(t *testing.T) {
	engine, state, _, _ := newInitializedEngine(t)
	state.setBalance(depositorAddr, 10_000)

	cases := []struct {
		name  string
		items []LockItem
		want  error
	}{
		{"zero amount", []LockItem{lockItem(depositorAddr, 1, 1_000), lockItem(depositorAddr, 2, 0)}, ErrInvalidAmount},
		{"duplicate ids", []LockItem{lockItem(depositorAddr, 1, 1_000), lockItem(depositorAddr, 1, 500)}, ErrDuplicateBountyID},
		{"empty batch", nil, ErrInvalidBatchSize},
	}
	for _, tc := range cases {
		if _, err := engine.BatchLock(tc.items); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
		if got := state.balance(VaultAddress); got.Sign() != 0 {
			t.Fatalf("%s: custody = %s after failed batch, want 0", tc.name, got)
		}
		if len(state.escrows) != 0 {
			t.Fatalf("%s: escrows created by failed batch", tc.name)
		}
	}
}

func TestBatchLockSizeCap(t *testing.T) {
	engine, state, _, _ := newInitializedEngine(t)
	state.setBalance(depositorAddr, 100_000)
	items := make([]LockItem, MaxBatchSize+1)
	for i := range items {
		items[i] = lockItem(depositorAddr, uint64(i+1), 100)
	}
	if _, err := engine.BatchLock(items); !errors.Is(err, ErrInvalidBatchSize) {
		t.Fatalf("oversized batch: got %v", err)
	}
	if _, err := engine.BatchLock(items[:MaxBatchSize]); err != nil {
		t.Fatalf("max-sized batch: %v", err)
	}
}

func TestBatchLockAggregateBalanceCheck(t *testing.T) {
	engine, state, _, _ := newInitializedEngine(t)
	// each item alone fits the balance, the pair does not
	state.setBalance(depositorAddr, 1_500)
	_, err := engine.BatchLock([]LockItem{
		lockItem(depositorAddr, 1, 1_000),
		lockItem(depositorAddr, 2, 1_000),
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("aggregate overdraw: got %v", err)
	}
	if got := state.balance(depositorAddr); got.Cmp(big.NewInt(1_500)) != 0 {
		t.Fatalf("depositor touched by failed batch: %s", got)
	}
}

func TestBatchReleasePaysFullRemaining(t *testing.T) {
	engine, state, emitter, _ := newInitializedEngine(t)
	mustLock(t, engine, state, 1, 1_000, 5_000)
	mustLock(t, engine, state, 2, 500, 5_000)

	released, err := engine.BatchRelease(adminAddr, []ReleaseItem{
		{BountyID: 1, Contributor: contributorAddr},
		{BountyID: 2, Contributor: outsiderAddr},
	})
	if err != nil {
		t.Fatalf("batch release: %v", err)
	}
	if released != 2 {
		t.Fatalf("released = %d, want 2", released)
	}
	if got := state.balance(contributorAddr); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("contributor = %s, want 1000", got)
	}
	if got := state.balance(outsiderAddr); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("second recipient = %s, want 500", got)
	}
	for id := uint64(1); id <= 2; id++ {
		esc, _, _ := state.EscrowGet(id)
		if esc.Status != StatusReleased {
			t.Fatalf("bounty %d status = %v, want released", id, esc.Status)
		}
	}
	if emitter.lastType() != EventTypeBatchReleased {
		t.Fatalf("expected batch released event, got %q", emitter.lastType())
	}
}

func TestBatchReleaseValidatesBeforeTransfers(t *testing.T) {
	engine, state, _, _ := newInitializedEngine(t)
	mustLock(t, engine, state, 1, 1_000, 5_000)

	if _, err := engine.BatchRelease(depositorAddr, []ReleaseItem{{BountyID: 1, Contributor: contributorAddr}}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-admin: got %v", err)
	}
	_, err := engine.BatchRelease(adminAddr, []ReleaseItem{
		{BountyID: 1, Contributor: contributorAddr},
		{BountyID: 99, Contributor: contributorAddr},
	})
	if !errors.Is(err, ErrBountyNotFound) {
		t.Fatalf("missing bounty: got %v", err)
	}
	// the valid first item must not have been paid
	if got := state.balance(contributorAddr); got.Sign() != 0 {
		t.Fatalf("partial batch payout happened: %s", got)
	}
	esc, _, _ := state.EscrowGet(1)
	if esc.Status != StatusLocked {
		t.Fatalf("bounty 1 mutated by failed batch")
	}

	_, err = engine.BatchRelease(adminAddr, []ReleaseItem{
		{BountyID: 1, Contributor: contributorAddr},
		{BountyID: 1, Contributor: outsiderAddr},
	})
	if !errors.Is(err, ErrDuplicateBountyID) {
		t.Fatalf("duplicate ids: got %v", err)
	}
}
