package escrow

import (
	"errors"
	"math/big"
	"testing"

	"bountyvault/native/fees"
)

func schedule(amount int64, ts uint64) ScheduleRequest {
	return ScheduleRequest{Amount: big.NewInt(amount), Timestamp: ts}
}

func TestCreateSchedulesReservesRemaining(t *testing.T) {
	engine, state, emitter, _ := newInitializedEngine(t)
	mustLock(t, engine, state, 1, 1_000, 10_000)

	if err := engine.CreateSchedules(adminAddr, 1, []ScheduleRequest{
		schedule(300, 2_000),
		schedule(300, 3_000),
	}); err != nil {
		t.Fatalf("create schedules: %v", err)
	}
	esc, _, _ := state.EscrowGet(1)
	if esc.Status != StatusScheduled {
		t.Fatalf("status = %v, want scheduled", esc.Status)
	}
	if len(esc.ReleaseSchedules) != 2 {
		t.Fatalf("schedules = %d, want 2", len(esc.ReleaseSchedules))
	}
	if esc.ReleaseSchedules[0].ID != 1 || esc.ReleaseSchedules[1].ID != 2 {
		t.Fatalf("schedule ids = %d,%d, want 1,2", esc.ReleaseSchedules[0].ID, esc.ReleaseSchedules[1].ID)
	}
	if emitter.lastType() != EventTypeSchedulesCreated {
		t.Fatalf("expected schedule created event, got %q", emitter.lastType())
	}

	// 600 already reserved, 500 more exceeds the remaining 1000
	err := engine.CreateSchedules(adminAddr, 1, []ScheduleRequest{schedule(500, 4_000)})
	if !errors.Is(err, ErrTotalScheduleExceedsAmount) {
		t.Fatalf("over-reservation: got %v", err)
	}
	// 400 fits exactly
	if err := engine.CreateSchedules(adminAddr, 1, []ScheduleRequest{schedule(400, 4_000)}); err != nil {
		t.Fatalf("exact fit: %v", err)
	}
}

func TestCreateSchedulesValidation(t *testing.T) {
	engine, state, _, _ := newInitializedEngine(t)
	mustLock(t, engine, state, 1, 1_000, 10_000)

	if err := engine.CreateSchedules(depositorAddr, 1, []ScheduleRequest{schedule(100, 2_000)}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-admin: got %v", err)
	}
	if err := engine.CreateSchedules(adminAddr, 1, nil); !errors.Is(err, ErrInvalidScheduleAmount) {
		t.Fatalf("empty batch: got %v", err)
	}
	if err := engine.CreateSchedules(adminAddr, 1, []ScheduleRequest{schedule(0, 2_000)}); !errors.Is(err, ErrInvalidScheduleAmount) {
		t.Fatalf("zero amount: got %v", err)
	}
	if err := engine.CreateSchedules(adminAddr, 1, []ScheduleRequest{schedule(100, 1_000)}); !errors.Is(err, ErrInvalidScheduleTimestamp) {
		t.Fatalf("past timestamp: got %v", err)
	}
}

func TestExecuteScheduleFlow(t *testing.T) {
	engine, state, emitter, clock := newInitializedEngine(t)
	mustLock(t, engine, state, 1, 1_000, 10_000)
	if err := engine.CreateSchedules(adminAddr, 1, []ScheduleRequest{schedule(300, 2_000)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := engine.ExecuteSchedule(outsiderAddr, 1, 0, contributorAddr)
	if !errors.Is(err, ErrScheduleNotReady) {
		t.Fatalf("early execution: got %v", err)
	}

	clock.now = 2_000
	// execution is permissionless once due
	if err := engine.ExecuteSchedule(outsiderAddr, 1, 0, contributorAddr); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := state.balance(contributorAddr); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("contributor = %s, want 300", got)
	}
	esc, _, _ := state.EscrowGet(1)
	if esc.RemainingAmount.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("remaining = %s, want 700", esc.RemainingAmount)
	}
	if esc.ReleaseSchedules[0].Status != ScheduleReleased {
		t.Fatalf("schedule status = %v, want released", esc.ReleaseSchedules[0].Status)
	}
	if esc.ReleaseSchedules[0].ReleasedBy != outsiderAddr {
		t.Fatalf("released-by not recorded")
	}
	if len(esc.PayoutHistory) != 1 || esc.PayoutHistory[0].ScheduleID != 1 {
		t.Fatalf("payout history = %+v", esc.PayoutHistory)
	}
	// no pending schedules left, one payout happened
	if esc.Status != StatusPartiallyReleased {
		t.Fatalf("status = %v, want partially_released", esc.Status)
	}
	if emitter.lastType() != EventTypeScheduleReleased {
		t.Fatalf("expected schedule released event, got %q", emitter.lastType())
	}

	// no pending schedules remain, so the escrow left the scheduled state
	err = engine.ExecuteSchedule(outsiderAddr, 1, 0, contributorAddr)
	if !errors.Is(err, ErrFundsNotLocked) {
		t.Fatalf("double execution: got %v", err)
	}
}

func TestExecuteScheduleIndexOutOfBounds(t *testing.T) {
	engine, state, _, clock := newInitializedEngine(t)
	mustLock(t, engine, state, 1, 1_000, 10_000)
	if err := engine.CreateSchedules(adminAddr, 1, []ScheduleRequest{schedule(300, 2_000)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.now = 2_000
	if err := engine.ExecuteSchedule(outsiderAddr, 1, 5, contributorAddr); !errors.Is(err, ErrScheduleIndexOutOfBounds) {
		t.Fatalf("out of bounds: got %v", err)
	}
}

func TestExecuteScheduleAppliesReleaseFee(t *testing.T) {
	engine, state, _, clock := newInitializedEngine(t)
	cfg := &fees.Config{ReleaseFeeRate: 100, FeeRecipient: feeRecipient, Enabled: true}
	if err := engine.UpdateFeeConfig(adminAddr, cfg); err != nil {
		t.Fatalf("fee config: %v", err)
	}
	mustLock(t, engine, state, 1, 1_000, 10_000)
	if err := engine.CreateSchedules(adminAddr, 1, []ScheduleRequest{schedule(500, 2_000)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.now = 2_000
	if err := engine.ExecuteSchedule(adminAddr, 1, 0, contributorAddr); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := state.balance(contributorAddr); got.Cmp(big.NewInt(495)) != 0 {
		t.Fatalf("contributor = %s, want 495", got)
	}
	if got := state.balance(feeRecipient); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("fee recipient = %s, want 5", got)
	}
}

func TestExecuteAllReadySkipsNotDue(t *testing.T) {
	engine, state, _, clock := newInitializedEngine(t)
	mustLock(t, engine, state, 1, 1_000, 10_000)
	if err := engine.CreateSchedules(adminAddr, 1, []ScheduleRequest{
		schedule(200, 2_000),
		schedule(300, 2_500),
		schedule(400, 9_000),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	clock.now = 3_000
	executed, err := engine.ExecuteAllReady(outsiderAddr, 1, contributorAddr)
	if err != nil {
		t.Fatalf("execute all: %v", err)
	}
	if executed != 2 {
		t.Fatalf("executed = %d, want 2", executed)
	}
	if got := state.balance(contributorAddr); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("contributor = %s, want 500", got)
	}
	esc, _, _ := state.EscrowGet(1)
	if esc.Status != StatusScheduled {
		t.Fatalf("status = %v, want scheduled (one pending left)", esc.Status)
	}

	// nothing due yet, no error
	executed, err = engine.ExecuteAllReady(outsiderAddr, 1, contributorAddr)
	if err != nil || executed != 0 {
		t.Fatalf("idle execute all = %d, %v", executed, err)
	}
}

func TestExecuteAllReadySkipsCustodyShortfall(t *testing.T) {
	engine, state, _, clock := newInitializedEngine(t)
	cfg := &fees.Config{LockFeeRate: 100, FeeRecipient: feeRecipient, Enabled: true}
	if err := engine.UpdateFeeConfig(adminAddr, cfg); err != nil {
		t.Fatalf("fee config: %v", err)
	}
	mustLock(t, engine, state, 1, 1_000, 10_000)
	// custody holds 990 after the lock fee while the ledger reads 1000, so
	// both schedules fit the remaining amount but not the vault
	if err := engine.CreateSchedules(adminAddr, 1, []ScheduleRequest{
		schedule(600, 2_000),
		schedule(400, 2_000),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	clock.now = 2_000
	executed, err := engine.ExecuteAllReady(outsiderAddr, 1, contributorAddr)
	if err != nil {
		t.Fatalf("execute all: %v", err)
	}
	if executed != 1 {
		t.Fatalf("executed = %d, want 1 (second schedule unaffordable)", executed)
	}
	if got := state.balance(contributorAddr); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("contributor = %s, want 600", got)
	}
	if got := state.balance(VaultAddress); got.Cmp(big.NewInt(390)) != 0 {
		t.Fatalf("custody = %s, want 390", got)
	}
	esc, _, _ := state.EscrowGet(1)
	if esc.RemainingAmount.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("remaining = %s, want 400", esc.RemainingAmount)
	}
	if esc.ReleaseSchedules[1].Status != SchedulePending {
		t.Fatalf("unaffordable schedule must stay pending, got %v", esc.ReleaseSchedules[1].Status)
	}
	if len(esc.PayoutHistory) != 1 {
		t.Fatalf("payouts = %d, want 1", len(esc.PayoutHistory))
	}
}

func TestCancelScheduleFreesReservation(t *testing.T) {
	engine, state, emitter, clock := newInitializedEngine(t)
	mustLock(t, engine, state, 1, 1_000, 10_000)
	if err := engine.CreateSchedules(adminAddr, 1, []ScheduleRequest{
		schedule(600, 2_000),
		schedule(400, 3_000),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := engine.CancelSchedule(depositorAddr, 1, 0); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-admin cancel: got %v", err)
	}
	if err := engine.CancelSchedule(adminAddr, 1, 0); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if emitter.lastType() != EventTypeScheduleCancel {
		t.Fatalf("expected cancel event, got %q", emitter.lastType())
	}
	esc, _, _ := state.EscrowGet(1)
	if esc.ReleaseSchedules[0].Status != ScheduleCancelled {
		t.Fatalf("schedule not cancelled")
	}
	// the freed 600 can be re-scheduled alongside the pending 400
	if err := engine.CreateSchedules(adminAddr, 1, []ScheduleRequest{schedule(600, 4_000)}); err != nil {
		t.Fatalf("re-reserve freed amount: %v", err)
	}

	if err := engine.CancelSchedule(adminAddr, 1, 0); !errors.Is(err, ErrScheduleAlreadyReleased) {
		t.Fatalf("double cancel: got %v", err)
	}
	clock.now = 3_000
	if err := engine.ExecuteSchedule(adminAddr, 1, 0, contributorAddr); !errors.Is(err, ErrScheduleAlreadyReleased) {
		t.Fatalf("execute cancelled: got %v", err)
	}
}

func TestScheduleHistoryMirrorsLifecycle(t *testing.T) {
	engine, state, _, clock := newInitializedEngine(t)
	mustLock(t, engine, state, 1, 1_000, 10_000)
	if err := engine.CreateSchedules(adminAddr, 1, []ScheduleRequest{schedule(300, 2_000)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.now = 2_000
	if err := engine.ExecuteSchedule(adminAddr, 1, 0, contributorAddr); err != nil {
		t.Fatalf("execute: %v", err)
	}
	history, err := engine.ScheduleHistory(1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2 (created + released)", len(history))
	}
	if history[0].Status != SchedulePending || history[1].Status != ScheduleReleased {
		t.Fatalf("history statuses = %v, %v", history[0].Status, history[1].Status)
	}
	if history[0].ScheduleID != history[1].ScheduleID {
		t.Fatalf("history entries refer to different schedules")
	}
}

func TestPendingSchedulesQuery(t *testing.T) {
	engine, state, _, clock := newInitializedEngine(t)
	mustLock(t, engine, state, 1, 1_000, 10_000)
	if err := engine.CreateSchedules(adminAddr, 1, []ScheduleRequest{
		schedule(200, 2_000),
		schedule(300, 3_000),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.now = 2_000
	if err := engine.ExecuteSchedule(adminAddr, 1, 0, contributorAddr); err != nil {
		t.Fatalf("execute: %v", err)
	}
	pending, err := engine.PendingSchedules(1)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != 2 {
		t.Fatalf("pending = %+v, want only schedule 2", pending)
	}
}
