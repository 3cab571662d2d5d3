package escrow

import (
	"math/big"

	"bountyvault/native/fees"
)

// CreateSchedules appends milestone payouts to an escrow. Every amount must
// be positive and every timestamp strictly in the future; the new total plus
// all currently pending schedule amounts must fit within the remaining
// balance. Admin only.
func (e *Engine) CreateSchedules(caller [20]byte, bountyID uint64, requests []ScheduleRequest) (err error) {
	defer e.track(&err)
	if e == nil || e.state == nil {
		return errNilState
	}
	if err = e.admit(caller); err != nil {
		return err
	}
	release, gerr := e.lockGuard()
	if gerr != nil {
		return gerr
	}
	defer release()

	if err = e.requireAdmin(caller); err != nil {
		return err
	}
	if err = e.checkPaused(); err != nil {
		return err
	}
	if len(requests) == 0 {
		return ErrInvalidScheduleAmount
	}
	esc, lerr := e.loadEscrow(bountyID)
	if lerr != nil {
		return lerr
	}
	if esc.Status != StatusLocked && esc.Status != StatusScheduled {
		return ErrFundsNotLocked
	}

	now := e.now()
	requested := big.NewInt(0)
	for i := range requests {
		sched := ReleaseSchedule{Amount: requests[i].Amount, Timestamp: requests[i].Timestamp}
		if err = sched.Validate(now); err != nil {
			return err
		}
		requested.Add(requested, requests[i].Amount)
	}
	reserved := esc.PendingScheduleTotal()
	reserved.Add(reserved, requested)
	if reserved.Cmp(esc.RemainingAmount) > 0 {
		return ErrTotalScheduleExceedsAmount
	}

	created := make([]ReleaseSchedule, 0, len(requests))
	for i := range requests {
		sched := ReleaseSchedule{
			ID:        esc.NextScheduleID,
			Amount:    cloneBigInt(requests[i].Amount),
			Timestamp: requests[i].Timestamp,
			Status:    SchedulePending,
		}
		esc.NextScheduleID++
		esc.ReleaseSchedules = append(esc.ReleaseSchedules, sched)
		esc.mirrorSchedule(&sched, now)
		created = append(created, sched)
	}
	esc.Status = StatusScheduled
	if err = e.state.EscrowPut(bountyID, esc); err != nil {
		return err
	}
	e.emit(NewSchedulesCreatedEvent(bountyID, created, now))
	return nil
}

// ExecuteSchedule pays out a single pending schedule once its timestamp has
// been reached. Execution is permissionless, like a timer: anyone may trigger
// a due schedule, but the payout always goes to the supplied recipient under
// the release-fee policy.
func (e *Engine) ExecuteSchedule(caller [20]byte, bountyID uint64, scheduleIndex int, recipient [20]byte) (err error) {
	defer e.track(&err)
	if e == nil || e.state == nil {
		return errNilState
	}
	release, gerr := e.lockGuard()
	if gerr != nil {
		return gerr
	}
	defer release()

	if _, err = e.requireInitialized(); err != nil {
		return err
	}
	if err = e.checkPaused(); err != nil {
		return err
	}
	esc, lerr := e.loadEscrow(bountyID)
	if lerr != nil {
		return lerr
	}
	if esc.Status != StatusScheduled {
		return ErrFundsNotLocked
	}
	sched, serr := esc.findSchedule(scheduleIndex)
	if serr != nil {
		return serr
	}
	now := e.now()
	if err = e.executeOne(bountyID, esc, sched, caller, recipient, now); err != nil {
		return err
	}
	esc.Status = deriveStatus(esc, movementRelease)
	if err = checkConservation(esc); err != nil {
		return err
	}
	if err = e.state.EscrowPut(bountyID, esc); err != nil {
		return err
	}
	if err = e.updateStats(func(s *Stats) {
		s.TotalReleased.Add(s.TotalReleased, sched.Amount)
	}); err != nil {
		return err
	}
	e.emit(NewScheduleReleasedEvent(bountyID, sched, recipient, now))
	return nil
}

// ExecuteAllReady executes every pending schedule whose timestamp has passed
// and whose amount is still affordable, skipping entries that would exceed
// the remaining balance or the custody balance so the batch makes partial
// progress instead of failing. Returns the number of schedules executed.
func (e *Engine) ExecuteAllReady(caller [20]byte, bountyID uint64, recipient [20]byte) (executed int, err error) {
	defer e.track(&err)
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	release, gerr := e.lockGuard()
	if gerr != nil {
		return 0, gerr
	}
	defer release()

	if _, err = e.requireInitialized(); err != nil {
		return 0, err
	}
	if err = e.checkPaused(); err != nil {
		return 0, err
	}
	esc, lerr := e.loadEscrow(bountyID)
	if lerr != nil {
		return 0, lerr
	}
	if esc.Status != StatusScheduled {
		return 0, ErrFundsNotLocked
	}

	// Each execution drains custody by the full schedule amount, so the
	// affordability check runs against a balance updated as the loop goes.
	// A lock fee can leave custody below the ledgered remaining amount.
	available, berr := e.vaultBalance()
	if berr != nil {
		return 0, berr
	}
	available = cloneBigInt(available)

	now := e.now()
	totalPaid := big.NewInt(0)
	var released []*ReleaseSchedule
	for i := range esc.ReleaseSchedules {
		sched := &esc.ReleaseSchedules[i]
		if sched.Status != SchedulePending || sched.Timestamp > now {
			continue
		}
		if sched.Amount == nil || sched.Amount.Cmp(esc.RemainingAmount) > 0 || sched.Amount.Cmp(available) > 0 {
			continue
		}
		if err = e.executeOne(bountyID, esc, sched, caller, recipient, now); err != nil {
			return 0, err
		}
		available.Sub(available, sched.Amount)
		totalPaid.Add(totalPaid, sched.Amount)
		released = append(released, sched)
	}
	if len(released) == 0 {
		return 0, nil
	}
	esc.Status = deriveStatus(esc, movementRelease)
	if err = checkConservation(esc); err != nil {
		return 0, err
	}
	if err = e.state.EscrowPut(bountyID, esc); err != nil {
		return 0, err
	}
	if err = e.updateStats(func(s *Stats) {
		s.TotalReleased.Add(s.TotalReleased, totalPaid)
	}); err != nil {
		return 0, err
	}
	for _, sched := range released {
		e.emit(NewScheduleReleasedEvent(bountyID, sched, recipient, now))
	}
	return len(released), nil
}

// executeOne applies a single schedule payout against the escrow in memory:
// fee split, transfers, history append, and the status flip on the schedule
// plus its audit mirror. The caller persists the escrow and re-derives its
// status afterwards.
func (e *Engine) executeOne(bountyID uint64, esc *Escrow, sched *ReleaseSchedule, caller, recipient [20]byte, now uint64) error {
	if sched.Status != SchedulePending {
		return ErrScheduleAlreadyReleased
	}
	if sched.Timestamp > now {
		return ErrScheduleNotReady
	}
	if sched.Amount == nil || sched.Amount.Sign() <= 0 {
		return ErrInvalidScheduleAmount
	}
	if sched.Amount.Cmp(esc.RemainingAmount) > 0 {
		return ErrInsufficientFunds
	}

	feeCfg, err := e.feeConfig()
	if err != nil {
		return err
	}
	applied := fees.Result{Fee: big.NewInt(0), Net: cloneBigInt(sched.Amount)}
	if feeCfg.Enabled {
		applied = fees.Apply(sched.Amount, feeCfg.ReleaseFeeRate)
	}
	balance, err := e.vaultBalance()
	if err != nil {
		return err
	}
	if balance.Cmp(sched.Amount) < 0 {
		return ErrInsufficientFunds
	}
	if err := e.transfer(VaultAddress, recipient, applied.Net); err != nil {
		return err
	}
	if feeCfg.Enabled && applied.Fee.Sign() > 0 {
		if err := e.transfer(VaultAddress, feeCfg.FeeRecipient, applied.Fee); err != nil {
			return err
		}
	}

	esc.RemainingAmount = new(big.Int).Sub(esc.RemainingAmount, sched.Amount)
	esc.PayoutHistory = append(esc.PayoutHistory, PayoutRecord{
		Recipient:  recipient,
		Amount:     cloneBigInt(sched.Amount),
		Fee:        applied.Fee,
		ScheduleID: sched.ID,
		Timestamp:  now,
	})
	sched.Status = ScheduleReleased
	sched.ReleasedAt = now
	sched.ReleasedBy = caller
	esc.mirrorSchedule(sched, now)
	return nil
}

// CancelSchedule voids a pending schedule, freeing its amount for other
// releases and refunds. Admin only; the remaining balance is untouched.
func (e *Engine) CancelSchedule(caller [20]byte, bountyID uint64, scheduleIndex int) (err error) {
	defer e.track(&err)
	if e == nil || e.state == nil {
		return errNilState
	}
	if err = e.admit(caller); err != nil {
		return err
	}
	release, gerr := e.lockGuard()
	if gerr != nil {
		return gerr
	}
	defer release()

	if err = e.requireAdmin(caller); err != nil {
		return err
	}
	if err = e.checkPaused(); err != nil {
		return err
	}
	esc, lerr := e.loadEscrow(bountyID)
	if lerr != nil {
		return lerr
	}
	sched, serr := esc.findSchedule(scheduleIndex)
	if serr != nil {
		return serr
	}
	if sched.Status != SchedulePending {
		return ErrScheduleAlreadyReleased
	}
	now := e.now()
	sched.Status = ScheduleCancelled
	esc.mirrorSchedule(sched, now)
	esc.Status = deriveStatus(esc, movementNone)
	if err = e.state.EscrowPut(bountyID, esc); err != nil {
		return err
	}
	e.emit(NewScheduleCancelledEvent(bountyID, sched, now))
	return nil
}

// ReleaseSchedules returns all schedules for a bounty.
func (e *Engine) ReleaseSchedules(bountyID uint64) ([]ReleaseSchedule, error) {
	esc, err := e.loadEscrow(bountyID)
	if err != nil {
		return nil, err
	}
	return esc.ReleaseSchedules, nil
}

// PendingSchedules returns only the schedules still awaiting execution.
func (e *Engine) PendingSchedules(bountyID uint64) ([]ReleaseSchedule, error) {
	esc, err := e.loadEscrow(bountyID)
	if err != nil {
		return nil, err
	}
	pending := make([]ReleaseSchedule, 0, len(esc.ReleaseSchedules))
	for _, sched := range esc.ReleaseSchedules {
		if sched.Status == SchedulePending {
			pending = append(pending, sched)
		}
	}
	return pending, nil
}

// ScheduleHistory returns the append-only audit mirror of schedule
// lifecycles.
func (e *Engine) ScheduleHistory(bountyID uint64) ([]ScheduleHistoryEntry, error) {
	esc, err := e.loadEscrow(bountyID)
	if err != nil {
		return nil, err
	}
	return esc.ScheduleHistory, nil
}
