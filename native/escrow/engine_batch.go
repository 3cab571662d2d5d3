package escrow

import (
	"math/big"

	"bountyvault/native/fees"
)

// MaxBatchSize bounds the number of items accepted by a single batch call.
const MaxBatchSize = 10

// LockItem is one bounty deposit inside a BatchLock call.
type LockItem struct {
	Depositor [20]byte
	BountyID  uint64
	Amount    *big.Int
	Deadline  uint64
}

// ReleaseItem is one full-remaining payout inside a BatchRelease call.
type ReleaseItem struct {
	BountyID    uint64
	Contributor [20]byte
}

func checkBatchSize(n int) error {
	if n == 0 || n > MaxBatchSize {
		return ErrInvalidBatchSize
	}
	return nil
}

func duplicateBountyIDs(ids []uint64) bool {
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

// BatchLock locks funds for multiple bounties atomically. The whole batch is
// validated (size, duplicate identifiers, per-item preconditions, and each
// depositor's aggregate balance) before any transfer; a single invalid item
// means zero transfers and zero state changes. Admission is requested once
// per distinct depositor even when one appears multiple times.
func (e *Engine) BatchLock(items []LockItem) (locked int, err error) {
	defer e.track(&err)
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err = checkBatchSize(len(items)); err != nil {
		return 0, err
	}

	seen := make(map[[20]byte]struct{}, len(items))
	for i := range items {
		if _, ok := seen[items[i].Depositor]; ok {
			continue
		}
		seen[items[i].Depositor] = struct{}{}
		if err = e.admit(items[i].Depositor); err != nil {
			return 0, err
		}
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

	ids := make([]uint64, len(items))
	for i := range items {
		ids[i] = items[i].BountyID
	}
	if duplicateBountyIDs(ids) {
		return 0, ErrDuplicateBountyID
	}

	feeCfg, ferr := e.feeConfig()
	if ferr != nil {
		return 0, ferr
	}
	now := e.now()
	needed := make(map[[20]byte]*big.Int, len(seen))
	for i := range items {
		item := &items[i]
		if item.Amount == nil || item.Amount.Sign() <= 0 {
			return 0, ErrInvalidAmount
		}
		if item.Deadline <= now {
			return 0, ErrInvalidDeadline
		}
		exists, herr := e.state.EscrowHas(item.BountyID)
		if herr != nil {
			return 0, herr
		}
		if exists {
			return 0, ErrBountyExists
		}
		total, ok := needed[item.Depositor]
		if !ok {
			total = big.NewInt(0)
			needed[item.Depositor] = total
		}
		total.Add(total, item.Amount)
	}
	for depositor, total := range needed {
		acc, aerr := e.state.GetAccount(depositor)
		if aerr != nil {
			return 0, aerr
		}
		if ensureAccount(acc).Balance.Cmp(total) < 0 {
			return 0, ErrInsufficientFunds
		}
	}

	totalLocked := big.NewInt(0)
	for i := range items {
		item := &items[i]
		applied := fees.Result{Fee: big.NewInt(0), Net: cloneBigInt(item.Amount)}
		if feeCfg.Enabled {
			applied = fees.Apply(item.Amount, feeCfg.LockFeeRate)
		}
		if err = e.transfer(item.Depositor, VaultAddress, applied.Net); err != nil {
			return 0, err
		}
		if feeCfg.Enabled && applied.Fee.Sign() > 0 {
			if err = e.transfer(item.Depositor, feeCfg.FeeRecipient, applied.Fee); err != nil {
				return 0, err
			}
		}
		esc := &Escrow{
			Depositor:       item.Depositor,
			Amount:          cloneBigInt(item.Amount),
			RemainingAmount: cloneBigInt(item.Amount),
			Status:          StatusLocked,
			Deadline:        item.Deadline,
			CreatedAt:       now,
			NextScheduleID:  1,
		}
		if err = e.state.EscrowPut(item.BountyID, esc); err != nil {
			return 0, err
		}
		if err = e.state.RegistryAdd(item.BountyID); err != nil {
			return 0, err
		}
		totalLocked.Add(totalLocked, item.Amount)
		e.emit(NewLockedEvent(item.BountyID, esc, applied.Fee))
		locked++
	}
	if err = e.updateStats(func(s *Stats) {
		s.TotalBounties += uint64(locked)
		s.TotalLocked.Add(s.TotalLocked, totalLocked)
	}); err != nil {
		return 0, err
	}
	e.emit(NewBatchLockedEvent(locked, totalLocked, now))
	return locked, nil
}

// BatchRelease pays out the full remaining balance of multiple bounties
// atomically. Admin only; admission is requested once regardless of batch
// size. Validation covers size, duplicates, per-item status, and the total
// custody balance before any transfer happens.
func (e *Engine) BatchRelease(caller [20]byte, items []ReleaseItem) (released int, err error) {
	defer e.track(&err)
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err = checkBatchSize(len(items)); err != nil {
		return 0, err
	}
	if err = e.admit(caller); err != nil {
		return 0, err
	}

	release, gerr := e.lockGuard()
	if gerr != nil {
		return 0, gerr
	}
	defer release()

	if err = e.requireAdmin(caller); err != nil {
		return 0, err
	}
	if err = e.checkPaused(); err != nil {
		return 0, err
	}

	ids := make([]uint64, len(items))
	for i := range items {
		ids[i] = items[i].BountyID
	}
	if duplicateBountyIDs(ids) {
		return 0, ErrDuplicateBountyID
	}

	totalNeeded := big.NewInt(0)
	escrows := make([]*Escrow, len(items))
	for i := range items {
		esc, lerr := e.loadEscrow(items[i].BountyID)
		if lerr != nil {
			return 0, lerr
		}
		if esc.Status != StatusLocked && esc.Status != StatusPartiallyReleased {
			return 0, ErrFundsNotLocked
		}
		if esc.RemainingAmount.Sign() <= 0 {
			return 0, ErrInvalidAmount
		}
		totalNeeded.Add(totalNeeded, esc.RemainingAmount)
		escrows[i] = esc
	}
	balance, berr := e.vaultBalance()
	if berr != nil {
		return 0, berr
	}
	if balance.Cmp(totalNeeded) < 0 {
		return 0, ErrInsufficientFunds
	}

	feeCfg, ferr := e.feeConfig()
	if ferr != nil {
		return 0, ferr
	}
	now := e.now()
	totalReleased := big.NewInt(0)
	for i := range items {
		item := &items[i]
		esc := escrows[i]
		payout := cloneBigInt(esc.RemainingAmount)
		applied := fees.Result{Fee: big.NewInt(0), Net: cloneBigInt(payout)}
		if feeCfg.Enabled {
			applied = fees.Apply(payout, feeCfg.ReleaseFeeRate)
		}
		if err = e.transfer(VaultAddress, item.Contributor, applied.Net); err != nil {
			return 0, err
		}
		if feeCfg.Enabled && applied.Fee.Sign() > 0 {
			if err = e.transfer(VaultAddress, feeCfg.FeeRecipient, applied.Fee); err != nil {
				return 0, err
			}
		}
		esc.RemainingAmount = new(big.Int).Sub(esc.RemainingAmount, payout)
		esc.PayoutHistory = append(esc.PayoutHistory, PayoutRecord{
			Recipient: item.Contributor,
			Amount:    payout,
			Fee:       applied.Fee,
			Timestamp: now,
		})
		esc.Status = deriveStatus(esc, movementRelease)
		if err = checkConservation(esc); err != nil {
			return 0, err
		}
		if err = e.state.EscrowPut(item.BountyID, esc); err != nil {
			return 0, err
		}
		totalReleased.Add(totalReleased, payout)
		e.emit(NewReleasedEvent(item.BountyID, esc, item.Contributor, payout, applied.Fee, now))
		released++
	}
	if err = e.updateStats(func(s *Stats) {
		s.TotalReleased.Add(s.TotalReleased, totalReleased)
	}); err != nil {
		return 0, err
	}
	e.emit(NewBatchReleasedEvent(released, totalReleased, now))
	return released, nil
}
