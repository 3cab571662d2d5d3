package escrow

import (
	"fmt"
	"math/big"
)

// Status represents the lifecycle states of a bounty escrow. Released and
// Refunded are terminal; the remaining states are transient and re-derived
// from the remaining balance and pending schedules after every mutation.
type Status uint8

const (
	StatusLocked Status = iota
	StatusPartiallyReleased
	StatusReleased
	StatusScheduled
	StatusPartiallyRefunded
	StatusRefunded
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusLocked, StatusPartiallyReleased, StatusReleased, StatusScheduled, StatusPartiallyRefunded, StatusRefunded:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further fund movement is possible.
func (s Status) Terminal() bool {
	return s == StatusReleased || s == StatusRefunded
}

// String returns the canonical lowercase name used in event payloads.
func (s Status) String() string {
	switch s {
	case StatusLocked:
		return "locked"
	case StatusPartiallyReleased:
		return "partially_released"
	case StatusReleased:
		return "released"
	case StatusScheduled:
		return "scheduled"
	case StatusPartiallyRefunded:
		return "partially_refunded"
	case StatusRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// RefundMode selects how a refund resolves its amount and recipient.
type RefundMode uint8

const (
	// RefundFull returns the entire remaining balance to the depositor.
	RefundFull RefundMode = iota
	// RefundPartial returns a chosen amount to the depositor.
	RefundPartial
	// RefundCustom returns a chosen amount to a chosen recipient and, before
	// the deadline, requires a matching stored approval.
	RefundCustom
)

// Valid reports whether the mode is one of the supported variants.
func (m RefundMode) Valid() bool {
	switch m {
	case RefundFull, RefundPartial, RefundCustom:
		return true
	default:
		return false
	}
}

func (m RefundMode) String() string {
	switch m {
	case RefundFull:
		return "full"
	case RefundPartial:
		return "partial"
	case RefundCustom:
		return "custom"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// RefundRecord is one append-only refund history entry.
type RefundRecord struct {
	Amount    *big.Int
	Recipient [20]byte
	Mode      RefundMode
	Timestamp uint64
}

// PayoutRecord is one append-only payout history entry. ScheduleID is zero for
// direct releases; schedule identifiers start at one.
type PayoutRecord struct {
	Recipient  [20]byte
	Amount     *big.Int
	Fee        *big.Int
	ScheduleID uint64
	Timestamp  uint64
}

// Escrow holds the full custody state for a single bounty identifier. Amount
// is the gross figure ledgered at lock time and never changes; RemainingAmount
// decreases monotonically as payouts and refunds drain the escrow. Histories
// are append-only and unbounded, matching the upstream contract; bounding or
// paginating them is a gateway concern, not a ledger one.
type Escrow struct {
	Depositor        [20]byte
	Amount           *big.Int
	RemainingAmount  *big.Int
	Status           Status
	Deadline         uint64
	CreatedAt        uint64
	RefundHistory    []RefundRecord
	PayoutHistory    []PayoutRecord
	ReleaseSchedules []ReleaseSchedule
	NextScheduleID   uint64
	ScheduleHistory  []ScheduleHistoryEntry
}

// RefundApproval pre-authorises a single Custom refund ahead of the deadline.
// It is consumed atomically on an exact (amount, recipient, mode) match.
type RefundApproval struct {
	BountyID   uint64
	Amount     *big.Int
	Recipient  [20]byte
	Mode       RefundMode
	ApprovedBy [20]byte
	ApprovedAt uint64
}

// Stats aggregates module-wide accounting for the bounty registry.
type Stats struct {
	TotalBounties  uint64
	TotalLocked    *big.Int
	TotalReleased  *big.Int
	TotalRefunded  *big.Int
	TotalSucceeded uint64
	TotalFailed    uint64
}

// Clone returns a deep copy of the stats record.
func (s *Stats) Clone() *Stats {
	if s == nil {
		return &Stats{TotalLocked: big.NewInt(0), TotalReleased: big.NewInt(0), TotalRefunded: big.NewInt(0)}
	}
	clone := *s
	clone.TotalLocked = cloneBigInt(s.TotalLocked)
	clone.TotalReleased = cloneBigInt(s.TotalReleased)
	clone.TotalRefunded = cloneBigInt(s.TotalRefunded)
	return &clone
}

// Clone returns a deep copy of the escrow so callers can safely mutate the
// copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Amount = cloneBigInt(e.Amount)
	clone.RemainingAmount = cloneBigInt(e.RemainingAmount)
	if len(e.RefundHistory) > 0 {
		clone.RefundHistory = make([]RefundRecord, len(e.RefundHistory))
		for i, rec := range e.RefundHistory {
			rec.Amount = cloneBigInt(rec.Amount)
			clone.RefundHistory[i] = rec
		}
	}
	if len(e.PayoutHistory) > 0 {
		clone.PayoutHistory = make([]PayoutRecord, len(e.PayoutHistory))
		for i, rec := range e.PayoutHistory {
			rec.Amount = cloneBigInt(rec.Amount)
			rec.Fee = cloneBigInt(rec.Fee)
			clone.PayoutHistory[i] = rec
		}
	}
	if len(e.ReleaseSchedules) > 0 {
		clone.ReleaseSchedules = make([]ReleaseSchedule, len(e.ReleaseSchedules))
		for i, sched := range e.ReleaseSchedules {
			sched.Amount = cloneBigInt(sched.Amount)
			clone.ReleaseSchedules[i] = sched
		}
	}
	if len(e.ScheduleHistory) > 0 {
		clone.ScheduleHistory = make([]ScheduleHistoryEntry, len(e.ScheduleHistory))
		for i, entry := range e.ScheduleHistory {
			entry.Amount = cloneBigInt(entry.Amount)
			clone.ScheduleHistory[i] = entry
		}
	}
	return &clone
}

// Clone returns a deep copy of the approval.
func (a *RefundApproval) Clone() *RefundApproval {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Amount = cloneBigInt(a.Amount)
	return &clone
}

// Matches reports whether a refund request is covered by this approval. The
// tuple must match exactly; anything else leaves the approval unconsumed.
func (a *RefundApproval) Matches(amount *big.Int, recipient [20]byte, mode RefundMode) bool {
	if a == nil || a.Amount == nil || amount == nil {
		return false
	}
	return a.Amount.Cmp(amount) == 0 && a.Recipient == recipient && a.Mode == mode
}

// HasPendingSchedules reports whether any schedule is still awaiting
// execution.
func (e *Escrow) HasPendingSchedules() bool {
	if e == nil {
		return false
	}
	for i := range e.ReleaseSchedules {
		if e.ReleaseSchedules[i].Status == SchedulePending {
			return true
		}
	}
	return false
}

// PendingScheduleTotal sums the amounts of all pending schedules.
func (e *Escrow) PendingScheduleTotal() *big.Int {
	total := big.NewInt(0)
	if e == nil {
		return total
	}
	for i := range e.ReleaseSchedules {
		if e.ReleaseSchedules[i].Status == SchedulePending && e.ReleaseSchedules[i].Amount != nil {
			total.Add(total, e.ReleaseSchedules[i].Amount)
		}
	}
	return total
}

// movement tags which drain direction last mutated the escrow so the derived
// transient/terminal status points the right way.
type movement uint8

const (
	movementNone movement = iota
	movementRelease
	movementRefund
)

// deriveStatus recomputes the escrow status from the remaining balance and
// pending schedules. It is invoked at the end of every mutating operation
// instead of scattering ad hoc status assignments.
func deriveStatus(e *Escrow, moved movement) Status {
	if e == nil {
		return StatusLocked
	}
	remaining := e.RemainingAmount
	drained := remaining == nil || remaining.Sign() == 0
	if e.HasPendingSchedules() {
		return StatusScheduled
	}
	switch moved {
	case movementRelease:
		if drained {
			return StatusReleased
		}
		return StatusPartiallyReleased
	case movementRefund:
		if drained {
			return StatusRefunded
		}
		return StatusPartiallyRefunded
	default:
		if len(e.PayoutHistory) > 0 {
			if drained {
				return StatusReleased
			}
			return StatusPartiallyReleased
		}
		if len(e.RefundHistory) > 0 {
			if drained {
				return StatusRefunded
			}
			return StatusPartiallyRefunded
		}
		return StatusLocked
	}
}

// SanitizeEscrow validates and normalises the supplied escrow, returning a
// cloned instance with non-nil amount fields. The original value is not
// mutated.
func SanitizeEscrow(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("escrow: nil escrow")
	}
	clone := e.Clone()
	if clone.Amount == nil {
		clone.Amount = big.NewInt(0)
	}
	if clone.RemainingAmount == nil {
		clone.RemainingAmount = big.NewInt(0)
	}
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("escrow: amount must be non-negative")
	}
	if clone.RemainingAmount.Sign() < 0 || clone.RemainingAmount.Cmp(clone.Amount) > 0 {
		return nil, fmt.Errorf("escrow: remaining amount out of range")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("escrow: invalid status: %d", clone.Status)
	}
	return clone, nil
}

// checkConservation verifies remaining + payouts + refunds == amount. Every
// mutating operation re-checks it before persisting.
func checkConservation(e *Escrow) error {
	if e == nil {
		return fmt.Errorf("escrow: nil escrow")
	}
	total := cloneBigInt(e.RemainingAmount)
	for i := range e.PayoutHistory {
		if e.PayoutHistory[i].Amount != nil {
			total.Add(total, e.PayoutHistory[i].Amount)
		}
	}
	for i := range e.RefundHistory {
		if e.RefundHistory[i].Amount != nil {
			total.Add(total, e.RefundHistory[i].Amount)
		}
	}
	if e.Amount == nil || total.Cmp(e.Amount) != 0 {
		return fmt.Errorf("escrow: conservation violated: %s != %s", total, e.Amount)
	}
	return nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
