package escrow

import (
	"fmt"
	"math/big"
)

// ScheduleStatus represents the state of an individual release schedule.
type ScheduleStatus uint8

const (
	// SchedulePending indicates a schedule is awaiting execution.
	SchedulePending ScheduleStatus = iota
	// ScheduleReleased indicates the schedule has been paid out.
	ScheduleReleased
	// ScheduleCancelled indicates the schedule was voided before execution.
	ScheduleCancelled
)

// Valid reports whether the status value is within the supported range.
func (s ScheduleStatus) Valid() bool {
	switch s {
	case SchedulePending, ScheduleReleased, ScheduleCancelled:
		return true
	default:
		return false
	}
}

func (s ScheduleStatus) String() string {
	switch s {
	case SchedulePending:
		return "pending"
	case ScheduleReleased:
		return "released"
	case ScheduleCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("schedule(%d)", uint8(s))
	}
}

// ReleaseSchedule is a milestone payout of a fixed sub-amount executable at or
// after a fixed time. Identifiers are unique within an escrow, assigned from a
// monotonically increasing counter and never reused.
type ReleaseSchedule struct {
	ID         uint64
	Amount     *big.Int
	Timestamp  uint64
	Status     ScheduleStatus
	ReleasedAt uint64
	ReleasedBy [20]byte
}

// Clone returns a deep copy of the schedule.
func (s *ReleaseSchedule) Clone() *ReleaseSchedule {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Amount = cloneBigInt(s.Amount)
	return &clone
}

// Validate ensures the schedule fields are sane prior to persistence.
func (s *ReleaseSchedule) Validate(now uint64) error {
	if s == nil {
		return fmt.Errorf("%w: schedule must not be nil", ErrInvalidScheduleAmount)
	}
	if s.Amount == nil || s.Amount.Sign() <= 0 {
		return ErrInvalidScheduleAmount
	}
	if s.Timestamp <= now {
		return ErrInvalidScheduleTimestamp
	}
	return nil
}

// ScheduleHistoryEntry mirrors one schedule lifecycle change for audit. The
// history is append-only and never truncated.
type ScheduleHistoryEntry struct {
	ScheduleID uint64
	Amount     *big.Int
	Timestamp  uint64
	Status     ScheduleStatus
	RecordedAt uint64
}

// ScheduleRequest is one (amount, timestamp) pair supplied to CreateSchedules.
type ScheduleRequest struct {
	Amount    *big.Int
	Timestamp uint64
}

// findSchedule returns the schedule at the given index, or an error when the
// index is out of bounds.
func (e *Escrow) findSchedule(index int) (*ReleaseSchedule, error) {
	if e == nil || index < 0 || index >= len(e.ReleaseSchedules) {
		return nil, ErrScheduleIndexOutOfBounds
	}
	return &e.ReleaseSchedules[index], nil
}

// mirrorSchedule appends the schedule's current state to the audit history.
func (e *Escrow) mirrorSchedule(s *ReleaseSchedule, recordedAt uint64) {
	if e == nil || s == nil {
		return
	}
	e.ScheduleHistory = append(e.ScheduleHistory, ScheduleHistoryEntry{
		ScheduleID: s.ID,
		Amount:     cloneBigInt(s.Amount),
		Timestamp:  s.Timestamp,
		Status:     s.Status,
		RecordedAt: recordedAt,
	})
}
