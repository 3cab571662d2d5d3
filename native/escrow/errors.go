package escrow

import "errors"

var (
	// ErrAlreadyInitialized is returned when Init is called a second time.
	ErrAlreadyInitialized = errors.New("escrow: already initialized")
	// ErrNotInitialized is returned when an operation runs before Init.
	ErrNotInitialized = errors.New("escrow: not initialized")
	// ErrBountyExists rejects a lock against an identifier already in use.
	ErrBountyExists = errors.New("escrow: bounty already exists")
	// ErrBountyNotFound marks lookups against unknown bounty identifiers.
	ErrBountyNotFound = errors.New("escrow: bounty not found")
	// ErrDuplicateBountyID rejects a batch containing the same bounty twice.
	ErrDuplicateBountyID = errors.New("escrow: duplicate bounty id in batch")
	// ErrFundsNotLocked marks operations against escrows whose status does
	// not permit the transition.
	ErrFundsNotLocked = errors.New("escrow: funds not locked")
	// ErrContractPaused rejects mutations while the module is paused.
	ErrContractPaused = errors.New("escrow: contract paused")
	// ErrUnauthorized marks callers rejected at the authorization boundary.
	ErrUnauthorized = errors.New("escrow: unauthorized")
	// ErrInvalidAmount marks zero, negative, or over-budget amounts.
	ErrInvalidAmount = errors.New("escrow: invalid amount")
	// ErrInvalidDeadline rejects deadlines at or before the current time.
	ErrInvalidDeadline = errors.New("escrow: invalid deadline")
	// ErrInsufficientFunds marks transfers exceeding the custody balance.
	ErrInsufficientFunds = errors.New("escrow: insufficient funds")
	// ErrDeadlineNotPassed gates Full/Partial refunds until the deadline.
	ErrDeadlineNotPassed = errors.New("escrow: deadline not passed")
	// ErrRefundNotApproved marks Custom refunds lacking a matching approval.
	ErrRefundNotApproved = errors.New("escrow: refund not approved")
	// ErrAdminTimelocked rejects admin rotation inside the timelock window.
	ErrAdminTimelocked = errors.New("escrow: admin update timelocked")

	// ErrScheduleNotFound marks lookups against unknown schedule identifiers.
	ErrScheduleNotFound = errors.New("escrow: schedule not found")
	// ErrScheduleIndexOutOfBounds marks out-of-range schedule indexes.
	ErrScheduleIndexOutOfBounds = errors.New("escrow: schedule index out of bounds")
	// ErrScheduleAlreadyReleased rejects re-execution or cancellation of a
	// non-pending schedule.
	ErrScheduleAlreadyReleased = errors.New("escrow: schedule already released")
	// ErrScheduleNotReady gates execution until the schedule timestamp.
	ErrScheduleNotReady = errors.New("escrow: schedule not ready")
	// ErrInvalidScheduleTimestamp rejects schedule timestamps not strictly in
	// the future.
	ErrInvalidScheduleTimestamp = errors.New("escrow: invalid schedule timestamp")
	// ErrInvalidScheduleAmount rejects non-positive schedule amounts.
	ErrInvalidScheduleAmount = errors.New("escrow: invalid schedule amount")
	// ErrTotalScheduleExceedsAmount rejects schedule batches whose total,
	// combined with existing pending schedules, exceeds the remaining balance.
	ErrTotalScheduleExceedsAmount = errors.New("escrow: total schedules exceed remaining amount")

	// ErrInvalidBatchSize rejects empty or oversized batches.
	ErrInvalidBatchSize = errors.New("escrow: invalid batch size")
	// ErrBatchSizeMismatch rejects batches with mismatched parallel inputs.
	ErrBatchSizeMismatch = errors.New("escrow: batch size mismatch")

	// ErrReentrancy is the fatal guard violation raised when a mutating entry
	// point is re-entered while another mutation is in flight. It aborts the
	// call via panic rather than returning a recoverable error.
	ErrReentrancy = errors.New("escrow: reentrancy detected")
)
