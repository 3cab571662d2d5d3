package escrow

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"bountyvault/core/types"
	"bountyvault/native/fees"
)

const (
	EventTypeInitialized      = "escrow.initialized"
	EventTypeFundsLocked      = "escrow.locked"
	EventTypeFundsReleased    = "escrow.released"
	EventTypeFundsRefunded    = "escrow.refunded"
	EventTypeRefundApproved   = "escrow.refund_approved"
	EventTypeSchedulesCreated = "escrow.schedule.created"
	EventTypeScheduleReleased = "escrow.schedule.released"
	EventTypeScheduleCancel   = "escrow.schedule.cancelled"
	EventTypeBatchLocked      = "escrow.batch.locked"
	EventTypeBatchReleased    = "escrow.batch.released"
	EventTypePaused           = "escrow.paused"
	EventTypeUnpaused         = "escrow.unpaused"
	EventTypeFeeConfigUpdated = "escrow.fee_config.updated"
	EventTypeAdminRotated     = "escrow.admin.rotated"
)

func addrAttr(addr [20]byte) string { return hex.EncodeToString(addr[:]) }

func amountAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// NewInitializedEvent records the one-time module initialisation.
func NewInitializedEvent(admin, token [20]byte, ts uint64) *types.Event {
	return &types.Event{Type: EventTypeInitialized, Attributes: map[string]string{
		"admin":     addrAttr(admin),
		"token":     addrAttr(token),
		"timestamp": strconv.FormatUint(ts, 10),
	}}
}

// NewLockedEvent records funds entering custody for a bounty.
func NewLockedEvent(bountyID uint64, e *Escrow, lockFee *big.Int) *types.Event {
	attrs := map[string]string{
		"bountyId": strconv.FormatUint(bountyID, 10),
		"lockFee":  amountAttr(lockFee),
	}
	if e != nil {
		attrs["depositor"] = addrAttr(e.Depositor)
		attrs["amount"] = amountAttr(e.Amount)
		attrs["deadline"] = strconv.FormatUint(e.Deadline, 10)
	}
	return &types.Event{Type: EventTypeFundsLocked, Attributes: attrs}
}

// NewReleasedEvent records a payout to a contributor.
func NewReleasedEvent(bountyID uint64, e *Escrow, contributor [20]byte, payout, fee *big.Int, ts uint64) *types.Event {
	attrs := map[string]string{
		"bountyId":  strconv.FormatUint(bountyID, 10),
		"recipient": addrAttr(contributor),
		"amount":    amountAttr(payout),
		"fee":       amountAttr(fee),
		"timestamp": strconv.FormatUint(ts, 10),
	}
	if e != nil {
		attrs["remaining"] = amountAttr(e.RemainingAmount)
		attrs["status"] = e.Status.String()
	}
	return &types.Event{Type: EventTypeFundsReleased, Attributes: attrs}
}

// NewRefundedEvent records a refund leaving custody.
func NewRefundedEvent(bountyID uint64, e *Escrow, recipient [20]byte, amount *big.Int, mode RefundMode, ts uint64) *types.Event {
	attrs := map[string]string{
		"bountyId":  strconv.FormatUint(bountyID, 10),
		"refundTo":  addrAttr(recipient),
		"amount":    amountAttr(amount),
		"mode":      mode.String(),
		"timestamp": strconv.FormatUint(ts, 10),
	}
	if e != nil {
		attrs["remaining"] = amountAttr(e.RemainingAmount)
		attrs["status"] = e.Status.String()
	}
	return &types.Event{Type: EventTypeFundsRefunded, Attributes: attrs}
}

// NewRefundApprovedEvent records a stored Custom refund pre-authorization.
func NewRefundApprovedEvent(a *RefundApproval) *types.Event {
	attrs := map[string]string{}
	if a != nil {
		attrs["bountyId"] = strconv.FormatUint(a.BountyID, 10)
		attrs["amount"] = amountAttr(a.Amount)
		attrs["recipient"] = addrAttr(a.Recipient)
		attrs["mode"] = a.Mode.String()
		attrs["approvedBy"] = addrAttr(a.ApprovedBy)
		attrs["approvedAt"] = strconv.FormatUint(a.ApprovedAt, 10)
	}
	return &types.Event{Type: EventTypeRefundApproved, Attributes: attrs}
}

// NewSchedulesCreatedEvent records a batch of new milestone schedules.
func NewSchedulesCreatedEvent(bountyID uint64, created []ReleaseSchedule, ts uint64) *types.Event {
	total := big.NewInt(0)
	for i := range created {
		if created[i].Amount != nil {
			total.Add(total, created[i].Amount)
		}
	}
	return &types.Event{Type: EventTypeSchedulesCreated, Attributes: map[string]string{
		"bountyId":  strconv.FormatUint(bountyID, 10),
		"count":     strconv.Itoa(len(created)),
		"total":     total.String(),
		"timestamp": strconv.FormatUint(ts, 10),
	}}
}

// NewScheduleReleasedEvent records one executed schedule payout.
func NewScheduleReleasedEvent(bountyID uint64, s *ReleaseSchedule, recipient [20]byte, ts uint64) *types.Event {
	attrs := map[string]string{
		"bountyId":  strconv.FormatUint(bountyID, 10),
		"recipient": addrAttr(recipient),
		"timestamp": strconv.FormatUint(ts, 10),
	}
	if s != nil {
		attrs["scheduleId"] = strconv.FormatUint(s.ID, 10)
		attrs["amount"] = amountAttr(s.Amount)
		attrs["releasedBy"] = addrAttr(s.ReleasedBy)
	}
	return &types.Event{Type: EventTypeScheduleReleased, Attributes: attrs}
}

// NewScheduleCancelledEvent records a voided schedule.
func NewScheduleCancelledEvent(bountyID uint64, s *ReleaseSchedule, ts uint64) *types.Event {
	attrs := map[string]string{
		"bountyId":  strconv.FormatUint(bountyID, 10),
		"timestamp": strconv.FormatUint(ts, 10),
	}
	if s != nil {
		attrs["scheduleId"] = strconv.FormatUint(s.ID, 10)
		attrs["amount"] = amountAttr(s.Amount)
	}
	return &types.Event{Type: EventTypeScheduleCancel, Attributes: attrs}
}

// NewBatchLockedEvent is the aggregate record emitted after a BatchLock in
// addition to the per-item events.
func NewBatchLockedEvent(count int, total *big.Int, ts uint64) *types.Event {
	return &types.Event{Type: EventTypeBatchLocked, Attributes: map[string]string{
		"count":     strconv.Itoa(count),
		"total":     amountAttr(total),
		"timestamp": strconv.FormatUint(ts, 10),
	}}
}

// NewBatchReleasedEvent is the aggregate record emitted after a BatchRelease.
func NewBatchReleasedEvent(count int, total *big.Int, ts uint64) *types.Event {
	return &types.Event{Type: EventTypeBatchReleased, Attributes: map[string]string{
		"count":     strconv.Itoa(count),
		"total":     amountAttr(total),
		"timestamp": strconv.FormatUint(ts, 10),
	}}
}

// NewPausedEvent records a pause or unpause transition.
func NewPausedEvent(paused bool, ts uint64) *types.Event {
	eventType := EventTypeUnpaused
	if paused {
		eventType = EventTypePaused
	}
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"timestamp": strconv.FormatUint(ts, 10),
	}}
}

// NewFeeConfigUpdatedEvent records a fee policy change.
func NewFeeConfigUpdatedEvent(cfg *fees.Config, ts uint64) *types.Event {
	attrs := map[string]string{
		"timestamp": strconv.FormatUint(ts, 10),
	}
	if cfg != nil {
		attrs["lockFeeRate"] = strconv.FormatUint(uint64(cfg.LockFeeRate), 10)
		attrs["releaseFeeRate"] = strconv.FormatUint(uint64(cfg.ReleaseFeeRate), 10)
		attrs["feeRecipient"] = addrAttr(cfg.FeeRecipient)
		attrs["enabled"] = strconv.FormatBool(cfg.Enabled)
	}
	return &types.Event{Type: EventTypeFeeConfigUpdated, Attributes: attrs}
}

// NewAdminRotatedEvent records an admin identity rotation.
func NewAdminRotatedEvent(oldAdmin, newAdmin [20]byte, ts uint64) *types.Event {
	return &types.Event{Type: EventTypeAdminRotated, Attributes: map[string]string{
		"admin":     addrAttr(oldAdmin),
		"newAdmin":  addrAttr(newAdmin),
		"timestamp": strconv.FormatUint(ts, 10),
	}}
}
