package escrowd

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"bountyvault/native/common"
	"bountyvault/native/escrow"
	"bountyvault/native/fees"
)

// Addresses travel as hex strings with an optional 0x prefix; amounts as
// base-10 strings so arbitrary precision survives JSON.

func parseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if trimmed == "" {
		return addr, errors.New("address is required")
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address: %w", err)
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("invalid address: expected %d bytes, got %d", len(addr), len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

func formatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("amount is required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", raw)
	}
	return value, nil
}

// parseOptionalAmount returns nil for an empty string, which the engine
// interprets as "full remaining balance".
func parseOptionalAmount(raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return parseAmount(raw)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseRefundMode(raw string) (escrow.RefundMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "full", "":
		return escrow.RefundFull, nil
	case "partial":
		return escrow.RefundPartial, nil
	case "custom":
		return escrow.RefundCustom, nil
	default:
		return 0, fmt.Errorf("unsupported refund mode: %q", raw)
	}
}

// --- request payloads ---

type lockRequest struct {
	Depositor string `json:"depositor"`
	BountyID  uint64 `json:"bountyId"`
	Amount    string `json:"amount"`
	Deadline  uint64 `json:"deadline"`
}

type releaseRequest struct {
	Caller      string `json:"caller"`
	BountyID    uint64 `json:"bountyId"`
	Contributor string `json:"contributor"`
	Amount      string `json:"amount,omitempty"`
}

type refundRequest struct {
	Caller    string `json:"caller"`
	BountyID  uint64 `json:"bountyId"`
	Amount    string `json:"amount,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Mode      string `json:"mode"`
}

type approveRefundRequest struct {
	Caller    string `json:"caller"`
	BountyID  uint64 `json:"bountyId"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
	Mode      string `json:"mode"`
}

type scheduleItemRequest struct {
	Amount    string `json:"amount"`
	Timestamp uint64 `json:"timestamp"`
}

type schedulesCreateRequest struct {
	Caller    string                `json:"caller"`
	Schedules []scheduleItemRequest `json:"schedules"`
}

type scheduleExecuteRequest struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
}

type scheduleCancelRequest struct {
	Caller string `json:"caller"`
}

type batchLockItemRequest struct {
	Depositor string `json:"depositor"`
	BountyID  uint64 `json:"bountyId"`
	Amount    string `json:"amount"`
	Deadline  uint64 `json:"deadline"`
}

type batchLockRequest struct {
	Items []batchLockItemRequest `json:"items"`
}

type batchReleaseItemRequest struct {
	BountyID    uint64 `json:"bountyId"`
	Contributor string `json:"contributor"`
}

type batchReleaseRequest struct {
	Caller string                    `json:"caller"`
	Items  []batchReleaseItemRequest `json:"items"`
}

type callerRequest struct {
	Caller string `json:"caller"`
}

type feeConfigRequest struct {
	Caller         string `json:"caller"`
	LockFeeRate    uint32 `json:"lockFeeRate"`
	ReleaseFeeRate uint32 `json:"releaseFeeRate"`
	FeeRecipient   string `json:"feeRecipient"`
	Enabled        bool   `json:"enabled"`
}

type rotateAdminRequest struct {
	Caller   string `json:"caller"`
	NewAdmin string `json:"newAdmin"`
}

type rateLimitConfigRequest struct {
	Caller         string `json:"caller"`
	WindowSize     uint64 `json:"windowSize"`
	MaxOperations  uint32 `json:"maxOperations"`
	CooldownPeriod uint64 `json:"cooldownPeriod"`
}

type whitelistRequest struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
	Remove  bool   `json:"remove,omitempty"`
}

// --- response views ---

type escrowView struct {
	Depositor       string `json:"depositor"`
	Amount          string `json:"amount"`
	RemainingAmount string `json:"remainingAmount"`
	Status          string `json:"status"`
	Deadline        uint64 `json:"deadline"`
	CreatedAt       uint64 `json:"createdAt"`
	Refunds         int    `json:"refunds"`
	Payouts         int    `json:"payouts"`
	Schedules       int    `json:"schedules"`
}

func newEscrowView(e *escrow.Escrow) escrowView {
	return escrowView{
		Depositor:       formatAddress(e.Depositor),
		Amount:          formatAmount(e.Amount),
		RemainingAmount: formatAmount(e.RemainingAmount),
		Status:          e.Status.String(),
		Deadline:        e.Deadline,
		CreatedAt:       e.CreatedAt,
		Refunds:         len(e.RefundHistory),
		Payouts:         len(e.PayoutHistory),
		Schedules:       len(e.ReleaseSchedules),
	}
}

type refundView struct {
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
	Mode      string `json:"mode"`
	Timestamp uint64 `json:"timestamp"`
}

func newRefundViews(records []escrow.RefundRecord) []refundView {
	views := make([]refundView, len(records))
	for i, rec := range records {
		views[i] = refundView{
			Amount:    formatAmount(rec.Amount),
			Recipient: formatAddress(rec.Recipient),
			Mode:      rec.Mode.String(),
			Timestamp: rec.Timestamp,
		}
	}
	return views
}

type payoutView struct {
	Recipient  string `json:"recipient"`
	Amount     string `json:"amount"`
	Fee        string `json:"fee"`
	ScheduleID uint64 `json:"scheduleId,omitempty"`
	Timestamp  uint64 `json:"timestamp"`
}

func newPayoutViews(records []escrow.PayoutRecord) []payoutView {
	views := make([]payoutView, len(records))
	for i, rec := range records {
		views[i] = payoutView{
			Recipient:  formatAddress(rec.Recipient),
			Amount:     formatAmount(rec.Amount),
			Fee:        formatAmount(rec.Fee),
			ScheduleID: rec.ScheduleID,
			Timestamp:  rec.Timestamp,
		}
	}
	return views
}

type scheduleView struct {
	ID         uint64 `json:"id"`
	Amount     string `json:"amount"`
	Timestamp  uint64 `json:"timestamp"`
	Status     string `json:"status"`
	ReleasedAt uint64 `json:"releasedAt,omitempty"`
	ReleasedBy string `json:"releasedBy,omitempty"`
}

func newScheduleViews(schedules []escrow.ReleaseSchedule) []scheduleView {
	views := make([]scheduleView, len(schedules))
	for i, sched := range schedules {
		view := scheduleView{
			ID:        sched.ID,
			Amount:    formatAmount(sched.Amount),
			Timestamp: sched.Timestamp,
			Status:    sched.Status.String(),
		}
		if sched.Status == escrow.ScheduleReleased {
			view.ReleasedAt = sched.ReleasedAt
			view.ReleasedBy = formatAddress(sched.ReleasedBy)
		}
		views[i] = view
	}
	return views
}

type scheduleHistoryView struct {
	ScheduleID uint64 `json:"scheduleId"`
	Amount     string `json:"amount"`
	Timestamp  uint64 `json:"timestamp"`
	Status     string `json:"status"`
	RecordedAt uint64 `json:"recordedAt"`
}

func newScheduleHistoryViews(entries []escrow.ScheduleHistoryEntry) []scheduleHistoryView {
	views := make([]scheduleHistoryView, len(entries))
	for i, entry := range entries {
		views[i] = scheduleHistoryView{
			ScheduleID: entry.ScheduleID,
			Amount:     formatAmount(entry.Amount),
			Timestamp:  entry.Timestamp,
			Status:     entry.Status.String(),
			RecordedAt: entry.RecordedAt,
		}
	}
	return views
}

type statsView struct {
	TotalBounties  uint64 `json:"totalBounties"`
	TotalLocked    string `json:"totalLocked"`
	TotalReleased  string `json:"totalReleased"`
	TotalRefunded  string `json:"totalRefunded"`
	TotalSucceeded uint64 `json:"totalSucceeded"`
	TotalFailed    uint64 `json:"totalFailed"`
}

func newStatsView(stats *escrow.Stats) statsView {
	return statsView{
		TotalBounties:  stats.TotalBounties,
		TotalLocked:    formatAmount(stats.TotalLocked),
		TotalReleased:  formatAmount(stats.TotalReleased),
		TotalRefunded:  formatAmount(stats.TotalRefunded),
		TotalSucceeded: stats.TotalSucceeded,
		TotalFailed:    stats.TotalFailed,
	}
}

type feeConfigView struct {
	LockFeeRate    uint32 `json:"lockFeeRate"`
	ReleaseFeeRate uint32 `json:"releaseFeeRate"`
	FeeRecipient   string `json:"feeRecipient"`
	Enabled        bool   `json:"enabled"`
}

func newFeeConfigView(cfg *fees.Config) feeConfigView {
	return feeConfigView{
		LockFeeRate:    cfg.LockFeeRate,
		ReleaseFeeRate: cfg.ReleaseFeeRate,
		FeeRecipient:   formatAddress(cfg.FeeRecipient),
		Enabled:        cfg.Enabled,
	}
}

// --- wire helpers ---

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status <= 0 {
		status = http.StatusInternalServerError
	}
	msg := strings.ReplaceAll(err.Error(), "\"", "'")
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps engine sentinels onto HTTP status codes. Unknown errors are
// treated as internal.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, escrow.ErrBountyNotFound),
		errors.Is(err, escrow.ErrScheduleNotFound),
		errors.Is(err, escrow.ErrScheduleIndexOutOfBounds):
		return http.StatusNotFound
	case errors.Is(err, escrow.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, common.ErrRateLimitCooldown),
		errors.Is(err, common.ErrRateLimitExceeded),
		errors.Is(err, common.ErrRateLimitOverflow):
		return http.StatusTooManyRequests
	case errors.Is(err, escrow.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, escrow.ErrAlreadyInitialized),
		errors.Is(err, escrow.ErrBountyExists),
		errors.Is(err, escrow.ErrDuplicateBountyID),
		errors.Is(err, escrow.ErrFundsNotLocked),
		errors.Is(err, escrow.ErrContractPaused),
		errors.Is(err, escrow.ErrInsufficientFunds),
		errors.Is(err, escrow.ErrDeadlineNotPassed),
		errors.Is(err, escrow.ErrRefundNotApproved),
		errors.Is(err, escrow.ErrAdminTimelocked),
		errors.Is(err, escrow.ErrScheduleAlreadyReleased),
		errors.Is(err, escrow.ErrScheduleNotReady),
		errors.Is(err, escrow.ErrTotalScheduleExceedsAmount):
		return http.StatusConflict
	case errors.Is(err, escrow.ErrInvalidAmount),
		errors.Is(err, escrow.ErrInvalidDeadline),
		errors.Is(err, escrow.ErrInvalidScheduleAmount),
		errors.Is(err, escrow.ErrInvalidScheduleTimestamp),
		errors.Is(err, escrow.ErrInvalidBatchSize),
		errors.Is(err, escrow.ErrBatchSizeMismatch),
		errors.Is(err, fees.ErrInvalidFeeRate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
