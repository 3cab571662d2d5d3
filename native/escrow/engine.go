package escrow

import (
	"errors"
	"math/big"
	"sync/atomic"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"bountyvault/core/events"
	"bountyvault/core/types"
	"bountyvault/native/common"
	"bountyvault/native/fees"
)

const moduleName = "escrow"

// AdminUpdateTimelock is the minimum interval between admin rotations.
const AdminUpdateTimelock uint64 = 24 * 60 * 60

var (
	errNilState = errors.New("escrow engine: state not configured")

	// VaultAddress is the custody account holding all locked funds. Derived
	// deterministically so every deployment agrees on it without storing it.
	VaultAddress = deriveVaultAddress()
)

func deriveVaultAddress() [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256([]byte("bountyvault/escrow/vault"))
	copy(addr[:], digest[12:])
	return addr
}

type escrowStore interface {
	EscrowPut(id uint64, esc *Escrow) error
	EscrowGet(id uint64) (*Escrow, bool, error)
	EscrowHas(id uint64) (bool, error)
	RefundApprovalPut(approval *RefundApproval) error
	RefundApprovalGet(id uint64) (*RefundApproval, bool, error)
	RefundApprovalRemove(id uint64) error
	RegistryAdd(id uint64) error
	StatsGet() (*Stats, error)
	StatsPut(stats *Stats) error
}

type accountStore interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

type configStore interface {
	AdminGet() ([20]byte, bool, error)
	AdminPut(addr [20]byte) error
	AdminLastUpdateGet() (uint64, error)
	AdminLastUpdatePut(ts uint64) error
	TokenGet() ([20]byte, bool, error)
	TokenPut(addr [20]byte) error
	PausedGet() (bool, error)
	PausedSet(paused bool) error
	GuardActive() (bool, error)
	GuardSet() error
	GuardClear() error
	FeeConfigGet() (*fees.Config, bool, error)
	FeeConfigPut(cfg *fees.Config) error
}

type admissionStore interface {
	RateLimitConfigGet() (common.RateLimitConfig, error)
	RateLimitConfigPut(cfg common.RateLimitConfig) error
	RateLimitStateGet(addr [20]byte) (common.RateLimitState, error)
	RateLimitStatePut(addr [20]byte, state common.RateLimitState) error
	WhitelistHas(addr [20]byte) (bool, error)
	WhitelistAdd(addr [20]byte) error
	WhitelistRemove(addr [20]byte) error
}

type engineState interface {
	escrowStore
	accountStore
	configStore
	admissionStore
}

// Engine wires the bounty escrow state machine with external state and event
// emitters. Every mutating entry point is admitted by the rate limiter,
// serialised by a single coarse reentrancy guard, and either commits fully or
// leaves state untouched.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() uint64

	opsSucceeded atomic.Uint64
	opsFailed    atomic.Uint64
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// NewEngine creates an escrow engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

func (e *Engine) track(err *error) {
	if e == nil {
		return
	}
	if err == nil || *err != nil {
		e.opsFailed.Add(1)
		return
	}
	e.opsSucceeded.Add(1)
}

// admit consults the persisted sliding-window rate limiter before any other
// validation. Admission counters are recorded even when the operation later
// fails: attempts count against the budget.
func (e *Engine) admit(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	whitelisted, err := e.state.WhitelistHas(caller)
	if err != nil {
		return err
	}
	cfg, err := e.state.RateLimitConfigGet()
	if err != nil {
		return err
	}
	prev, err := e.state.RateLimitStateGet(caller)
	if err != nil {
		return err
	}
	next, err := common.CheckRateLimit(cfg, prev, e.now(), whitelisted)
	if err != nil {
		return err
	}
	if whitelisted {
		return nil
	}
	return e.state.RateLimitStatePut(caller, next)
}

// lockGuard acquires the single global reentrancy flag. Re-entry is a logic
// or attack condition, not ordinary user error, so it aborts the call via
// panic. The returned release function runs on every exit path.
func (e *Engine) lockGuard() (func(), error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	active, err := e.state.GuardActive()
	if err != nil {
		return nil, err
	}
	if active {
		panic(ErrReentrancy)
	}
	if err := e.state.GuardSet(); err != nil {
		return nil, err
	}
	return func() { _ = e.state.GuardClear() }, nil
}

type enginePauseView struct {
	state engineState
}

func (v enginePauseView) IsPaused(module string) bool {
	if v.state == nil {
		return false
	}
	paused, err := v.state.PausedGet()
	return err == nil && paused
}

func (e *Engine) checkPaused() error {
	if err := common.Guard(enginePauseView{state: e.state}, moduleName); err != nil {
		return ErrContractPaused
	}
	return nil
}

func (e *Engine) requireInitialized() ([20]byte, error) {
	admin, ok, err := e.state.AdminGet()
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, ErrNotInitialized
	}
	return admin, nil
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	admin, err := e.requireInitialized()
	if err != nil {
		return err
	}
	if caller != admin {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) feeConfig() (*fees.Config, error) {
	cfg, ok, err := e.state.FeeConfigGet()
	if err != nil {
		return nil, err
	}
	if !ok || cfg == nil {
		return &fees.Config{}, nil
	}
	return cfg, nil
}

// transfer moves value between ledger accounts. Zero amounts are a no-op;
// insufficient balances surface as ErrInsufficientFunds before any write.
func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return ErrInvalidAmount
	}
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientFunds
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return types.NewAccount()
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func (e *Engine) loadEscrow(id uint64) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	esc, ok, err := e.state.EscrowGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBountyNotFound
	}
	return esc, nil
}

func (e *Engine) vaultBalance() (*big.Int, error) {
	acc, err := e.state.GetAccount(VaultAddress)
	if err != nil {
		return nil, err
	}
	return ensureAccount(acc).Balance, nil
}

func (e *Engine) updateStats(mutate func(*Stats)) error {
	stats, err := e.state.StatsGet()
	if err != nil {
		return err
	}
	stats = stats.Clone()
	mutate(stats)
	return e.state.StatsPut(stats)
}

// Init records the admin identity and token contract address. It can run
// exactly once.
func (e *Engine) Init(admin, token [20]byte) (err error) {
	defer e.track(&err)
	if e == nil || e.state == nil {
		return errNilState
	}
	if err = e.admit(admin); err != nil {
		return err
	}
	if _, ok, aerr := e.state.AdminGet(); aerr != nil {
		return aerr
	} else if ok {
		return ErrAlreadyInitialized
	}
	if err = e.state.AdminPut(admin); err != nil {
		return err
	}
	if err = e.state.TokenPut(token); err != nil {
		return err
	}
	if err = e.state.AdminLastUpdatePut(e.now()); err != nil {
		return err
	}
	e.emit(NewInitializedEvent(admin, token, e.now()))
	return nil
}

// Lock transfers the deposit into custody and creates the escrow record for a
// fresh bounty identifier. The ledgered amount is the gross, pre-fee figure;
// the lock fee is deducted from what reaches custody, matching the upstream
// contract. Release and refund paths re-check the custody balance so a
// shortfall surfaces as ErrInsufficientFunds instead of corrupting accounts.
func (e *Engine) Lock(depositor [20]byte, bountyID uint64, amount *big.Int, deadline uint64) (err error) {
	defer e.track(&err)
	if e == nil || e.state == nil {
		return errNilState
	}
	if err = e.admit(depositor); err != nil {
		return err
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
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	now := e.now()
	if deadline <= now {
		return ErrInvalidDeadline
	}
	exists, herr := e.state.EscrowHas(bountyID)
	if herr != nil {
		return herr
	}
	if exists {
		return ErrBountyExists
	}

	feeCfg, ferr := e.feeConfig()
	if ferr != nil {
		return ferr
	}
	applied := fees.Result{Fee: big.NewInt(0), Net: cloneBigInt(amount)}
	if feeCfg.Enabled {
		applied = fees.Apply(amount, feeCfg.LockFeeRate)
	}
	// The depositor must cover the gross amount before either transfer runs,
	// otherwise the custody leg could land while the fee leg fails.
	depAcc, derr := e.state.GetAccount(depositor)
	if derr != nil {
		return derr
	}
	if ensureAccount(depAcc).Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	if err = e.transfer(depositor, VaultAddress, applied.Net); err != nil {
		return err
	}
	if feeCfg.Enabled && applied.Fee.Sign() > 0 {
		if err = e.transfer(depositor, feeCfg.FeeRecipient, applied.Fee); err != nil {
			return err
		}
	}

	esc := &Escrow{
		Depositor:       depositor,
		Amount:          cloneBigInt(amount),
		RemainingAmount: cloneBigInt(amount),
		Status:          StatusLocked,
		Deadline:        deadline,
		CreatedAt:       now,
		NextScheduleID:  1,
	}
	if err = e.state.EscrowPut(bountyID, esc); err != nil {
		return err
	}
	if err = e.state.RegistryAdd(bountyID); err != nil {
		return err
	}
	if err = e.updateStats(func(s *Stats) {
		s.TotalBounties++
		s.TotalLocked.Add(s.TotalLocked, amount)
	}); err != nil {
		return err
	}
	e.emit(NewLockedEvent(bountyID, esc, applied.Fee))
	return nil
}

// Release pays out escrowed funds to a contributor. Only the admin may call
// it. A nil amount releases the full remaining balance; otherwise the amount
// must fit within it. The release fee is carved out of the payout.
func (e *Engine) Release(caller [20]byte, bountyID uint64, contributor [20]byte, amount *big.Int) (err error) {
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
	if esc.Status != StatusLocked && esc.Status != StatusPartiallyReleased {
		return ErrFundsNotLocked
	}
	payout := cloneBigInt(esc.RemainingAmount)
	if amount != nil {
		if amount.Sign() <= 0 || amount.Cmp(esc.RemainingAmount) > 0 {
			return ErrInvalidAmount
		}
		payout = cloneBigInt(amount)
	}
	if payout.Sign() <= 0 {
		return ErrInvalidAmount
	}

	feeCfg, ferr := e.feeConfig()
	if ferr != nil {
		return ferr
	}
	applied := fees.Result{Fee: big.NewInt(0), Net: cloneBigInt(payout)}
	if feeCfg.Enabled {
		applied = fees.Apply(payout, feeCfg.ReleaseFeeRate)
	}
	balance, berr := e.vaultBalance()
	if berr != nil {
		return berr
	}
	if balance.Cmp(payout) < 0 {
		return ErrInsufficientFunds
	}

	if err = e.transfer(VaultAddress, contributor, applied.Net); err != nil {
		return err
	}
	if feeCfg.Enabled && applied.Fee.Sign() > 0 {
		if err = e.transfer(VaultAddress, feeCfg.FeeRecipient, applied.Fee); err != nil {
			return err
		}
	}

	now := e.now()
	esc.RemainingAmount = new(big.Int).Sub(esc.RemainingAmount, payout)
	esc.PayoutHistory = append(esc.PayoutHistory, PayoutRecord{
		Recipient: contributor,
		Amount:    payout,
		Fee:       applied.Fee,
		Timestamp: now,
	})
	esc.Status = deriveStatus(esc, movementRelease)
	if err = checkConservation(esc); err != nil {
		return err
	}
	if err = e.state.EscrowPut(bountyID, esc); err != nil {
		return err
	}
	if err = e.updateStats(func(s *Stats) {
		s.TotalReleased.Add(s.TotalReleased, payout)
	}); err != nil {
		return err
	}
	e.emit(NewReleasedEvent(bountyID, esc, contributor, payout, applied.Fee, now))
	return nil
}

// Refund returns escrowed funds according to the selected mode. Full and
// Partial refunds go to the depositor and require the deadline to have
// passed. Custom refunds may target a third party and, before the deadline,
// must match a stored approval exactly, which is consumed on use.
func (e *Engine) Refund(caller [20]byte, bountyID uint64, amount *big.Int, recipient *[20]byte, mode RefundMode) (err error) {
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

	if _, err = e.requireInitialized(); err != nil {
		return err
	}
	if err = e.checkPaused(); err != nil {
		return err
	}
	if !mode.Valid() {
		return ErrInvalidAmount
	}
	esc, lerr := e.loadEscrow(bountyID)
	if lerr != nil {
		return lerr
	}
	// Refunds run only while no payout has happened. Once funds start moving
	// to contributors the remainder is settled through releases, never back to
	// the depositor.
	switch esc.Status {
	case StatusLocked, StatusPartiallyRefunded:
	default:
		return ErrFundsNotLocked
	}

	now := e.now()
	beforeDeadline := now < esc.Deadline

	var refundAmount *big.Int
	var refundRecipient [20]byte
	consumeApproval := false

	switch mode {
	case RefundFull:
		if beforeDeadline {
			return ErrDeadlineNotPassed
		}
		refundAmount = cloneBigInt(esc.RemainingAmount)
		refundRecipient = esc.Depositor
	case RefundPartial:
		if beforeDeadline {
			return ErrDeadlineNotPassed
		}
		if amount != nil {
			refundAmount = cloneBigInt(amount)
		} else {
			refundAmount = cloneBigInt(esc.RemainingAmount)
		}
		refundRecipient = esc.Depositor
	case RefundCustom:
		if amount == nil || recipient == nil {
			return ErrInvalidAmount
		}
		refundAmount = cloneBigInt(amount)
		refundRecipient = *recipient
		if beforeDeadline {
			approval, ok, aerr := e.state.RefundApprovalGet(bountyID)
			if aerr != nil {
				return aerr
			}
			if !ok || !approval.Matches(refundAmount, refundRecipient, mode) {
				return ErrRefundNotApproved
			}
			consumeApproval = true
		}
	}

	if refundAmount.Sign() <= 0 || refundAmount.Cmp(esc.RemainingAmount) > 0 {
		return ErrInvalidAmount
	}
	balance, berr := e.vaultBalance()
	if berr != nil {
		return berr
	}
	if balance.Cmp(refundAmount) < 0 {
		return ErrInsufficientFunds
	}

	if consumeApproval {
		if err = e.state.RefundApprovalRemove(bountyID); err != nil {
			return err
		}
	}
	if err = e.transfer(VaultAddress, refundRecipient, refundAmount); err != nil {
		return err
	}

	esc.RemainingAmount = new(big.Int).Sub(esc.RemainingAmount, refundAmount)
	esc.RefundHistory = append(esc.RefundHistory, RefundRecord{
		Amount:    refundAmount,
		Recipient: refundRecipient,
		Mode:      mode,
		Timestamp: now,
	})
	esc.Status = deriveStatus(esc, movementRefund)
	if err = checkConservation(esc); err != nil {
		return err
	}
	if err = e.state.EscrowPut(bountyID, esc); err != nil {
		return err
	}
	if err = e.updateStats(func(s *Stats) {
		s.TotalRefunded.Add(s.TotalRefunded, refundAmount)
	}); err != nil {
		return err
	}
	e.emit(NewRefundedEvent(bountyID, esc, refundRecipient, refundAmount, mode, now))
	return nil
}

// ApproveCustomRefund stores a single pending pre-authorization for a Custom
// refund ahead of the deadline, overwriting any prior unconsumed approval.
func (e *Engine) ApproveCustomRefund(caller [20]byte, bountyID uint64, amount *big.Int, recipient [20]byte, mode RefundMode) (err error) {
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
	if esc.Status != StatusLocked && esc.Status != StatusPartiallyRefunded {
		return ErrFundsNotLocked
	}
	if amount == nil || amount.Sign() <= 0 || amount.Cmp(esc.RemainingAmount) > 0 {
		return ErrInvalidAmount
	}
	now := e.now()
	approval := &RefundApproval{
		BountyID:   bountyID,
		Amount:     cloneBigInt(amount),
		Recipient:  recipient,
		Mode:       mode,
		ApprovedBy: caller,
		ApprovedAt: now,
	}
	if err = e.state.RefundApprovalPut(approval); err != nil {
		return err
	}
	e.emit(NewRefundApprovedEvent(approval))
	return nil
}

// Pause halts all mutating operations until Unpause. Admin only.
func (e *Engine) Pause(caller [20]byte) (err error) {
	defer e.track(&err)
	if e == nil || e.state == nil {
		return errNilState
	}
	if err = e.requireAdmin(caller); err != nil {
		return err
	}
	if err = e.state.PausedSet(true); err != nil {
		return err
	}
	e.emit(NewPausedEvent(true, e.now()))
	return nil
}

// Unpause resumes mutating operations. Admin only.
func (e *Engine) Unpause(caller [20]byte) (err error) {
	defer e.track(&err)
	if e == nil || e.state == nil {
		return errNilState
	}
	if err = e.requireAdmin(caller); err != nil {
		return err
	}
	if err = e.state.PausedSet(false); err != nil {
		return err
	}
	e.emit(NewPausedEvent(false, e.now()))
	return nil
}

// UpdateFeeConfig replaces the fee policy after validating rates. Admin only.
func (e *Engine) UpdateFeeConfig(caller [20]byte, cfg *fees.Config) (err error) {
	defer e.track(&err)
	if e == nil || e.state == nil {
		return errNilState
	}
	if err = e.requireAdmin(caller); err != nil {
		return err
	}
	if err = cfg.Validate(); err != nil {
		return err
	}
	if err = e.state.FeeConfigPut(cfg.Clone()); err != nil {
		return err
	}
	e.emit(NewFeeConfigUpdatedEvent(cfg, e.now()))
	return nil
}

// UpdateAdmin rotates the admin identity. A timelock prevents rapid takeover
// of the release authority.
func (e *Engine) UpdateAdmin(caller, newAdmin [20]byte) (err error) {
	defer e.track(&err)
	if e == nil || e.state == nil {
		return errNilState
	}
	if err = e.requireAdmin(caller); err != nil {
		return err
	}
	last, lerr := e.state.AdminLastUpdateGet()
	if lerr != nil {
		return lerr
	}
	now := e.now()
	if now < last+AdminUpdateTimelock {
		return ErrAdminTimelocked
	}
	if err = e.state.AdminPut(newAdmin); err != nil {
		return err
	}
	if err = e.state.AdminLastUpdatePut(now); err != nil {
		return err
	}
	e.emit(NewAdminRotatedEvent(caller, newAdmin, now))
	return nil
}

// UpdateRateLimitConfig replaces the admission policy. Admin only.
func (e *Engine) UpdateRateLimitConfig(caller [20]byte, cfg common.RateLimitConfig) (err error) {
	defer e.track(&err)
	if e == nil || e.state == nil {
		return errNilState
	}
	if err = e.requireAdmin(caller); err != nil {
		return err
	}
	return e.state.RateLimitConfigPut(cfg)
}

// WhitelistAdd exempts an address from rate limiting. Admin only.
func (e *Engine) WhitelistAdd(caller, addr [20]byte) (err error) {
	defer e.track(&err)
	if e == nil || e.state == nil {
		return errNilState
	}
	if err = e.requireAdmin(caller); err != nil {
		return err
	}
	return e.state.WhitelistAdd(addr)
}

// WhitelistRemove re-subjects an address to rate limiting. Admin only.
func (e *Engine) WhitelistRemove(caller, addr [20]byte) (err error) {
	defer e.track(&err)
	if e == nil || e.state == nil {
		return errNilState
	}
	if err = e.requireAdmin(caller); err != nil {
		return err
	}
	return e.state.WhitelistRemove(addr)
}

// --- read-only queries ---

// GetEscrow returns a copy of the escrow record for a bounty.
func (e *Engine) GetEscrow(bountyID uint64) (*Escrow, error) {
	return e.loadEscrow(bountyID)
}

// Balance returns the custody account balance.
func (e *Engine) Balance() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, ok, err := e.state.TokenGet(); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNotInitialized
	}
	balance, err := e.vaultBalance()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(balance), nil
}

// RefundHistory returns the append-only refund log for a bounty.
func (e *Engine) RefundHistory(bountyID uint64) ([]RefundRecord, error) {
	esc, err := e.loadEscrow(bountyID)
	if err != nil {
		return nil, err
	}
	return esc.RefundHistory, nil
}

// PayoutHistory returns the append-only payout log for a bounty.
func (e *Engine) PayoutHistory(bountyID uint64) ([]PayoutRecord, error) {
	esc, err := e.loadEscrow(bountyID)
	if err != nil {
		return nil, err
	}
	return esc.PayoutHistory, nil
}

// Stats returns module-wide aggregates plus in-process operation counters.
func (e *Engine) Stats() (*Stats, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	stats, err := e.state.StatsGet()
	if err != nil {
		return nil, err
	}
	stats = stats.Clone()
	stats.TotalSucceeded = e.opsSucceeded.Load()
	stats.TotalFailed = e.opsFailed.Load()
	return stats, nil
}

// FeeConfig returns the active fee policy.
func (e *Engine) FeeConfig() (*fees.Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, err := e.feeConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}
