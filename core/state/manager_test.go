package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"bountyvault/core/types"
	"bountyvault/native/common"
	"bountyvault/native/escrow"
	"bountyvault/native/fees"
	"bountyvault/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestEscrowRoundTrip(t *testing.T) {
	m := newTestManager(t)

	_, ok, err := m.EscrowGet(1)
	require.NoError(t, err)
	require.False(t, ok)

	stored := &escrow.Escrow{
		Depositor:       testAddr(0x01),
		Amount:          big.NewInt(1_000),
		RemainingAmount: big.NewInt(600),
		Status:          escrow.StatusPartiallyReleased,
		Deadline:        2_000,
		CreatedAt:       1_000,
		NextScheduleID:  2,
		PayoutHistory: []escrow.PayoutRecord{{
			Recipient: testAddr(0x02),
			Amount:    big.NewInt(400),
			Fee:       big.NewInt(4),
			Timestamp: 1_500,
		}},
		ReleaseSchedules: []escrow.ReleaseSchedule{{
			ID:        1,
			Amount:    big.NewInt(100),
			Timestamp: 1_800,
			Status:    escrow.ScheduleReleased,
		}},
		ScheduleHistory: []escrow.ScheduleHistoryEntry{{
			ScheduleID: 1,
			Amount:     big.NewInt(100),
			Timestamp:  1_800,
			Status:     escrow.SchedulePending,
			RecordedAt: 1_200,
		}},
	}
	require.NoError(t, m.EscrowPut(1, stored))

	loaded, ok, err := m.EscrowGet(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, stored.Depositor, loaded.Depositor)
	require.Zero(t, stored.Amount.Cmp(loaded.Amount))
	require.Zero(t, stored.RemainingAmount.Cmp(loaded.RemainingAmount))
	require.Equal(t, stored.Status, loaded.Status)
	require.Len(t, loaded.PayoutHistory, 1)
	require.Zero(t, loaded.PayoutHistory[0].Amount.Cmp(big.NewInt(400)))
	require.Len(t, loaded.ReleaseSchedules, 1)
	require.Equal(t, escrow.ScheduleReleased, loaded.ReleaseSchedules[0].Status)
	require.Len(t, loaded.ScheduleHistory, 1)

	has, err := m.EscrowHas(1)
	require.NoError(t, err)
	require.True(t, has)
	has, err = m.EscrowHas(2)
	require.NoError(t, err)
	require.False(t, has)
}

func TestEscrowPutRejectsCorruptRecords(t *testing.T) {
	m := newTestManager(t)
	bad := &escrow.Escrow{
		Depositor:       testAddr(0x01),
		Amount:          big.NewInt(100),
		RemainingAmount: big.NewInt(200),
		Status:          escrow.StatusLocked,
	}
	require.Error(t, m.EscrowPut(1, bad))
}

func TestRefundApprovalLifecycle(t *testing.T) {
	m := newTestManager(t)

	approval := &escrow.RefundApproval{
		BountyID:   7,
		Amount:     big.NewInt(250),
		Recipient:  testAddr(0x03),
		Mode:       escrow.RefundCustom,
		ApprovedBy: testAddr(0x01),
		ApprovedAt: 1_000,
	}
	require.NoError(t, m.RefundApprovalPut(approval))

	loaded, ok, err := m.RefundApprovalGet(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, loaded.Matches(big.NewInt(250), testAddr(0x03), escrow.RefundCustom))

	require.NoError(t, m.RefundApprovalRemove(7))
	_, ok, err = m.RefundApprovalGet(7)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAccountDefaultsToZeroBalance(t *testing.T) {
	m := newTestManager(t)

	acc, err := m.GetAccount(testAddr(0x04))
	require.NoError(t, err)
	require.Zero(t, acc.Balance.Sign())

	acc.Balance = big.NewInt(500)
	require.NoError(t, m.PutAccount(testAddr(0x04), acc))

	reloaded, err := m.GetAccount(testAddr(0x04))
	require.NoError(t, err)
	require.Zero(t, reloaded.Balance.Cmp(big.NewInt(500)))
}

func TestRegistryDeduplicates(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.RegistryAdd(1))
	require.NoError(t, m.RegistryAdd(2))
	require.NoError(t, m.RegistryAdd(1))

	ids, err := m.RegistryIDs()
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, ids)
}

func TestStatsDefaultAndRoundTrip(t *testing.T) {
	m := newTestManager(t)

	stats, err := m.StatsGet()
	require.NoError(t, err)
	require.Zero(t, stats.TotalBounties)
	require.NotNil(t, stats.TotalLocked)

	stats.TotalBounties = 3
	stats.TotalLocked = big.NewInt(3_000)
	require.NoError(t, m.StatsPut(stats))

	reloaded, err := m.StatsGet()
	require.NoError(t, err)
	require.Equal(t, uint64(3), reloaded.TotalBounties)
	require.Zero(t, reloaded.TotalLocked.Cmp(big.NewInt(3_000)))
}

func TestModuleConfigRoundTrip(t *testing.T) {
	m := newTestManager(t)

	_, ok, err := m.AdminGet()
	require.NoError(t, err)
	require.False(t, ok)

	admin := testAddr(0x05)
	require.NoError(t, m.AdminPut(admin))
	loaded, ok, err := m.AdminGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, admin, loaded)

	require.NoError(t, m.AdminLastUpdatePut(9_000))
	last, err := m.AdminLastUpdateGet()
	require.NoError(t, err)
	require.Equal(t, uint64(9_000), last)

	token := testAddr(0x06)
	require.NoError(t, m.TokenPut(token))
	loadedToken, ok, err := m.TokenGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, token, loadedToken)

	paused, err := m.PausedGet()
	require.NoError(t, err)
	require.False(t, paused)
	require.NoError(t, m.PausedSet(true))
	paused, err = m.PausedGet()
	require.NoError(t, err)
	require.True(t, paused)
}

func TestGuardFlag(t *testing.T) {
	m := newTestManager(t)

	active, err := m.GuardActive()
	require.NoError(t, err)
	require.False(t, active)

	require.NoError(t, m.GuardSet())
	active, err = m.GuardActive()
	require.NoError(t, err)
	require.True(t, active)

	require.NoError(t, m.GuardClear())
	active, err = m.GuardActive()
	require.NoError(t, err)
	require.False(t, active)
}

func TestFeeConfigValidatedOnPut(t *testing.T) {
	m := newTestManager(t)

	_, ok, err := m.FeeConfigGet()
	require.NoError(t, err)
	require.False(t, ok)

	bad := &fees.Config{LockFeeRate: fees.MaxFeeBps + 1}
	require.ErrorIs(t, m.FeeConfigPut(bad), fees.ErrInvalidFeeRate)

	good := &fees.Config{LockFeeRate: 100, ReleaseFeeRate: 50, FeeRecipient: testAddr(0x07), Enabled: true}
	require.NoError(t, m.FeeConfigPut(good))

	loaded, ok, err := m.FeeConfigGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, good.LockFeeRate, loaded.LockFeeRate)
	require.Equal(t, good.FeeRecipient, loaded.FeeRecipient)
	require.True(t, loaded.Enabled)
}

func TestRateLimitStateAndWhitelist(t *testing.T) {
	m := newTestManager(t)

	cfg, err := m.RateLimitConfigGet()
	require.NoError(t, err)
	require.Zero(t, cfg.WindowSize)

	require.NoError(t, m.RateLimitConfigPut(common.RateLimitConfig{WindowSize: 100, MaxOperations: 5, CooldownPeriod: 10}))
	cfg, err = m.RateLimitConfigGet()
	require.NoError(t, err)
	require.Equal(t, uint64(100), cfg.WindowSize)
	require.Equal(t, uint32(5), cfg.MaxOperations)

	caller := testAddr(0x08)
	state, err := m.RateLimitStateGet(caller)
	require.NoError(t, err)
	require.Zero(t, state.OperationCount)

	require.NoError(t, m.RateLimitStatePut(caller, common.RateLimitState{WindowStart: 1_000, OperationCount: 3, LastOperation: 1_050}))
	state, err = m.RateLimitStateGet(caller)
	require.NoError(t, err)
	require.Equal(t, uint32(3), state.OperationCount)

	ok, err := m.WhitelistHas(caller)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, m.WhitelistAdd(caller))
	ok, err = m.WhitelistHas(caller)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, m.WhitelistRemove(caller))
	ok, err = m.WhitelistHas(caller)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNilManagerIsRejected(t *testing.T) {
	var m *Manager
	_, _, err := m.EscrowGet(1)
	require.Error(t, err)
	require.Error(t, m.PutAccount(testAddr(0x01), types.NewAccount()))
}
