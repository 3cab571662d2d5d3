package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"bountyvault/core/types"
	"bountyvault/native/common"
	"bountyvault/native/escrow"
	"bountyvault/native/fees"
	"bountyvault/storage"
)

// Manager persists escrow module records in a key-value store. Keys are
// keccak-derived from typed prefixes; values are RLP-encoded. Records are
// always written and read whole; no partial-field updates are exposed.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager over the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var errNilManager = errors.New("state: manager not configured")

var (
	adminKey           = ethcrypto.Keccak256([]byte("escrow/admin"))
	adminLastUpdateKey = ethcrypto.Keccak256([]byte("escrow/admin/last-update"))
	tokenKey           = ethcrypto.Keccak256([]byte("escrow/token"))
	pausedKey          = ethcrypto.Keccak256([]byte("escrow/paused"))
	guardKey           = ethcrypto.Keccak256([]byte("escrow/reentrancy-guard"))
	feeConfigKey       = ethcrypto.Keccak256([]byte("escrow/fee-config"))
	statsKey           = ethcrypto.Keccak256([]byte("escrow/stats"))
	registryKey        = ethcrypto.Keccak256([]byte("escrow/registry"))
	rateLimitCfgKey    = ethcrypto.Keccak256([]byte("escrow/ratelimit/config"))

	escrowPrefix    = []byte("escrow/record/")
	approvalPrefix  = []byte("escrow/approval/")
	rateStatePrefix = []byte("escrow/ratelimit/state/")
	whitelistPrefix = []byte("escrow/ratelimit/whitelist/")
	accountPrefix   = []byte("escrow/account/")
)

func escrowKey(id uint64) []byte     { return prefixedIDKey(escrowPrefix, id) }
func approvalKey(id uint64) []byte   { return prefixedIDKey(approvalPrefix, id) }
func rateStateKey(a [20]byte) []byte { return prefixedAddrKey(rateStatePrefix, a) }
func whitelistKey(a [20]byte) []byte { return prefixedAddrKey(whitelistPrefix, a) }
func accountKey(a [20]byte) []byte   { return prefixedAddrKey(accountPrefix, a) }

func prefixedIDKey(prefix []byte, id uint64) []byte {
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], id)
	return ethcrypto.Keccak256(buf)
}

func prefixedAddrKey(prefix []byte, addr [20]byte) []byte {
	buf := make([]byte, len(prefix)+len(addr))
	copy(buf, prefix)
	copy(buf[len(prefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

// KVPut RLP-encodes the value and stores it under the given key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	return m.db.Put(key, encoded)
}

// KVGet fetches and RLP-decodes a stored value. The boolean reports whether
// the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, errNilManager
	}
	data, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode: %w", err)
	}
	return true, nil
}

func (m *Manager) kvHas(key []byte) (bool, error) {
	if m == nil || m.db == nil {
		return false, errNilManager
	}
	return m.db.Has(key)
}

func (m *Manager) kvRemove(key []byte) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	return m.db.Delete(key)
}

// --- escrow records ---

func (m *Manager) EscrowPut(id uint64, esc *escrow.Escrow) error {
	sanitized, err := escrow.SanitizeEscrow(esc)
	if err != nil {
		return err
	}
	return m.KVPut(escrowKey(id), sanitized)
}

func (m *Manager) EscrowGet(id uint64) (*escrow.Escrow, bool, error) {
	esc := new(escrow.Escrow)
	ok, err := m.KVGet(escrowKey(id), esc)
	if err != nil || !ok {
		return nil, false, err
	}
	return esc, true, nil
}

func (m *Manager) EscrowHas(id uint64) (bool, error) {
	return m.kvHas(escrowKey(id))
}

// --- refund approvals ---

func (m *Manager) RefundApprovalPut(approval *escrow.RefundApproval) error {
	if approval == nil {
		return fmt.Errorf("state: nil refund approval")
	}
	return m.KVPut(approvalKey(approval.BountyID), approval)
}

func (m *Manager) RefundApprovalGet(id uint64) (*escrow.RefundApproval, bool, error) {
	approval := new(escrow.RefundApproval)
	ok, err := m.KVGet(approvalKey(id), approval)
	if err != nil || !ok {
		return nil, false, err
	}
	return approval, true, nil
}

func (m *Manager) RefundApprovalRemove(id uint64) error {
	return m.kvRemove(approvalKey(id))
}

// --- accounts ---

func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	acc := types.NewAccount()
	if _, err := m.KVGet(accountKey(addr), acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (m *Manager) PutAccount(addr [20]byte, acc *types.Account) error {
	if acc == nil {
		acc = types.NewAccount()
	}
	return m.KVPut(accountKey(addr), acc)
}

// --- registry & stats ---

// RegistryAdd records a bounty identifier in the global registry used for
// aggregate statistics. Adding an existing identifier is a no-op.
func (m *Manager) RegistryAdd(id uint64) error {
	ids, err := m.RegistryIDs()
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	return m.KVPut(registryKey, ids)
}

// RegistryIDs returns every bounty identifier ever locked.
func (m *Manager) RegistryIDs() ([]uint64, error) {
	var ids []uint64
	if _, err := m.KVGet(registryKey, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Manager) StatsGet() (*escrow.Stats, error) {
	stats := new(escrow.Stats)
	ok, err := m.KVGet(statsKey, stats)
	if err != nil {
		return nil, err
	}
	if !ok {
		return (*escrow.Stats)(nil).Clone(), nil
	}
	return stats, nil
}

func (m *Manager) StatsPut(stats *escrow.Stats) error {
	if stats == nil {
		return fmt.Errorf("state: nil stats")
	}
	return m.KVPut(statsKey, stats)
}

// --- module configuration ---

func (m *Manager) AdminGet() ([20]byte, bool, error) {
	var admin [20]byte
	ok, err := m.KVGet(adminKey, &admin)
	return admin, ok, err
}

func (m *Manager) AdminPut(addr [20]byte) error {
	return m.KVPut(adminKey, addr)
}

func (m *Manager) AdminLastUpdateGet() (uint64, error) {
	var ts uint64
	if _, err := m.KVGet(adminLastUpdateKey, &ts); err != nil {
		return 0, err
	}
	return ts, nil
}

func (m *Manager) AdminLastUpdatePut(ts uint64) error {
	return m.KVPut(adminLastUpdateKey, ts)
}

func (m *Manager) TokenGet() ([20]byte, bool, error) {
	var token [20]byte
	ok, err := m.KVGet(tokenKey, &token)
	return token, ok, err
}

func (m *Manager) TokenPut(addr [20]byte) error {
	return m.KVPut(tokenKey, addr)
}

func (m *Manager) PausedGet() (bool, error) {
	var paused bool
	if _, err := m.KVGet(pausedKey, &paused); err != nil {
		return false, err
	}
	return paused, nil
}

func (m *Manager) PausedSet(paused bool) error {
	return m.KVPut(pausedKey, paused)
}

// The reentrancy guard is presence-based: the key exists while a mutating
// call is in flight.
func (m *Manager) GuardActive() (bool, error) {
	return m.kvHas(guardKey)
}

func (m *Manager) GuardSet() error {
	return m.KVPut(guardKey, true)
}

func (m *Manager) GuardClear() error {
	return m.kvRemove(guardKey)
}

func (m *Manager) FeeConfigGet() (*fees.Config, bool, error) {
	cfg := new(fees.Config)
	ok, err := m.KVGet(feeConfigKey, cfg)
	if err != nil || !ok {
		return nil, false, err
	}
	return cfg, true, nil
}

func (m *Manager) FeeConfigPut(cfg *fees.Config) error {
	if cfg == nil {
		return fmt.Errorf("state: nil fee config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return m.KVPut(feeConfigKey, cfg)
}

// --- rate limiting ---

func (m *Manager) RateLimitConfigGet() (common.RateLimitConfig, error) {
	var cfg common.RateLimitConfig
	if _, err := m.KVGet(rateLimitCfgKey, &cfg); err != nil {
		return common.RateLimitConfig{}, err
	}
	return cfg, nil
}

func (m *Manager) RateLimitConfigPut(cfg common.RateLimitConfig) error {
	return m.KVPut(rateLimitCfgKey, cfg)
}

func (m *Manager) RateLimitStateGet(addr [20]byte) (common.RateLimitState, error) {
	var state common.RateLimitState
	if _, err := m.KVGet(rateStateKey(addr), &state); err != nil {
		return common.RateLimitState{}, err
	}
	return state, nil
}

func (m *Manager) RateLimitStatePut(addr [20]byte, state common.RateLimitState) error {
	return m.KVPut(rateStateKey(addr), state)
}

func (m *Manager) WhitelistHas(addr [20]byte) (bool, error) {
	return m.kvHas(whitelistKey(addr))
}

func (m *Manager) WhitelistAdd(addr [20]byte) error {
	return m.KVPut(whitelistKey(addr), true)
}

func (m *Manager) WhitelistRemove(addr [20]byte) error {
	return m.kvRemove(whitelistKey(addr))
}
