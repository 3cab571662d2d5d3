package fees

import (
	"errors"
	"math/big"
)

// MaxFeeBps caps configurable fee rates at 10% of the gross amount.
const MaxFeeBps = 1_000

// basis points denominator
var bpsDenominator = big.NewInt(10_000)

// ErrInvalidFeeRate rejects fee rates outside [0, MaxFeeBps].
var ErrInvalidFeeRate = errors.New("fees: invalid fee rate")

// Config is the singleton fee policy applied to lock and release amounts.
type Config struct {
	LockFeeRate    uint32
	ReleaseFeeRate uint32
	FeeRecipient   [20]byte
	Enabled        bool
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	clone := *c
	return &clone
}

// Validate ensures both rates lie within the permitted band.
func (c *Config) Validate() error {
	if c == nil {
		return ErrInvalidFeeRate
	}
	if c.LockFeeRate > MaxFeeBps || c.ReleaseFeeRate > MaxFeeBps {
		return ErrInvalidFeeRate
	}
	return nil
}

// Result summarises a fee computation over a gross amount.
type Result struct {
	Fee *big.Int
	Net *big.Int
}

// Apply computes fee = floor(gross * rate / 10_000) and the resulting net
// amount. A zero rate, nil amount, or non-positive amount yields a zero fee;
// a fee that would consume the whole amount saturates so the net never goes
// negative. The accounting path must treat degenerate inputs as "no fee"
// rather than corrupting a transfer.
func Apply(gross *big.Int, rateBps uint32) Result {
	result := Result{Fee: big.NewInt(0)}
	if gross != nil {
		result.Net = new(big.Int).Set(gross)
	} else {
		result.Net = big.NewInt(0)
	}
	if result.Net.Sign() <= 0 || rateBps == 0 {
		return result
	}
	fee := new(big.Int).Mul(result.Net, big.NewInt(int64(rateBps)))
	fee.Div(fee, bpsDenominator)
	if fee.Sign() <= 0 {
		return result
	}
	if fee.Cmp(result.Net) >= 0 {
		return result
	}
	result.Fee = fee
	result.Net = new(big.Int).Sub(result.Net, fee)
	return result
}
