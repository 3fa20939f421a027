// Package units converts between decimal token amounts and integer base units.
//
// All arithmetic is done on arbitrary-precision decimals; binary floating point
// is never involved.
package units

import (
	"math/big"
	"strconv"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/UniversaBlockchain/utnp/internal/domain"
)

const (
	// TokenDecimals is the decimals exponent of the UTN-P token.
	TokenDecimals uint8 = 18
	// GweiDecimals scales a gas price quoted in gwei to wei.
	GweiDecimals uint8 = 9

	// maxDigits is the number of decimal digits of 2^256-1.
	maxDigits = 78
)

// ToBaseUnits returns round_toward_zero(a * 10^d).
func ToBaseUnits(a decimal.Decimal, d uint8) *big.Int {
	return a.Shift(int32(d)).Truncate(0).BigInt()
}

// FromBaseUnits returns v / 10^d exactly.
func FromBaseUnits(v *big.Int, d uint8) decimal.Decimal {
	return decimal.NewFromBigInt(v, -int32(d))
}

// Normalize converts a positive amount to base units, rejecting values that
// truncate to zero or overflow uint256.
func Normalize(a decimal.Decimal, d uint8) (*big.Int, error) {
	return normalize(-1, a, d)
}

// NormalizeAt is Normalize with the order position attached to any error.
func NormalizeAt(position int, a decimal.Decimal, d uint8) (*big.Int, error) {
	return normalize(position, a, d)
}

func normalize(position int, a decimal.Decimal, d uint8) (*big.Int, error) {
	if a.Sign() <= 0 {
		return nil, &domain.InvalidAmountError{Position: position, Amount: text(a), Reason: "must be positive"}
	}
	// Integer digits of a*10^d, checked before the rescale so a large exponent
	// never materializes.
	digits := int64(a.NumDigits()) + int64(a.Exponent()) + int64(d)
	if digits > maxDigits {
		return nil, &domain.InvalidAmountError{Position: position, Amount: text(a), Reason: "does not fit in uint256"}
	}
	if digits <= 0 {
		return nil, &domain.InvalidAmountError{Position: position, Amount: text(a), Reason: "smaller than one base unit"}
	}
	v := ToBaseUnits(a, d)
	if v.Sign() == 0 {
		return nil, &domain.InvalidAmountError{Position: position, Amount: text(a), Reason: "smaller than one base unit"}
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return nil, &domain.InvalidAmountError{Position: position, Amount: text(a), Reason: "does not fit in uint256"}
	}
	return v, nil
}

// text renders a in scientific notation when its plain form would be huge.
func text(a decimal.Decimal) string {
	if e := a.Exponent(); e > maxDigits || e < -maxDigits {
		return a.Coefficient().String() + "e" + strconv.FormatInt(int64(e), 10)
	}
	return a.String()
}

// GweiToWei converts a gas price in gwei to wei.
func GweiToWei(gwei decimal.Decimal) (*big.Int, error) {
	wei, err := Normalize(gwei, GweiDecimals)
	if err != nil {
		return nil, &domain.ConfigurationError{Key: "gas-price", Reason: "must be a positive gwei amount", Err: err}
	}
	return wei, nil
}

// Sum adds up decimal amounts.
func Sum(amounts []decimal.Decimal) decimal.Decimal {
	return decimal.Sum(decimal.Zero, amounts...)
}
