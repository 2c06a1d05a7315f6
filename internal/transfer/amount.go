package transfer

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount  = errors.New("transfer: invalid amount")
	ErrInvalidAddress = errors.New("transfer: invalid address")
)

// ToBaseUnits converts a display amount into token base units, rounding
// toward zero: "2.999999" with 6 decimals is 2999999, "0.0000001" is invalid.
// The result must fit the uint256 transfer argument.
func ToBaseUnits(display string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(display))
	if err != nil {
		return nil, ErrInvalidAmount
	}
	units := d.Shift(decimals).Floor()
	if !units.IsPositive() {
		return nil, ErrInvalidAmount
	}
	out := units.BigInt()
	if out.BitLen() > 256 {
		return nil, ErrInvalidAmount
	}
	return out, nil
}

// IdempotencyKey identifies one logical transfer: the same sender, recipient
// and amount at the same account nonce.
func IdempotencyKey(sender, recipient common.Address, amount, nonce *big.Int) string {
	return crypto.Keccak256Hash(
		sender.Bytes(),
		recipient.Bytes(),
		common.LeftPadBytes(amount.Bytes(), 32),
		common.LeftPadBytes(nonce.Bytes(), 32),
	).Hex()
}
