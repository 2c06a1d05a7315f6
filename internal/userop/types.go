// Package userop builds ERC-4337 v0.6 UserOperations for token transfers.
package userop

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// UserOperation is the v0.6 struct in its JSON-RPC shape: quantities as hex
// quantities, byte fields as 0x-prefixed hex.
type UserOperation struct {
	Sender               common.Address `json:"sender"`
	Nonce                hexutil.Big    `json:"nonce"`
	InitCode             hexutil.Bytes  `json:"initCode"`
	CallData             hexutil.Bytes  `json:"callData"`
	CallGasLimit         hexutil.Big    `json:"callGasLimit"`
	VerificationGasLimit hexutil.Big    `json:"verificationGasLimit"`
	PreVerificationGas   hexutil.Big    `json:"preVerificationGas"`
	MaxFeePerGas         hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas hexutil.Big    `json:"maxPriorityFeePerGas"`
	PaymasterAndData     hexutil.Bytes  `json:"paymasterAndData"`
	Signature            hexutil.Bytes  `json:"signature"`
}

// Sponsored reports whether a paymaster has been attached.
func (op *UserOperation) Sponsored() bool {
	return len(op.PaymasterAndData) >= common.AddressLength
}

// PaymasterAddress extracts the paymaster address from PaymasterAndData.
// Returns zero address if no paymaster.
func (op *UserOperation) PaymasterAddress() common.Address {
	if !op.Sponsored() {
		return common.Address{}
	}
	return common.BytesToAddress(op.PaymasterAndData[:common.AddressLength])
}

func bigOf(b *hexutil.Big) *big.Int {
	return (*big.Int)(b)
}

func setBig(dst *hexutil.Big, v *big.Int) {
	if v == nil {
		v = new(big.Int)
	}
	*dst = hexutil.Big(*new(big.Int).Set(v))
}
