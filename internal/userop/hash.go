package userop

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func mustABIType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

var (
	addressT = mustABIType("address")
	uint256T = mustABIType("uint256")
	bytes32T = mustABIType("bytes32")

	packedOpArgs = abi.Arguments{
		{Type: addressT}, // sender
		{Type: uint256T}, // nonce
		{Type: bytes32T}, // keccak(initCode)
		{Type: bytes32T}, // keccak(callData)
		{Type: uint256T}, // callGasLimit
		{Type: uint256T}, // verificationGasLimit
		{Type: uint256T}, // preVerificationGas
		{Type: uint256T}, // maxFeePerGas
		{Type: uint256T}, // maxPriorityFeePerGas
		{Type: bytes32T}, // keccak(paymasterAndData)
	}
	opHashArgs = abi.Arguments{
		{Type: bytes32T},
		{Type: addressT},
		{Type: uint256T},
	}
)

// Hash is the v0.6 userOpHash:
// keccak256(abi.encode(keccak256(pack(op)), entryPoint, chainId)).
// The signature field is excluded.
func (op *UserOperation) Hash(entryPoint common.Address, chainID *big.Int) common.Hash {
	packed, err := packedOpArgs.Pack(
		op.Sender,
		bigOf(&op.Nonce),
		crypto.Keccak256Hash(op.InitCode),
		crypto.Keccak256Hash(op.CallData),
		bigOf(&op.CallGasLimit),
		bigOf(&op.VerificationGasLimit),
		bigOf(&op.PreVerificationGas),
		bigOf(&op.MaxFeePerGas),
		bigOf(&op.MaxPriorityFeePerGas),
		crypto.Keccak256Hash(op.PaymasterAndData),
	)
	if err != nil {
		panic(err)
	}
	enc, err := opHashArgs.Pack(crypto.Keccak256Hash(packed), entryPoint, chainID)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(enc)
}
