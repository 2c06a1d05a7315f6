package userop

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/0xPexy/petpay-backend/internal/chain"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAmount    = errors.New("userop: amount must be positive")
	ErrInvalidRecipient = errors.New("userop: recipient is the zero address")
	ErrNotTransfer      = errors.New("userop: callData is not a token transfer")
)

// StubSignature is a well-formed 65-byte ECDSA placeholder. Paymasters and
// bundlers need a signature of the right length to estimate validation gas;
// it is replaced by the owner's signature before submission.
var StubSignature = func() []byte {
	buf := bytes.Repeat([]byte{0xff}, 65)
	buf[64] = 0x1c
	return buf
}()

// BuildTransferOp encodes account.execute(token, 0, transfer(recipient, amount)).
// Gas and fee fields stay zero and paymasterAndData stays empty until the
// paymaster fills them; initCode is always empty.
func BuildTransferOp(sender, token, recipient common.Address, amount, nonce *big.Int) (*UserOperation, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if recipient == (common.Address{}) {
		return nil, ErrInvalidRecipient
	}
	inner, err := chain.ERC20ABI.Pack("transfer", recipient, amount)
	if err != nil {
		return nil, fmt.Errorf("pack transfer: %w", err)
	}
	callData, err := chain.AccountABI.Pack("execute", token, big.NewInt(0), inner)
	if err != nil {
		return nil, fmt.Errorf("pack execute: %w", err)
	}

	op := &UserOperation{
		Sender:           sender,
		InitCode:         []byte{},
		CallData:         callData,
		PaymasterAndData: []byte{},
		Signature:        append([]byte(nil), StubSignature...),
	}
	setBig(&op.Nonce, nonce)
	return op, nil
}

// Transfer is the decoded token movement carried by a transfer operation.
type Transfer struct {
	Token     common.Address
	Recipient common.Address
	Amount    *big.Int
}

// InnerTransfer decodes the callData produced by BuildTransferOp.
func (op *UserOperation) InnerTransfer() (*Transfer, error) {
	execute := chain.AccountABI.Methods["execute"]
	if len(op.CallData) < 4 || !bytes.Equal(op.CallData[:4], execute.ID) {
		return nil, ErrNotTransfer
	}
	outer, err := execute.Inputs.Unpack(op.CallData[4:])
	if err != nil || len(outer) != 3 {
		return nil, ErrNotTransfer
	}
	token, _ := outer[0].(common.Address)
	inner, _ := outer[2].([]byte)

	transfer := chain.ERC20ABI.Methods["transfer"]
	if len(inner) < 4 || !bytes.Equal(inner[:4], transfer.ID) {
		return nil, ErrNotTransfer
	}
	args, err := transfer.Inputs.Unpack(inner[4:])
	if err != nil || len(args) != 2 {
		return nil, ErrNotTransfer
	}
	recipient, _ := args[0].(common.Address)
	amount, _ := args[1].(*big.Int)
	if amount == nil {
		return nil, ErrNotTransfer
	}
	return &Transfer{Token: token, Recipient: recipient, Amount: amount}, nil
}
