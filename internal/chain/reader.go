// Package chain wraps the read-only contract calls the pipeline needs.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

var ErrMalformedResponse = errors.New("chain: malformed contract response")

type EthClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type Reader struct {
	client EthClient
}

func NewReader(client EthClient) *Reader {
	return &Reader{client: client}
}

// TokenBalance calls balanceOf(account) on an ERC-20 contract.
func (r *Reader) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	data, err := ERC20ABI.Pack("balanceOf", account)
	if err != nil {
		return nil, err
	}
	out, err := r.call(ctx, token, data)
	if err != nil {
		return nil, err
	}
	return unpackBig(ERC20ABI.Unpack("balanceOf", out))
}

func (r *Reader) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return r.client.BalanceAt(ctx, account, nil)
}

// EntryPointNonce reads the sender's nonce for the default key (0).
func (r *Reader) EntryPointNonce(ctx context.Context, entryPoint, sender common.Address) (*big.Int, error) {
	data, err := EntryPointABI.Pack("getNonce", sender, big.NewInt(0))
	if err != nil {
		return nil, err
	}
	out, err := r.call(ctx, entryPoint, data)
	if err != nil {
		return nil, err
	}
	return unpackBig(EntryPointABI.Unpack("getNonce", out))
}

// AccountAddress asks the account factory for the counterfactual address of
// owner's smart account.
func (r *Reader) AccountAddress(ctx context.Context, factory, owner common.Address, salt *big.Int) (common.Address, error) {
	data, err := FactoryABI.Pack("getAddress", owner, salt)
	if err != nil {
		return common.Address{}, err
	}
	out, err := r.call(ctx, factory, data)
	if err != nil {
		return common.Address{}, err
	}
	values, err := FactoryABI.Unpack("getAddress", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(values) != 1 {
		return common.Address{}, ErrMalformedResponse
	}
	addr, ok := values[0].(common.Address)
	if !ok || addr == (common.Address{}) {
		return common.Address{}, ErrMalformedResponse
	}
	return addr, nil
}

func (r *Reader) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	target := to
	return r.client.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, nil)
}

func unpackBig(values []any, err error) (*big.Int, error) {
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(values) != 1 {
		return nil, ErrMalformedResponse
	}
	v, ok := values[0].(*big.Int)
	if !ok || v == nil {
		return nil, ErrMalformedResponse
	}
	return v, nil
}
