// Package bundler submits signed UserOperations and reads their receipts.
package bundler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/0xPexy/petpay-backend/internal/userop"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrSubmission = errors.New("bundler: submission rejected")
	ErrReceipt    = errors.New("bundler: receipt lookup failed")
)

// Caller is the subset of *rpc.Client used here.
type Caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// Receipt is the eth_getUserOperationReceipt result.
type Receipt struct {
	UserOpHash    common.Hash  `json:"userOpHash"`
	Sender        string       `json:"sender"`
	Success       bool         `json:"success"`
	Reason        string       `json:"reason,omitempty"`
	ActualGasCost *hexutil.Big `json:"actualGasCost,omitempty"`
	ActualGasUsed *hexutil.Big `json:"actualGasUsed,omitempty"`
	Receipt       struct {
		TransactionHash common.Hash  `json:"transactionHash"`
		BlockNumber     *hexutil.Big `json:"blockNumber,omitempty"`
	} `json:"receipt"`
}

type Client struct {
	rpc    Caller
	logger *log.Logger
}

func New(rpc Caller, logger *log.Logger) *Client {
	return &Client{rpc: rpc, logger: logger}
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// Submit sends a signed operation with eth_sendUserOperation and returns the
// operation hash assigned by the bundler.
func (c *Client) Submit(ctx context.Context, op *userop.UserOperation, entryPoint common.Address) (string, error) {
	var hash string
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendUserOperation", op, entryPoint); err != nil {
		c.logf("eth_sendUserOperation sender=%s: %s", op.Sender.Hex(), describe(err))
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	if !strings.HasPrefix(hash, "0x") {
		return "", fmt.Errorf("%w: unexpected hash %q", ErrSubmission, hash)
	}
	return hash, nil
}

// Receipt returns nil, nil while the operation is not yet included.
func (c *Client) Receipt(ctx context.Context, opHash string) (*Receipt, error) {
	var out *Receipt
	if err := c.rpc.CallContext(ctx, &out, "eth_getUserOperationReceipt", opHash); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReceipt, err)
	}
	return out, nil
}

func describe(err error) string {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprintf("http %d: %s", httpErr.StatusCode, string(httpErr.Body))
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Sprintf("rpc %d: %s", rpcErr.ErrorCode(), rpcErr.Error())
	}
	return err.Error()
}
