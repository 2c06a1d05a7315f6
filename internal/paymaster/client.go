// Package paymaster requests gas sponsorship for UserOperations.
package paymaster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/0xPexy/petpay-backend/internal/userop"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrSponsorship = errors.New("paymaster: sponsorship rejected")

// Caller is the subset of *rpc.Client used here.
type Caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// StubData is the pm_getPaymasterStubData result for an EntryPoint v0.6
// operation. Fields the paymaster leaves out are nil.
type StubData struct {
	PaymasterAndData     hexutil.Bytes `json:"paymasterAndData"`
	PreVerificationGas   *hexutil.Big  `json:"preVerificationGas,omitempty"`
	VerificationGasLimit *hexutil.Big  `json:"verificationGasLimit,omitempty"`
	CallGasLimit         *hexutil.Big  `json:"callGasLimit,omitempty"`
	MaxFeePerGas         *hexutil.Big  `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big  `json:"maxPriorityFeePerGas,omitempty"`
	IsFinal              bool          `json:"isFinal,omitempty"`
}

// Apply merges the sponsorship onto op. Absent fields keep op's values.
func (s StubData) Apply(op *userop.UserOperation) {
	op.PaymasterAndData = append(hexutil.Bytes(nil), s.PaymasterAndData...)
	merge := func(dst *hexutil.Big, v *hexutil.Big) {
		if v != nil {
			*dst = *v
		}
	}
	merge(&op.PreVerificationGas, s.PreVerificationGas)
	merge(&op.VerificationGasLimit, s.VerificationGasLimit)
	merge(&op.CallGasLimit, s.CallGasLimit)
	merge(&op.MaxFeePerGas, s.MaxFeePerGas)
	merge(&op.MaxPriorityFeePerGas, s.MaxPriorityFeePerGas)
}

type Client struct {
	rpc      Caller
	policyID string
	logger   *log.Logger
}

func New(rpc Caller, policyID string, logger *log.Logger) *Client {
	return &Client{rpc: rpc, policyID: policyID, logger: logger}
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// RequestSponsorship calls pm_getPaymasterStubData with
// [op, entryPoint, chainIdHex, context]. There is no unsponsored fallback.
func (c *Client) RequestSponsorship(ctx context.Context, op *userop.UserOperation, entryPoint common.Address, chainIDHex string) (StubData, error) {
	pmCtx := map[string]any{}
	if c.policyID != "" {
		pmCtx["policyId"] = c.policyID
	}
	start := time.Now()
	var out StubData
	if err := c.rpc.CallContext(ctx, &out, "pm_getPaymasterStubData", op, entryPoint, chainIDHex, pmCtx); err != nil {
		c.logf("pm_getPaymasterStubData sender=%s failed after %s: %v", op.Sender.Hex(), time.Since(start), err)
		return StubData{}, fmt.Errorf("%w: %v", ErrSponsorship, err)
	}
	if len(out.PaymasterAndData) < common.AddressLength {
		c.logf("pm_getPaymasterStubData sender=%s returned empty paymasterAndData", op.Sender.Hex())
		return StubData{}, fmt.Errorf("%w: empty paymasterAndData", ErrSponsorship)
	}
	return out, nil
}
