package client

import (
	"context"
	"errors"
	"fmt"
)

const (
	CodeWalletDataMissing  = "WALLET_DATA_MISSING"
	CodeWalletImportFailed = "WALLET_IMPORT_FAILED"
	CodeWalletNeedsRepair  = "WALLET_NEEDS_REPAIR"
)

var (
	// ErrRetryRequired means the wallet was repaired and the payment can be
	// sent again. The transfer is never resubmitted automatically.
	ErrRetryRequired = errors.New("wallet repaired: retry the payment")
	// ErrReloadRequired means the credential is gone for good; the caller has
	// to provision a new wallet.
	ErrReloadRequired = errors.New("wallet cannot be repaired: provision a new wallet")
)

// PayWithRepair sends the payment and, when the server reports a missing or
// unusable wallet credential, attempts one repair before handing control back.
func (c *Client) PayWithRepair(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	res, err := c.Transfer(ctx, req)
	if err == nil {
		return res, nil
	}
	switch CodeOf(err) {
	case CodeWalletDataMissing, CodeWalletImportFailed:
	default:
		return nil, err
	}
	repaired, rerr := c.Repair(ctx, req.FromAddress)
	switch {
	case rerr == nil:
		return nil, fmt.Errorf("%w (%s)", ErrRetryRequired, repaired.Status)
	case CodeOf(rerr) == CodeWalletNeedsRepair:
		return nil, ErrReloadRequired
	}
	return nil, fmt.Errorf("repair after %v: %w", err, rerr)
}

var guidance = map[string]string{
	"MISSING_FIELDS":            "Fill in the sender, recipient and amount.",
	"INVALID_ADDRESS":           "Check the address: it must start with 0x followed by 40 hex characters.",
	"INVALID_AMOUNT":            "Enter a positive amount. Digits past the 6th decimal are dropped.",
	"RATE_LIMITED":              "Too many payments in a short time. Wait a minute and try again.",
	"SDK_CONFIG_FAILED":         "Payments are temporarily unavailable. Try again later.",
	"DB_CONNECTION_FAILED":      "We could not reach our database. Try again in a moment.",
	"DB_QUERY_FAILED":           "Something went wrong looking up your wallet. Try again in a moment.",
	"WALLET_NOT_FOUND":          "No wallet was found for this address. Create a wallet first.",
	"NETWORK_MISMATCH":          "This wallet lives on a different network than the one requested.",
	CodeWalletDataMissing:       "Your wallet needs a quick repair. We will try to fix it automatically.",
	CodeWalletImportFailed:      "Your wallet key could not be loaded. We will try to repair it automatically.",
	CodeWalletNeedsRepair:       "Your wallet could not be restored. Create a new wallet to continue.",
	"TRANSFER_EXECUTION_FAILED": "The payment could not be sent. No funds were moved; try again.",
	"CRITICAL_ERROR":            "Something unexpected happened. Try again later.",
}

// Guidance returns remediation text for an API error code.
func Guidance(code string) string {
	if g, ok := guidance[code]; ok {
		return g
	}
	return guidance["CRITICAL_ERROR"]
}
