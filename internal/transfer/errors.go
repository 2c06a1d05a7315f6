package transfer

import (
	"errors"
	"fmt"
	"time"

	"github.com/0xPexy/petpay-backend/internal/credential"
	"github.com/0xPexy/petpay-backend/internal/network"
	"github.com/0xPexy/petpay-backend/internal/store"
)

type State string

const (
	StateValidating       State = "VALIDATING"
	StateWalletLookup     State = "WALLET_LOOKUP"
	StateCredentialImport State = "CREDENTIAL_IMPORT"
	StateBuildingOp       State = "BUILDING_OP"
	StateSponsoring       State = "SPONSORING"
	StateSigning          State = "SIGNING"
	StateSubmitting       State = "SUBMITTING"
	StateRecording        State = "RECORDING"
	StatePolling          State = "POLLING"
	StateDone             State = "DONE"
	StateFailed           State = "FAILED"
)

// Code is the machine-readable failure code returned to API callers.
type Code string

const (
	CodeMissingFields     Code = "MISSING_FIELDS"
	CodeInvalidAddress    Code = "INVALID_ADDRESS"
	CodeInvalidAmount     Code = "INVALID_AMOUNT"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeSDKConfigFailed   Code = "SDK_CONFIG_FAILED"
	CodeDBConnection      Code = "DB_CONNECTION_FAILED"
	CodeDBQuery           Code = "DB_QUERY_FAILED"
	CodeWalletNotFound    Code = "WALLET_NOT_FOUND"
	CodeNetworkMismatch   Code = "NETWORK_MISMATCH"
	CodeWalletDataMissing Code = "WALLET_DATA_MISSING"
	CodeWalletImport      Code = "WALLET_IMPORT_FAILED"
	CodeExecutionFailed   Code = "TRANSFER_EXECUTION_FAILED"
	CodeCritical          Code = "CRITICAL_ERROR"
)

var messages = map[Code]string{
	CodeMissingFields:     "fromAddress, toAddress and amount are required",
	CodeInvalidAddress:    "address must be 0x followed by 40 hex characters",
	CodeInvalidAmount:     "amount must be a positive number",
	CodeRateLimited:       "too many transfer requests, try again later",
	CodeSDKConfigFailed:   "transfer service is not configured",
	CodeDBConnection:      "database unavailable",
	CodeDBQuery:           "database query failed",
	CodeWalletNotFound:    "wallet not found",
	CodeNetworkMismatch:   "wallet network does not match the requested network",
	CodeWalletDataMissing: "wallet credential is missing or unreadable",
	CodeWalletImport:      "wallet credential could not be imported",
	CodeExecutionFailed:   "transfer could not be executed",
	CodeCritical:          "unexpected server error",
}

// Message is the generic caller-facing text for code. Upstream details are
// only logged.
func Message(code Code) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return messages[CodeCritical]
}

// Error is a failed transfer: where it stopped, why, and how long it ran.
type Error struct {
	Code    Code
	State   State
	Elapsed time.Duration
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transfer %s at %s after %s: %v", e.Code, e.State, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the caller-facing text.
func (e *Error) Message() string { return Message(e.Code) }

// CodeOf extracts the code from err, CodeCritical for foreign errors.
func CodeOf(err error) Code {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return CodeCritical
}

var (
	errMissingFields = errors.New("missing required fields")
	errRateLimited   = errors.New("rate limit exceeded")
	errInactive      = errors.New("wallet is inactive")
	errNotOwner      = errors.New("wallet belongs to another user")
)

// codeFor maps a stage error onto the API code. Stage-specific sentinels win;
// anything unrecognised past wallet lookup is an execution failure.
func codeFor(state State, err error) Code {
	switch {
	case errors.Is(err, errMissingFields):
		return CodeMissingFields
	case errors.Is(err, ErrInvalidAddress):
		return CodeInvalidAddress
	case errors.Is(err, ErrInvalidAmount):
		return CodeInvalidAmount
	case errors.Is(err, errRateLimited):
		return CodeRateLimited
	case errors.Is(err, network.ErrUnsupportedNetwork), errors.Is(err, errNetworkMismatch):
		return CodeNetworkMismatch
	case errors.Is(err, store.ErrNotFound), errors.Is(err, errInactive), errors.Is(err, errNotOwner):
		return CodeWalletNotFound
	case errors.Is(err, credential.ErrOwnerMismatch):
		return CodeWalletImport
	case errors.Is(err, credential.ErrMissing), errors.Is(err, credential.ErrCorrupt), errors.Is(err, credential.ErrNoSecret):
		return CodeWalletDataMissing
	}
	switch state {
	case StateWalletLookup:
		return CodeDBQuery
	case StateCredentialImport:
		return CodeWalletImport
	case StateValidating:
		return CodeMissingFields
	}
	return CodeExecutionFailed
}
