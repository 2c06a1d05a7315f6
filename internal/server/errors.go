package server

import (
	"net/http"

	"github.com/0xPexy/petpay-backend/internal/transfer"
	"github.com/gin-gonic/gin"
)

const (
	codeInvalidAction     = "INVALID_ACTION"
	codeWalletNeedsRepair = "WALLET_NEEDS_REPAIR"
	codeNotFound          = "NOT_FOUND"
)

func writeAPIError(c *gin.Context, status int, msg string) {
	c.JSON(status, ErrorResponse{Error: msg})
}

func writeCodeError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, ErrorResponse{Error: msg, Code: code})
}

func writeTransferError(c *gin.Context, code transfer.Code) {
	writeCodeError(c, transferStatus(code), string(code), transfer.Message(code))
}

func transferStatus(code transfer.Code) int {
	switch code {
	case transfer.CodeMissingFields, transfer.CodeInvalidAddress, transfer.CodeInvalidAmount, transfer.CodeNetworkMismatch:
		return http.StatusBadRequest
	case transfer.CodeRateLimited:
		return http.StatusTooManyRequests
	case transfer.CodeWalletNotFound:
		return http.StatusNotFound
	case transfer.CodeWalletDataMissing, transfer.CodeWalletImport:
		return http.StatusConflict
	case transfer.CodeSDKConfigFailed, transfer.CodeDBConnection:
		return http.StatusServiceUnavailable
	case transfer.CodeExecutionFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// recoverCritical turns a handler panic into a CRITICAL_ERROR response.
func recoverCritical(logf func(string, ...any)) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logf("panic %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		writeTransferError(c, transfer.CodeCritical)
		c.Abort()
	})
}
