package server

import (
	"context"
	"net/http"

	"github.com/0xPexy/petpay-backend/internal/auth"
	"github.com/0xPexy/petpay-backend/internal/transfer"
	"github.com/gin-gonic/gin"
)

type TransferService interface {
	Transfer(ctx context.Context, req transfer.Request) (*transfer.Result, error)
}

type transferHandler struct {
	svc TransferService
}

func newTransferHandler(svc TransferService) *transferHandler {
	return &transferHandler{svc: svc}
}

// Transfer submits a sponsored USDC transfer.
func (h *transferHandler) Transfer(c *gin.Context) {
	if h.svc == nil {
		writeTransferError(c, transfer.CodeSDKConfigFailed)
		return
	}
	var body TransferRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeTransferError(c, transfer.CodeMissingFields)
		return
	}
	req := transfer.Request{
		FromAddress: body.FromAddress,
		ToAddress:   body.ToAddress,
		Amount:      body.Amount,
		Network:     body.Network,
		UserID:      body.UserID,
		PetID:       body.PetID,
		Type:        body.Type,
		Metadata:    body.Metadata,
		CallerKey:   "ip:" + c.ClientIP(),
	}
	if uid := auth.UserID(c); uid != "" {
		req.UserID = uid
		req.CallerID = uid
		req.CallerKey = "user:" + uid
	}

	res, err := h.svc.Transfer(c.Request.Context(), req)
	if err != nil {
		writeTransferError(c, transfer.CodeOf(err))
		return
	}
	msg := "transfer submitted"
	if res.Duplicate {
		msg = "transfer already submitted"
	}
	c.JSON(http.StatusOK, TransferResponse{
		Success:         true,
		TransactionHash: res.TransactionHash,
		Message:         msg,
		Network:         res.Network,
		Amount:          res.Amount,
		Duplicate:       res.Duplicate,
	})
}
