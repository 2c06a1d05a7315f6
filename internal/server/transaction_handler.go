package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/0xPexy/petpay-backend/internal/auth"
	"github.com/0xPexy/petpay-backend/internal/store"
	"github.com/gin-gonic/gin"
)

type transactionHandler struct {
	repo *store.Repository
}

func newTransactionHandler(repo *store.Repository) *transactionHandler {
	return &transactionHandler{repo: repo}
}

// Get returns the transaction record by operation hash.
func (h *transactionHandler) Get(c *gin.Context) {
	hash := strings.TrimSpace(c.Param("hash"))
	if !strings.HasPrefix(hash, "0x") {
		writeAPIError(c, http.StatusBadRequest, "invalid transaction hash")
		return
	}
	tx, err := h.repo.GetTransactionByHash(c.Request.Context(), hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeCodeError(c, http.StatusNotFound, codeNotFound, "transaction not found")
			return
		}
		writeAPIError(c, http.StatusInternalServerError, "failed to load transaction")
		return
	}
	c.JSON(http.StatusOK, newTransactionView(*tx))
}

// List returns the transaction history.
func (h *transactionHandler) List(c *gin.Context) {
	params := store.TransactionListParams{
		UserID:  strings.TrimSpace(c.Query("userId")),
		Address: strings.TrimSpace(c.Query("address")),
		Status:  strings.TrimSpace(c.Query("status")),
	}
	if uid := auth.UserID(c); uid != "" {
		params.UserID = uid
	}
	if params.UserID == "" && params.Address == "" {
		writeAPIError(c, http.StatusBadRequest, "userId or address is required")
		return
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeAPIError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		params.Limit = limit
	}
	txs, err := h.repo.ListTransactions(c.Request.Context(), params)
	if err != nil {
		writeAPIError(c, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	items := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		items = append(items, newTransactionView(tx))
	}
	c.JSON(http.StatusOK, TransactionListResponse{Items: items})
}
