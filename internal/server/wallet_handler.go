package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/0xPexy/petpay-backend/internal/auth"
	"github.com/0xPexy/petpay-backend/internal/balance"
	"github.com/0xPexy/petpay-backend/internal/chain"
	"github.com/0xPexy/petpay-backend/internal/network"
	"github.com/0xPexy/petpay-backend/internal/store"
	"github.com/0xPexy/petpay-backend/internal/transfer"
	"github.com/0xPexy/petpay-backend/internal/wallet"
	"github.com/gin-gonic/gin"
)

type BalanceService interface {
	Balance(ctx context.Context, address, network string) (balance.Balance, error)
	All(ctx context.Context, address, network string) (balance.Portfolio, error)
}

type WalletService interface {
	Provision(ctx context.Context, p wallet.ProvisionParams) (*store.Wallet, error)
	Repair(ctx context.Context, address string) (*wallet.RepairResult, error)
	Status(ctx context.Context, address string) (*wallet.StatusReport, error)
}

const (
	actionGetBalance     = "getbalance"
	actionGetAllBalances = "getallbalances"
	actionStatus         = "status"
	actionCreate         = "create"
	actionRepair         = "repair"
)

type walletHandler struct {
	networks *network.Registry
	balances BalanceService
	wallets  WalletService
}

func newWalletHandler(networks *network.Registry, balances BalanceService, wallets WalletService) *walletHandler {
	return &walletHandler{networks: networks, balances: balances, wallets: wallets}
}

// Handle dispatches the getBalance, getAllBalances, status, create and
// repair wallet actions.
func (h *walletHandler) Handle(c *gin.Context) {
	var req WalletRequest
	var err error
	if c.Request.Method == http.MethodGet {
		err = c.ShouldBindQuery(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		writeCodeError(c, http.StatusBadRequest, codeInvalidAction, "invalid wallet request")
		return
	}
	req.Address = strings.TrimSpace(req.Address)

	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case actionGetBalance:
		h.getBalance(c, req)
	case actionGetAllBalances:
		h.getAllBalances(c, req)
	case actionStatus:
		h.status(c, req)
	case actionCreate:
		h.create(c, req)
	case actionRepair:
		h.repair(c, req)
	default:
		writeCodeError(c, http.StatusBadRequest, codeInvalidAction, "unsupported wallet action")
	}
}

func (h *walletHandler) getBalance(c *gin.Context, req WalletRequest) {
	if h.balances == nil {
		writeTransferError(c, transfer.CodeSDKConfigFailed)
		return
	}
	b, err := h.balances.Balance(c.Request.Context(), req.Address, req.Network)
	if err != nil {
		writeBalanceError(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{
		Success: true,
		Address: strings.ToLower(req.Address),
		Network: h.networks.Default().Name,
		Balance: newBalanceView(b),
	})
}

func (h *walletHandler) getAllBalances(c *gin.Context, req WalletRequest) {
	if h.balances == nil {
		writeTransferError(c, transfer.CodeSDKConfigFailed)
		return
	}
	p, err := h.balances.All(c.Request.Context(), req.Address, req.Network)
	if err != nil {
		writeBalanceError(c, err)
		return
	}
	views := make([]BalanceView, 0, len(p.Balances))
	for _, b := range p.Balances {
		views = append(views, newBalanceView(b))
	}
	c.JSON(http.StatusOK, PortfolioResponse{
		Success:  true,
		Address:  strings.ToLower(p.Address.Hex()),
		Network:  p.Network,
		Balances: views,
		TotalUSD: p.TotalUSD.StringFixed(2),
	})
}

func (h *walletHandler) status(c *gin.Context, req WalletRequest) {
	if !h.walletReady(c, req) {
		return
	}
	report, err := h.wallets.Status(c.Request.Context(), req.Address)
	if err != nil {
		writeWalletError(c, err)
		return
	}
	c.JSON(http.StatusOK, WalletStatusResponse{
		Success:      true,
		Wallet:       newWalletView(report.Wallet),
		CredentialOK: report.CredentialOK,
		Repairable:   report.Repairable,
		Problem:      report.Problem,
	})
}

func (h *walletHandler) create(c *gin.Context, req WalletRequest) {
	if c.Request.Method != http.MethodPost {
		writeAPIError(c, http.StatusMethodNotAllowed, "create requires POST")
		return
	}
	if h.wallets == nil {
		writeTransferError(c, transfer.CodeSDKConfigFailed)
		return
	}
	// Provisioning retires the owner's current wallet, so the owner must be
	// the authenticated caller.
	owner := auth.UserID(c)
	if owner == "" {
		writeAPIError(c, http.StatusUnauthorized, "authentication required")
		return
	}
	w, err := h.wallets.Provision(c.Request.Context(), wallet.ProvisionParams{
		OwnerID: owner,
		Type:    req.Type,
		PetID:   req.PetID,
		Network: req.Network,
	})
	if err != nil {
		writeWalletError(c, err)
		return
	}
	c.JSON(http.StatusCreated, WalletResponse{Success: true, Status: "created", Wallet: newWalletView(w)})
}

func (h *walletHandler) repair(c *gin.Context, req WalletRequest) {
	if c.Request.Method != http.MethodPost {
		writeAPIError(c, http.StatusMethodNotAllowed, "repair requires POST")
		return
	}
	if !h.walletReady(c, req) {
		return
	}
	res, err := h.wallets.Repair(c.Request.Context(), req.Address)
	if err != nil {
		writeWalletError(c, err)
		return
	}
	msg := "wallet credential is healthy"
	if res.Status == wallet.StatusRepaired {
		msg = "wallet credential restored; retry the transfer"
	}
	c.JSON(http.StatusOK, WalletResponse{
		Success: true,
		Status:  string(res.Status),
		Message: msg,
		Wallet:  newWalletView(res.Wallet),
	})
}

func (h *walletHandler) walletReady(c *gin.Context, req WalletRequest) bool {
	if h.wallets == nil {
		writeTransferError(c, transfer.CodeSDKConfigFailed)
		return false
	}
	if !chain.IsAddress(req.Address) {
		writeTransferError(c, transfer.CodeInvalidAddress)
		return false
	}
	return true
}

func writeBalanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, balance.ErrInvalidAddress):
		writeTransferError(c, transfer.CodeInvalidAddress)
	case errors.Is(err, network.ErrUnsupportedNetwork):
		writeTransferError(c, transfer.CodeNetworkMismatch)
	default:
		writeTransferError(c, transfer.CodeCritical)
	}
}

func writeWalletError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeTransferError(c, transfer.CodeWalletNotFound)
	case errors.Is(err, wallet.ErrNotRepairable):
		writeCodeError(c, http.StatusConflict, codeWalletNeedsRepair, "wallet credential cannot be restored; create a new wallet")
	case errors.Is(err, wallet.ErrInvalidParams):
		writeCodeError(c, http.StatusBadRequest, string(transfer.CodeMissingFields), err.Error())
	case errors.Is(err, network.ErrUnsupportedNetwork):
		writeTransferError(c, transfer.CodeNetworkMismatch)
	case errors.Is(err, wallet.ErrNoFactory):
		writeTransferError(c, transfer.CodeSDKConfigFailed)
	default:
		writeTransferError(c, transfer.CodeCritical)
	}
}
