package server

import (
	"time"

	"github.com/0xPexy/petpay-backend/internal/balance"
	"github.com/0xPexy/petpay-backend/internal/store"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

type TransferRequest struct {
	FromAddress string         `json:"fromAddress"`
	ToAddress   string         `json:"toAddress"`
	Amount      string         `json:"amount"`
	Network     string         `json:"network"`
	UserID      string         `json:"userId"`
	PetID       *string        `json:"petId"`
	Type        string         `json:"type"`
	Metadata    map[string]any `json:"metadata"`
}

type TransferResponse struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash"`
	Message         string `json:"message"`
	Network         string `json:"network"`
	Amount          string `json:"amount"`
	Duplicate       bool   `json:"duplicate,omitempty"`
}

type WalletRequest struct {
	Action  string  `json:"action" form:"action"`
	Address string  `json:"address" form:"address"`
	Network string  `json:"network" form:"network"`
	Type    string  `json:"type" form:"type"`
	PetID   *string `json:"petId" form:"petId"`
}

type BalanceView struct {
	Asset    string  `json:"asset"`
	Value    string  `json:"value"`
	Display  string  `json:"display"`
	Decimals int32   `json:"decimals"`
	Source   string  `json:"source"`
	Error    string  `json:"error,omitempty"`
	USD      *string `json:"usd,omitempty"`
}

func newBalanceView(b balance.Balance) BalanceView {
	v := BalanceView{
		Asset:    b.Asset,
		Value:    "0",
		Display:  b.Display(),
		Decimals: b.Decimals,
		Source:   string(b.Source),
		Error:    b.Error,
	}
	if b.Value != nil {
		v.Value = b.Value.String()
	}
	if b.USD != nil {
		usd := b.USD.StringFixed(2)
		v.USD = &usd
	}
	return v
}

type BalanceResponse struct {
	Success bool        `json:"success"`
	Address string      `json:"address"`
	Network string      `json:"network"`
	Balance BalanceView `json:"balance"`
}

type PortfolioResponse struct {
	Success  bool          `json:"success"`
	Address  string        `json:"address"`
	Network  string        `json:"network"`
	Balances []BalanceView `json:"balances"`
	TotalUSD string        `json:"totalUsd"`
}

type WalletView struct {
	WalletID     string    `json:"walletId"`
	Address      string    `json:"address"`
	Network      string    `json:"network"`
	Type         string    `json:"type"`
	OwnerID      string    `json:"ownerId"`
	PetID        *string   `json:"petId,omitempty"`
	OwnerAddress string    `json:"ownerAddress,omitempty"`
	Basename     *string   `json:"basename,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

func newWalletView(w *store.Wallet) WalletView {
	return WalletView{
		WalletID:     w.WalletID,
		Address:      w.Address,
		Network:      w.Network,
		Type:         w.Type,
		OwnerID:      w.OwnerID,
		PetID:        w.PetID,
		OwnerAddress: w.OwnerAddress,
		Basename:     w.Basename,
		IsActive:     w.IsActive,
		CreatedAt:    w.CreatedAt,
	}
}

type WalletResponse struct {
	Success bool       `json:"success"`
	Status  string     `json:"status,omitempty"`
	Message string     `json:"message,omitempty"`
	Wallet  WalletView `json:"wallet"`
}

type WalletStatusResponse struct {
	Success      bool       `json:"success"`
	Wallet       WalletView `json:"wallet"`
	CredentialOK bool       `json:"credentialOk"`
	Repairable   bool       `json:"repairable"`
	Problem      string     `json:"problem,omitempty"`
}

type TransactionView struct {
	TransactionHash string         `json:"transactionHash"`
	From            string         `json:"from"`
	To              string         `json:"to"`
	Amount          string         `json:"amount"`
	Token           string         `json:"token"`
	Network         string         `json:"network"`
	Type            string         `json:"type"`
	Status          string         `json:"status"`
	Timestamp       time.Time      `json:"timestamp"`
	UserID          string         `json:"userId,omitempty"`
	PetID           *string        `json:"petId,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

func newTransactionView(tx store.Transaction) TransactionView {
	return TransactionView{
		TransactionHash: tx.TransactionHash,
		From:            tx.From,
		To:              tx.To,
		Amount:          tx.Amount,
		Token:           tx.Token,
		Network:         tx.Network,
		Type:            tx.Type,
		Status:          tx.Status,
		Timestamp:       tx.Timestamp,
		UserID:          tx.UserID,
		PetID:           tx.PetID,
		Metadata:        tx.Metadata,
	}
}

type TransactionListResponse struct {
	Items []TransactionView `json:"items"`
}

type AddressLookupResponse struct {
	Contract string `json:"contract"`
	Address  string `json:"address"`
	Network  string `json:"network"`
	ChainID  uint64 `json:"chainId"`
}
