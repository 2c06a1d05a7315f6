// Package client talks to the petpay HTTP API and drives the client side of
// wallet repair.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// CodeOf returns the API code carried by err, or "".
func CodeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type TransferRequest struct {
	FromAddress string         `json:"fromAddress"`
	ToAddress   string         `json:"toAddress"`
	Amount      string         `json:"amount"`
	Network     string         `json:"network,omitempty"`
	UserID      string         `json:"userId,omitempty"`
	PetID       *string        `json:"petId,omitempty"`
	Type        string         `json:"type,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type TransferResult struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash"`
	Message         string `json:"message"`
	Network         string `json:"network"`
	Amount          string `json:"amount"`
	Duplicate       bool   `json:"duplicate"`
}

type Balance struct {
	Asset    string  `json:"asset"`
	Value    string  `json:"value"`
	Display  string  `json:"display"`
	Decimals int32   `json:"decimals"`
	Source   string  `json:"source"`
	Error    string  `json:"error"`
	USD      *string `json:"usd"`
}

type BalanceResult struct {
	Address string  `json:"address"`
	Network string  `json:"network"`
	Balance Balance `json:"balance"`
}

type Portfolio struct {
	Address  string    `json:"address"`
	Network  string    `json:"network"`
	Balances []Balance `json:"balances"`
	TotalUSD string    `json:"totalUsd"`
}

type Wallet struct {
	WalletID     string  `json:"walletId"`
	Address      string  `json:"address"`
	Network      string  `json:"network"`
	Type         string  `json:"type"`
	OwnerID      string  `json:"ownerId"`
	PetID        *string `json:"petId"`
	OwnerAddress string  `json:"ownerAddress"`
	IsActive     bool    `json:"isActive"`
}

type WalletResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Wallet  Wallet `json:"wallet"`
}

// ProvisionRequest creates a wallet for the token's user.
type ProvisionRequest struct {
	Type    string  `json:"type,omitempty"`
	PetID   *string `json:"petId,omitempty"`
	Network string  `json:"network,omitempty"`
}

type Transaction struct {
	TransactionHash string         `json:"transactionHash"`
	From            string         `json:"from"`
	To              string         `json:"to"`
	Amount          string         `json:"amount"`
	Token           string         `json:"token"`
	Network         string         `json:"network"`
	Status          string         `json:"status"`
	Timestamp       time.Time      `json:"timestamp"`
	Metadata        map[string]any `json:"metadata"`
}

func (c *Client) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	var out TransferResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/transfer", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Balance(ctx context.Context, address, network string) (*BalanceResult, error) {
	var out BalanceResult
	q := url.Values{"action": {"getBalance"}, "address": {address}}
	if network != "" {
		q.Set("network", network)
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/wallet", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AllBalances(ctx context.Context, address, network string) (*Portfolio, error) {
	var out Portfolio
	q := url.Values{"action": {"getAllBalances"}, "address": {address}}
	if network != "" {
		q.Set("network", network)
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/wallet", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Repair(ctx context.Context, address string) (*WalletResult, error) {
	var out WalletResult
	body := map[string]string{"action": "repair", "address": address}
	if err := c.do(ctx, http.MethodPost, "/api/v1/wallet", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Provision(ctx context.Context, req ProvisionRequest) (*WalletResult, error) {
	var out WalletResult
	body := struct {
		Action string `json:"action"`
		ProvisionRequest
	}{Action: "create", ProvisionRequest: req}
	if err := c.do(ctx, http.MethodPost, "/api/v1/wallet", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Transaction(ctx context.Context, hash string) (*Transaction, error) {
	var out Transaction
	if err := c.do(ctx, http.MethodGet, "/api/v1/transactions/"+url.PathEscape(hash), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var env struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(raw, &env) == nil && env.Error != "" {
			apiErr.Code, apiErr.Message = env.Code, env.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
