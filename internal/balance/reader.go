// Package balance reads wallet balances from chain. Read failures never
// surface as fabricated values: they come back marked unavailable.
package balance

import (
	"context"
	"errors"
	"log"
	"math/big"

	"github.com/0xPexy/petpay-backend/internal/chain"
	"github.com/0xPexy/petpay-backend/internal/network"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var ErrInvalidAddress = errors.New("balance: invalid address")

type Source string

const (
	SourceLive        Source = "live"
	SourceUnavailable Source = "unavailable"
)

const (
	AssetUSDC = "USDC"
	AssetETH  = "ETH"

	ethDecimals = 18
)

type Balance struct {
	Asset    string
	Value    *big.Int
	Decimals int32
	Source   Source
	Error    string
	// USD is nil when no price is known for the asset.
	USD *decimal.Decimal
}

// Display renders Value in whole-token units.
func (b Balance) Display() string {
	return b.decimal().String()
}

func (b Balance) decimal() decimal.Decimal {
	if b.Value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(b.Value, -b.Decimals)
}

// Live reports whether the value was actually read from chain.
func (b Balance) Live() bool { return b.Source == SourceLive }

type Portfolio struct {
	Address  common.Address
	Network  string
	Balances []Balance
	// TotalUSD sums the priced live balances.
	TotalUSD decimal.Decimal
}

type ChainReader interface {
	TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error)
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
}

type Reader struct {
	chain    ChainReader
	networks *network.Registry
	ethUSD   decimal.Decimal
	logger   *log.Logger
}

// NewReader builds a reader. ethUSD <= 0 leaves ETH unpriced.
func NewReader(c ChainReader, networks *network.Registry, ethUSD float64, logger *log.Logger) *Reader {
	return &Reader{
		chain:    c,
		networks: networks,
		ethUSD:   decimal.NewFromFloat(ethUSD),
		logger:   logger,
	}
}

func (r *Reader) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

func (r *Reader) resolve(address, networkName string) (common.Address, network.Network, error) {
	if !chain.IsAddress(address) {
		return common.Address{}, network.Network{}, ErrInvalidAddress
	}
	n, err := r.networks.Resolve(networkName)
	if err != nil {
		return common.Address{}, network.Network{}, err
	}
	return common.HexToAddress(address), n, nil
}

// Balance returns the USDC balance of address. Only address and network
// problems are errors; chain failures yield an unavailable balance.
func (r *Reader) Balance(ctx context.Context, address, networkName string) (Balance, error) {
	account, n, err := r.resolve(address, networkName)
	if err != nil {
		return Balance{}, err
	}
	return r.usdc(ctx, account, n), nil
}

// All returns USDC and native ETH balances with best-effort USD valuation.
func (r *Reader) All(ctx context.Context, address, networkName string) (Portfolio, error) {
	account, n, err := r.resolve(address, networkName)
	if err != nil {
		return Portfolio{}, err
	}
	p := Portfolio{Address: account, Network: n.Name, TotalUSD: decimal.Zero}
	p.Balances = append(p.Balances, r.usdc(ctx, account, n), r.native(ctx, account))
	for _, b := range p.Balances {
		if b.Live() && b.USD != nil {
			p.TotalUSD = p.TotalUSD.Add(*b.USD)
		}
	}
	return p, nil
}

func (r *Reader) usdc(ctx context.Context, account common.Address, n network.Network) Balance {
	b := Balance{Asset: AssetUSDC, Decimals: network.USDCDecimals}
	v, err := r.chain.TokenBalance(ctx, n.USDC, account)
	if err != nil {
		r.logf("usdc balanceOf %s on %s: %v", account.Hex(), n.Name, err)
		return unavailable(b, err)
	}
	b.Value, b.Source = v, SourceLive
	usd := b.decimal()
	b.USD = &usd
	return b
}

func (r *Reader) native(ctx context.Context, account common.Address) Balance {
	b := Balance{Asset: AssetETH, Decimals: ethDecimals}
	v, err := r.chain.NativeBalance(ctx, account)
	if err != nil {
		r.logf("eth balance %s: %v", account.Hex(), err)
		return unavailable(b, err)
	}
	b.Value, b.Source = v, SourceLive
	if r.ethUSD.IsPositive() {
		usd := b.decimal().Mul(r.ethUSD).Round(2)
		b.USD = &usd
	}
	return b
}

func unavailable(b Balance, err error) Balance {
	b.Value = new(big.Int)
	b.Source = SourceUnavailable
	b.Error = err.Error()
	return b
}
