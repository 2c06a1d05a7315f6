// Package network holds the static chain and contract tables the transfer
// pipeline runs against. Exactly one network is enabled per deployment.
package network

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var ErrUnsupportedNetwork = errors.New("network: unsupported network")

const (
	BaseMainnet = "base-mainnet"
	BaseSepolia = "base-sepolia"
)

// EntryPointV06 is the canonical ERC-4337 v0.6 EntryPoint deployment.
var EntryPointV06 = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")

// USDCDecimals is the decimal count of the stablecoin on every listed chain.
const USDCDecimals = 6

type contracts struct {
	chainID    uint64
	usdc       common.Address
	entryPoint common.Address
}

var known = map[string]contracts{
	BaseMainnet: {
		chainID:    8453,
		usdc:       common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		entryPoint: EntryPointV06,
	},
	BaseSepolia: {
		chainID:    84532,
		usdc:       common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		entryPoint: EntryPointV06,
	},
}

type Network struct {
	Name         string
	ChainID      uint64
	USDC         common.Address
	EntryPoint   common.Address
	PaymasterURL string
	BundlerURL   string
	RPCURL       string
}

// ChainIDHex is the 0x-prefixed quantity form used in JSON-RPC params.
func (n Network) ChainIDHex() string {
	return "0x" + new(big.Int).SetUint64(n.ChainID).Text(16)
}

func (n Network) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(n.ChainID)
}

type Endpoints struct {
	PaymasterURL string
	BundlerURL   string
	RPCURL       string
}

type Registry struct {
	allowed Network
}

// NewRegistry enables the named network. Any other name is rejected by
// Resolve; there is no fallback.
func NewRegistry(name string, ep Endpoints) (*Registry, error) {
	key := Normalize(name)
	c, ok := known[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, name)
	}
	return &Registry{allowed: Network{
		Name:         key,
		ChainID:      c.chainID,
		USDC:         c.usdc,
		EntryPoint:   c.entryPoint,
		PaymasterURL: ep.PaymasterURL,
		BundlerURL:   ep.BundlerURL,
		RPCURL:       ep.RPCURL,
	}}, nil
}

// Resolve returns the enabled network. An empty name means the enabled one.
func (r *Registry) Resolve(name string) (Network, error) {
	key := Normalize(name)
	if key == "" {
		return r.allowed, nil
	}
	if key != r.allowed.Name {
		return Network{}, fmt.Errorf("%w: %q (enabled: %s)", ErrUnsupportedNetwork, name, r.allowed.Name)
	}
	return r.allowed, nil
}

// Default is the enabled network.
func (r *Registry) Default() Network {
	return r.allowed
}

func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
