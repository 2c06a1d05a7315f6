package config

import "time"

// ChainConfig carries the single network this deployment is allowed to
// operate on and the upstream endpoints serving it.
type ChainConfig struct {
	Network         string
	RPCURL          string
	BundlerURL      string
	PaymasterURL    string
	AccountFactory  string
	AccountSalt     uint64
	ETHUSDPrice     float64
	UpstreamTimeout time.Duration
}

func loadChain() ChainConfig {
	bundler := mustenv("BUNDLER_URL")
	return ChainConfig{
		Network:         getenv("NETWORK", "base-sepolia"),
		RPCURL:          mustenv("CHAIN_RPC_URL"),
		BundlerURL:      bundler,
		PaymasterURL:    getenv("PAYMASTER_URL", bundler),
		AccountFactory:  getenv("FACTORY_ADDRESS", ""),
		AccountSalt:     u64env("ACCOUNT_SALT", 0),
		ETHUSDPrice:     f64env("ETH_USD_PRICE", 0),
		UpstreamTimeout: durationEnvSeconds("UPSTREAM_TIMEOUT", 15*time.Second),
	}
}
