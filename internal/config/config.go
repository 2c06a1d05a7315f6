package config

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Chain      ChainConfig
	Paymaster  PaymasterConfig
	Credential CredentialConfig
	Transfer   TransferConfig
	Poller     PollerConfig
	Auth       AuthConfig
}

// Load reads the process environment, loading .env first when present.
func Load() Config {
	ensureEnvLoaded()
	return Config{
		Server:     loadServer(),
		Database:   loadDatabase(),
		Chain:      loadChain(),
		Paymaster:  loadPaymaster(),
		Credential: loadCredential(),
		Transfer:   loadTransfer(),
		Poller:     loadPoller(),
		Auth:       loadAuth(),
	}
}
