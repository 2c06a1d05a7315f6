package config

type PaymasterConfig struct {
	// PolicyID is forwarded as the sponsorship context; empty sends {}.
	PolicyID string
}

func loadPaymaster() PaymasterConfig {
	return PaymasterConfig{
		PolicyID: getenv("PAYMASTER_POLICY_ID", ""),
	}
}
