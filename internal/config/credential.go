package config

type CredentialConfig struct {
	MasterSecret   string
	RecoverySecret string
}

// Enabled reports whether wallet credentials can be opened at all. Without a
// master secret the transfer pipeline is not wired.
func (c CredentialConfig) Enabled() bool {
	return c.MasterSecret != ""
}

func loadCredential() CredentialConfig {
	return CredentialConfig{
		MasterSecret:   getenv("CREDENTIAL_MASTER_SECRET", ""),
		RecoverySecret: getenv("CREDENTIAL_RECOVERY_SECRET", ""),
	}
}
