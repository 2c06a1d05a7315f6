package config

import "time"

type TransferConfig struct {
	RateLimit  int
	RateWindow time.Duration
}

func loadTransfer() TransferConfig {
	return TransferConfig{
		RateLimit:  intEnv("TRANSFER_RATE_LIMIT", 10),
		RateWindow: durationEnvSeconds("TRANSFER_RATE_WINDOW", time.Minute),
	}
}
