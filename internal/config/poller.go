package config

import "time"

type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

func loadPoller() PollerConfig {
	return PollerConfig{
		Interval:    durationEnvSeconds("POLLER_INTERVAL", 10*time.Second),
		MaxAttempts: intEnv("POLLER_MAX_ATTEMPTS", 30),
	}
}
