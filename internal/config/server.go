package config

import "time"

type ServerConfig struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
}

func loadServer() ServerConfig {
	return ServerConfig{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: durationEnvSeconds("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}
