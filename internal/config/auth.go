package config

import "time"

type AuthConfig struct {
	JWTSecret string
	JWTTTL    time.Duration
	DevToken  string
	DevUserID string
}

func loadAuth() AuthConfig {
	return AuthConfig{
		JWTSecret: getenv("JWT_SECRET", ""),
		JWTTTL:    durationEnvHours("JWT_TTL", 24*time.Hour),
		DevToken:  getenv("DEV_TOKEN", ""),
		DevUserID: getenv("DEV_USER_ID", "dev-user"),
	}
}
