package config

import (
	"os"
	"time"
)

// Gateway holds connection settings for one external wallet service.
type Gateway struct {
	BaseURL     string
	AccessToken string
}

// Server captures process-level configuration. Built from environment
// variables so main stays lean.
type Server struct {
	Addr        string
	DatabaseURL string
	RedisURL    string

	Issuer   Gateway
	Verifier Gateway

	// VCUID is the credential template identifier registered with the issuer.
	VCUID string
	// VerifierRef is the presentation definition reference for door challenges.
	VerifierRef string

	// DoorAttemptTTL bounds the validity window of a door transaction.
	DoorAttemptTTL time.Duration
	// GatewayTimeout bounds a single round trip to the issuer/verifier.
	GatewayTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:        getEnv("STAYKEY_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		Issuer: Gateway{
			BaseURL:     getEnv("ISSUER_API_URL", "https://issuer-sandbox.wallet.gov.tw/api"),
			AccessToken: os.Getenv("ISSUER_ACCESS_TOKEN"),
		},
		Verifier: Gateway{
			BaseURL:     getEnv("VERIFIER_API_URL", "https://verifier-sandbox.wallet.gov.tw/api"),
			AccessToken: os.Getenv("VERIFIER_ACCESS_TOKEN"),
		},
		VCUID:          getEnv("ISSUER_VC_UID", "00000000_certikey_2"),
		VerifierRef:    getEnv("VERIFIER_REF", "00000000_certikey"),
		DoorAttemptTTL: getDuration("DOOR_ATTEMPT_TTL", 15*time.Minute),
		GatewayTimeout: getDuration("GATEWAY_TIMEOUT", 10*time.Second),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
