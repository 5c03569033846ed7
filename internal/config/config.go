package config

import (
	"os"
	"strconv"
)

type Config struct {
	AppPort          string
	DBDSN            string
	JWTSecret        string
	JWTExpiresMin    int
	AccountSecretKey string
	USDTAddress      string
	OrderExpiryHours int
	FrontendBaseURL  string
}

func Load() Config {
	expires, _ := strconv.Atoi(get("JWT_EXPIRES_MIN", "10080"))
	expiry, _ := strconv.Atoi(get("ORDER_EXPIRY_HOURS", "12"))
	return Config{
		AppPort:          get("APP_PORT", "8080"),
		DBDSN:            must("DB_DSN"),
		JWTSecret:        must("JWT_SECRET"),
		JWTExpiresMin:    expires,
		AccountSecretKey: must("ACCOUNT_SECRET_KEY"),
		USDTAddress:      get("ADMIN_USDT_TRC20_ADDRESS", ""),
		OrderExpiryHours: expiry,
		FrontendBaseURL:  get("FRONTEND_BASE_URL", "http://localhost:3000"),
	}
}

func get(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
