package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "VlossomWallet"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultAccessTTL      = 15 * time.Minute
	defaultRefreshTTL     = 7 * 24 * time.Hour
	defaultSettleTimeout  = 10 * time.Minute
	defaultRateTTL        = time.Minute
	defaultChainID        = 8453
	defaultTokenSymbol    = "USDC"
	defaultTokenDecimals  = 6
	defaultFiatCurrency   = "USD"
	defaultExchangeRates  = "USDC/USD=1.00"

	// Dev-only chain settings: the canonical SimpleAccountFactory address and
	// a fixed init code hash so counterfactual addresses stay stable across
	// restarts without any env configuration.
	devFactoryAddress = "0x9406Cc6185a346906296840746125a0E44976454"
	devInitCodeHash   = "0x6f55d1f1a34cd9f32e25e1b516618051bf02b5296b311ad2ec14e16bf3f15c9c"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	JWTSecret       string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// Chain and token settings for the smart-account wallet.
	ChainID             int64
	TokenAddress        string
	TokenSymbol         string
	TokenDecimals       int32
	FiatCurrency        string
	FactoryAddress      string
	AccountInitCodeHash string
	EntryPointAddress   string
	BundlerURL          string
	SettleTimeout       time.Duration

	// ExchangeRates is a comma separated list of pair=rate entries used by the
	// static pricing source, e.g. "USDC/USD=1.00".
	ExchangeRates string
	RateTTL       time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:  getEnv("APP_NAME", defaultAppName),
		AppEnv:   getEnv("APP_ENV", defaultAppEnv),
		Port:     getEnv("PORT", defaultPort),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		RefreshSecret:   getEnv("JWT_REFRESH_SECRET", "dev-refresh-secret"),
		AccessTokenTTL:  defaultAccessTTL,
		RefreshTokenTTL: defaultRefreshTTL,

		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,

		ChainID:             defaultChainID,
		TokenAddress:        os.Getenv("TOKEN_ADDRESS"),
		TokenSymbol:         getEnv("TOKEN_SYMBOL", defaultTokenSymbol),
		TokenDecimals:       defaultTokenDecimals,
		FiatCurrency:        getEnv("FIAT_CURRENCY", defaultFiatCurrency),
		FactoryAddress:      os.Getenv("ACCOUNT_FACTORY_ADDRESS"),
		AccountInitCodeHash: os.Getenv("ACCOUNT_INIT_CODE_HASH"),
		EntryPointAddress:   os.Getenv("ENTRY_POINT_ADDRESS"),
		BundlerURL:          os.Getenv("BUNDLER_URL"),
		SettleTimeout:       defaultSettleTimeout,

		ExchangeRates: getEnv("EXCHANGE_RATES", defaultExchangeRates),
		RateTTL:       defaultRateTTL,
	}

	var err error
	if cfg.ChainID, err = getInt64Env("CHAIN_ID", cfg.ChainID); err != nil {
		return Config{}, err
	}
	if cfg.TokenDecimals, err = getInt32Env("TOKEN_DECIMALS", cfg.TokenDecimals); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = getDurationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = getDurationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenTTL, err = getDurationEnv("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = getDurationEnv("REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.SettleTimeout, err = getDurationEnv("SETTLE_TIMEOUT", cfg.SettleTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RateTTL, err = getDurationEnv("EXCHANGE_RATE_TTL", cfg.RateTTL); err != nil {
		return Config{}, err
	}

	if cfg.TokenDecimals < 0 || cfg.TokenDecimals > 18 {
		return Config{}, fmt.Errorf("TOKEN_DECIMALS must be between 0 and 18")
	}

	// Postgres and Redis are mandatory outside of development; the dev profile
	// falls back to in-memory backends wired in routes.Setup.
	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.FactoryAddress == "" || cfg.AccountInitCodeHash == "" {
			return Config{}, fmt.Errorf("ACCOUNT_FACTORY_ADDRESS and ACCOUNT_INIT_CODE_HASH must be set when APP_ENV=%s", cfg.AppEnv)
		}
	} else {
		if cfg.FactoryAddress == "" {
			cfg.FactoryAddress = devFactoryAddress
		}
		if cfg.AccountInitCodeHash == "" {
			cfg.AccountInitCodeHash = devInitCodeHash
		}
	}

	return cfg, nil
}

// IsDev reports whether the service runs under a development profile.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// RatePair returns the currency pair quoted by the pricing source.
func (c Config) RatePair() string {
	return c.TokenSymbol + "/" + c.FiatCurrency
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt64Env(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getInt32Env(key string, fallback int32) (int32, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return int32(n), nil
}
