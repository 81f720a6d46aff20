package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/suretyops/internal/domain"
	"github.com/punchamoorthee/suretyops/internal/ledger"
)

// Config carries server wiring plus the ledger economics. Amount variables are
// given in native units and converted to base units here.
type Config struct {
	DBSource     string
	Port         string
	Env          string
	Owner        domain.Account
	FirstAirline domain.Account
	AirlineName  string
	Params       ledger.Params
}

func Load() (*Config, error) {
	cfg := &Config{
		DBSource:     os.Getenv("DB_SOURCE"),
		Port:         envOr("SERVER_PORT", "8080"),
		Env:          envOr("ENVIRONMENT", "development"),
		Owner:        domain.Account(envOr("OWNER_ACCOUNT", "owner")),
		FirstAirline: domain.Account(envOr("FIRST_AIRLINE_ACCOUNT", "airline-1")),
		AirlineName:  envOr("FIRST_AIRLINE_NAME", "AirFirst"),
		Params:       ledger.DefaultParams(),
	}

	var err error
	if cfg.Params.FundingThreshold, err = unitsOr("FUNDING_THRESHOLD", cfg.Params.FundingThreshold); err != nil {
		return nil, err
	}
	if cfg.Params.MaxPremium, err = unitsOr("MAX_PREMIUM", cfg.Params.MaxPremium); err != nil {
		return nil, err
	}
	if cfg.Params.OracleFee, err = unitsOr("ORACLE_FEE", cfg.Params.OracleFee); err != nil {
		return nil, err
	}
	if v := os.Getenv("ORACLE_QUORUM"); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil || q < 1 {
			return nil, fmt.Errorf("ORACLE_QUORUM must be a positive integer, got %q", v)
		}
		cfg.Params.OracleQuorum = q
	}
	if v := os.Getenv("PAYOUT_MULTIPLIER"); v != "" {
		m, err := decimal.NewFromString(v)
		if err != nil || m.Sign() <= 0 {
			return nil, fmt.Errorf("PAYOUT_MULTIPLIER must be a positive decimal, got %q", v)
		}
		cfg.Params.PayoutMultiplier = m
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func unitsOr(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	units, err := strconv.ParseInt(v, 10, 64)
	if err != nil || units <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer of native units, got %q", key, v)
	}
	return units * domain.Unit, nil
}
