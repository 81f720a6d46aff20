package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/suretyops/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, domain.Account("owner"), cfg.Owner)
	require.Equal(t, domain.Account("airline-1"), cfg.FirstAirline)
	require.Equal(t, 10*domain.Unit, cfg.Params.FundingThreshold)
	require.Equal(t, domain.Unit, cfg.Params.MaxPremium)
	require.Equal(t, 3, cfg.Params.OracleQuorum)
	require.True(t, cfg.Params.PayoutMultiplier.Equal(decimal.NewFromFloat(1.5)))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("FUNDING_THRESHOLD", "20")
	t.Setenv("ORACLE_QUORUM", "5")
	t.Setenv("PAYOUT_MULTIPLIER", "2")
	t.Setenv("FIRST_AIRLINE_ACCOUNT", "akk-air")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, 20*domain.Unit, cfg.Params.FundingThreshold)
	require.Equal(t, 5, cfg.Params.OracleQuorum)
	require.True(t, cfg.Params.PayoutMultiplier.Equal(decimal.NewFromInt(2)))
	require.Equal(t, domain.Account("akk-air"), cfg.FirstAirline)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("PAYOUT_MULTIPLIER", "lots")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsNonPositiveAmounts(t *testing.T) {
	t.Setenv("MAX_PREMIUM", "-1")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("MAX_PREMIUM", "1")
	t.Setenv("ORACLE_QUORUM", "0")
	_, err = Load()
	require.Error(t, err)
}
