package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalYAML = `
universe: [BTCUSDT, ethusdt, BTCUSDT]
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.NormalizedUniverse())
	assert.Equal(t, "paper", cfg.Execution.Mode)
	assert.False(t, cfg.Execution.IsLive())
	assert.Equal(t, defaultMinNotional, cfg.Exchange.Orders.MinNotional)
	assert.Equal(t, defaultCashBuffer, cfg.Risk.CashBuffer)
	assert.Equal(t, defaultTakeProfitMult, cfg.Exit.TakeProfitMult)
	assert.True(t, cfg.Exchange.Orders.PreventDuplicateEntries)
	assert.True(t, cfg.Exchange.Orders.PreventIfOpenOrders)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.IntervalDuration())
}

func TestLoadExplicitFalseSurvivesDefaulting(t *testing.T) {
	body := minimalYAML + `
exchange:
  orders:
    prevent_duplicate_entries: false
`
	cfg, err := Load(writeConfig(t, "config.yaml", body))
	require.NoError(t, err)
	assert.False(t, cfg.Exchange.Orders.PreventDuplicateEntries)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	body := minimalYAML + `
excution:
  mode: live
`
	_, err := Load(writeConfig(t, "config.yaml", body))
	require.Error(t, err)
}

func TestLoadLiveRequiresCredentials(t *testing.T) {
	body := minimalYAML + `
execution:
  mode: live
`
	_, err := Load(writeConfig(t, "config.yaml", body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoadRejectsBadRanges(t *testing.T) {
	cases := map[string]string{
		"trailing_dd": minimalYAML + "\nexit:\n  trailing_dd: 1.5\n",
		"cash_buffer": minimalYAML + "\nrisk:\n  cash_buffer: 1.0\n",
		"sell_fraction": minimalYAML + `
exchange:
  orders:
    sell_fraction: 2.0
`,
		"interval": minimalYAML + "\nscheduler:\n  interval: never\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMergesIncludes(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	main := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(base, []byte("risk:\n  cash_buffer: 0.25\n"), 0o644))
	require.NoError(t, os.WriteFile(main, []byte(`
include: [base.yaml]
universe: [BTCUSDT]
`), 0o644))

	cfg, err := Load(main)
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.Risk.CashBuffer)
}
