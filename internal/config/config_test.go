package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
app:
  exchange: paper
  database_path: /tmp/test.db
  price_feed_url: http://localhost:8080
exchanges:
  paper:
    fee_rate: 0.001
strategy:
  max_investment: 100
`

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Engine.PollIntervalSeconds != 5 {
		t.Errorf("PollIntervalSeconds default: %d", cfg.Engine.PollIntervalSeconds)
	}
	if cfg.PollInterval() != 5*time.Second {
		t.Errorf("PollInterval: %s", cfg.PollInterval())
	}
	if cfg.MaxBackoff() != 80*time.Second {
		t.Errorf("MaxBackoff: %s", cfg.MaxBackoff())
	}
	if cfg.Monitor.PeakDropWaitSeconds != 30 {
		t.Errorf("PeakDropWaitSeconds default: %d", cfg.Monitor.PeakDropWaitSeconds)
	}
	if cfg.Monitor.PriceHistorySize != 288 {
		t.Errorf("PriceHistorySize default: %d", cfg.Monitor.PriceHistorySize)
	}
	if cfg.Engine.QuoteCurrency != "USDT" {
		t.Errorf("QuoteCurrency default: %s", cfg.Engine.QuoteCurrency)
	}
	if cfg.System.LogLevel != "INFO" {
		t.Errorf("LogLevel default: %s", cfg.System.LogLevel)
	}
	if len(cfg.Strategy.Kinds) != 1 || cfg.Strategy.Kinds[0] != "volume_spike" {
		t.Errorf("Kinds default: %v", cfg.Strategy.Kinds)
	}
}

func TestLoadConfig_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "/tmp/expanded.db")
	cfg, err := LoadConfig(writeConfig(t, `
app:
  exchange: paper
  database_path: ${TEST_DB_PATH}
exchanges:
  paper: {}
strategy:
  max_investment: 50
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.App.DatabasePath != "/tmp/expanded.db" {
		t.Errorf("Env expansion failed: %s", cfg.App.DatabasePath)
	}
}

func TestLoadConfig_ValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{
			"missing exchange",
			`
app:
  database_path: /tmp/test.db
strategy:
  max_investment: 100
`,
			"app.exchange",
		},
		{
			"missing database path",
			`
app:
  exchange: paper
strategy:
  max_investment: 100
`,
			"app.database_path",
		},
		{
			"non-positive max investment",
			`
app:
  exchange: paper
  database_path: /tmp/test.db
strategy:
  max_investment: 0
`,
			"strategy.max_investment",
		},
		{
			"negative stop loss",
			`
app:
  exchange: paper
  database_path: /tmp/test.db
strategy:
  max_investment: 100
  stop_loss_pct: -5
`,
			"strategy.stop_loss_pct",
		},
		{
			"bad log level",
			`
app:
  exchange: paper
  database_path: /tmp/test.db
strategy:
  max_investment: 100
system:
  log_level: LOUD
`,
			"system.log_level",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, c.yaml))
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), c.wantSub) {
				t.Errorf("Error %q does not mention %q", err.Error(), c.wantSub)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestConfig_StringMasksSecrets(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
app:
  exchange: paper
  database_path: /tmp/test.db
exchanges:
  paper:
    api_key: super-secret-key
    secret_key: even-more-secret
strategy:
  max_investment: 100
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	s := cfg.String()
	if strings.Contains(s, "super-secret-key") || strings.Contains(s, "even-more-secret") {
		t.Error("String() must not leak credentials")
	}
}
