package bootstrap

import (
	"testing"

	"trade_engine/internal/config"
	"trade_engine/internal/core"
)

type mockLogger struct {
	core.ILogger
}

func (m *mockLogger) Debug(msg string, args ...interface{})                 {}
func (m *mockLogger) Info(msg string, args ...interface{})                  {}
func (m *mockLogger) Warn(msg string, args ...interface{})                  {}
func (m *mockLogger) Error(msg string, args ...interface{})                 {}
func (m *mockLogger) Fatal(msg string, args ...interface{})                 {}
func (m *mockLogger) WithField(key string, value interface{}) core.ILogger  { return m }
func (m *mockLogger) WithFields(fields map[string]interface{}) core.ILogger { return m }

func TestBuildStrategies(t *testing.T) {
	cfg := config.DefaultConfig()

	strategies, err := buildStrategies(cfg, &mockLogger{})
	if err != nil {
		t.Fatalf("buildStrategies: %v", err)
	}
	if len(strategies) != len(cfg.Strategy.Kinds) {
		t.Fatalf("Expected %d strategies, got %d", len(cfg.Strategy.Kinds), len(strategies))
	}
}

func TestBuildStrategiesUnknownKindFailsStartup(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Strategy.Kinds = []string{"momentum"}

	if _, err := buildStrategies(cfg, &mockLogger{}); err == nil {
		t.Fatal("Expected an error for an unregistered strategy kind")
	}
}
