package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
environment: test
ingest:
  source: websocket
  tickers: [BTCUSDT, ETHUSDT]
feed:
  websocket_url: wss://feed.example.com/ws
postgres:
  dsn: postgres://localhost:5432/papertune
strategies:
  momentum_breakout:
    params:
      min_signal_strength:
        family: entry_filter
        min: 0.1
        max: 0.9
        default: 0.5
  funding_arbitrage:
    params:
      min_funding_rate:
        family: entry_filter
        min: 0.00002
        max: 0.0005
        default: 0.0001
      expiry_hours:
        family: expiry_hours
        min: 4
        max: 72
        default: 24
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Environment != "test" {
		t.Errorf("environment = %q", c.Environment)
	}
	if len(c.Ingest.Tickers) != 2 {
		t.Errorf("tickers = %v", c.Ingest.Tickers)
	}
}

func TestValidateRejectsBadSource(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}
	c.Ingest.Source = "rabbitmq"
	if err := c.Validate(); err == nil {
		t.Error("expected error for unknown ingest source")
	}
}

func TestValidateKafkaNeedsTopic(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}
	c.Ingest.Source = "kafka"
	c.Kafka.SnapshotsTopic = ""
	if err := c.Validate(); err == nil {
		t.Error("expected error for kafka ingest without snapshots topic")
	}
	c.Kafka.SnapshotsTopic = "indicator.snapshots"
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateRejectsBadParamBounds(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*ParamConfig)
	}{
		{"zero min", func(p *ParamConfig) { p.Min = 0 }},
		{"min above max", func(p *ParamConfig) { p.Min = 1; p.Max = 0.5 }},
		{"default outside bounds", func(p *ParamConfig) { p.Default = 2 }},
		{"unknown family", func(p *ParamConfig) { p.Family = "slippage" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Load(writeConfig(t, validYAML))
			if err != nil {
				t.Fatal(err)
			}
			p := c.Strategies["momentum_breakout"].Params["min_signal_strength"]
			tc.mut(&p)
			c.Strategies["momentum_breakout"].Params["min_signal_strength"] = p
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestStrategySpecsDeterministicOrder(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}
	specs, err := c.StrategySpecs()
	if err != nil {
		t.Fatalf("StrategySpecs: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("got %d specs", len(specs))
	}
	if specs[0].Name != "funding_arbitrage" || specs[1].Name != "momentum_breakout" {
		t.Errorf("order = %s, %s", specs[0].Name, specs[1].Name)
	}
	// params sorted by name within a strategy
	fa := specs[0]
	if fa.Params[0].Name != "expiry_hours" || fa.Params[1].Name != "min_funding_rate" {
		t.Errorf("param order = %s, %s", fa.Params[0].Name, fa.Params[1].Name)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("INGEST_SOURCE", "kafka")
	t.Setenv("TICKERS", "SOLUSDT")
	t.Setenv("POSTGRES_DSN", "postgres://db:5432/override")

	c, err := LoadWithEnv(writeConfig(t, validYAML+`
kafka:
  snapshots_topic: indicator.snapshots
`))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if c.Ingest.Source != "kafka" {
		t.Errorf("source = %q", c.Ingest.Source)
	}
	if len(c.Ingest.Tickers) != 1 || c.Ingest.Tickers[0] != "SOLUSDT" {
		t.Errorf("tickers = %v", c.Ingest.Tickers)
	}
	if c.Postgres.DSN != "postgres://db:5432/override" {
		t.Errorf("dsn = %q", c.Postgres.DSN)
	}
}
