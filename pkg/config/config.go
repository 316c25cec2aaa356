package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"PaperTune/internal/domain/models"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level         string `yaml:"level"`
		Format        string `yaml:"format"`
		Output        string `yaml:"output"`
		CollectErrors bool   `yaml:"collect_errors"`
	} `yaml:"logging"`
	Ingest struct {
		// Source of indicator snapshots: "websocket" for the live
		// indicator feed, "kafka" to consume the snapshots topic.
		Source  string   `yaml:"source"`
		Tickers []string `yaml:"tickers"`
	} `yaml:"ingest"`
	Feed struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"feed"`
	Kafka struct {
		Brokers            []string `yaml:"brokers"`
		SnapshotsTopic     string   `yaml:"snapshots_topic"`
		NotificationsTopic string   `yaml:"notifications_topic"`
		RebuildTopic       string   `yaml:"rebuild_topic"`
		LogsTopic          string   `yaml:"logs_topic"`
		RequiredAcks       int      `yaml:"required_acks"`
		Compression        string   `yaml:"compression"`
		Producer           struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Postgres struct {
		DSN             string        `yaml:"dsn"`
		MaxConns        int32         `yaml:"max_conns"`
		MinConns        int32         `yaml:"min_conns"`
		MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
		ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	} `yaml:"postgres"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr        string        `yaml:"addr"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db"`
		SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
	} `yaml:"redis"`
	Alerts struct {
		LastRecTTL   time.Duration `yaml:"last_rec_ttl"`
		Burst        float64       `yaml:"burst"`
		PerSec       float64       `yaml:"per_sec"`
		Workers      int           `yaml:"workers"`
		WebhookURL   string        `yaml:"webhook_url"`
		WebhookToken string        `yaml:"webhook_token"`
	} `yaml:"alerts"`
	Tuner struct {
		Interval       time.Duration `yaml:"interval"`
		WindowDays     int           `yaml:"window_days"`
		AutoApply      bool          `yaml:"auto_apply"`
		WinRateLow     float64       `yaml:"win_rate_low"`
		WinRateHigh    float64       `yaml:"win_rate_high"`
		AvgPnLFloor    float64       `yaml:"avg_pnl_floor"`
		ExpiryRateHigh float64       `yaml:"expiry_rate_high"`
		MinSignalCount int           `yaml:"min_signal_count"`
	} `yaml:"tuner"`
	Strategies map[string]StrategyConfig `yaml:"strategies"`
}

// StrategyConfig is the YAML shape of one tunable strategy.
type StrategyConfig struct {
	Params map[string]ParamConfig `yaml:"params"`
}

// ParamConfig is the YAML shape of one tunable parameter.
type ParamConfig struct {
	Family  string  `yaml:"family"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Default float64 `yaml:"default"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("TICKERS"); v != "" {
		c.Ingest.Tickers = strings.Split(v, ",")
	}
	if v := os.Getenv("INGEST_SOURCE"); v != "" {
		c.Ingest.Source = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("ALERT_WEBHOOK_TOKEN"); v != "" {
		c.Alerts.WebhookToken = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Ingest.Source {
	case "websocket", "kafka":
	default:
		return fmt.Errorf("ingest.source must be 'websocket' or 'kafka', got '%s'", c.Ingest.Source)
	}
	if len(c.Ingest.Tickers) == 0 {
		return fmt.Errorf("ingest.tickers cannot be empty")
	}
	if c.Ingest.Source == "websocket" && c.Feed.WebSocketURL == "" {
		return fmt.Errorf("feed.websocket_url is required for websocket ingest")
	}
	if c.Ingest.Source == "kafka" && c.Kafka.SnapshotsTopic == "" {
		return fmt.Errorf("kafka.snapshots_topic is required for kafka ingest")
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("strategies cannot be empty")
	}
	if _, err := c.StrategySpecs(); err != nil {
		return err
	}
	return nil
}

// StrategySpecs converts the configured strategies to validated domain
// specs, sorted by strategy name for deterministic iteration.
func (c *Config) StrategySpecs() ([]models.StrategySpec, error) {
	specs := make([]models.StrategySpec, 0, len(c.Strategies))
	for name, sc := range c.Strategies {
		spec := models.StrategySpec{Name: name}
		pnames := make([]string, 0, len(sc.Params))
		for pname := range sc.Params {
			pnames = append(pnames, pname)
		}
		sort.Strings(pnames)
		for _, pname := range pnames {
			pc := sc.Params[pname]
			spec.Params = append(spec.Params, models.ParamSpec{
				Name:    pname,
				Family:  models.ParamFamily(pc.Family),
				Min:     pc.Min,
				Max:     pc.Max,
				Default: pc.Default,
			})
		}
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("strategies: %w", err)
		}
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs, nil
}
