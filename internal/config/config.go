package config

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModePaper   Mode = "paper"
	ModeTestnet Mode = "testnet"
	ModeLive    Mode = "live"
)

type Config struct {
	Mode           Mode                 `yaml:"mode"`
	QuoteCurrency  string               `yaml:"quote_currency"`
	InstanceID     string               `yaml:"instance_id"`
	Trading        TradingConfig        `yaml:"trading"`
	Movers         MoversConfig         `yaml:"movers"`
	Exchange       ExchangeConfig       `yaml:"exchange"`
	State          StateConfig          `yaml:"state"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Observability  ObservabilityConfig  `yaml:"observability"`
}

type TradingConfig struct {
	BuyThresholdPct  Decimal `yaml:"buy_threshold_pct"`
	SellThresholdPct Decimal `yaml:"sell_threshold_pct"`
	TradeAmountPct   Decimal `yaml:"trade_amount_pct"`
	MinTradeAmount   Decimal `yaml:"min_trade_amount"`
	MaxPositions     int     `yaml:"max_positions"`
	InitialBalance   Decimal `yaml:"initial_balance"`
	TickSec          int64   `yaml:"tick_sec"`
}

type MoversConfig struct {
	Count         int   `yaml:"count"`
	RefreshSec    int64 `yaml:"refresh_sec"`
	WindowMinutes int64 `yaml:"window_minutes"`
}

type ExchangeConfig struct {
	APIKey         string `yaml:"api_key"`
	APISecret      string `yaml:"api_secret"`
	RestBaseURL    string `yaml:"rest_base_url"`
	WSBaseURL      string `yaml:"ws_base_url"`
	RecvWindowMs   int64  `yaml:"recv_window_ms"`
	HTTPTimeoutSec int64  `yaml:"http_timeout_sec"`
}

type StateConfig struct {
	Dir          string `yaml:"dir"`
	LockTakeover *bool  `yaml:"lock_takeover"`
	LockStaleSec int64  `yaml:"lock_stale_sec"`
}

type CircuitBreakerConfig struct {
	Enabled              bool  `yaml:"enabled"`
	MaxReconnectFailures int   `yaml:"max_reconnect_failures"`
	ReconnectCooldownSec int64 `yaml:"reconnect_cooldown_sec"`
	ReconnectProbePasses int   `yaml:"reconnect_probe_passes"`
}

type ObservabilityConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Runtime  RuntimeConfig  `yaml:"runtime"`
}

type TelegramConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BotToken   string `yaml:"bot_token"`
	ChatID     string `yaml:"chat_id"`
	APIBaseURL string `yaml:"api_base_url"`
	TimeoutSec int64  `yaml:"timeout_sec"`
}

type RuntimeConfig struct {
	HeartbeatSec int64 `yaml:"heartbeat_sec"`
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Config{}, fmt.Errorf("config must contain a single YAML document")
		}
		return Config{}, err
	}
	cfg.normalize()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Mode = Mode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	c.QuoteCurrency = strings.ToUpper(strings.TrimSpace(c.QuoteCurrency))
	c.InstanceID = strings.ToLower(strings.TrimSpace(c.InstanceID))
	c.Exchange.APIKey = strings.TrimSpace(c.Exchange.APIKey)
	c.Exchange.APISecret = strings.TrimSpace(c.Exchange.APISecret)
	c.Exchange.RestBaseURL = strings.TrimSpace(c.Exchange.RestBaseURL)
	c.Exchange.WSBaseURL = strings.TrimSpace(c.Exchange.WSBaseURL)
	c.State.Dir = strings.TrimSpace(c.State.Dir)
	c.Observability.Telegram.BotToken = strings.TrimSpace(c.Observability.Telegram.BotToken)
	c.Observability.Telegram.ChatID = strings.TrimSpace(c.Observability.Telegram.ChatID)
	c.Observability.Telegram.APIBaseURL = strings.TrimSpace(c.Observability.Telegram.APIBaseURL)
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModePaper
	}
	if c.QuoteCurrency == "" {
		c.QuoteCurrency = "USDT"
	}
	if c.InstanceID == "" {
		c.InstanceID = "default"
	}
	if c.Trading.BuyThresholdPct.Cmp(decimal.Zero) == 0 {
		c.Trading.BuyThresholdPct = Decimal{decimal.NewFromInt(2)}
	}
	if c.Trading.SellThresholdPct.Cmp(decimal.Zero) == 0 {
		c.Trading.SellThresholdPct = Decimal{decimal.NewFromInt(2)}
	}
	if c.Trading.TradeAmountPct.Cmp(decimal.Zero) == 0 {
		c.Trading.TradeAmountPct = Decimal{decimal.NewFromInt(25)}
	}
	if c.Trading.MinTradeAmount.Cmp(decimal.Zero) == 0 {
		c.Trading.MinTradeAmount = Decimal{decimal.NewFromInt(10)}
	}
	if c.Trading.MaxPositions == 0 {
		c.Trading.MaxPositions = 4
	}
	if c.Trading.InitialBalance.Cmp(decimal.Zero) == 0 {
		c.Trading.InitialBalance = Decimal{decimal.NewFromInt(10000)}
	}
	if c.Trading.TickSec == 0 {
		c.Trading.TickSec = 5
	}
	if c.Movers.Count == 0 {
		c.Movers.Count = 10
	}
	if c.Movers.RefreshSec == 0 {
		c.Movers.RefreshSec = 300
	}
	if c.Movers.WindowMinutes == 0 {
		c.Movers.WindowMinutes = 60
	}
	if c.Exchange.RecvWindowMs == 0 {
		c.Exchange.RecvWindowMs = 5000
	}
	if c.Exchange.HTTPTimeoutSec == 0 {
		c.Exchange.HTTPTimeoutSec = 15
	}
	if c.CircuitBreaker.MaxReconnectFailures == 0 {
		c.CircuitBreaker.MaxReconnectFailures = 10
	}
	if c.CircuitBreaker.ReconnectCooldownSec == 0 {
		c.CircuitBreaker.ReconnectCooldownSec = 30
	}
	if c.CircuitBreaker.ReconnectProbePasses == 0 {
		c.CircuitBreaker.ReconnectProbePasses = 1
	}
	if c.State.Dir == "" {
		c.State.Dir = "state"
	}
	if c.State.LockTakeover == nil {
		enabled := true
		c.State.LockTakeover = &enabled
	}
	if c.State.LockStaleSec == 0 {
		c.State.LockStaleSec = 600
	}
	if c.Observability.Telegram.APIBaseURL == "" {
		c.Observability.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if c.Observability.Telegram.TimeoutSec == 0 {
		c.Observability.Telegram.TimeoutSec = 10
	}
	if c.Observability.Runtime.HeartbeatSec == 0 {
		c.Observability.Runtime.HeartbeatSec = 60
	}
	if c.Exchange.RestBaseURL == "" {
		switch c.Mode {
		case ModeTestnet:
			c.Exchange.RestBaseURL = "https://testnet.binance.vision"
		case ModeLive:
			c.Exchange.RestBaseURL = "https://api.binance.com"
		}
	}
	if c.Exchange.WSBaseURL == "" {
		switch c.Mode {
		case ModeTestnet:
			c.Exchange.WSBaseURL = "wss://stream.testnet.binance.vision"
		case ModeLive:
			c.Exchange.WSBaseURL = "wss://stream.binance.com:9443"
		}
	}
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModePaper, ModeTestnet, ModeLive:
	default:
		return fmt.Errorf("mode must be paper, testnet, or live")
	}
	if !isValidAsset(c.QuoteCurrency) {
		return fmt.Errorf("quote_currency must match [A-Z0-9], length 2..10")
	}
	if !isValidInstanceID(c.InstanceID) {
		return fmt.Errorf("instance_id must match [a-z0-9_-], length 1..24")
	}
	if c.Trading.BuyThresholdPct.Cmp(decimal.Zero) <= 0 {
		return fmt.Errorf("trading buy_threshold_pct must be > 0")
	}
	if c.Trading.SellThresholdPct.Cmp(decimal.Zero) <= 0 {
		return fmt.Errorf("trading sell_threshold_pct must be > 0")
	}
	hundred := decimal.NewFromInt(100)
	if c.Trading.TradeAmountPct.Cmp(decimal.Zero) <= 0 || c.Trading.TradeAmountPct.Cmp(hundred) > 0 {
		return fmt.Errorf("trading trade_amount_pct must be between 0 and 100")
	}
	if c.Trading.MinTradeAmount.Cmp(decimal.Zero) < 0 {
		return fmt.Errorf("trading min_trade_amount must be >= 0")
	}
	if c.Trading.MaxPositions < 1 {
		return fmt.Errorf("trading max_positions must be >= 1")
	}
	if c.Trading.InitialBalance.Cmp(decimal.Zero) <= 0 {
		return fmt.Errorf("trading initial_balance must be > 0")
	}
	if c.Trading.TickSec < 1 || c.Trading.TickSec > 3600 {
		return fmt.Errorf("trading tick_sec must be between 1 and 3600")
	}
	if c.Movers.Count < 1 || c.Movers.Count > 100 {
		return fmt.Errorf("movers count must be between 1 and 100")
	}
	if c.Movers.RefreshSec < 10 || c.Movers.RefreshSec > 86400 {
		return fmt.Errorf("movers refresh_sec must be between 10 and 86400")
	}
	if c.Movers.WindowMinutes < 1 || c.Movers.WindowMinutes > 10080 {
		return fmt.Errorf("movers window_minutes must be between 1 and 10080")
	}
	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.MaxReconnectFailures < 1 {
			return fmt.Errorf("circuit_breaker.max_reconnect_failures must be >= 1")
		}
		if c.CircuitBreaker.ReconnectCooldownSec < 1 || c.CircuitBreaker.ReconnectCooldownSec > 3600 {
			return fmt.Errorf("circuit_breaker.reconnect_cooldown_sec must be between 1 and 3600")
		}
		if c.CircuitBreaker.ReconnectProbePasses < 1 || c.CircuitBreaker.ReconnectProbePasses > 20 {
			return fmt.Errorf("circuit_breaker.reconnect_probe_passes must be between 1 and 20")
		}
	}
	if c.Observability.Runtime.HeartbeatSec < 0 || c.Observability.Runtime.HeartbeatSec > 3600 {
		return fmt.Errorf("observability.runtime.heartbeat_sec must be between 0 and 3600")
	}
	if c.Observability.Telegram.Enabled {
		if c.Observability.Telegram.BotToken == "" {
			return fmt.Errorf("observability.telegram.bot_token is required when telegram enabled")
		}
		if c.Observability.Telegram.ChatID == "" {
			return fmt.Errorf("observability.telegram.chat_id is required when telegram enabled")
		}
		if c.Observability.Telegram.TimeoutSec < 1 || c.Observability.Telegram.TimeoutSec > 120 {
			return fmt.Errorf("observability.telegram.timeout_sec must be between 1 and 120")
		}
		if err := validateURL(c.Observability.Telegram.APIBaseURL, "http", "https"); err != nil {
			return fmt.Errorf("observability.telegram.api_base_url %v", err)
		}
	}
	if c.State.LockStaleSec < 0 || c.State.LockStaleSec > 86400 {
		return fmt.Errorf("state.lock_stale_sec must be between 0 and 86400")
	}
	if c.Mode != ModePaper {
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			return fmt.Errorf("exchange api_key/api_secret are required for %s mode", c.Mode)
		}
		if c.Exchange.RestBaseURL == "" || c.Exchange.WSBaseURL == "" {
			return fmt.Errorf("exchange rest_base_url/ws_base_url are required for %s mode", c.Mode)
		}
		if c.Exchange.RecvWindowMs < 1 || c.Exchange.RecvWindowMs > 60000 {
			return fmt.Errorf("exchange recv_window_ms must be between 1 and 60000")
		}
		if c.Exchange.HTTPTimeoutSec < 1 || c.Exchange.HTTPTimeoutSec > 120 {
			return fmt.Errorf("exchange http_timeout_sec must be between 1 and 120")
		}
		if err := validateURL(c.Exchange.RestBaseURL, "http", "https"); err != nil {
			return fmt.Errorf("exchange rest_base_url %v", err)
		}
		if err := validateURL(c.Exchange.WSBaseURL, "ws", "wss"); err != nil {
			return fmt.Errorf("exchange ws_base_url %v", err)
		}
	}
	return nil
}

func isValidInstanceID(v string) bool {
	if len(v) < 1 || len(v) > 24 {
		return false
	}
	for _, r := range v {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			continue
		}
		return false
	}
	return true
}

func isValidAsset(v string) bool {
	if len(v) < 2 || len(v) > 10 {
		return false
	}
	for _, r := range v {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %v", err)
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host")
	}
	for _, scheme := range schemes {
		if u.Scheme == scheme {
			return nil
		}
	}
	return fmt.Errorf("must use scheme %s", strings.Join(schemes, " or "))
}
