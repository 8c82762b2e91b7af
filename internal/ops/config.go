package ops

import (
	"encoding/json"
	"fmt"
	"os"

	"main/internal/exchange"
	"main/internal/marketmodel"
	"main/internal/og"
	"main/internal/quote"
	"main/internal/recorder"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/strategy"
)

// FileConfig mirrors the JSON config layout. Durations are expressed in
// nanoseconds, the encoding/json default for time.Duration.
type FileConfig struct {
	Version  uint64             `json:"version"`
	Basket   BasketConfig       `json:"basket"`
	Market   marketmodel.Config `json:"market"`
	Risk     risk.Config        `json:"risk"`
	Quote    quote.Config       `json:"quote"`
	Orders   og.Config          `json:"orders"`
	Strategy strategy.Config    `json:"strategy"`
	Feed     FeedConfig         `json:"feed"`
	Gateway  GatewayConfig      `json:"gateway"`
	Journal  recorder.Config    `json:"journal"`
	Ledger   LedgerConfig       `json:"ledger"`
	Sim      exchange.SimConfig `json:"sim"`
}

// BasketConfig defines the quoted ETF and its components.
type BasketConfig struct {
	ETF        string            `json:"etf"`
	TickSize   schema.Price      `json:"tickSize"`
	Scale      schema.ScaleSpec  `json:"scale"`
	Components []ComponentConfig `json:"components"`
}

// ComponentConfig is a single basket member.
type ComponentConfig struct {
	Name      string `json:"name"`
	WeightBps int64  `json:"weightBps"`
}

// FeedConfig locates the component quote stream.
type FeedConfig struct {
	URL string `json:"url"`
}

// GatewayConfig locates the order entry endpoint.
type GatewayConfig struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// LedgerConfig describes the optional trade ledger database.
type LedgerConfig struct {
	Enabled    bool   `json:"enabled"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password"`
	Database   string `json:"database"`
	SSLMode    string `json:"sslMode"`
	ConnString string `json:"connString"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Version  uint64
	Basket   *schema.Basket
	Market   marketmodel.Config
	Risk     risk.Config
	Quote    quote.Config
	Orders   og.Config
	Strategy strategy.Config
	Feed     FeedConfig
	Gateway  GatewayConfig
	Journal  recorder.Config
	Ledger   LedgerConfig
	Sim      exchange.SimConfig
}

// Load reads a JSON config file and resolves the basket.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	basket, err := buildBasket(cfg.Basket)
	if err != nil {
		return Loaded{}, err
	}
	if err := validateRisk(cfg.Risk); err != nil {
		return Loaded{}, err
	}
	if err := validateQuote(cfg.Quote); err != nil {
		return Loaded{}, err
	}
	return Loaded{
		Version:  cfg.Version,
		Basket:   basket,
		Market:   cfg.Market,
		Risk:     cfg.Risk,
		Quote:    cfg.Quote,
		Orders:   cfg.Orders,
		Strategy: cfg.Strategy,
		Feed:     cfg.Feed,
		Gateway:  cfg.Gateway,
		Journal:  cfg.Journal,
		Ledger:   cfg.Ledger,
		Sim:      cfg.Sim,
	}, nil
}

func buildBasket(cfg BasketConfig) (*schema.Basket, error) {
	if cfg.ETF == "" {
		return nil, fmt.Errorf("basket etf is empty")
	}
	basket, err := schema.NewBasket(cfg.ETF, cfg.TickSize, cfg.Scale)
	if err != nil {
		return nil, err
	}
	for _, c := range cfg.Components {
		if _, err := basket.AddComponent(c.Name, c.WeightBps); err != nil {
			return nil, fmt.Errorf("component %s: %w", c.Name, err)
		}
	}
	if err := basket.Validate(); err != nil {
		return nil, err
	}
	return basket, nil
}

func validateRisk(cfg risk.Config) error {
	if cfg.LongCap <= 0 || cfg.ShortCap <= 0 {
		return fmt.Errorf("risk caps must be > 0")
	}
	if cfg.RateQuota <= 0 {
		return fmt.Errorf("risk rateQuota must be > 0")
	}
	if cfg.DrawdownHardBps > 0 && cfg.DrawdownSoftBps > cfg.DrawdownHardBps {
		return fmt.Errorf("risk drawdownSoftBps must be <= drawdownHardBps")
	}
	return nil
}

func validateQuote(cfg quote.Config) error {
	if cfg.Levels <= 0 {
		return fmt.Errorf("quote levels must be > 0")
	}
	if cfg.BaseSpread <= 0 {
		return fmt.Errorf("quote baseSpread must be > 0")
	}
	if cfg.BaseSize <= 0 {
		return fmt.Errorf("quote baseSize must be > 0")
	}
	return nil
}
