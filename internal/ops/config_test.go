package ops

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validConfig = `{
  "version": 3,
  "basket": {
    "etf": "XYZ",
    "tickSize": 5,
    "scale": {"PriceScale": 2},
    "components": [
      {"name": "ABC", "weightBps": 5000},
      {"name": "DEF", "weightBps": 3000},
      {"name": "GHI", "weightBps": 2000}
    ]
  },
  "market": {"windowSize": 16, "defaultVolBps": 4},
  "risk": {
    "longCap": 50,
    "shortCap": 50,
    "skewSensitivityBps": 50,
    "rateQuota": 95,
    "rateWindow": 1000000000,
    "drawdownSoftBps": 100,
    "drawdownHardBps": 300
  },
  "quote": {
    "levels": 3,
    "baseSpread": 10,
    "levelIncrement": 5,
    "baseSize": 10,
    "maxPerLevel": 25,
    "maxAggregate": 60
  },
  "orders": {"priceTolerance": 5, "sizeTolerance": 5},
  "strategy": {"reskewThreshold": 10, "pulledAfterDenials": 5, "pulledRecovery": 1000000000},
  "journal": {"dir": "/tmp/journal"}
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config, err: %v", err)
	}
	return path
}

func TestLoadResolvesConfig(t *testing.T) {
	loaded, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("load, err: %v", err)
	}
	if loaded.Version != 3 {
		t.Fatalf("version = %d, want 3", loaded.Version)
	}
	if loaded.Basket.ETF() != "XYZ" || loaded.Basket.TickSize() != 5 || loaded.Basket.ComponentCount() != 3 {
		t.Fatalf("basket = %s tick %d with %d components", loaded.Basket.ETF(), loaded.Basket.TickSize(), loaded.Basket.ComponentCount())
	}
	if id, ok := loaded.Basket.ComponentIDByName("DEF"); !ok || id != 2 {
		t.Fatalf("component lookup = %d, %v", id, ok)
	}
	if loaded.Risk.RateWindow != time.Second {
		t.Fatalf("rate window = %v, want 1s", loaded.Risk.RateWindow)
	}
	if loaded.Quote.Levels != 3 || loaded.Strategy.ReskewThreshold != 10 {
		t.Fatalf("quote/strategy not carried: %+v / %+v", loaded.Quote, loaded.Strategy)
	}
	if loaded.Journal.Dir != "/tmp/journal" {
		t.Fatalf("journal dir = %q", loaded.Journal.Dir)
	}
}

func TestLoadRejectsBadWeights(t *testing.T) {
	body := strings.Replace(validConfig, `"weightBps": 2000`, `"weightBps": 1000`, 1)
	if _, err := Load(writeConfig(t, body)); err == nil || !strings.Contains(err.Error(), "weights") {
		t.Fatalf("err = %v, want weight sum failure", err)
	}
}

func TestLoadRejectsBadLimits(t *testing.T) {
	cases := []struct {
		name string
		old  string
		new  string
		want string
	}{
		{"zero long cap", `"longCap": 50`, `"longCap": 0`, "caps"},
		{"zero rate quota", `"rateQuota": 95`, `"rateQuota": 0`, "rateQuota"},
		{"inverted drawdown", `"drawdownSoftBps": 100`, `"drawdownSoftBps": 400`, "drawdown"},
		{"zero levels", `"levels": 3`, `"levels": 0`, "levels"},
		{"zero base size", `"baseSize": 10`, `"baseSize": 0`, "baseSize"},
	}
	for _, c := range cases {
		body := strings.Replace(validConfig, c.old, c.new, 1)
		if body == validConfig {
			t.Fatalf("%s: replacement %q not found", c.name, c.old)
		}
		if _, err := Load(writeConfig(t, body)); err == nil || !strings.Contains(err.Error(), c.want) {
			t.Fatalf("%s: err = %v, want mention of %s", c.name, err, c.want)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
