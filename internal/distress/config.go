// Package distress implements the distress scoring engine: a deterministic,
// pure conversion of listing and market signals into a bounded 0-10 severity
// score used to rank motivated-seller opportunities.
package distress

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Band holds the inclusive lower bounds of a two-step scoring band: a value
// at or above High earns 2 points, at or above Mid earns 1, otherwise 0.
type Band struct {
	High float64 `yaml:"high" mapstructure:"high"`
	Mid  float64 `yaml:"mid" mapstructure:"mid"`
}

// Points returns the contribution of v under the band.
func (b Band) Points(v float64) int {
	switch {
	case v >= b.High:
		return 2
	case v >= b.Mid:
		return 1
	default:
		return 0
	}
}

// Config holds the scoring bands. The defaults are the hand-tuned production
// constants; they are configurable for experimentation but behavior parity
// is the expectation, not re-derivation.
type Config struct {
	DaysOnMarket Band `yaml:"days_on_market" mapstructure:"days_on_market"`
	Discount     Band `yaml:"discount" mapstructure:"discount"`
	PriceCut     Band `yaml:"price_cut" mapstructure:"price_cut"`
	DaysToClose  Band `yaml:"days_to_close" mapstructure:"days_to_close"`
	MaxScore     int  `yaml:"max_score" mapstructure:"max_score"`
}

// DefaultConfig returns the production scoring bands.
func DefaultConfig() Config {
	return Config{
		DaysOnMarket: Band{High: 90, Mid: 60},
		Discount:     Band{High: 20, Mid: 10},
		PriceCut:     Band{High: 30, Mid: 20},
		DaysToClose:  Band{High: 60, Mid: 45},
		MaxScore:     10,
	}
}

// ValidateConfig checks that a Config is internally consistent.
func ValidateConfig(c Config) error {
	var errs []string

	bands := map[string]Band{
		"days_on_market": c.DaysOnMarket,
		"discount":       c.Discount,
		"price_cut":      c.PriceCut,
		"days_to_close":  c.DaysToClose,
	}
	for name, b := range bands {
		if b.Mid < 0 || b.High < 0 {
			errs = append(errs, fmt.Sprintf("%s bounds must be >= 0", name))
		}
		if b.High < b.Mid {
			errs = append(errs, fmt.Sprintf("%s high bound must be >= mid bound", name))
		}
	}

	if c.MaxScore <= 0 {
		errs = append(errs, "max_score must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("distress: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadConfig reads a YAML band-override file layered over the defaults.
// An empty path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, eris.Wrapf(err, "distress: read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, eris.Wrapf(err, "distress: parse config %s", path)
	}
	if err := ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
