package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := validateCost(c); err != nil {
		return err
	}
	if c.Metrics.RiskFreeRate < 0 {
		return fmt.Errorf("metrics.risk_free_rate must be >= 0")
	}
	if c.Simulation.MaxConcurrent <= 0 {
		return fmt.Errorf("simulation.max_concurrent must be > 0")
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(a.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %q", a.LogLevel)
	}
	return nil
}

func validateCost(c *Config) error {
	if c.Cost.TaxRate < 0 || c.Cost.TaxRate >= 1 {
		return fmt.Errorf("cost.tax_rate must be in [0, 1)")
	}
	if c.Cost.SlippageBps < 0 {
		return fmt.Errorf("cost.slippage_bps must be >= 0")
	}
	for id, b := range c.Cost.Brokers {
		if b.Rate < 0 || b.Rate >= 1 {
			return fmt.Errorf("cost.brokers.%s.rate must be in [0, 1)", id)
		}
		if b.Floor < 0 {
			return fmt.Errorf("cost.brokers.%s.floor must be >= 0", id)
		}
		if b.Cap > 0 && b.Cap < b.Floor {
			return fmt.Errorf("cost.brokers.%s.cap must be >= floor", id)
		}
	}
	if c.Cost.Broker != "" && len(c.Cost.Brokers) > 0 {
		if _, ok := c.Cost.Brokers[c.Cost.Broker]; !ok {
			return fmt.Errorf("cost.broker references unconfigured broker id: %s", c.Cost.Broker)
		}
	}
	return nil
}
