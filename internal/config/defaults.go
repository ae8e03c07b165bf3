package config

// applyDefaults 在校验前补齐缺省值。
func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":9991"
	}
	if c.Data.CachePath == "" {
		c.Data.CachePath = "data/bars.db"
	}
	if c.Data.ResultsDir == "" {
		c.Data.ResultsDir = "data/results"
	}
	if c.Simulation.MaxConcurrent <= 0 {
		c.Simulation.MaxConcurrent = 2
	}
	if c.Report.OutputDir == "" {
		c.Report.OutputDir = "data/reports"
	}
	if c.Report.TimeoutSeconds <= 0 {
		c.Report.TimeoutSeconds = 30
	}
	if c.Metrics.PeriodsPerYear <= 0 {
		c.Metrics.PeriodsPerYear = 252
	}
	if c.Metrics.Confidence <= 0 || c.Metrics.Confidence >= 1 {
		c.Metrics.Confidence = 0.95
	}
	if c.Exec.MaxParticipationRate <= 0 || c.Exec.MaxParticipationRate > 1 {
		c.Exec.MaxParticipationRate = 1
	}
}
