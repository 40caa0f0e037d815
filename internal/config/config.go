package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"loadpulse/internal/threshold"
)

// Executor kinds accepted in a test plan.
const (
	ExecutorConstant = "constant-vus"
	ExecutorRamping  = "ramping-vus"
)

// Config is the full test plan: what to hit, how hard, and what counts
// as a pass. It is validated once at startup; nothing downstream
// re-checks it.
type Config struct {
	BaseURL    string        `mapstructure:"base_url"`
	HealthPath string        `mapstructure:"health_path"`
	Timeout    time.Duration `mapstructure:"timeout"`

	ThinkMin time.Duration `mapstructure:"think_min"`
	ThinkMax time.Duration `mapstructure:"think_max"`

	Endpoints  []Endpoint          `mapstructure:"endpoints"`
	Scenarios  []Scenario          `mapstructure:"scenarios"`
	Thresholds map[string][]string `mapstructure:"thresholds"`

	Scheduler SchedulerConfig `mapstructure:"scheduler"`

	// OutPrefix enables report artifacts (<prefix>.json, <prefix>.html).
	OutPrefix string `mapstructure:"out"`
}

type Endpoint struct {
	Path   string  `mapstructure:"path"`
	Weight float64 `mapstructure:"weight"`
}

type Scenario struct {
	Name        string            `mapstructure:"name"`
	Executor    string            `mapstructure:"executor"`
	VUs         int               `mapstructure:"vus"`
	Duration    time.Duration     `mapstructure:"duration"`
	Stages      []Stage           `mapstructure:"stages"`
	StartOffset time.Duration     `mapstructure:"start_offset"`
	Tags        map[string]string `mapstructure:"tags"`
}

type Stage struct {
	Duration time.Duration `mapstructure:"duration"`
	Target   int           `mapstructure:"target"`
}

type SchedulerConfig struct {
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	SpawnCapPerTick int           `mapstructure:"spawn_cap_per_tick"`
}

// Default returns a config with the harness defaults filled in.
// A plan file overrides whatever it sets.
func Default() *Config {
	return &Config{
		HealthPath: "/health",
		Timeout:    30 * time.Second,
		ThinkMin:   1 * time.Second,
		ThinkMax:   3 * time.Second,
		Endpoints:  []Endpoint{{Path: "/", Weight: 1}},
		Scheduler: SchedulerConfig{
			TickInterval:    100 * time.Millisecond,
			SpawnCapPerTick: 50,
		},
	}
}

// Load reads a YAML plan file through viper on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("LOADPULSE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.HealthPath == "" {
		c.HealthPath = d.HealthPath
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Scheduler.TickInterval <= 0 {
		c.Scheduler.TickInterval = d.Scheduler.TickInterval
	}
	if c.Scheduler.SpawnCapPerTick <= 0 {
		c.Scheduler.SpawnCapPerTick = d.Scheduler.SpawnCapPerTick
	}
	if len(c.Endpoints) == 0 {
		c.Endpoints = d.Endpoints
	}
}

// Validate rejects a malformed plan before any load is generated.
func (c *Config) Validate() error {
	var errs []string

	if c.BaseURL == "" {
		errs = append(errs, "base_url is required")
	} else if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		errs = append(errs, fmt.Sprintf("base_url %q must start with http:// or https://", c.BaseURL))
	}

	if c.ThinkMin < 0 || c.ThinkMax < c.ThinkMin {
		errs = append(errs, fmt.Sprintf("think time range [%s, %s] is invalid", c.ThinkMin, c.ThinkMax))
	}

	total := 0.0
	for i, ep := range c.Endpoints {
		if ep.Path == "" {
			errs = append(errs, fmt.Sprintf("endpoint[%d]: path is required", i))
		}
		if ep.Weight < 0 {
			errs = append(errs, fmt.Sprintf("endpoint[%d] %s: weight must be non-negative", i, ep.Path))
		}
		total += ep.Weight
	}
	if len(c.Endpoints) > 0 && total <= 0 {
		errs = append(errs, "total endpoint weight must be positive")
	}

	if len(c.Scenarios) == 0 {
		errs = append(errs, "at least one scenario is required")
	}
	seen := map[string]bool{}
	for i, sc := range c.Scenarios {
		name := sc.Name
		if name == "" {
			name = fmt.Sprintf("scenario[%d]", i)
			errs = append(errs, name+": name is required")
		}
		if seen[sc.Name] && sc.Name != "" {
			errs = append(errs, name+": duplicate scenario name")
		}
		seen[sc.Name] = true
		if sc.StartOffset < 0 {
			errs = append(errs, name+": start_offset must be non-negative")
		}

		switch sc.Executor {
		case ExecutorConstant:
			if sc.VUs <= 0 {
				errs = append(errs, name+": constant-vus requires vus > 0")
			}
			if sc.Duration <= 0 {
				errs = append(errs, name+": constant-vus requires duration > 0")
			}
		case ExecutorRamping:
			if len(sc.Stages) == 0 {
				errs = append(errs, name+": ramping-vus requires at least one stage")
			}
			for j, st := range sc.Stages {
				if st.Duration <= 0 {
					errs = append(errs, fmt.Sprintf("%s stage[%d]: duration must be positive", name, j))
				}
				if st.Target < 0 {
					errs = append(errs, fmt.Sprintf("%s stage[%d]: target must be non-negative", name, j))
				}
			}
		default:
			errs = append(errs, fmt.Sprintf("%s: unknown executor %q", name, sc.Executor))
		}
	}

	for metric, exprs := range c.Thresholds {
		for _, expr := range exprs {
			if _, err := threshold.Parse(metric, expr); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid plan:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParsedThresholds returns the threshold list in evaluation order
// (sorted by metric name so reports are stable). Call after Validate;
// parse errors cannot occur here.
func (c *Config) ParsedThresholds() []threshold.Threshold {
	metrics := make([]string, 0, len(c.Thresholds))
	for metric := range c.Thresholds {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)

	var out []threshold.Threshold
	for _, metric := range metrics {
		for _, expr := range c.Thresholds[metric] {
			t, err := threshold.Parse(metric, expr)
			if err != nil {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

// TotalDuration is the wall-clock length of the whole test: the latest
// scenario end across all scenarios.
func (c *Config) TotalDuration() time.Duration {
	var max time.Duration
	for _, sc := range c.Scenarios {
		end := sc.StartOffset + sc.Length()
		if end > max {
			max = end
		}
	}
	return max
}

// Length is the scenario's own running time, offset excluded.
func (s Scenario) Length() time.Duration {
	if s.Executor == ExecutorConstant {
		return s.Duration
	}
	var sum time.Duration
	for _, st := range s.Stages {
		sum += st.Duration
	}
	return sum
}
