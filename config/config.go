package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"intelscan/pkg/models"
)

// DefaultFileName is looked up in the working directory and next to the
// executable when no path is given.
const DefaultFileName = "intelscan.yml"

// Config is the root configuration.
type Config struct {
	IntelScan IntelScanConfig `yaml:"intelscan"`
}

// IntelScanConfig is the project configuration.
type IntelScanConfig struct {
	Input      InputConfig      `yaml:"input"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Candidates CandidatesConfig `yaml:"candidates"`
	Platforms  []PlatformConfig `yaml:"platforms"`
	Output     OutputConfig     `yaml:"output"`
	Matches    MatchesConfig    `yaml:"matches"`
	Store      StoreConfig      `yaml:"store"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// InputConfig controls the input reader.
type InputConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig controls Redis input.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// PipelineConfig controls pipeline behavior.
type PipelineConfig struct {
	Workers        int           `yaml:"workers"`
	BatchSize      int           `yaml:"batch_size"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	ExtractGrammar bool          `yaml:"extract_grammar"`
}

// CandidatesConfig names the candidate sources for one-shot scans.
type CandidatesConfig struct {
	CatalogPath    string `yaml:"catalog_path"`
	SigmaRulesPath string `yaml:"sigma_rules_path"`
}

// PlatformConfig describes one connected platform.
type PlatformConfig struct {
	ID      string            `yaml:"id"`
	Name    string            `yaml:"name"`
	Type    string            `yaml:"type"` // opencti|openaev
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// OutputConfig controls aggregated result output.
type OutputConfig struct {
	Mode string           `yaml:"mode"` // file|http
	File FileOutputConfig `yaml:"file"`
	HTTP HTTPOutputConfig `yaml:"http"`
}

// MatchesConfig controls per-platform match row output.
type MatchesConfig struct {
	Enabled     bool                   `yaml:"enabled"`
	CreateTable bool                   `yaml:"create_table"`
	ClickHouse  ClickHouseOutputConfig `yaml:"clickhouse"`
}

// StoreConfig controls the latest-results store.
type StoreConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ClickHouseOutputConfig config for ClickHouse HTTP JSONEachRow writes.
type ClickHouseOutputConfig struct {
	URL      string            `yaml:"url"`
	Database string            `yaml:"database"`
	Table    string            `yaml:"table"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// FindConfigFile resolves the config path: the explicit argument, then
// intelscan.yml in the working directory, then next to the executable.
func FindConfigFile(configArg string) string {
	if configArg != "" {
		if _, err := os.Stat(configArg); err == nil {
			return configArg
		}
		log.Printf("Warning: config file not found at %s, trying default locations", configArg)
	}

	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName
	}

	exePath, err := os.Executable()
	if err == nil {
		path := filepath.Join(filepath.Dir(exePath), DefaultFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return DefaultFileName
}

// ApplyDefaults fills unset values.
func ApplyDefaults(cfg *Config) {
	c := &cfg.IntelScan

	if c.Input.Redis.Addr == "" {
		c.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Input.Redis.Key == "" {
		c.Input.Redis.Key = "intelscan:scan_events"
	}
	if c.Input.Redis.BlockTimeout == 0 {
		c.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = 4
	}
	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = 100
	}
	if c.Pipeline.FlushInterval <= 0 {
		c.Pipeline.FlushInterval = 2 * time.Second
	}

	for i := range c.Platforms {
		p := &c.Platforms[i]
		p.Type = strings.ToLower(strings.TrimSpace(p.Type))
		if p.Type == "" {
			p.Type = models.FamilyOpenCTI
		}
		if p.Name == "" {
			p.Name = p.ID
		}
		if p.Timeout <= 0 {
			p.Timeout = 10 * time.Second
		}
	}

	if c.Output.Mode == "" {
		c.Output.Mode = "file"
	}
	if c.Output.File.Path == "" {
		c.Output.File.Path = "output/scan_results.jsonl"
	}

	if c.Matches.ClickHouse.Database == "" {
		c.Matches.ClickHouse.Database = "intelscan"
	}
	if c.Matches.ClickHouse.Table == "" {
		c.Matches.ClickHouse.Table = "scan_matches"
	}

	if c.Store.Addr == "" {
		c.Store.Addr = c.Input.Redis.Addr
	}
	if c.Store.KeyPrefix == "" {
		c.Store.KeyPrefix = "intelscan:results"
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9464"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate reports configuration errors that defaults cannot fix.
func (c *Config) Validate() error {
	s := c.IntelScan
	switch s.Output.Mode {
	case "file", "http":
	default:
		return fmt.Errorf("unknown output mode: %s", s.Output.Mode)
	}
	if s.Output.Mode == "http" && strings.TrimSpace(s.Output.HTTP.URL) == "" {
		return fmt.Errorf("output.http.url is required in http mode")
	}
	if s.Matches.Enabled && strings.TrimSpace(s.Matches.ClickHouse.URL) == "" {
		return fmt.Errorf("matches.clickhouse.url is required when matches are enabled")
	}

	seen := make(map[string]struct{}, len(s.Platforms))
	for i, p := range s.Platforms {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return fmt.Errorf("platforms[%d]: id is required", i)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("platforms[%d]: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// PlatformList converts the platform section to models.
func (c *Config) PlatformList() []models.Platform {
	out := make([]models.Platform, 0, len(c.IntelScan.Platforms))
	for _, p := range c.IntelScan.Platforms {
		out = append(out, models.Platform{
			ID:      p.ID,
			Name:    p.Name,
			Type:    p.Type,
			URL:     p.URL,
			Timeout: p.Timeout,
			Headers: p.Headers,
		})
	}
	return out
}
