package config

import (
	"time"

	"github.com/pathgate/pathgate/internal/ratelimit"
	"github.com/pathgate/pathgate/internal/redirect"
)

type Config struct {
	ConfigVersion int             `yaml:"configVersion"`
	Server        ServerConfig    `yaml:"server"`
	Upstream      UpstreamConfig  `yaml:"upstream"`
	Redirect      RedirectConfig  `yaml:"redirect"`
	RateLimit     RateLimitConfig `yaml:"rateLimit"`
	Limits        Limits          `yaml:"limits"`
	Logging       LoggingConfig   `yaml:"logging"`
	Metrics       MetricsConfig   `yaml:"metrics"`

	baseDir string `yaml:"-"`
}

type ServerConfig struct {
	Listen string    `yaml:"listen"`
	TLS    TLSConfig `yaml:"tls"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
}

type UpstreamConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// RedirectConfig holds the rule table and the allowlist of paths dispatched
// to it. Both fall back to the built-in rule set when omitted.
type RedirectConfig struct {
	StatusCode int             `yaml:"statusCode"`
	Rules      []redirect.Rule `yaml:"rules"`
	Matcher    []string        `yaml:"matcher"`
}

type RateLimitConfig struct {
	Enabled    bool              `yaml:"enabled"`
	Key        ratelimit.KeyType `yaml:"key"`
	RPS        float64           `yaml:"rps"`
	Burst      int               `yaml:"burst"`
	StatusCode int               `yaml:"statusCode"`
}

type Limits struct {
	MaxHeaderBytes int64 `yaml:"maxHeaderBytes"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	DecisionLog string `yaml:"decisionLog"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

const (
	defaultListen          = ":8080"
	defaultUpstreamTimeout = 10 * time.Second
	defaultMaxHeaderBytes  = 16 << 10
	defaultMetricsListen   = ":9090"
)

// Default returns a configuration with the built-in rule set. Upstream.URL is
// left empty and must be supplied.
func Default() *Config {
	cfg := &Config{ConfigVersion: 1}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = defaultUpstreamTimeout
	}
	if c.Redirect.StatusCode == 0 {
		c.Redirect.StatusCode = 307
	}
	if c.Redirect.Rules == nil {
		c.Redirect.Rules = redirect.DefaultRules()
	}
	if c.Redirect.Matcher == nil {
		c.Redirect.Matcher = make([]string, len(c.Redirect.Rules))
		for i, rule := range c.Redirect.Rules {
			c.Redirect.Matcher[i] = rule.Match
		}
	}
	if c.RateLimit.Key == "" {
		c.RateLimit.Key = ratelimit.KeyIP
	}
	if c.RateLimit.StatusCode == 0 {
		c.RateLimit.StatusCode = 429
	}
	if c.Limits.MaxHeaderBytes == 0 {
		c.Limits.MaxHeaderBytes = defaultMaxHeaderBytes
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = defaultMetricsListen
	}
}

// Table builds the redirect table from the configured rules.
func (c *Config) Table() (*redirect.Table, error) {
	return redirect.NewTable(c.Redirect.Rules)
}

// Middleware builds the redirect middleware: table, allowlist and status.
func (c *Config) Middleware(opts ...redirect.Option) (*redirect.Middleware, error) {
	table, err := c.Table()
	if err != nil {
		return nil, err
	}
	base := []redirect.Option{
		redirect.WithMatcher(redirect.NewMatcher(c.Redirect.Matcher...)),
		redirect.WithStatus(c.Redirect.StatusCode),
	}
	return redirect.NewMiddleware(table, append(base, opts...)...)
}

func (c *Config) BaseDir() string {
	return c.baseDir
}

func (c *Config) ResolvePath(path string) string {
	return c.resolvePath(path)
}
