package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "harvester"

	// DefaultConcurrency is the permit pool size of a unit that does not
	// choose its own.
	DefaultConcurrency = 16

	// DefaultUserAgent is sent by units that do not set a user agent.
	DefaultUserAgent = "harvester/0.1"

	// DefaultTimeout bounds one HTTP request, body included. Retries get a
	// fresh timeout each.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultBatchSize is how many units the crawl command runs at once.
	DefaultBatchSize = 4

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Retry defaults. A failing address is retried for up to 15 minutes, with
// waits growing from half a second to a minute.
const (
	DefaultRetryInitialInterval = 500 * time.Millisecond
	DefaultRetryMultiplier      = 1.5
	DefaultRetryRandomization   = 0.5
	DefaultRetryMaxInterval     = 60 * time.Second
	DefaultRetryMaxElapsedTime  = 15 * time.Minute
)

// RetryConfig controls request retries.
type RetryConfig struct {
	// InitialInterval is the wait before the first retry.
	InitialInterval time.Duration

	// Multiplier grows the wait after each retry. Must be at least 1.
	Multiplier float64

	// MaxInterval caps a single wait.
	MaxInterval time.Duration

	// MaxElapsedTime stops retrying once this much time has passed since the
	// first attempt. Zero means retry forever.
	MaxElapsedTime time.Duration

	// MaxRetries stops retrying after this many retries. Zero means no limit
	// besides MaxElapsedTime.
	MaxRetries uint64
}

// Config holds the options of one harvester invocation.
// It is filled from CLI flags and passed down explicitly.
type Config struct {
	// Units lists the unit names to run. Empty means every registered unit.
	Units []string

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// Concurrency overrides every unit's permit pool size when positive.
	Concurrency int

	// UserAgent overrides every unit's user agent when set.
	UserAgent string

	// Dedupe forces the skip-visited policy on every unit.
	Dedupe bool

	// RequestsPerSecond throttles every unit when positive.
	RequestsPerSecond float64

	// Retry controls request retries.
	Retry RetryConfig

	// MaxBodySize caps response bodies. Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// ProxyAddress routes every request through a SOCKS5 proxy when set.
	ProxyAddress string

	// UseEmbeddedTor starts a private Tor daemon and routes requests through it.
	// Mutually exclusive with ProxyAddress.
	UseEmbeddedTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// BatchSize is how many units run concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit configuration file. When empty,
	// FindConfigFile searches the usual places.
	ConfigFilePath string

	// UnitConfigs holds per-unit overrides loaded from the configuration file.
	UnitConfigs *File

	// JSONReport selects the JSON report format.
	JSONReport bool

	// MarkdownReport selects the Markdown report format.
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// DBDir is the directory of the journal database.
	DBDir string

	// SaveToDB enables the visit journal.
	SaveToDB bool
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout: DefaultTimeout,
		Retry: RetryConfig{
			InitialInterval: DefaultRetryInitialInterval,
			Multiplier:      DefaultRetryMultiplier,
			MaxInterval:     DefaultRetryMaxInterval,
			MaxElapsedTime:  DefaultRetryMaxElapsedTime,
		},
		MaxBodySize:       DefaultMaxBodySize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		BatchSize:         DefaultBatchSize,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory for harvester.
// On Linux: ~/.local/share/harvester
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for harvester.
// On Linux: ~/.config/harvester
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.Concurrency < 0 {
		return ErrInvalidConcurrency
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRateLimit
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.UseEmbeddedTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}
	if err := c.Retry.Validate(); err != nil {
		return err
	}
	if c.UnitConfigs != nil {
		return c.UnitConfigs.Validate()
	}
	return nil
}

// Validate checks the retry settings.
func (r RetryConfig) Validate() error {
	switch {
	case r.InitialInterval <= 0:
		return ErrInvalidRetry
	case r.Multiplier < 1:
		return ErrInvalidRetry
	case r.MaxInterval < r.InitialInterval:
		return ErrInvalidRetry
	case r.MaxElapsedTime < 0:
		return ErrInvalidRetry
	default:
		return nil
	}
}

// UnitConfig returns the effective overrides for the named unit: the
// configuration file's defaults, then its entry for the unit, then the
// command-line overrides.
func (c *Config) UnitConfig(name string) UnitConfig {
	var uc UnitConfig
	if c.UnitConfigs != nil {
		uc = c.UnitConfigs.GetUnitConfig(name)
	}
	if c.Concurrency > 0 {
		uc.Concurrency = c.Concurrency
	}
	if c.UserAgent != "" {
		uc.UserAgent = c.UserAgent
	}
	if c.Dedupe {
		dedupe := true
		uc.Dedupe = &dedupe
	}
	if c.RequestsPerSecond > 0 {
		uc.RequestsPerSecond = c.RequestsPerSecond
	}
	return uc
}
