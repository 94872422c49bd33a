package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig  `toml:"logging"`
	Storage     StorageConfig  `toml:"storage"`
	Portal      PortalConfig   `toml:"portal"`
	Browser     BrowserConfig  `toml:"browser"`
	Search      SearchConfig   `toml:"search"`
	Feed        FeedConfig     `toml:"feed"`
	Schedule    ScheduleConfig `toml:"schedule"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // default "15:04:05"
	Dir        string   `toml:"dir"`         // log directory when "file" output is enabled (default: ./logs)
}

// StorageConfig selects the relational store and configures the session store
type StorageConfig struct {
	Type     string         `toml:"type" validate:"oneof=sqlite postgres"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Postgres PostgresConfig `toml:"postgres"`
	Badger   BadgerConfig   `toml:"badger"`
}

type SQLiteConfig struct {
	Path          string `toml:"path"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms" validate:"gte=0"`
}

type PostgresConfig struct {
	DSN      string `toml:"dsn"`
	MaxConns int32  `toml:"max_conns" validate:"gte=0"`
}

// BadgerConfig represents BadgerDB-specific configuration (session cookies)
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// PortalConfig configures the login-gated tender portal crawl
type PortalConfig struct {
	BaseURL      string `toml:"base_url" validate:"required,url"`
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	WorkCategory int    `toml:"work_category" validate:"gte=1"`

	MaxPages         int `toml:"max_pages" validate:"gte=1"`          // per history phase
	DecisionMaxPages int `toml:"decision_max_pages" validate:"gte=1"` // regulatory decision crawl
	ListMaxPages     int `toml:"list_max_pages" validate:"gte=1"`     // contractor list crawl
	BatchSize        int `toml:"batch_size" validate:"gte=1"`         // tracked contractors per batch
	BatchMaxPages    int `toml:"batch_max_pages" validate:"gte=1"`    // per phase, inside a batch

	PageDelayMin       string `toml:"page_delay_min"` // e.g. "2s"
	PageDelayMax       string `toml:"page_delay_max"`
	ListDelayMin       string `toml:"list_delay_min"`
	ListDelayMax       string `toml:"list_delay_max"`
	ContractorDelayMin string `toml:"contractor_delay_min"`
	ContractorDelayMax string `toml:"contractor_delay_max"`
	NavigationTimeout  string `toml:"navigation_timeout"`
	SettleDelay        string `toml:"settle_delay"` // wait after load for client-side rendering
	LoginWait          string `toml:"login_wait"`   // wait after submitting the login form
}

// BrowserConfig configures the chromedp allocator
type BrowserConfig struct {
	Headless       bool   `toml:"headless"`
	NoSandbox      bool   `toml:"no_sandbox"`
	DisableGPU     bool   `toml:"disable_gpu"`
	UserAgent      string `toml:"user_agent"`
	StartupTimeout string `toml:"startup_timeout"`
}

// SearchConfig configures the web search/extract API (Tavily compatible)
type SearchConfig struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url" validate:"required,url"`
	Timeout           string  `toml:"timeout"`
	Depth             string  `toml:"depth" validate:"oneof=basic advanced"`
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gt=0"`
	MaxAttempts       int     `toml:"max_attempts" validate:"gte=1"`
	QualifierDomain   string  `toml:"qualifier_domain"` // appended to the name for the second general query
	ArchiveDomain     string  `toml:"archive_domain"`   // regulatory decision archive
	MaxExtractURLs    int     `toml:"max_extract_urls" validate:"gte=0,lte=5"`
	ExcerptLength     int     `toml:"excerpt_length" validate:"gte=0"`
}

// FeedConfig configures the public news feed fallback
type FeedConfig struct {
	URLTemplate string `toml:"url_template"` // %s receives the escaped query
	Timeout     string `toml:"timeout"`
	MaxItems    int    `toml:"max_items" validate:"gte=1"`
}

type ScheduleConfig struct {
	Batch string `toml:"batch"` // cron expression for tracked-contractor batches
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
			Dir:        "./logs",
		},
		Storage: StorageConfig{
			Type: "sqlite",
			SQLite: SQLiteConfig{
				Path:          "./data/tenderintel.db",
				BusyTimeoutMS: 5000,
			},
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
			Badger: BadgerConfig{
				Path: "./data/session",
			},
		},
		Portal: PortalConfig{
			BaseURL:            "https://www.ihalebul.com",
			WorkCategory:       15,
			MaxPages:           15,
			DecisionMaxPages:   3,
			ListMaxPages:       20,
			BatchSize:          10,
			BatchMaxPages:      5,
			PageDelayMin:       "2s",
			PageDelayMax:       "5s",
			ListDelayMin:       "2s",
			ListDelayMax:       "4s",
			ContractorDelayMin: "3s",
			ContractorDelayMax: "5s",
			NavigationTimeout:  "45s",
			SettleDelay:        "2s",
			LoginWait:          "4s",
		},
		Browser: BrowserConfig{
			Headless:       true,
			NoSandbox:      true,
			DisableGPU:     true,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			StartupTimeout: "30s",
		},
		Search: SearchConfig{
			BaseURL:           "https://api.tavily.com",
			Timeout:           "15s",
			Depth:             "basic",
			RequestsPerSecond: 2,
			MaxAttempts:       3,
			QualifierDomain:   "kik.gov.tr",
			ArchiveDomain:     "ekap.kik.gov.tr",
			MaxExtractURLs:    3,
			ExcerptLength:     500,
		},
		Feed: FeedConfig{
			URLTemplate: "https://news.google.com/rss/search?q=%s&hl=tr&gl=TR&ceid=TR:tr",
			Timeout:     "10s",
			MaxItems:    20,
		},
		Schedule: ScheduleConfig{
			Batch: "0 3 * * *",
		},
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error. Existing variables are not overwritten.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TENDERINTEL_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Logging configuration
	if level := os.Getenv("TENDERINTEL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("TENDERINTEL_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Storage configuration
	if storageType := os.Getenv("TENDERINTEL_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	if path := os.Getenv("TENDERINTEL_SQLITE_PATH"); path != "" {
		config.Storage.SQLite.Path = path
	}
	if dsn := os.Getenv("TENDERINTEL_PG_DSN"); dsn != "" {
		config.Storage.Postgres.DSN = dsn
	} else if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		config.Storage.Postgres.DSN = dsn
	}
	if badgerPath := os.Getenv("TENDERINTEL_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Portal configuration (IHALEBUL_* names are kept for existing deployments)
	if username := firstEnv("TENDERINTEL_PORTAL_USERNAME", "IHALEBUL_USERNAME"); username != "" {
		config.Portal.Username = username
	}
	if password := firstEnv("TENDERINTEL_PORTAL_PASSWORD", "IHALEBUL_PASSWORD"); password != "" {
		config.Portal.Password = password
	}
	if baseURL := os.Getenv("TENDERINTEL_PORTAL_BASE_URL"); baseURL != "" {
		config.Portal.BaseURL = baseURL
	}
	if maxPages := os.Getenv("TENDERINTEL_PORTAL_MAX_PAGES"); maxPages != "" {
		if p, err := strconv.Atoi(maxPages); err == nil {
			config.Portal.MaxPages = p
		}
	}
	if batchSize := os.Getenv("TENDERINTEL_PORTAL_BATCH_SIZE"); batchSize != "" {
		if b, err := strconv.Atoi(batchSize); err == nil {
			config.Portal.BatchSize = b
		}
	}

	// Browser configuration
	if headless := os.Getenv("TENDERINTEL_BROWSER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}

	// Search configuration
	if apiKey := firstEnv("TENDERINTEL_SEARCH_API_KEY", "TAVILY_API_KEY"); apiKey != "" {
		config.Search.APIKey = apiKey
	}

	// Schedule configuration
	if batch := os.Getenv("TENDERINTEL_SCHEDULE_BATCH"); batch != "" {
		config.Schedule.Batch = batch
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks struct tags plus the delay ranges and cron expression
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ranges := []struct {
		name     string
		min, max string
	}{
		{"portal.page_delay", c.Portal.PageDelayMin, c.Portal.PageDelayMax},
		{"portal.list_delay", c.Portal.ListDelayMin, c.Portal.ListDelayMax},
		{"portal.contractor_delay", c.Portal.ContractorDelayMin, c.Portal.ContractorDelayMax},
	}
	for _, r := range ranges {
		lo, err := time.ParseDuration(r.min)
		if err != nil {
			return fmt.Errorf("invalid %s_min %q: %w", r.name, r.min, err)
		}
		hi, err := time.ParseDuration(r.max)
		if err != nil {
			return fmt.Errorf("invalid %s_max %q: %w", r.name, r.max, err)
		}
		if lo < 0 || hi < lo {
			return fmt.Errorf("invalid %s range: %s..%s", r.name, r.min, r.max)
		}
	}

	if c.Storage.Type == "postgres" && c.Storage.Postgres.DSN == "" {
		return fmt.Errorf("invalid configuration: storage.postgres.dsn is required when storage.type is postgres")
	}

	if c.Schedule.Batch != "" {
		if err := ValidateSchedule(c.Schedule.Batch); err != nil {
			return err
		}
	}

	return nil
}

// ValidateSchedule validates a five-field cron expression
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// HasCredentials reports whether portal login credentials are configured
func (p PortalConfig) HasCredentials() bool {
	return p.Username != "" && p.Password != ""
}

// DelayRange returns the parsed min/max of a configured delay pair.
// Unparseable values fall back to the given default.
func DelayRange(min, max string, fallback time.Duration) (time.Duration, time.Duration) {
	return ParseDuration(min, fallback), ParseDuration(max, fallback)
}

// ParseDuration parses s, returning fallback when s is empty or invalid
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
