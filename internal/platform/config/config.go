package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string
	Environment string
}

// RedisConfig configures the wizard cache backend. An empty URL selects the
// in-memory store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// WizardConfig bounds how long in-progress records stay cached after their
// last write.
type WizardConfig struct {
	CacheTTL      time.Duration
	ChildCacheTTL time.Duration
}

type SessionConfig struct {
	CookieName   string
	CookieSecure bool
}

// SLfTSite is a landfill site the portal files SLfT returns for.
type SLfTSite struct {
	ID   string
	Name string
}

type SLfTConfig struct {
	Sites []SLfTSite
}

type LogConfig struct {
	Level  string
	Format string
}

type Config struct {
	Server  Server
	Redis   RedisConfig
	Wizard  WizardConfig
	Session SessionConfig
	Log     LogConfig
	SLfT    SLfTConfig

	// problems collects values that could not be parsed and were replaced
	// by defaults. Validate reports them.
	problems []error
}

const (
	DefaultAddr          = ":8080"
	DefaultCacheTTL      = 60 * time.Minute
	DefaultChildCacheTTL = 20 * time.Minute
	DefaultCookieName    = "portal_session"
	DefaultSLfTSites     = "100=Development Landfill Site"
)

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() Config {
	var c Config
	c.Server = Server{
		Addr:        getEnv("PORTAL_ADDR", DefaultAddr),
		Environment: getEnv("PORTAL_ENV", "development"),
	}
	c.Log = LogConfig{
		Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}
	c.Redis = RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		PoolSize:     c.intEnv("REDIS_POOL_SIZE", 10),
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	c.Wizard = WizardConfig{
		CacheTTL:      c.durationEnv("WIZARD_CACHE_TTL", DefaultCacheTTL),
		ChildCacheTTL: c.durationEnv("WIZARD_CHILD_CACHE_TTL", DefaultChildCacheTTL),
	}
	c.Session = SessionConfig{
		CookieName:   getEnv("SESSION_COOKIE_NAME", DefaultCookieName),
		CookieSecure: c.boolEnv("SESSION_COOKIE_SECURE", false),
	}
	c.SLfT = SLfTConfig{Sites: c.sitesEnv("SLFT_SITES", DefaultSLfTSites)}
	return c
}

// IsProduction reports whether the portal runs in production.
func (c Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate reports values that were unparsable or out of range.
func (c Config) Validate() error {
	problems := append([]error(nil), c.problems...)
	if c.Server.Addr == "" {
		problems = append(problems, errors.New("PORTAL_ADDR must not be empty"))
	}
	if c.Wizard.CacheTTL <= 0 {
		problems = append(problems, errors.New("WIZARD_CACHE_TTL must be positive"))
	}
	if c.Wizard.ChildCacheTTL <= 0 {
		problems = append(problems, errors.New("WIZARD_CHILD_CACHE_TTL must be positive"))
	} else if c.Wizard.ChildCacheTTL > c.Wizard.CacheTTL {
		problems = append(problems, fmt.Errorf("WIZARD_CHILD_CACHE_TTL %s must not exceed WIZARD_CACHE_TTL %s",
			c.Wizard.ChildCacheTTL, c.Wizard.CacheTTL))
	}
	if c.Redis.PoolSize <= 0 {
		problems = append(problems, errors.New("REDIS_POOL_SIZE must be positive"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		problems = append(problems, fmt.Errorf("LOG_FORMAT %q is not json or text", c.Log.Format))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Errorf("LOG_LEVEL %q is not debug, info, warn or error", c.Log.Level))
	}
	if len(c.SLfT.Sites) == 0 {
		problems = append(problems, errors.New("SLFT_SITES must name at least one site"))
	}
	if c.IsProduction() && !c.Session.CookieSecure {
		problems = append(problems, errors.New("SESSION_COOKIE_SECURE must be true in production"))
	}
	return errors.Join(problems...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *Config) intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.problems = append(c.problems, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func (c *Config) boolEnv(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		c.problems = append(c.problems, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func (c *Config) durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		c.problems = append(c.problems, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

// sitesEnv parses "id=name,id=name". A bare id is its own name.
func (c *Config) sitesEnv(key, fallback string) []SLfTSite {
	raw := getEnv(key, fallback)
	var sites []SLfTSite
	seen := map[string]bool{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, name, found := strings.Cut(entry, "=")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if !found || name == "" {
			name = id
		}
		if id == "" || seen[id] {
			c.problems = append(c.problems, fmt.Errorf("%s: bad or repeated site %q", key, entry))
			continue
		}
		seen[id] = true
		sites = append(sites, SLfTSite{ID: id, Name: name})
	}
	return sites
}
