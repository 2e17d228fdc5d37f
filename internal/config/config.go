package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
	Console  ConsoleConfig  `koanf:"console"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string     `koanf:"host"`
	Port    int        `koanf:"port"`
	Mode    string     `koanf:"mode"`
	Timeout string     `koanf:"timeout"`
	CORS    CORSConfig `koanf:"cors"`
}

// CORSConfig holds CORS middleware settings.
type CORSConfig struct {
	AllowOrigins     []string `koanf:"allow_origins"`
	AllowMethods     []string `koanf:"allow_methods"`
	AllowHeaders     []string `koanf:"allow_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           string   `koanf:"max_age"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `koanf:"driver"`
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres"`
	Pool     PoolConfig     `koanf:"pool"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
}

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	ConnMaxLifetime string `koanf:"conn_max_lifetime"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level           string `koanf:"level"`
	Format          string `koanf:"format"`
	Color           *bool  `koanf:"color"`
	FilePath        string `koanf:"file_path"`
	MaxSizeMB       int    `koanf:"max_size_mb"`
	RetentionDays   int    `koanf:"retention_days"`
	MaxBackups      int    `koanf:"max_backups"`
	CompressRotated *bool  `koanf:"compress_rotated"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Enabled     bool     `koanf:"enabled"`
	JWTSecret   string   `koanf:"jwt_secret"`
	TokenExpiry string   `koanf:"token_expiry"`
	PublicPaths []string `koanf:"public_paths"`
}

// ConsoleConfig holds settings of the operator console binary.
type ConsoleConfig struct {
	APIBaseURL      string `koanf:"api_base_url"`
	Token           string `koanf:"token"`
	RequestTimeout  string `koanf:"request_timeout"`
	PersistDebounce string `koanf:"persist_debounce"`
	CacheSize       int    `koanf:"cache_size"`
	DefaultPageSize int    `koanf:"default_page_size"`
	SortAsc         string `koanf:"sort_asc"`
	SortDesc        string `koanf:"sort_desc"`
	LogFile         string `koanf:"log_file"`
}

// Console defaults applied by Validate when a field is left empty.
const (
	DefaultRequestTimeout  = "10s"
	DefaultPersistDebounce = "1500ms"
	DefaultCacheSize       = 256
	DefaultPageSize        = 10
)

// AllowedPageSizes are the page sizes the data table offers.
var AllowedPageSizes = []int{10, 50, 100}

// Load reads configuration from a YAML file and overlays environment variables.
// Environment variables use the prefix "APP__" and double-underscore as the
// hierarchy separator. Single underscores are preserved as part of the key name.
// For example, APP__SERVER__PORT=9090 overrides server.port and
// APP__CONSOLE__API_BASE_URL overrides console.api_base_url.
func Load(configPath string) (*Config, error) {
	cfg, err := load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConsole reads the same file as Load but validates only the sections the
// console binary uses (log and console), so a console operator does not need
// database credentials in their config.
func LoadConsole(configPath string) (*Config, error) {
	cfg, err := load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateLog(); err != nil {
		return nil, err
	}
	if err := cfg.validateConsole(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}

	// APP__SERVER__PORT -> server.port
	// APP__DATABASE__POOL__MAX_IDLE_CONNS -> database.pool.max_idle_conns
	if err := k.Load(env.Provider("APP__", ".", func(s string) string {
		key := strings.TrimPrefix(s, "APP__")
		key = strings.ToLower(key)
		key = strings.ReplaceAll(key, "__", ".")
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field constraints and supported values of the
// sections used by the API server.
func (c *Config) Validate() error {
	// Validate server.mode.
	mode := strings.TrimSpace(c.Server.Mode)
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		c.Server.Mode = mode
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", c.Server.Mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", c.Server.Port)
	}

	host := strings.TrimSpace(c.Server.Host)
	if host == "" {
		return fmt.Errorf("server.host is required")
	}
	c.Server.Host = host

	if err := c.validateDatabase(); err != nil {
		return err
	}

	// Normalize optional duration fields: whitespace-only means unset.
	c.Server.Timeout = strings.TrimSpace(c.Server.Timeout)
	c.Server.CORS.MaxAge = strings.TrimSpace(c.Server.CORS.MaxAge)
	c.Database.Pool.ConnMaxLifetime = strings.TrimSpace(c.Database.Pool.ConnMaxLifetime)

	if err := optionalPositiveDuration("server.timeout", c.Server.Timeout); err != nil {
		return err
	}
	if err := optionalPositiveDuration("server.cors.max_age", c.Server.CORS.MaxAge); err != nil {
		return err
	}
	if err := optionalPositiveDuration("database.pool.conn_max_lifetime", c.Database.Pool.ConnMaxLifetime); err != nil {
		return err
	}

	if err := c.validateAuth(); err != nil {
		return err
	}
	return c.validateLog()
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
		// ok
	default:
		return fmt.Errorf("invalid database.driver %q: must be one of %q, %q", c.Database.Driver, "sqlite", "postgres")
	}

	if c.Database.Driver == "sqlite" {
		sqlitePath := strings.TrimSpace(c.Database.SQLite.Path)
		if sqlitePath == "" {
			return fmt.Errorf("database.sqlite.path is required when driver is sqlite")
		}
		c.Database.SQLite.Path = sqlitePath
		return nil
	}

	pg := &c.Database.Postgres
	host := strings.TrimSpace(pg.Host)
	if host == "" {
		return fmt.Errorf("database.postgres.host is required when driver is postgres")
	}
	if pg.Port < 1 || pg.Port > 65535 {
		return fmt.Errorf("invalid database.postgres.port %d: must be between 1 and 65535", pg.Port)
	}
	user := strings.TrimSpace(pg.User)
	if user == "" {
		return fmt.Errorf("database.postgres.user is required when driver is postgres")
	}
	dbName := strings.TrimSpace(pg.DBName)
	if dbName == "" {
		return fmt.Errorf("database.postgres.dbname is required when driver is postgres")
	}
	sslMode := strings.TrimSpace(pg.SSLMode)
	switch sslMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
		// ok
	default:
		return fmt.Errorf("invalid database.postgres.sslmode %q: must be one of %q, %q, %q, %q, %q, %q", pg.SSLMode, "disable", "allow", "prefer", "require", "verify-ca", "verify-full")
	}
	if c.Server.Mode == gin.ReleaseMode {
		switch sslMode {
		case "require", "verify-ca", "verify-full":
			// ok
		default:
			return fmt.Errorf("invalid database.postgres.sslmode %q for server.mode %q: must be one of %q, %q, %q", pg.SSLMode, gin.ReleaseMode, "require", "verify-ca", "verify-full")
		}
	}

	pg.Host = host
	pg.User = user
	pg.DBName = dbName
	pg.SSLMode = sslMode
	return nil
}

func (c *Config) validateAuth() error {
	if !c.Auth.Enabled {
		return nil
	}

	jwtSecret := strings.TrimSpace(c.Auth.JWTSecret)
	if jwtSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if len(jwtSecret) < 32 {
		return fmt.Errorf("invalid auth.jwt_secret: must be at least 32 characters")
	}
	c.Auth.JWTSecret = jwtSecret

	tokenExpiry := strings.TrimSpace(c.Auth.TokenExpiry)
	if tokenExpiry == "" {
		return fmt.Errorf("auth.token_expiry is required when auth is enabled")
	}
	if err := optionalPositiveDuration("auth.token_expiry", tokenExpiry); err != nil {
		return err
	}
	c.Auth.TokenExpiry = tokenExpiry

	publicPaths := make([]string, 0, len(c.Auth.PublicPaths))
	seenPublicPaths := make(map[string]struct{}, len(c.Auth.PublicPaths))
	for idx, p := range c.Auth.PublicPaths {
		normalizedPath := strings.TrimSpace(p)
		if normalizedPath == "" {
			return fmt.Errorf("auth.public_paths[%d] cannot be empty when auth is enabled", idx)
		}
		if !strings.HasPrefix(normalizedPath, "/") {
			return fmt.Errorf("invalid auth.public_paths[%d] %q: must start with '/'", idx, p)
		}
		if _, exists := seenPublicPaths[normalizedPath]; exists {
			continue
		}
		seenPublicPaths[normalizedPath] = struct{}{}
		publicPaths = append(publicPaths, normalizedPath)
	}

	requiredPublicPaths := []string{"/api/v1/auth/login", "/api/v1/auth/register"}
	for _, requiredPath := range requiredPublicPaths {
		if _, exists := seenPublicPaths[requiredPath]; !exists {
			return fmt.Errorf("auth.public_paths must include %q when auth is enabled", requiredPath)
		}
	}
	c.Auth.PublicPaths = publicPaths
	return nil
}

func (c *Config) validateLog() error {
	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Log.Level = level
	default:
		return fmt.Errorf("invalid log.level %q: must be one of %q, %q, %q, %q", c.Log.Level, "debug", "info", "warn", "error")
	}

	format := strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch format {
	case "text", "json":
		c.Log.Format = format
	default:
		return fmt.Errorf("invalid log.format %q: must be one of %q, %q", c.Log.Format, "text", "json")
	}
	return nil
}

// validateConsole fills defaults for the console section and checks values.
func (c *Config) validateConsole() error {
	cc := &c.Console

	base := strings.TrimRight(strings.TrimSpace(cc.APIBaseURL), "/")
	if base == "" {
		return fmt.Errorf("console.api_base_url is required")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid console.api_base_url %q: must be an absolute http(s) URL", cc.APIBaseURL)
	}
	cc.APIBaseURL = base
	cc.Token = strings.TrimSpace(cc.Token)
	cc.LogFile = strings.TrimSpace(cc.LogFile)

	cc.RequestTimeout = strings.TrimSpace(cc.RequestTimeout)
	if cc.RequestTimeout == "" {
		cc.RequestTimeout = DefaultRequestTimeout
	}
	if err := optionalPositiveDuration("console.request_timeout", cc.RequestTimeout); err != nil {
		return err
	}

	cc.PersistDebounce = strings.TrimSpace(cc.PersistDebounce)
	if cc.PersistDebounce == "" {
		cc.PersistDebounce = DefaultPersistDebounce
	}
	if err := optionalPositiveDuration("console.persist_debounce", cc.PersistDebounce); err != nil {
		return err
	}

	if cc.CacheSize == 0 {
		cc.CacheSize = DefaultCacheSize
	}
	if cc.CacheSize < 0 {
		return fmt.Errorf("invalid console.cache_size %d: must be positive", cc.CacheSize)
	}

	if cc.DefaultPageSize == 0 {
		cc.DefaultPageSize = DefaultPageSize
	}
	valid := false
	for _, size := range AllowedPageSizes {
		if cc.DefaultPageSize == size {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid console.default_page_size %d: must be one of %v", cc.DefaultPageSize, AllowedPageSizes)
	}

	cc.SortAsc = strings.TrimSpace(cc.SortAsc)
	if cc.SortAsc == "" {
		cc.SortAsc = "asc"
	}
	cc.SortDesc = strings.TrimSpace(cc.SortDesc)
	if cc.SortDesc == "" {
		cc.SortDesc = "dsc"
	}
	if cc.SortAsc == cc.SortDesc {
		return fmt.Errorf("console.sort_asc and console.sort_desc must differ, both are %q", cc.SortAsc)
	}
	return nil
}

// Durations returns the parsed console timing settings. Callers must only use
// it on a validated config.
func (cc ConsoleConfig) Durations() (requestTimeout, persistDebounce time.Duration) {
	requestTimeout, _ = time.ParseDuration(cc.RequestTimeout)
	persistDebounce, _ = time.ParseDuration(cc.PersistDebounce)
	return requestTimeout, persistDebounce
}

func optionalPositiveDuration(name, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s %q: must be greater than 0", name, value)
	}
	return nil
}
