package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "FORUM"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabasePath      = "forum.db"
	defaultLogLevel          = "info"
	defaultLogFormat         = "json"
	defaultCookieName        = "app_session"
	defaultSessionIssuer     = "tauth"
	defaultAdminRole         = "admin"
	defaultMaxPageSize       = 100
	defaultCategoriesTTL     = 30 * time.Second
	defaultRedisDB           = 0
	defaultShutdownTimeout   = 10 * time.Second
	defaultIssuedTokenTTL    = 24 * time.Hour
	configKeySigningSecret   = "tauth.signing_secret"
	configKeyAdminUserIDs    = "forum.admin_user_ids"
	configKeyCategoriesCache = "cache.categories_ttl"
)

// AppConfig captures runtime configuration for the forum API server.
type AppConfig struct {
	HTTPAddress     string
	DatabasePath    string
	LogLevel        string
	LogFormat       string
	TAuthSigningKey string
	TAuthCookieName string
	TAuthIssuer     string
	AdminUserIDs    []string
	AdminRole       string
	MaxPageSize     int
	RedisAddress    string
	RedisPassword   string
	RedisDB         int
	CategoriesTTL   time.Duration
	ShutdownTimeout time.Duration
	IssuedTokenTTL  time.Duration
}

// CacheEnabled reports whether a Redis address was configured.
func (c AppConfig) CacheEnabled() bool {
	return strings.TrimSpace(c.RedisAddress) != ""
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.shutdown_timeout", defaultShutdownTimeout)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("tauth.cookie_name", defaultCookieName)
	configViper.SetDefault("tauth.issuer", defaultSessionIssuer)
	configViper.SetDefault("tauth.token_ttl", defaultIssuedTokenTTL)
	configViper.SetDefault(configKeyAdminUserIDs, []string{})
	configViper.SetDefault("forum.admin_role", defaultAdminRole)
	configViper.SetDefault("forum.max_page_size", defaultMaxPageSize)
	configViper.SetDefault("redis.address", "")
	configViper.SetDefault("redis.password", "")
	configViper.SetDefault("redis.db", defaultRedisDB)
	configViper.SetDefault(configKeyCategoriesCache, defaultCategoriesTTL)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabasePath:    configViper.GetString("database.path"),
		LogLevel:        configViper.GetString("log.level"),
		LogFormat:       configViper.GetString("log.format"),
		TAuthSigningKey: configViper.GetString(configKeySigningSecret),
		TAuthCookieName: configViper.GetString("tauth.cookie_name"),
		TAuthIssuer:     configViper.GetString("tauth.issuer"),
		AdminUserIDs:    splitList(configViper.GetStringSlice(configKeyAdminUserIDs)),
		AdminRole:       strings.TrimSpace(configViper.GetString("forum.admin_role")),
		MaxPageSize:     configViper.GetInt("forum.max_page_size"),
		RedisAddress:    strings.TrimSpace(configViper.GetString("redis.address")),
		RedisPassword:   configViper.GetString("redis.password"),
		RedisDB:         configViper.GetInt("redis.db"),
		CategoriesTTL:   configViper.GetDuration(configKeyCategoriesCache),
		ShutdownTimeout: configViper.GetDuration("http.shutdown_timeout"),
		IssuedTokenTTL:  configViper.GetDuration("tauth.token_ttl"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.TAuthSigningKey) == "" {
		return fmt.Errorf("%s is required", configKeySigningSecret)
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.TAuthCookieName) == "" {
		return fmt.Errorf("tauth.cookie_name is required")
	}
	if c.MaxPageSize <= 0 {
		return fmt.Errorf("forum.max_page_size must be positive")
	}
	if c.CategoriesTTL <= 0 {
		return fmt.Errorf("%s must be positive", configKeyCategoriesCache)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console")
	}
	return nil
}

// splitList flattens comma-separated entries, since env values arrive as one string.
func splitList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}
