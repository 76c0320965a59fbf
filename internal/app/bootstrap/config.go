// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for kinderlink.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: KINDERLINK_MONGO_URI, KINDERLINK_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "kinderlink", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Token signing
	{Name: "jwt_secret", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "HMAC secret for session tokens (must be strong in production)"},
	{Name: "session_token_ttl", Default: "720h", Desc: "Session token lifetime (e.g., 720h, 24h)"},
	{Name: "provisional_token_ttl", Default: "15m", Desc: "Federated registration token lifetime (e.g., 15m)"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// OAuth state cookie signing
	{Name: "cookie_hash_key", Default: "dev-only-cookie-hash-key-0123456789ABCDEF", Desc: "HMAC key for the OAuth state cookie"},
	{Name: "cookie_block_key", Default: "", Desc: "AES key for encrypting the OAuth state cookie (16/24/32 bytes; blank disables encryption)"},

	// URLs
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public URL of this API (used for the OAuth callback)"},
	{Name: "frontend_url", Default: "http://localhost:3000", Desc: "URL of the parent-facing frontend"},

	// Operation timeouts
	{Name: "db_long_op_timeout", Default: "30s", Desc: "Timeout for multi-collection database writes"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, KINDERLINK_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "KINDERLINK", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		JWTSecret:           appValues.String("jwt_secret"),
		SessionTokenTTL:     appValues.Duration("session_token_ttl", 720*time.Hour),
		ProvisionalTokenTTL: appValues.Duration("provisional_token_ttl", 15*time.Minute),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		CookieHashKey:  appValues.String("cookie_hash_key"),
		CookieBlockKey: appValues.String("cookie_block_key"),

		BaseURL:     appValues.String("base_url"),
		FrontendURL: appValues.String("frontend_url"),

		DBLongOpTimeout: appValues.Duration("db_long_op_timeout", 30*time.Second),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// Kinderlink validates the MongoDB URI format and the token TTL
// ordering early, before attempting to connect.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret must be set")
	}

	// A registration token must expire well before a session would; a
	// long-lived provisional token defeats its purpose.
	if appCfg.ProvisionalTokenTTL >= appCfg.SessionTokenTTL {
		return fmt.Errorf("provisional_token_ttl (%s) must be shorter than session_token_ttl (%s)",
			appCfg.ProvisionalTokenTTL, appCfg.SessionTokenTTL)
	}

	if appCfg.GoogleClientID == "" || appCfg.GoogleClientSecret == "" {
		logger.Info("Google OAuth not configured; /api/auth/google will return 404")
	}

	return nil
}
