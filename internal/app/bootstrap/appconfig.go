// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (ports, TLS,
// logging, CORS, body limits). AppConfig is everything specific to
// kinderlink: the MongoDB connection, token signing, Google OAuth
// credentials, and the URLs the API and the parent-facing frontend
// live at.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Token signing configuration
	JWTSecret           string        // HMAC secret for session and registration tokens
	SessionTokenTTL     time.Duration // Lifetime of a full session token
	ProvisionalTokenTTL time.Duration // Lifetime of a federated registration token (short)

	// Google OAuth configuration
	GoogleClientID     string
	GoogleClientSecret string

	// Cookie signing keys for the OAuth state cookie
	CookieHashKey  string
	CookieBlockKey string // optional; enables encryption when set

	// BaseURL is where this API is reachable (used to build the OAuth
	// callback URL). FrontendURL is where browsers are sent after the
	// Google round trip.
	BaseURL     string
	FrontendURL string

	// DBLongOpTimeout bounds the multi-collection linking writes.
	DBLongOpTimeout time.Duration
}
