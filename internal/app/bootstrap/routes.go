// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	announcementsfeature "github.com/kinderlink/kinderlink/internal/app/features/announcements"
	authgooglefeature "github.com/kinderlink/kinderlink/internal/app/features/authgoogle"
	childrenfeature "github.com/kinderlink/kinderlink/internal/app/features/children"
	errorsfeature "github.com/kinderlink/kinderlink/internal/app/features/errors"
	feedbackfeature "github.com/kinderlink/kinderlink/internal/app/features/feedback"
	healthfeature "github.com/kinderlink/kinderlink/internal/app/features/health"
	loginfeature "github.com/kinderlink/kinderlink/internal/app/features/login"
	permissionlettersfeature "github.com/kinderlink/kinderlink/internal/app/features/permissionletters"
	profilefeature "github.com/kinderlink/kinderlink/internal/app/features/profile"
	registerfeature "github.com/kinderlink/kinderlink/internal/app/features/register"
	schedulesfeature "github.com/kinderlink/kinderlink/internal/app/features/schedules"
	announcementstore "github.com/kinderlink/kinderlink/internal/app/store/announcements"
	childstore "github.com/kinderlink/kinderlink/internal/app/store/children"
	feedbackstore "github.com/kinderlink/kinderlink/internal/app/store/feedback"
	"github.com/kinderlink/kinderlink/internal/app/store/oauthstate"
	letterstore "github.com/kinderlink/kinderlink/internal/app/store/permissionletters"
	schedulestore "github.com/kinderlink/kinderlink/internal/app/store/schedules"
	userstore "github.com/kinderlink/kinderlink/internal/app/store/users"
	"github.com/kinderlink/kinderlink/internal/app/system/auth"
	"github.com/kinderlink/kinderlink/internal/app/system/linking"
	"github.com/kinderlink/kinderlink/internal/app/system/onboarding"
	"github.com/kinderlink/kinderlink/internal/app/system/token"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and any Startup hooks have completed. Kinderlink wires the stores,
// the linking and onboarding services, and the bearer-token middleware,
// then mounts the JSON API under /api.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	dev := coreCfg.Env == "dev"
	resp := errorsfeature.NewResponder(logger, dev)

	issuer, err := token.NewIssuer(appCfg.JWTSecret, appCfg.SessionTokenTTL, appCfg.ProvisionalTokenTTL)
	if err != nil {
		logger.Error("token issuer init failed", zap.Error(err))
		return nil, err
	}

	// Stores.
	users := userstore.New(deps.MongoDatabase)
	children := childstore.New(deps.MongoDatabase)
	announcements := announcementstore.New(deps.MongoDatabase)
	schedules := schedulestore.New(deps.MongoDatabase)
	feedback := feedbackstore.New(deps.MongoDatabase)
	letters := letterstore.New(deps.MongoDatabase)
	states := oauthstate.New(deps.MongoDatabase)

	// Services.
	linker := linking.New(deps.MongoClient, deps.MongoDatabase, logger)
	onboard := onboarding.New(users, linker, issuer, logger)

	// Global auth middleware: verifies the bearer token, if any, and
	// loads a fresh user into context so role changes and completed
	// profiles take effect on the next request.
	mw := auth.NewMiddleware(issuer, users, logger)

	r := chi.NewRouter()
	r.Use(mw.LoadUser)

	// Health check endpoint for load balancers and orchestrators.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Account onboarding.
	registerHandler := registerfeature.NewHandler(onboard, resp, logger)
	r.Mount("/api/users/register", registerfeature.Routes(registerHandler))

	loginHandler := loginfeature.NewHandler(onboard, resp, logger)
	r.Mount("/api/users/login", loginfeature.Routes(loginHandler))

	profileHandler := profilefeature.NewHandler(onboard, users, resp, logger)
	r.Mount("/api/users", profilefeature.Routes(profileHandler))

	// Google sign-in. Mounted only when credentials are configured.
	if appCfg.GoogleClientID != "" && appCfg.GoogleClientSecret != "" {
		var blockKey []byte
		if appCfg.CookieBlockKey != "" {
			blockKey = []byte(appCfg.CookieBlockKey)
		}
		cookies := securecookie.New([]byte(appCfg.CookieHashKey), blockKey)

		googleHandler := authgooglefeature.NewHandler(
			onboard, states, resp, cookies,
			appCfg.GoogleClientID, appCfg.GoogleClientSecret,
			appCfg.BaseURL, appCfg.FrontendURL,
			logger,
		)
		r.Mount("/api/auth", authgooglefeature.Routes(googleHandler))
	}

	// Children and enrollment.
	childrenHandler := childrenfeature.NewHandler(children, users, resp, logger)
	r.Mount("/api/children", childrenfeature.Routes(childrenHandler))

	// School content.
	announcementsHandler := announcementsfeature.NewHandler(announcements, resp, logger)
	r.Mount("/api/announcements", announcementsfeature.Routes(announcementsHandler))

	schedulesHandler := schedulesfeature.NewHandler(schedules, resp, logger)
	r.Mount("/api/schedules", schedulesfeature.Routes(schedulesHandler))

	feedbackHandler := feedbackfeature.NewHandler(feedback, resp, logger)
	r.Mount("/api/feedback", feedbackfeature.Routes(feedbackHandler))

	lettersHandler := permissionlettersfeature.NewHandler(letters, resp, logger)
	r.Mount("/api/permission-letters", permissionlettersfeature.Routes(lettersHandler))

	return r, nil
}
