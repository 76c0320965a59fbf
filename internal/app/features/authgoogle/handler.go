// internal/app/features/authgoogle/handler.go

// Package authgoogle implements the federated sign-in path: the redirect
// to Google, the callback that resolves the assertion to an account or a
// provisional token, and the registration-completion endpoint.
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apierrors "github.com/kinderlink/kinderlink/internal/app/features/errors"
	"github.com/kinderlink/kinderlink/internal/app/store/oauthstate"
	"github.com/kinderlink/kinderlink/internal/app/system/apperr"
	"github.com/kinderlink/kinderlink/internal/app/system/onboarding"
	"github.com/kinderlink/kinderlink/internal/app/system/timeouts"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	stateCookieName = "oauth_state"
	stateTTL        = 10 * time.Minute
)

// Handler handles Google OAuth authentication.
type Handler struct {
	Onboarding *onboarding.Service
	StateStore *oauthstate.Store
	Resp       *apierrors.Responder
	Log        *zap.Logger

	// OAuth configuration
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g. "https://api.kinderlink.id/api/auth/google/callback"

	// FrontendURL is where browsers land after the provider round trip.
	FrontendURL string

	// Cookies signs the state cookie that binds the browser to the flow.
	Cookies *securecookie.SecureCookie
}

// NewHandler creates a new Google OAuth handler.
func NewHandler(
	svc *onboarding.Service,
	stateStore *oauthstate.Store,
	resp *apierrors.Responder,
	cookies *securecookie.SecureCookie,
	clientID, clientSecret, baseURL, frontendURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Onboarding:   svc,
		StateStore:   stateStore,
		Resp:         resp,
		Cookies:      cookies,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/api/auth/google/callback",
		FrontendURL:  frontendURL,
		Log:          logger,
	}
}

// oauth2Config returns the Google OAuth2 configuration.
func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/auth/google                                                         |
| Initiates the flow by redirecting to Google's consent screen.                |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		h.redirectToFrontend(w, r, "/login", url.Values{"error": {"google_not_configured"}})
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		h.redirectToFrontend(w, r, "/login", url.Values{"error": {"internal"}})
		return
	}

	returnURL := r.URL.Query().Get("return")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	expiresAt := time.Now().UTC().Add(stateTTL)
	if err := h.StateStore.Save(ctx, state, returnURL, expiresAt); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		h.redirectToFrontend(w, r, "/login", url.Values{"error": {"internal"}})
		return
	}

	// The signed cookie ties the browser that started the flow to the one
	// that returns; a stolen state value alone is not enough.
	if err := h.setStateCookie(w, state); err != nil {
		h.Log.Error("failed to sign state cookie", zap.Error(err))
		h.redirectToFrontend(w, r, "/login", url.Values{"error": {"internal"}})
		return
	}

	authURL := h.oauth2Config().AuthCodeURL(state, oauth2.AccessTypeOffline)

	h.Log.Debug("initiating Google OAuth flow",
		zap.String("return_url", returnURL))

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/auth/google/callback                                                |
| Exchanges the code, fetches the Google profile, and resolves it to either    |
| a session (known person) or a provisional registration token (new person).   |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		h.redirectToFrontend(w, r, "/login", url.Values{"error": {"google_denied"}})
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		h.Log.Warn("missing OAuth state parameter")
		h.redirectToFrontend(w, r, "/login", url.Values{"error": {"invalid_state"}})
		return
	}

	cookieState, err := h.readStateCookie(r)
	h.clearStateCookie(w)
	if err != nil || cookieState != state {
		h.Log.Warn("OAuth state cookie mismatch", zap.Error(err))
		h.redirectToFrontend(w, r, "/login", url.Values{"error": {"invalid_state"}})
		return
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	returnURL, valid, err := h.StateStore.Validate(ctxTimeout, state)
	if err != nil {
		h.Log.Error("failed to validate OAuth state", zap.Error(err))
		h.redirectToFrontend(w, r, "/login", url.Values{"error": {"internal"}})
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state")
		h.redirectToFrontend(w, r, "/login", url.Values{"error": {"invalid_state"}})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.Log.Warn("missing OAuth code parameter")
		h.redirectToFrontend(w, r, "/login", url.Values{"error": {"invalid_code"}})
		return
	}

	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		h.redirectToFrontend(w, r, "/login", url.Values{"error": {"token_exchange"}})
		return
	}

	googleUser, err := fetchGoogleUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		h.redirectToFrontend(w, r, "/login", url.Values{"error": {"user_info"}})
		return
	}

	res, err := h.Onboarding.ResolveFederated(ctx, onboarding.FederatedProfile{
		SubjectID: googleUser.ID,
		Email:     googleUser.Email,
		Name:      googleUser.Name,
	})
	if err != nil {
		h.Log.Error("failed to resolve federated identity", zap.Error(err))
		h.redirectToFrontend(w, r, "/login", url.Values{"error": {"internal"}})
		return
	}

	if res.Session != nil {
		h.Log.Info("user logged in via Google OAuth",
			zap.String("user_id", res.Session.User.ID.Hex()))

		dest := safeReturn(returnURL)
		q := url.Values{"token": {res.Session.Token}}
		if !res.Session.User.IsComplete() {
			q.Set("profile_complete", "false")
		}
		h.redirectToFrontend(w, r, dest, q)
		return
	}

	// No account yet. The provisional token carries the Google claims to
	// the registration form; nothing is stored until that form submits.
	h.Log.Info("Google OAuth: new person, issuing registration token",
		zap.String("email", googleUser.Email))
	h.redirectToFrontend(w, r, "/register/federated",
		url.Values{"registration_token": {res.ProvisionalToken}})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/auth/google/registration                                           |
| Finishes the federated path: provisional token + profile + invitation code. |
*─────────────────────────────────────────────────────────────────────────────*/

type registrationRequest struct {
	RegistrationToken string `json:"registration_token"`
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	Address           string `json:"address"`
	InvitationCode    string `json:"invitation_code"`
}

func (h *Handler) ServeRegistration(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Resp.Error(w, r, apperr.Validation("invalid request body", nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	sess, child, err := h.Onboarding.CompleteFederatedRegistration(ctx, onboarding.FederatedRegistration{
		ProvisionalToken: req.RegistrationToken,
		Name:             req.Name,
		Phone:            req.Phone,
		Address:          req.Address,
		InvitationCode:   req.InvitationCode,
	})
	if err != nil {
		h.Resp.Error(w, r, err)
		return
	}

	h.Resp.JSON(w, http.StatusCreated, "registration complete", map[string]any{
		"token":            sess.Token,
		"user":             sess.User,
		"child":            child,
		"profile_complete": sess.User.IsComplete(),
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// fetchGoogleUserInfo retrieves user information from Google's userinfo endpoint.
func fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &info, nil
}

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (h *Handler) setStateCookie(w http.ResponseWriter, state string) error {
	encoded, err := h.Cookies.Encode(stateCookieName, state)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    encoded,
		Path:     "/api/auth/google",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *Handler) readStateCookie(r *http.Request) (string, error) {
	c, err := r.Cookie(stateCookieName)
	if err != nil {
		return "", err
	}
	var state string
	if err := h.Cookies.Decode(stateCookieName, c.Value, &state); err != nil {
		return "", err
	}
	return state, nil
}

func (h *Handler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/api/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirectToFrontend sends the browser to a frontend path with query params.
func (h *Handler) redirectToFrontend(w http.ResponseWriter, r *http.Request, path string, q url.Values) {
	dest := h.FrontendURL + path
	if len(q) > 0 {
		dest += "?" + q.Encode()
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// safeReturn keeps redirects on-site: only rooted paths pass through.
func safeReturn(returnURL string) string {
	if returnURL == "" || returnURL[0] != '/' || (len(returnURL) > 1 && returnURL[1] == '/') {
		return "/"
	}
	return returnURL
}
