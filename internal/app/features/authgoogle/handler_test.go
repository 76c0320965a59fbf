package authgoogle_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/kinderlink/kinderlink/internal/app/features/authgoogle"
	apierrors "github.com/kinderlink/kinderlink/internal/app/features/errors"
	"github.com/kinderlink/kinderlink/internal/app/store/oauthstate"
	userstore "github.com/kinderlink/kinderlink/internal/app/store/users"
	"github.com/kinderlink/kinderlink/internal/app/system/linking"
	"github.com/kinderlink/kinderlink/internal/app/system/onboarding"
	"github.com/kinderlink/kinderlink/internal/app/system/token"
	"github.com/kinderlink/kinderlink/internal/testutil"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newHandler(t *testing.T, db *mongo.Database) (*authgoogle.Handler, *token.Issuer) {
	t.Helper()
	iss, err := token.NewIssuer("authgoogle-test-secret", time.Hour, 10*time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}
	users := userstore.New(db)
	linker := linking.New(db.Client(), db, zap.NewNop())
	svc := onboarding.New(users, linker, iss, zap.NewNop())
	cookies := securecookie.New([]byte("0123456789abcdef0123456789abcdef"), nil)
	h := authgoogle.NewHandler(
		svc, oauthstate.New(db),
		apierrors.NewResponder(zap.NewNop(), false),
		cookies,
		"test-client-id", "test-client-secret",
		"http://localhost:8080", "http://localhost:3000",
		zap.NewNop(),
	)
	return h, iss
}

func TestServeLogin_RedirectsToGoogle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, _ := newHandler(t, db)

	req := testutil.NewRequest(http.MethodGet, "/api/auth/google")
	rec := testutil.NewRecorder()
	h.ServeLogin(rec, req)

	rec.AssertStatus(t, http.StatusTemporaryRedirect)

	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, "accounts.google.com") {
		t.Errorf("expected redirect to Google, got %q", loc)
	}
	if !strings.Contains(loc, "state=") {
		t.Errorf("expected state parameter in redirect, got %q", loc)
	}

	cookies := rec.Result().Cookies()
	var found bool
	for _, c := range cookies {
		if c.Name == "oauth_state" && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("expected a signed oauth_state cookie")
	}
}

func TestServeCallback_RejectsMissingState(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, _ := newHandler(t, db)

	req := testutil.NewRequest(http.MethodGet, "/api/auth/google/callback?code=abc")
	rec := testutil.NewRecorder()
	h.ServeCallback(rec, req)

	rec.AssertStatus(t, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "error=invalid_state") {
		t.Errorf("expected invalid_state error redirect, got %q", loc)
	}
}

func TestServeRegistration_FinishesFederatedPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f := testutil.NewFixtures(t, db)
	f.CreateChild(ctx, "Budi", "#BUDI")

	h, iss := newHandler(t, db)
	provisional, err := iss.IssueProvisional(token.ProvisionalClaims{
		FederatedID: "google-sub-123",
		Email:       "sari@gmail.com",
		Name:        "Ibu Sari",
	})
	if err != nil {
		t.Fatalf("IssueProvisional failed: %v", err)
	}

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/auth/google/registration", map[string]string{
		"registration_token": provisional,
		"name":               "Ibu Sari",
		"phone":              "081234567890",
		"address":            "Jl. Melati No. 5",
		"invitation_code":    "#BUDI",
	})
	rec := testutil.NewRecorder()
	h.ServeRegistration(rec, req)

	rec.AssertStatus(t, http.StatusCreated)

	var data struct {
		Token           string `json:"token"`
		ProfileComplete bool   `json:"profile_complete"`
		User            struct {
			Email       string  `json:"email"`
			FederatedID *string `json:"federated_id"`
		} `json:"user"`
	}
	rec.DecodeData(t, &data)
	if data.Token == "" {
		t.Error("expected a session token")
	}
	if !data.ProfileComplete {
		t.Error("expected a complete profile after federated registration")
	}
	if data.User.FederatedID == nil || *data.User.FederatedID != "google-sub-123" {
		t.Error("expected the Google subject recorded on the account")
	}
}

func TestServeRegistration_RejectsGarbageToken(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, _ := newHandler(t, db)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/auth/google/registration", map[string]string{
		"registration_token": "not-a-token",
		"name":               "Ibu Sari",
		"phone":              "081234567890",
		"address":            "Jl. Melati No. 5",
		"invitation_code":    "#BUDI",
	})
	rec := testutil.NewRecorder()
	h.ServeRegistration(rec, req)

	rec.AssertStatus(t, http.StatusUnauthorized)
}
