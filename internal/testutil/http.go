package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/kinderlink/kinderlink/internal/app/system/auth"
	"github.com/kinderlink/kinderlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GuardianUser returns a complete guardian for handler tests.
func GuardianUser() *models.User {
	return &models.User{
		ID:       primitive.NewObjectID(),
		Name:     "Test Guardian",
		Email:    "guardian@test.com",
		Phone:    "081234567890",
		Address:  "Jl. Test No. 1",
		Role:     models.RoleGuardian,
		Children: []primitive.ObjectID{primitive.NewObjectID()},
	}
}

// AdminUser returns an admin for handler tests.
func AdminUser() *models.User {
	return &models.User{
		ID:    primitive.NewObjectID(),
		Name:  "Test Admin",
		Email: "admin@test.com",
		Role:  models.RoleAdmin,
	}
}

// WithUser adds a user to the request context for testing authenticated
// handlers. This bypasses the auth middleware and injects the user directly.
func WithUser(r *http.Request, user *models.User) *http.Request {
	return auth.WithTestUser(r, user)
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewJSONRequest creates an HTTP request carrying a JSON body.
func NewJSONRequest(t interface{ Fatalf(string, ...any) }, method, target string, body any) *http.Request {
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewAuthenticatedRequest creates an HTTP request with a user in context.
func NewAuthenticatedRequest(method, target string, user *models.User) *http.Request {
	return WithUser(httptest.NewRequest(method, target, nil), user)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}

// AssertSuccess decodes the response envelope and checks its success flag.
func (r *ResponseRecorder) AssertSuccess(t interface{ Errorf(string, ...any) }, want bool) {
	var env struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(r.Body.Bytes(), &env); err != nil {
		t.Errorf("response body is not a JSON envelope: %v", err)
		return
	}
	if env.Success != want {
		t.Errorf("envelope success: got %v, want %v (body %s)", env.Success, want, r.Body.String())
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}

// DecodeData unmarshals the envelope's data field into out.
func (r *ResponseRecorder) DecodeData(t interface{ Fatalf(string, ...any) }, out any) {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(r.Body.Bytes(), &env); err != nil {
		t.Fatalf("response body is not a JSON envelope: %v", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("failed to decode envelope data: %v", err)
	}
}
