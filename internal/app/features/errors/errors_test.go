package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kinderlink/kinderlink/internal/app/system/apperr"
	"go.uber.org/zap"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestOK_Envelope(t *testing.T) {
	rp := NewResponder(zap.NewNop(), false)
	rec := httptest.NewRecorder()

	rp.OK(rec, "profile retrieved", map[string]string{"name": "Ana"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	body := decode(t, rec)
	if body["success"] != true {
		t.Error("expected success=true")
	}
	if body["message"] != "profile retrieved" {
		t.Errorf("message: got %v", body["message"])
	}
	if body["data"] == nil {
		t.Error("expected data payload")
	}
}

func TestError_TaxonomyMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"conflict", apperr.Conflict("email taken"), http.StatusConflict, "email taken"},
		{"not found", apperr.NotFound("invalid invitation code"), http.StatusNotFound, "invalid invitation code"},
		{"unauthorized", apperr.Unauthorized("invalid or expired token"), http.StatusUnauthorized, "invalid or expired token"},
		{"validation", apperr.Validation("invalid data", map[string]string{"email": "email is required"}), http.StatusBadRequest, "invalid data"},
		{"internal generic", stderrors.New("mongo: socket closed"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rp := NewResponder(zap.NewNop(), false)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/api/users/register", nil)

			rp.Error(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decode(t, rec)
			if body["success"] != false {
				t.Error("expected success=false")
			}
			if body["message"] != tt.wantMsg {
				t.Errorf("message: got %v, want %q", body["message"], tt.wantMsg)
			}
		})
	}
}

func TestError_InternalDetailSuppressedOutsideDev(t *testing.T) {
	rp := NewResponder(zap.NewNop(), false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/children", nil)

	rp.Error(rec, req, stderrors.New("connection string leaked"))

	body := decode(t, rec)
	if _, ok := body["error"]; ok {
		t.Error("internal detail must be suppressed outside dev mode")
	}
}

func TestError_InternalDetailInDev(t *testing.T) {
	rp := NewResponder(zap.NewNop(), true)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/children", nil)

	rp.Error(rec, req, stderrors.New("boom"))

	body := decode(t, rec)
	if body["error"] != "boom" {
		t.Errorf("dev mode should include detail, got %v", body["error"])
	}
}

func TestError_ValidationFields(t *testing.T) {
	rp := NewResponder(zap.NewNop(), false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/users/register", nil)

	rp.Error(rec, req, apperr.Validation("invalid data", map[string]string{
		"email":    "email is required",
		"password": "password is required",
	}))

	body := decode(t, rec)
	fields, ok := body["errors"].(map[string]any)
	if !ok {
		t.Fatal("expected errors map")
	}
	if fields["email"] != "email is required" {
		t.Errorf("field email: got %v", fields["email"])
	}
}
