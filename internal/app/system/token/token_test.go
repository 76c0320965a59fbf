package token

import (
	"errors"
	"testing"
	"time"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	iss, err := NewIssuer("test-secret-0123456789", time.Hour, 10*time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}
	return iss
}

func TestNewIssuer_Validation(t *testing.T) {
	tests := []struct {
		name           string
		secret         string
		session, prov  time.Duration
		wantErr        bool
	}{
		{"valid", "secret", time.Hour, 10 * time.Minute, false},
		{"empty secret", "", time.Hour, 10 * time.Minute, true},
		{"zero session ttl", "secret", 0, 10 * time.Minute, true},
		{"provisional not shorter", "secret", time.Hour, time.Hour, true},
		{"provisional longer", "secret", 10 * time.Minute, time.Hour, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIssuer(tt.secret, tt.session, tt.prov)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewIssuer() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionRoundTrip(t *testing.T) {
	iss := newTestIssuer(t)

	tok, err := iss.IssueSession("64f0c2a9e4b0aa0011223344")
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}

	uid, err := iss.VerifySession(tok)
	if err != nil {
		t.Fatalf("VerifySession failed: %v", err)
	}
	if uid != "64f0c2a9e4b0aa0011223344" {
		t.Errorf("user id: got %q", uid)
	}
}

func TestProvisionalRoundTrip(t *testing.T) {
	iss := newTestIssuer(t)

	in := ProvisionalClaims{FederatedID: "google-123", Email: "b@x.com", Name: "Budi"}
	tok, err := iss.IssueProvisional(in)
	if err != nil {
		t.Fatalf("IssueProvisional failed: %v", err)
	}

	out, err := iss.VerifyProvisional(tok)
	if err != nil {
		t.Fatalf("VerifyProvisional failed: %v", err)
	}
	if out != in {
		t.Errorf("claims: got %+v, want %+v", out, in)
	}
}

func TestVerify_TypeConfusionRejected(t *testing.T) {
	iss := newTestIssuer(t)

	sess, _ := iss.IssueSession("user-1")
	if _, err := iss.VerifyProvisional(sess); !errors.Is(err, ErrMalformed) {
		t.Errorf("session token accepted as provisional: err=%v", err)
	}

	prov, _ := iss.IssueProvisional(ProvisionalClaims{FederatedID: "g-1", Email: "a@x.com"})
	if _, err := iss.VerifySession(prov); !errors.Is(err, ErrMalformed) {
		t.Errorf("provisional token accepted as session: err=%v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	// Provisional expiry in the past relative to verification.
	iss, err := NewIssuer("test-secret", time.Hour, time.Nanosecond)
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}

	tok, err := iss.IssueProvisional(ProvisionalClaims{FederatedID: "g-1", Email: "a@x.com"})
	if err != nil {
		t.Fatalf("IssueProvisional failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	if _, err := iss.VerifyProvisional(tok); !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	iss := newTestIssuer(t)

	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := iss.VerifySession(tok); !errors.Is(err, ErrMalformed) {
			t.Errorf("VerifySession(%q): expected ErrMalformed, got %v", tok, err)
		}
	}
}

func TestVerify_WrongKey(t *testing.T) {
	iss := newTestIssuer(t)
	other, _ := NewIssuer("different-secret", time.Hour, 10*time.Minute)

	tok, _ := other.IssueSession("user-1")
	if _, err := iss.VerifySession(tok); !errors.Is(err, ErrMalformed) {
		t.Errorf("token signed with different key accepted: err=%v", err)
	}
}
