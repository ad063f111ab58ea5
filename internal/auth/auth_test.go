package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewManager("test-secret-at-least-16", time.Hour)

	token, err := m.Issue(Identity{Actor: "dana", TenantID: 7})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	id, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id.Actor != "dana" || id.TenantID != 7 {
		t.Errorf("Verify() = %+v, want actor dana tenant 7", id)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewManager("test-secret-at-least-16", -time.Minute)
	token, err := m.Issue(Identity{Actor: "dana", TenantID: 7})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := m.Verify(token); err == nil {
		t.Error("Verify() accepted an expired token")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewManager("test-secret-at-least-16", time.Hour)
	verifier := NewManager("another-secret-entirely", time.Hour)

	token, err := issuer.Issue(Identity{Actor: "dana", TenantID: 7})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Error("Verify() accepted a token signed with a different secret")
	}
}

func TestVerifyRejectsMissingClaims(t *testing.T) {
	m := NewManager("test-secret-at-least-16", time.Hour)
	token, err := m.Issue(Identity{Actor: "", TenantID: 0})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"bearer", "Bearer abc.def.ghi", "abc.def.ghi", true},
		{"lowercase scheme", "bearer abc", "abc", true},
		{"missing header", "", "", false},
		{"wrong scheme", "Basic abc", "", false},
		{"no token", "Bearer", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, ok := TokenFromRequest(r)
			if got != tt.want || ok != tt.ok {
				t.Errorf("TokenFromRequest() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}
