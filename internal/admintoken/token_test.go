package admintoken

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckStatic(t *testing.T) {
	guard, err := New("s3cret", "", time.Hour)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	if !guard.CheckStatic("s3cret") {
		t.Fatalf("expected matching token to pass")
	}
	if guard.CheckStatic("wrong") {
		t.Fatalf("expected mismatched token to fail")
	}
}

func TestIssueAndVerifySession(t *testing.T) {
	guard, err := New("s3cret", "session-signing-secret", time.Hour)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	token, err := guard.Issue("reviewer")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	subject, err := guard.VerifySession(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != "reviewer" {
		t.Fatalf("subject = %q, want %q", subject, "reviewer")
	}
}

func TestVerifySessionRejectsExpiredToken(t *testing.T) {
	guard, err := New("s3cret", "session-signing-secret", time.Minute)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	guard.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := guard.Issue("reviewer")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	guard.now = time.Now
	if _, err := guard.VerifySession(token); err == nil {
		t.Fatalf("expected expired token to fail verification")
	}
}

func TestVerifySessionRejectsForeignSecret(t *testing.T) {
	issuerGuard, err := New("s3cret", "secret-a", time.Hour)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	verifierGuard, err := New("s3cret", "secret-b", time.Hour)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	token, err := issuerGuard.Issue("reviewer")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifierGuard.VerifySession(token); err == nil {
		t.Fatalf("expected token signed with another secret to fail")
	}
}

func TestIssueWithoutSessionSecret(t *testing.T) {
	guard, err := New("s3cret", "", time.Hour)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	if _, err := guard.Issue("reviewer"); err != ErrNoSessions {
		t.Fatalf("expected ErrNoSessions, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	guard, err := New("s3cret", "session-signing-secret", time.Hour)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	session, err := guard.Issue("reviewer")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name        string
		adminHeader string
		bearer      string
		wantSubject string
		wantErr     bool
	}{
		{name: "static token header", adminHeader: "s3cret", wantSubject: "admin"},
		{name: "wrong static token", adminHeader: "nope", wantErr: true},
		{name: "session bearer", bearer: session, wantSubject: "reviewer"},
		{name: "garbage bearer", bearer: "garbage", wantErr: true},
		{name: "no credentials", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin/uploads", nil)
			if tc.adminHeader != "" {
				req.Header.Set("X-Admin-Token", tc.adminHeader)
			}
			if tc.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tc.bearer)
			}
			subject, err := guard.Authorize(req)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("authorize: %v", err)
			}
			if subject != tc.wantSubject {
				t.Fatalf("subject = %q, want %q", subject, tc.wantSubject)
			}
		})
	}
}
