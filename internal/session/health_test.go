package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileHealthStoreLifecycle(t *testing.T) {
	store := NewFileHealthStore()
	artifact := filepath.Join(t.TempDir(), "session.json")

	if store.NeedsRelogin(artifact) {
		t.Fatal("fresh session should not need relogin")
	}

	store.MarkNeedsRelogin(artifact, "review_list status=401")
	if !store.NeedsRelogin(artifact) {
		t.Fatal("marked session should need relogin")
	}

	reason, err := os.ReadFile(artifact + MarkerSuffix)
	if err != nil {
		t.Fatalf("marker file missing: %v", err)
	}
	if string(reason) != "review_list status=401" {
		t.Errorf("marker content = %q", reason)
	}

	store.ClearNeedsRelogin(artifact)
	if store.NeedsRelogin(artifact) {
		t.Fatal("cleared session should not need relogin")
	}
	// Clearing twice must be harmless.
	store.ClearNeedsRelogin(artifact)
}

func TestMemoryHealthStore(t *testing.T) {
	store := NewMemoryHealthStore()

	store.MarkNeedsRelogin("a", "expired")
	if !store.NeedsRelogin("a") {
		t.Error("marker for a missing")
	}
	if store.NeedsRelogin("b") {
		t.Error("unrelated path should not be marked")
	}
	store.ClearNeedsRelogin("a")
	if store.NeedsRelogin("a") {
		t.Error("marker should be cleared")
	}
}

func TestIsAuthFailure(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		want        bool
	}{
		{"ok json", 200, "application/json", `{"result":[]}`, false},
		{"unauthorized", 401, "application/json", `{}`, true},
		{"forbidden", 403, "application/json", `{}`, true},
		{"html content type", 200, "text/html; charset=utf-8", "<html>", true},
		{"html body with json content type", 200, "application/json", "<!DOCTYPE html><html>", true},
		{"login page script", 200, "", "  <script>location.href='/login'</script>", true},
		{"server error stays non-auth", 500, "application/json", `{"error":"internal"}`, false},
		{"html marker past the head is ignored", 200, "application/json",
			`{"result":"` + string(make([]byte, 300)) + `<html>"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthFailure(tt.status, tt.contentType, tt.body); got != tt.want {
				t.Errorf("IsAuthFailure(%d, %q) = %v, want %v", tt.status, tt.contentType, got, tt.want)
			}
		})
	}
}

func TestLooksStale(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	future := float64(now.Unix() + 3600)
	past := float64(now.Unix() - 3600)

	tests := []struct {
		name    string
		cookies []Cookie
		want    bool
	}{
		{"no cookies at all", nil, true},
		{"no auth cookies", []Cookie{{Name: "abt_data", Value: "x", Expires: future}}, true},
		{"valid refresh token", []Cookie{{Name: "__Secure-refresh-token", Value: "x", Expires: future}}, false},
		{"session-scoped access token", []Cookie{{Name: "__Secure-access-token", Value: "x"}}, false},
		{"all auth cookies expired", []Cookie{
			{Name: "__Secure-refresh-token", Value: "x", Expires: past},
			{Name: "__Secure-access-token", Value: "x", Expires: past},
		}, true},
		{"one of two still valid", []Cookie{
			{Name: "__Secure-access-token", Value: "x", Expires: past},
			{Name: "__Secure-refresh-token", Value: "x", Expires: future},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifact := &Artifact{Cookies: tt.cookies}
			if got := artifact.LooksStale(now); got != tt.want {
				t.Errorf("LooksStale() = %v, want %v", got, tt.want)
			}
		})
	}
}
