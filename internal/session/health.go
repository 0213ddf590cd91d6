package session

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// MarkerSuffix is appended to the artifact path to form the relogin marker.
// The marker's presence alone is authoritative; its content is a free-text
// reason kept for diagnostics.
const MarkerSuffix = ".needs_relogin"

// Auth token cookies checked by the pre-flight staleness heuristic.
var authCookieNames = []string{"__Secure-refresh-token", "__Secure-access-token"}

// HealthStore tracks per-session authentication health out of band of the
// artifact itself. Implementations must be safe for concurrent use.
type HealthStore interface {
	// MarkNeedsRelogin records that the session's credentials are stale.
	MarkNeedsRelogin(artifactPath, reason string)

	// ClearNeedsRelogin removes the stale marker after a confirmed success.
	ClearNeedsRelogin(artifactPath string)

	// NeedsRelogin reports whether the session is marked stale.
	NeedsRelogin(artifactPath string) bool
}

// FileHealthStore persists relogin markers as side files colocated with the
// session artifact.
type FileHealthStore struct{}

// NewFileHealthStore creates the file-backed health store.
func NewFileHealthStore() *FileHealthStore {
	return &FileHealthStore{}
}

// MarkNeedsRelogin writes the marker file next to the artifact.
func (s *FileHealthStore) MarkNeedsRelogin(artifactPath, reason string) {
	marker := artifactPath + MarkerSuffix
	if err := os.WriteFile(marker, []byte(reason), 0644); err != nil {
		slog.Warn("failed to write relogin marker", "path", marker, "error", err)
		return
	}
	slog.Info("session marked for relogin", "path", artifactPath, "reason", reason)
}

// ClearNeedsRelogin removes the marker file if present.
func (s *FileHealthStore) ClearNeedsRelogin(artifactPath string) {
	marker := artifactPath + MarkerSuffix
	if err := os.Remove(marker); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove relogin marker", "path", marker, "error", err)
	}
}

// NeedsRelogin reports whether the marker file exists.
func (s *FileHealthStore) NeedsRelogin(artifactPath string) bool {
	_, err := os.Stat(artifactPath + MarkerSuffix)
	return err == nil
}

// MemoryHealthStore is an in-memory HealthStore for tests.
type MemoryHealthStore struct {
	mu      sync.Mutex
	markers map[string]string
}

// NewMemoryHealthStore creates an in-memory health store.
func NewMemoryHealthStore() *MemoryHealthStore {
	return &MemoryHealthStore{markers: make(map[string]string)}
}

// MarkNeedsRelogin records the marker in memory.
func (s *MemoryHealthStore) MarkNeedsRelogin(artifactPath, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[artifactPath] = reason
}

// ClearNeedsRelogin removes the in-memory marker.
func (s *MemoryHealthStore) ClearNeedsRelogin(artifactPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, artifactPath)
}

// NeedsRelogin reports whether a marker is recorded.
func (s *MemoryHealthStore) NeedsRelogin(artifactPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.markers[artifactPath]
	return ok
}

// IsAuthFailure classifies a response as an authentication failure. Covers
// explicit 401/403 rejections as well as the silent redirect-to-login case
// where the portal returns 200 with an HTML login page.
func IsAuthFailure(status int, contentType, body string) bool {
	if status == 401 || status == 403 {
		return true
	}
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	return looksLikeHTML(body)
}

// looksLikeHTML inspects the leading 200 characters of a body for HTML
// document markers.
func looksLikeHTML(body string) bool {
	head := strings.ToLower(strings.TrimSpace(body))
	if len(head) > 200 {
		head = head[:200]
	}
	for _, marker := range []string{"<html", "<!doctype", "<script"} {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}

// LooksStale applies the pre-flight heuristic over identity-cookie expiry: a
// session whose auth/refresh token cookies are all absent or expired needs
// relogin without making a request.
func (a *Artifact) LooksStale(now time.Time) bool {
	for _, cookie := range a.Cookies {
		for _, name := range authCookieNames {
			if cookie.Name == name && !cookie.Expired(now) {
				return false
			}
		}
	}
	// No auth cookie at all, or every one of them expired.
	return true
}
