// Package session loads captured browser session artifacts and tracks their
// authentication health. An artifact is a Playwright-style storage state file
// (cookie jar plus local-storage snapshot) produced by the external interactive
// login flow; this package only ever reads it.
package session

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Cookie domain families accepted into the outgoing cookie header.
var marketplaceDomains = []string{"ozon.ru", "ozone.ru"}

// companyIDCookie is the identity cookie the seller portal sets after login.
const companyIDCookie = "sc_company_id"

// Cookie is one captured browser cookie.
type Cookie struct {
	Name    string  `json:"name"`
	Value   string  `json:"value"`
	Domain  string  `json:"domain"`
	Path    string  `json:"path,omitempty"`
	Expires float64 `json:"expires,omitempty"`
}

// Expired reports whether the cookie carries an expiry timestamp in the past.
// Session cookies (expires <= 0) never report expired.
func (c Cookie) Expired(now time.Time) bool {
	return c.Expires > 0 && int64(c.Expires) < now.Unix()
}

// LocalStorageItem is one key/value pair from a captured origin's localStorage.
type LocalStorageItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Origin groups the localStorage snapshot captured for one origin.
type Origin struct {
	Origin       string             `json:"origin"`
	LocalStorage []LocalStorageItem `json:"localStorage"`
}

// Artifact is the parsed session artifact.
type Artifact struct {
	Cookies []Cookie `json:"cookies"`
	Origins []Origin `json:"origins"`
}

// Context is everything needed to address the private API on behalf of one
// session. A Context with an empty CookieHeader or CompanyID means the session
// is unusable and all remote calls must fail closed.
type Context struct {
	CookieHeader string
	CompanyID    string
	Artifact     *Artifact
}

// Usable reports whether the session yields both a cookie header and a
// resolvable company identifier.
func (c Context) Usable() bool {
	return c.CookieHeader != "" && c.CompanyID != ""
}

// Load reads and parses a session artifact. Returns nil on any read or parse
// failure; the failure is logged, never surfaced.
func Load(path string) *Artifact {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("failed to read session artifact", "path", path, "error", err)
		return nil
	}
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		slog.Warn("failed to parse session artifact", "path", path, "error", err)
		return nil
	}
	return &artifact
}

// Resolve loads the artifact at path and derives the request context from it.
// Missing or unparseable artifacts yield an empty (unusable) Context.
func Resolve(path string) Context {
	artifact := Load(path)
	if artifact == nil {
		return Context{}
	}
	ctx := Context{
		CookieHeader: artifact.CookieHeader(),
		CompanyID:    artifact.CompanyID(),
		Artifact:     artifact,
	}
	return ctx
}

// CookieHeader builds a Cookie header value restricted to cookies whose domain
// belongs to the marketplace's domain family.
func (a *Artifact) CookieHeader() string {
	var pairs []string
	for _, cookie := range a.Cookies {
		if cookie.Name == "" || cookie.Value == "" {
			continue
		}
		if !isMarketplaceDomain(cookie.Domain) {
			continue
		}
		pairs = append(pairs, cookie.Name+"="+cookie.Value)
	}
	return strings.Join(pairs, "; ")
}

// CompanyID resolves the seller identity, preferring the identity cookie and
// falling back to scanning local-storage blobs for nested company id fields.
func (a *Artifact) CompanyID() string {
	for _, cookie := range a.Cookies {
		if cookie.Name == companyIDCookie && cookie.Value != "" {
			return cookie.Value
		}
	}
	return a.companyIDFromStorage()
}

// companyIDFromStorage scans every localStorage value that parses as JSON for
// a company identifier. Values are nested user/profile documents whose exact
// shape has changed between portal releases, so the scan is recursive.
func (a *Artifact) companyIDFromStorage() string {
	for _, origin := range a.Origins {
		for _, item := range origin.LocalStorage {
			var blob any
			if err := json.Unmarshal([]byte(item.Value), &blob); err != nil {
				continue
			}
			if id := findCompanyID(blob, 0); id != "" {
				return id
			}
		}
	}
	return ""
}

const maxStorageScanDepth = 6

func findCompanyID(node any, depth int) string {
	if depth > maxStorageScanDepth {
		return ""
	}
	switch value := node.(type) {
	case map[string]any:
		for _, key := range []string{"company_id", "companyId", "sc_company_id", "sellerId", "seller_id"} {
			if raw, ok := value[key]; ok {
				if id := asID(raw); id != "" {
					return id
				}
			}
		}
		for _, child := range value {
			if id := findCompanyID(child, depth+1); id != "" {
				return id
			}
		}
	case []any:
		for _, child := range value {
			if id := findCompanyID(child, depth+1); id != "" {
				return id
			}
		}
	}
	return ""
}

func asID(raw any) string {
	switch value := raw.(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	return ""
}

func isMarketplaceDomain(domain string) bool {
	domain = strings.TrimPrefix(strings.TrimSpace(domain), ".")
	for _, suffix := range marketplaceDomains {
		if domain == suffix || strings.HasSuffix(domain, "."+suffix) {
			return true
		}
	}
	return false
}

// FindLatestHAR locates the most recently modified captured-traffic template
// near the artifact: the artifact's own directory, up to four parent levels,
// and a "data" subfolder of each.
func FindLatestHAR(artifactPath string) string {
	dir := filepath.Dir(artifactPath)
	var newest string
	var newestMod time.Time

	for level := 0; level <= 4; level++ {
		for _, candidate := range []string{dir, filepath.Join(dir, "data")} {
			entries, err := os.ReadDir(candidate)
			if err != nil {
				continue
			}
			for _, entry := range entries {
				if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".har") {
					continue
				}
				info, err := entry.Info()
				if err != nil {
					continue
				}
				if info.ModTime().After(newestMod) {
					newestMod = info.ModTime()
					newest = filepath.Join(candidate, entry.Name())
				}
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return newest
}
