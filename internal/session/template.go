package session

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
)

// DefaultUserAgent is used when no captured template supplies one.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/144.0.0.0 Safari/537.36"

const companyIDHeader = "x-o3-company-id"

// Headers copied from a captured request. Cookie is always excluded: the live
// cookie header comes from the artifact, never from a stale capture.
var allowedHeaderNames = map[string]bool{
	"content-type":    true,
	"origin":          true,
	"referer":         true,
	"user-agent":      true,
	"accept":          true,
	"accept-language": true,
	"cache-control":   true,
	"pragma":          true,
}

var allowedHeaderPrefixes = []string{"sec-", "x-o3-"}

// Template is the usable portion of a captured-traffic request: allow-listed
// headers, the parsed JSON body, and identity hints extracted from either.
type Template struct {
	Headers   map[string]string
	Payload   map[string]any
	CompanyID string
	UserAgent string
}

// harFile mirrors the subset of the HAR format the extractor needs.
type harFile struct {
	Log struct {
		Entries []harEntry `json:"entries"`
	} `json:"log"`
}

type harEntry struct {
	Request struct {
		URL     string      `json:"url"`
		Headers []harHeader `json:"headers"`
		PostData struct {
			Text string `json:"text"`
		} `json:"postData"`
	} `json:"request"`
	Response struct {
		Status  int `json:"status"`
		Content struct {
			Text     string `json:"text"`
			Encoding string `json:"encoding"`
		} `json:"content"`
	} `json:"response"`
}

type harHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LoadTemplate extracts a request template from a HAR capture, using the last
// entry that targeted a URL with the given prefix. Returns nil when the file
// is unreadable or holds no matching entry.
func LoadTemplate(harPath, urlPrefix string) *Template {
	har := readHAR(harPath)
	if har == nil {
		return nil
	}

	var template *Template
	for _, entry := range har.Log.Entries {
		if !strings.HasPrefix(entry.Request.URL, urlPrefix) {
			continue
		}
		template = templateFromEntry(entry)
	}
	return template
}

func readHAR(harPath string) *harFile {
	data, err := os.ReadFile(harPath)
	if err != nil {
		slog.Warn("failed to read HAR template", "path", harPath, "error", err)
		return nil
	}
	var har harFile
	if err := json.Unmarshal(data, &har); err != nil {
		slog.Warn("failed to parse HAR template", "path", harPath, "error", err)
		return nil
	}
	return &har
}

func templateFromEntry(entry harEntry) *Template {
	template := &Template{Headers: make(map[string]string)}

	for _, header := range entry.Request.Headers {
		name := strings.ToLower(strings.TrimSpace(header.Name))
		// HTTP/2 captures prefix pseudo-headers with a colon.
		name = strings.TrimPrefix(name, ":")
		if name == "cookie" || !headerAllowed(name) {
			continue
		}
		template.Headers[name] = header.Value
		if name == "user-agent" {
			template.UserAgent = header.Value
		}
		if name == companyIDHeader && template.CompanyID == "" {
			template.CompanyID = strings.TrimSpace(header.Value)
		}
	}

	if body := entry.Request.PostData.Text; body != "" {
		var payload map[string]any
		if err := json.Unmarshal([]byte(body), &payload); err == nil {
			template.Payload = payload
			if template.CompanyID == "" {
				template.CompanyID = asID(payload["company_id"])
			}
		}
	}
	return template
}

func headerAllowed(name string) bool {
	if allowedHeaderNames[name] {
		return true
	}
	for _, prefix := range allowedHeaderPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// BuildHeaders merges template headers into the fixed request header set.
// Merging is case-insensitive with last write winning; the resolved company id
// and a usable user-agent are always force-set regardless of template content.
// Returns the header map and the resolved user-agent.
func BuildHeaders(companyID string, template *Template) (map[string]string, string) {
	headers := map[string]string{
		"accept":       "application/json, text/plain, */*",
		"content-type": "application/json",
		"origin":       "https://seller.ozon.ru",
		"referer":      "https://seller.ozon.ru/app/reviews",
		"x-o3-language": "ru",
	}

	userAgent := DefaultUserAgent
	if template != nil {
		for name, value := range template.Headers {
			headers[strings.ToLower(name)] = value
		}
		if template.UserAgent != "" {
			userAgent = template.UserAgent
		}
	}

	headers[companyIDHeader] = companyID
	headers["user-agent"] = userAgent
	return headers, userAgent
}

// CompanyType extracts the company_type value from a template payload,
// defaulting to "seller".
func (t *Template) CompanyType() string {
	if t == nil || t.Payload == nil {
		return "seller"
	}
	for _, key := range []string{"company_type", "companyType"} {
		if value, ok := t.Payload[key].(string); ok && value != "" {
			return value
		}
	}
	return "seller"
}

// Filter extracts the filter object from a template payload, if present.
func (t *Template) Filter() map[string]any {
	if t == nil || t.Payload == nil {
		return nil
	}
	if filter, ok := t.Payload["filter"].(map[string]any); ok {
		return filter
	}
	return nil
}

// CollectHARResponses returns the decoded response bodies of every successful
// capture entry targeting a URL with the given prefix. Used to import review
// payloads recorded during a browsing session.
func CollectHARResponses(harPath, urlPrefix string) [][]byte {
	har := readHAR(harPath)
	if har == nil {
		return nil
	}

	var bodies [][]byte
	for _, entry := range har.Log.Entries {
		if !strings.HasPrefix(entry.Request.URL, urlPrefix) {
			continue
		}
		if entry.Response.Status >= 400 {
			continue
		}
		body, ok := decodeHARContent(entry.Response.Content.Text, entry.Response.Content.Encoding)
		if !ok {
			continue
		}
		bodies = append(bodies, body)
	}
	return bodies
}

func decodeHARContent(text, encoding string) ([]byte, bool) {
	if text == "" {
		return nil, false
	}
	if encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			slog.Warn("failed to decode base64 HAR payload", "error", err)
			return nil, false
		}
		return decoded, true
	}
	return []byte(text), true
}
