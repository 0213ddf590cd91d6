package ozon

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/ashureev/reviewpilot/internal/session"
)

// SendComment posts a finalized reply to the review's comment thread. Returns
// false on any failure: unusable session, auth rejection, transport error, or
// an API-level error field in the response. A 2xx response whose body is
// neither JSON nor HTML is treated as ambiguous success so that endpoints
// returning empty bodies do not produce false negatives.
func (c *Client) SendComment(ctx context.Context, artifactPath, reviewUUID, text string, sendDelay time.Duration) bool {
	if reviewUUID == "" || text == "" {
		return false
	}
	if _, err := os.Stat(artifactPath); err != nil {
		return false
	}
	if c.health.NeedsRelogin(artifactPath) {
		slog.Debug("skipping send, session marked for relogin", "path", artifactPath)
		return false
	}

	sctx := session.Resolve(artifactPath)
	if sctx.Artifact == nil {
		return false
	}

	var template *session.Template
	if harPath := session.FindLatestHAR(artifactPath); harPath != "" {
		template = session.LoadTemplate(harPath, ReviewListURL)
	}

	companyID := sctx.CompanyID
	if companyID == "" && template != nil {
		companyID = template.CompanyID
	}
	// Sending is gated on cookies as well as company id: a cookieless request
	// can only come back as a login page.
	if sctx.CookieHeader == "" || companyID == "" {
		slog.Warn("missing cookies or company id for comment request", "path", artifactPath)
		return false
	}

	headers, _ := session.BuildHeaders(companyID, template)

	payload := map[string]any{
		"company_id":   companyID,
		"company_type": template.CompanyType(),
		"text":         text,
		"review_uuid":  reviewUUID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to encode comment request", "error", err)
		return false
	}

	c.limiter.ThrottleFixed(sendDelay)

	resp, err := c.postJSON(ctx, c.baseCommentURL, headers, sctx.CookieHeader, body)
	if err != nil {
		slog.Warn("comment request failed", "error", err, "uuid", reviewUUID)
		return false
	}

	bodyText := string(resp.body)
	if session.IsAuthFailure(resp.status, resp.contentType, bodyText) {
		c.health.MarkNeedsRelogin(artifactPath, "comment status="+strconv.Itoa(resp.status))
		slog.Warn("comment request auth failure", "status", resp.status, "uuid", reviewUUID)
		return false
	}
	if !resp.ok() {
		slog.Warn("comment request rejected", "status", resp.status, "uuid", reviewUUID, "body", bodyText)
		return false
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(resp.body, &parsed); err != nil {
		// Non-JSON, non-HTML 2xx body: assume the comment went through.
		return true
	}
	if apiErr, failed := hasAPIError(resp.body); failed {
		slog.Warn("comment request returned API error", "error", apiErr, "uuid", reviewUUID)
		return false
	}

	c.health.ClearNeedsRelogin(artifactPath)
	return true
}
