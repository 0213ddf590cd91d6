package ozon

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/ashureev/reviewpilot/internal/domain"
	"github.com/ashureev/reviewpilot/internal/session"
)

// maxPages is a runaway-protection ceiling, not an expected terminal
// condition: pagination normally stops on hasNext=false or an empty page.
const maxPages = 100

// defaultFilter is the fixed base filter for unread reviews with no date
// bound, used unless a captured template supplies its own.
func defaultFilter() map[string]any {
	return map[string]any{
		"published_at":       map[string]any{},
		"interaction_status": []string{"NOT_VIEWED"},
	}
}

// FetchNewReviews discovers all unread reviews for the session, accumulating
// unique records across pages. Returns the partial result collected so far
// when pagination is cut short by an auth or transport failure; returns an
// empty set without any network call when the session is unusable or already
// marked for relogin.
func (c *Client) FetchNewReviews(ctx context.Context, artifactPath string) []domain.Review {
	if _, err := os.Stat(artifactPath); err != nil {
		return nil
	}
	if c.health.NeedsRelogin(artifactPath) {
		slog.Debug("skipping fetch, session marked for relogin", "path", artifactPath)
		return nil
	}

	sctx := session.Resolve(artifactPath)
	if sctx.Artifact == nil {
		return nil
	}
	if sctx.Artifact.LooksStale(time.Now()) {
		c.health.MarkNeedsRelogin(artifactPath, "auth cookie missing or expired")
		return nil
	}

	// The template fills header/payload gaps when cookies alone are not
	// enough context, e.g. when the company id never made it into a cookie.
	var template *session.Template
	if harPath := session.FindLatestHAR(artifactPath); harPath != "" {
		template = session.LoadTemplate(harPath, ReviewListURL)
	}

	companyID := sctx.CompanyID
	if companyID == "" && template != nil {
		companyID = template.CompanyID
	}
	if sctx.CookieHeader == "" || companyID == "" {
		slog.Warn("missing cookies or company id", "path", artifactPath)
		return nil
	}

	headers, _ := session.BuildHeaders(companyID, template)
	filter := template.Filter()
	if filter == nil {
		filter = defaultFilter()
	}

	collected := make(map[string]domain.Review)
	var order []string
	var lastReview json.RawMessage

	for pageNum := 0; pageNum < maxPages; pageNum++ {
		page := c.fetchPage(ctx, artifactPath, headers, sctx.CookieHeader,
			companyID, template.CompanyType(), filter, lastReview)
		if page == nil {
			break
		}

		for _, review := range page.Reviews {
			if review.UUID == "" {
				continue
			}
			if _, seen := collected[review.UUID]; !seen {
				order = append(order, review.UUID)
			}
			collected[review.UUID] = review
		}

		if len(page.Reviews) == 0 || !page.HasNext || len(page.LastReview) == 0 {
			break
		}
		lastReview = page.LastReview
	}

	reviews := make([]domain.Review, 0, len(collected))
	for _, uuid := range order {
		reviews = append(reviews, collected[uuid])
	}
	return reviews
}

// fetchPage issues one listing call. A nil return ends pagination; collected
// reviews from earlier pages remain the partial result.
func (c *Client) fetchPage(ctx context.Context, artifactPath string,
	headers map[string]string, cookieHeader, companyID, companyType string,
	filter map[string]any, lastReview json.RawMessage) *reviewPage {

	payload := map[string]any{
		"company_id":   companyID,
		"company_type": companyType,
		"filter":       filter,
	}
	if len(lastReview) > 0 {
		payload["last_review"] = lastReview
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to encode listing request", "error", err)
		return nil
	}

	resp, err := c.postJSON(ctx, c.baseListURL, headers, cookieHeader, body)
	if err != nil {
		slog.Warn("review listing request failed", "error", err)
		return nil
	}

	if session.IsAuthFailure(resp.status, resp.contentType, string(resp.body)) {
		c.health.MarkNeedsRelogin(artifactPath, "review_list status="+strconv.Itoa(resp.status))
		slog.Warn("review listing auth failure", "status", resp.status, "path", artifactPath)
		return nil
	}
	if !resp.ok() {
		slog.Warn("review listing returned error status", "status", resp.status)
		return nil
	}

	page, err := parseReviewPage(resp.body)
	if err != nil {
		slog.Warn("review listing payload not understood", "error", err)
		return nil
	}

	// A parseable non-error JSON response confirms the session is healthy.
	c.health.ClearNeedsRelogin(artifactPath)
	return page
}
