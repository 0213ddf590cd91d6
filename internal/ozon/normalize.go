package ozon

import (
	"encoding/json"
	"fmt"

	"github.com/ashureev/reviewpilot/internal/domain"
)

// reviewPage is the normalized form of one review-listing response.
type reviewPage struct {
	Reviews    []domain.Review
	HasNext    bool
	LastReview json.RawMessage
}

// parseReviewPage normalizes the historical response shapes of the listing
// endpoint. Matchers are tried in a fixed order:
//
//  1. "result" holding a flat review list
//  2. "result" holding an object with "reviews" or "items"
//  3. a top-level "reviews" list
//
// The pagination flag is accepted as hasNext or has_next at either the top
// level or inside the result object.
func parseReviewPage(data []byte) (*reviewPage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("parse listing response: %w", err)
	}

	page := &reviewPage{
		HasNext:    parseHasNext(top),
		LastReview: top["last_review"],
	}

	if raw, ok := top["result"]; ok {
		if reviews, ok := parseReviewList(raw); ok {
			page.Reviews = reviews
			return page, nil
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err == nil {
			for _, key := range []string{"reviews", "items"} {
				if reviews, ok := parseReviewList(nested[key]); ok {
					page.Reviews = reviews
					if !page.HasNext {
						page.HasNext = parseHasNext(nested)
					}
					if page.LastReview == nil {
						page.LastReview = nested["last_review"]
					}
					return page, nil
				}
			}
		}
	}

	if reviews, ok := parseReviewList(top["reviews"]); ok {
		page.Reviews = reviews
		return page, nil
	}

	return nil, fmt.Errorf("listing response matched no known shape")
}

func parseReviewList(raw json.RawMessage) ([]domain.Review, bool) {
	if raw == nil {
		return nil, false
	}
	var reviews []domain.Review
	if err := json.Unmarshal(raw, &reviews); err != nil {
		return nil, false
	}
	return reviews, true
}

func parseHasNext(fields map[string]json.RawMessage) bool {
	for _, key := range []string{"hasNext", "has_next"} {
		if raw, ok := fields[key]; ok {
			var hasNext bool
			if err := json.Unmarshal(raw, &hasNext); err == nil {
				return hasNext
			}
		}
	}
	return false
}

// hasAPIError reports whether a parsed JSON body carries a non-empty
// API-level error field.
func hasAPIError(body []byte) (string, bool) {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false
	}
	raw, ok := parsed["error"]
	if !ok {
		return "", false
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return "", false
		}
		return asString, true
	}
	var asNull any
	if err := json.Unmarshal(raw, &asNull); err == nil && asNull == nil {
		return "", false
	}
	return string(raw), true
}
