package ozon

import (
	"github.com/ashureev/reviewpilot/internal/domain"
	"github.com/ashureev/reviewpilot/internal/session"
)

// ImportReviewsFromHAR extracts review records from the listing responses
// recorded in a HAR capture. Useful for seeding the store from a browsing
// session when no live session artifact is available yet.
func ImportReviewsFromHAR(harPath string) []domain.Review {
	bodies := session.CollectHARResponses(harPath, ReviewListURL)

	collected := make(map[string]domain.Review)
	var order []string
	for _, body := range bodies {
		page, err := parseReviewPage(body)
		if err != nil {
			continue
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
	}

	reviews := make([]domain.Review, 0, len(collected))
	for _, uuid := range order {
		reviews = append(reviews, collected[uuid])
	}
	return reviews
}
