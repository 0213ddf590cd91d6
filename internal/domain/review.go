// Package domain contains core domain types for the review auto-reply service.
package domain

import "strings"

// Review lifecycle statuses. A review enters the store as StatusNew and moves
// to StatusCompleted once a reply has been delivered. The transition is one-way:
// a re-fetch of the same uuid must never demote a completed review.
const (
	StatusNew       = "new"
	StatusCompleted = "completed"
)

// BrandInfo identifies the brand a reviewed product belongs to.
type BrandInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Product carries the product metadata attached to a review by the listing API.
type Product struct {
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	OfferID    string    `json:"offer_id"`
	CoverImage string    `json:"cover_image"`
	SKU        string    `json:"sku"`
	BrandInfo  BrandInfo `json:"brand_info"`
}

// Review is one customer review as returned by the seller portal, plus the
// local processing state (status, owning account, generated/final replies).
type Review struct {
	UUID              string  `json:"uuid"`
	Status            string  `json:"status,omitempty"`
	AccountID         int64   `json:"account_id,omitempty"`
	Product           Product `json:"product"`
	OrderDeliveryType string  `json:"orderDeliveryType"`
	Text              string  `json:"text"`
	InteractionStatus string  `json:"interaction_status"`
	Rating            int     `json:"rating"`
	PhotosCount       int     `json:"photos_count"`
	VideosCount       int     `json:"videos_count"`
	CommentsCount     int     `json:"comments_count"`
	PublishedAt       string  `json:"published_at"`
	IsPinned          bool    `json:"is_pinned"`
	IsQualityControl  bool    `json:"is_quality_control"`
	ChatURL           string  `json:"chat_url"`
	IsDeliveryReview  bool    `json:"is_delivery_review"`

	// AIResponse is the generated reply; UserResponse is the text actually sent
	// (auto-send or manual), recorded on transition to StatusCompleted.
	AIResponse   string `json:"ai_response,omitempty"`
	UserResponse string `json:"user_response,omitempty"`
}

// HasText reports whether the review carries any non-whitespace text.
func (r *Review) HasText() bool {
	return strings.TrimSpace(r.Text) != ""
}

// IsCompleted reports whether a reply has already been delivered.
func (r *Review) IsCompleted() bool {
	return r.Status == StatusCompleted
}
