package domain

import "time"

// Example is a curated exemplar reply used to steer generation style. Examples
// are independent of any stored review: the curation surface may copy one from
// a real review or enter one from scratch. The generator consumes them
// read-only, filtered by rating bucket.
type Example struct {
	ID           int64     `json:"id"`
	ProductTitle string    `json:"product_title"`
	Rating       int       `json:"rating"`
	Text         string    `json:"text"`
	Response     string    `json:"response"`
	CreatedAt    time.Time `json:"created_at"`
}
