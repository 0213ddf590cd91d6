// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/reviewpilot/internal/domain"
)

// Repository defines the interface for persisting settings, accounts, reviews
// and curated reply examples.
type Repository interface {
	// GetSetting retrieves a single setting value. Returns "" if unset.
	GetSetting(ctx context.Context, key string) (string, error)

	// SetSetting creates or updates a setting value.
	SetSetting(ctx context.Context, key, value string) error

	// GetSettings retrieves all settings as a key/value map.
	GetSettings(ctx context.Context) (map[string]string, error)

	// ListAccounts retrieves all configured seller accounts ordered by id.
	ListAccounts(ctx context.Context) ([]*domain.Account, error)

	// GetAccount retrieves one account by id. Returns nil if not found.
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)

	// AddAccount creates an account and returns its assigned id.
	AddAccount(ctx context.Context, account *domain.Account) (int64, error)

	// DeleteAccount removes an account. Reviews already ingested stay.
	DeleteAccount(ctx context.Context, id int64) error

	// UpdateAccountSession replaces the session artifact path for an account.
	UpdateAccountSession(ctx context.Context, id int64, sessionPath string) error

	// ListReviewUUIDs returns the identifiers of all persisted reviews. The
	// sync cycle loads this once per pass as its cross-cycle dedup memory.
	ListReviewUUIDs(ctx context.Context) (map[string]struct{}, error)

	// UpsertReview inserts or updates a review. A review whose stored status
	// is already "completed" never regresses to "new" on conflict.
	UpsertReview(ctx context.Context, review *domain.Review) error

	// GetReview retrieves one review by uuid. Returns nil if not found.
	GetReview(ctx context.Context, uuid string) (*domain.Review, error)

	// ListReviews retrieves reviews with the given status, newest first.
	ListReviews(ctx context.Context, status string) ([]*domain.Review, error)

	// UpdateReviewStatus sets the status and final reply text for a review.
	UpdateReviewStatus(ctx context.Context, uuid, status, response string) error

	// ListExamples retrieves all curated examples, newest first.
	ListExamples(ctx context.Context) ([]*domain.Example, error)

	// ListExamplesForRating retrieves up to limit examples with the given
	// rating, newest first.
	ListExamplesForRating(ctx context.Context, rating, limit int) ([]*domain.Example, error)

	// SaveExample inserts (id==0) or updates a curated example and returns its id.
	SaveExample(ctx context.Context, example *domain.Example) (int64, error)

	// DeleteExample removes a curated example.
	DeleteExample(ctx context.Context, id int64) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
