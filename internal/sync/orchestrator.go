// Package sync drives the review synchronization pipeline: fetch new reviews
// for every configured account, generate replies, persist, and optionally
// auto-send. One Orchestrator cycle is the unit of work the Poller schedules.
package sync

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/ashureev/reviewpilot/internal/domain"
	"github.com/ashureev/reviewpilot/internal/shared"
	"github.com/ashureev/reviewpilot/internal/store"
)

// ReviewPortal is the marketplace surface the orchestrator drives.
type ReviewPortal interface {
	FetchNewReviews(ctx context.Context, artifactPath string) []domain.Review
	SendComment(ctx context.Context, artifactPath, reviewUUID, text string, sendDelay time.Duration) bool
}

// ReplyGenerator produces reply text for one review.
type ReplyGenerator interface {
	Generate(ctx context.Context, review *domain.Review, examples []*domain.Example,
		avoid []string, minDelay, maxDelay time.Duration) string
}

// GeneratorFactory builds a ReplyGenerator for the credential configured at
// cycle time. An empty credential must still yield a generator (it will serve
// the deterministic fallback).
type GeneratorFactory func(apiKey string) ReplyGenerator

// Orchestrator runs one full synchronization cycle across all accounts.
type Orchestrator struct {
	repo         store.Repository
	portal       ReviewPortal
	newGenerator GeneratorFactory

	// envAPIKey, when set, overrides the persisted generation credential.
	envAPIKey string
}

// NewOrchestrator wires the sync pipeline.
func NewOrchestrator(repo store.Repository, portal ReviewPortal, factory GeneratorFactory, envAPIKey string) *Orchestrator {
	return &Orchestrator{
		repo:         repo,
		portal:       portal,
		newGenerator: factory,
		envAPIKey:    envAPIKey,
	}
}

// avoidListLimit caps how many recent replies are carried in the
// anti-repetition avoid-list within one cycle.
const avoidListLimit = 20

// RunCycle performs one pass: for every account with a session artifact,
// fetch unread reviews, generate replies for unknown ones, persist them as
// new, and auto-send when enabled. Any single account's failure is contained;
// remaining accounts still run. Returns the number of newly ingested reviews.
func (o *Orchestrator) RunCycle(ctx context.Context) (int, error) {
	settingsMap, err := o.repo.GetSettings(ctx)
	if err != nil {
		return 0, err
	}
	settings := domain.SettingsFromMap(settingsMap)

	apiKey := o.envAPIKey
	if apiKey == "" {
		apiKey = settings.OpenAIAPIKey
	}
	generator := o.newGenerator(apiKey)

	accounts, err := o.repo.ListAccounts(ctx)
	if err != nil {
		return 0, err
	}
	if len(accounts) == 0 {
		return 0, nil
	}

	known, err := o.repo.ListReviewUUIDs(ctx)
	if err != nil {
		return 0, err
	}

	minDelay := time.Duration(settings.MinInterval) * time.Second
	maxDelay := time.Duration(settings.MaxInterval) * time.Second
	sendDelay := time.Duration(settings.SendInterval) * time.Second

	newCount := 0
	var recentReplies []string

	for _, account := range accounts {
		if !account.HasSession() {
			continue
		}
		if _, err := os.Stat(account.SessionPath); err != nil {
			slog.Warn("session artifact missing, skipping account",
				"account", account.Name, "path", account.SessionPath)
			continue
		}

		reviews := o.portal.FetchNewReviews(ctx, account.SessionPath)
		for i := range reviews {
			review := &reviews[i]
			if review.UUID == "" {
				continue
			}
			if _, seen := known[review.UUID]; seen {
				continue
			}

			// A reply may arrive pre-populated on the wire record; reuse it.
			if review.AIResponse == "" {
				examples, err := o.repo.ListExamplesForRating(ctx, review.Rating, 3)
				if err != nil {
					slog.Warn("failed to load reply examples", "error", err)
				}
				review.AIResponse = generator.Generate(ctx, review, examples,
					recentReplies, minDelay, maxDelay)
			}
			if review.AIResponse != "" {
				recentReplies = appendRecent(recentReplies, review.AIResponse)
			}

			review.Status = domain.StatusNew
			review.AccountID = account.ID
			if err := upsertReviewWithRetry(ctx, o.repo, review); err != nil {
				slog.Error("failed to persist review", "error", err, "uuid", review.UUID)
				continue
			}
			known[review.UUID] = struct{}{}
			newCount++

			// Empty reply means generation exhausted its attempts: leave the
			// review for manual handling.
			if settings.AutoSendEnabled && review.Rating >= 4 && review.AIResponse != "" {
				sent := o.portal.SendComment(ctx, account.SessionPath,
					review.UUID, review.AIResponse, sendDelay)
				if sent {
					if err := o.repo.UpdateReviewStatus(ctx, review.UUID,
						domain.StatusCompleted, review.AIResponse); err != nil {
						slog.Error("failed to mark review completed", "error", err, "uuid", review.UUID)
					}
				} else {
					slog.Warn("auto-send failed, review left for manual reply", "uuid", review.UUID)
				}
			}
		}
	}

	return newCount, nil
}

func appendRecent(replies []string, reply string) []string {
	replies = append(replies, reply)
	if len(replies) > avoidListLimit {
		replies = replies[len(replies)-avoidListLimit:]
	}
	return replies
}

// upsertReviewWithRetry retries the persist with exponential backoff when
// SQLite reports a concurrency conflict (a manual send may be writing the
// same row from another worker).
func upsertReviewWithRetry(ctx context.Context, repo store.Repository, review *domain.Review) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = repo.UpsertReview(ctx, review)
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			return err
		}
		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("review upsert hit a locked database, retrying",
			"uuid", review.UUID, "attempt", i+1, "delay", delay)
		time.Sleep(delay)
	}
	return err
}
