package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/reviewpilot/internal/domain"
	"github.com/ashureev/reviewpilot/internal/store"
	syncpkg "github.com/ashureev/reviewpilot/internal/sync"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPortal struct {
	reviews    []domain.Review
	sendResult bool
	sentUUIDs  []string
}

func (s *stubPortal) FetchNewReviews(_ context.Context, _ string) []domain.Review {
	return s.reviews
}

func (s *stubPortal) SendComment(_ context.Context, _, reviewUUID, _ string, _ time.Duration) bool {
	s.sentUUIDs = append(s.sentUUIDs, reviewUUID)
	return s.sendResult
}

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, review *domain.Review, _ []*domain.Example,
	_ []string, _, _ time.Duration) string {
	return "Спасибо за отзыв!"
}

func newTestAPI(t *testing.T, portal *stubPortal) (http.Handler, store.Repository) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	factory := func(string) syncpkg.ReplyGenerator { return stubGenerator{} }
	orchestrator := syncpkg.NewOrchestrator(repo, portal, factory, "")
	poller := syncpkg.NewPoller(orchestrator, time.Hour)

	router := chi.NewRouter()
	NewHandler(repo, portal, poller).RegisterRoutes(router)
	return router, repo
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAccountEndpoints(t *testing.T) {
	handler, _ := newTestAPI(t, &stubPortal{})

	rec := doJSON(t, handler, http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = doJSON(t, handler, http.MethodPost, "/api/accounts", map[string]string{"name": "main shop"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, "main shop", created.Name)

	rec = doJSON(t, handler, http.MethodPost, "/api/accounts", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sessionPath := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(sessionPath, []byte(`{"cookies":[]}`), 0644))
	rec = doJSON(t, handler, http.MethodPut, "/api/accounts/1/session",
		map[string]string{"session_path": sessionPath})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPut, "/api/accounts/1/session",
		map[string]string{"session_path": filepath.Join(t.TempDir(), "gone.json")})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "session path must exist on disk")

	rec = doJSON(t, handler, http.MethodPut, "/api/accounts/99/session",
		map[string]string{"session_path": sessionPath})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, handler, http.MethodDelete, "/api/accounts/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/accounts", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListReviews(t *testing.T) {
	handler, repo := newTestAPI(t, &stubPortal{})
	ctx := context.Background()

	require.NoError(t, repo.UpsertReview(ctx, &domain.Review{UUID: "r-new", Rating: 5}))
	require.NoError(t, repo.UpsertReview(ctx, &domain.Review{UUID: "r-done", Rating: 4, Status: domain.StatusCompleted}))

	rec := doJSON(t, handler, http.MethodGet, "/api/reviews", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var reviews []domain.Review
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reviews))
	require.Len(t, reviews, 1)
	assert.Equal(t, "r-new", reviews[0].UUID)

	rec = doJSON(t, handler, http.MethodGet, "/api/reviews?status=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reviews))
	require.Len(t, reviews, 1)
	assert.Equal(t, "r-done", reviews[0].UUID)

	rec = doJSON(t, handler, http.MethodGet, "/api/reviews?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendReply(t *testing.T) {
	portal := &stubPortal{sendResult: true}
	handler, repo := newTestAPI(t, portal)
	ctx := context.Background()

	sessionPath := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(sessionPath, []byte(`{"cookies":[]}`), 0644))
	accountID, err := repo.AddAccount(ctx, &domain.Account{
		Name: "shop", SessionPath: sessionPath, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, repo.UpsertReview(ctx, &domain.Review{UUID: "r-1", Rating: 3, AccountID: accountID}))

	rec := doJSON(t, handler, http.MethodPost, "/api/reviews/r-1/reply",
		map[string]string{"text": "Спасибо, учтем!"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"r-1"}, portal.sentUUIDs)

	review, err := repo.GetReview(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, review.Status)
	assert.Equal(t, "Спасибо, учтем!", review.UserResponse)

	rec = doJSON(t, handler, http.MethodPost, "/api/reviews/missing/reply",
		map[string]string{"text": "Привет"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/reviews/r-1/reply",
		map[string]string{"text": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendReplyDeliveryFailure(t *testing.T) {
	portal := &stubPortal{sendResult: false}
	handler, repo := newTestAPI(t, portal)
	ctx := context.Background()

	sessionPath := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(sessionPath, []byte(`{"cookies":[]}`), 0644))
	accountID, err := repo.AddAccount(ctx, &domain.Account{
		Name: "shop", SessionPath: sessionPath, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, repo.UpsertReview(ctx, &domain.Review{UUID: "r-1", Rating: 3, AccountID: accountID}))

	rec := doJSON(t, handler, http.MethodPost, "/api/reviews/r-1/reply",
		map[string]string{"text": "Спасибо!"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	review, err := repo.GetReview(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, review.Status, "failed delivery must not complete the review")
}

func TestSendReplyWithoutSession(t *testing.T) {
	handler, repo := newTestAPI(t, &stubPortal{sendResult: true})
	ctx := context.Background()

	accountID, err := repo.AddAccount(ctx, &domain.Account{Name: "shop", CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, repo.UpsertReview(ctx, &domain.Review{UUID: "r-1", Rating: 3, AccountID: accountID}))

	rec := doJSON(t, handler, http.MethodPost, "/api/reviews/r-1/reply",
		map[string]string{"text": "Спасибо!"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSettingsEndpoints(t *testing.T) {
	handler, _ := newTestAPI(t, &stubPortal{})

	rec := doJSON(t, handler, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var settings domain.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, domain.DefaultMinInterval, settings.MinInterval)
	assert.False(t, settings.AutoSendEnabled)

	update := domain.Settings{
		MinInterval:     30,
		MaxInterval:     10, // below min, must be clamped
		SendInterval:    2,
		AutoSendEnabled: true,
	}
	rec = doJSON(t, handler, http.MethodPut, "/api/settings", update)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, 30, settings.MaxInterval, "max interval clamps up to min")

	rec = doJSON(t, handler, http.MethodGet, "/api/settings", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, 30, settings.MinInterval)
	assert.Equal(t, 30, settings.MaxInterval)
	assert.True(t, settings.AutoSendEnabled)
}

func TestExampleEndpoints(t *testing.T) {
	handler, _ := newTestAPI(t, &stubPortal{})

	rec := doJSON(t, handler, http.MethodPost, "/api/examples", map[string]any{
		"product_title": "Сода пищевая",
		"rating":        5,
		"text":          "Отличный товар",
		"response":      "Спасибо за отзыв!",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var example domain.Example
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &example))
	assert.NotZero(t, example.ID)

	rec = doJSON(t, handler, http.MethodPost, "/api/examples", map[string]any{
		"rating": 9, "text": "x", "response": "y",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/examples", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var examples []domain.Example
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &examples))
	require.Len(t, examples, 1)

	rec = doJSON(t, handler, http.MethodDelete, "/api/examples/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/examples", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestSyncEndpoints(t *testing.T) {
	handler, _ := newTestAPI(t, &stubPortal{})

	rec := doJSON(t, handler, http.MethodGet, "/api/sync/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"in_flight": false}`, rec.Body.String())

	rec = doJSON(t, handler, http.MethodPost, "/api/sync", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestImportHAR(t *testing.T) {
	handler, repo := newTestAPI(t, &stubPortal{})
	ctx := context.Background()

	// r-b is already known and must not be imported twice.
	require.NoError(t, repo.UpsertReview(ctx, &domain.Review{UUID: "r-b", Rating: 3}))

	har := `{
		"log": {"entries": [
			{"request": {"url": "https://seller.ozon.ru/api/v4/review/list"},
			 "response": {"status": 200, "content": {"text": "{\"result\":[{\"uuid\":\"r-a\",\"rating\":5},{\"uuid\":\"r-b\",\"rating\":3}]}"}}}
		]}
	}`
	harPath := filepath.Join(t.TempDir(), "capture.har")
	require.NoError(t, os.WriteFile(harPath, []byte(har), 0644))

	rec := doJSON(t, handler, http.MethodPost, "/api/import/har",
		map[string]any{"path": harPath, "account_id": 7})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"imported": 1}`, rec.Body.String())

	imported, err := repo.GetReview(ctx, "r-a")
	require.NoError(t, err)
	require.NotNil(t, imported)
	assert.Equal(t, domain.StatusNew, imported.Status)
	assert.Equal(t, int64(7), imported.AccountID)

	rec = doJSON(t, handler, http.MethodPost, "/api/import/har",
		map[string]any{"path": filepath.Join(t.TempDir(), "gone.har")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
