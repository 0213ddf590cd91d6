// Package api provides the HTTP control surface for the review auto-reply
// service: accounts, reviews, settings, curated examples, and sync control.
// It is the external presentation layer's only way into the pipeline.
package api

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ashureev/reviewpilot/internal/domain"
	"github.com/ashureev/reviewpilot/internal/ozon"
	"github.com/ashureev/reviewpilot/internal/store"
	syncpkg "github.com/ashureev/reviewpilot/internal/sync"
	"github.com/go-chi/chi/v5"
)

// Handler serves the control API.
type Handler struct {
	repo   store.Repository
	portal syncpkg.ReviewPortal
	poller *syncpkg.Poller
}

// NewHandler creates a Handler with its dependencies.
func NewHandler(repo store.Repository, portal syncpkg.ReviewPortal, poller *syncpkg.Poller) *Handler {
	return &Handler{repo: repo, portal: portal, poller: poller}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RegisterRoutes mounts all control API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/accounts", h.listAccounts)
		r.Post("/accounts", h.addAccount)
		r.Delete("/accounts/{id}", h.deleteAccount)
		r.Put("/accounts/{id}/session", h.updateAccountSession)

		r.Get("/reviews", h.listReviews)
		r.Post("/reviews/{uuid}/reply", h.sendReply)

		r.Get("/settings", h.getSettings)
		r.Put("/settings", h.updateSettings)

		r.Get("/examples", h.listExamples)
		r.Post("/examples", h.saveExample)
		r.Delete("/examples/{id}", h.deleteExample)

		r.Post("/sync", h.triggerSync)
		r.Get("/sync/status", h.syncStatus)

		r.Post("/import/har", h.importHAR)
	})
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.repo.ListAccounts(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}
	if accounts == nil {
		accounts = []*domain.Account{}
	}
	JSON(w, http.StatusOK, accounts)
}

type addAccountRequest struct {
	Name        string `json:"name"`
	SessionPath string `json:"session_path"`
}

func (h *Handler) addAccount(w http.ResponseWriter, r *http.Request) {
	var req addAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}

	account := &domain.Account{
		Name:        req.Name,
		SessionPath: req.SessionPath,
		CreatedAt:   time.Now(),
	}
	id, err := h.repo.AddAccount(r.Context(), account)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to add account")
		return
	}
	account.ID = id
	JSON(w, http.StatusCreated, account)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid account id")
		return
	}
	if err := h.repo.DeleteAccount(r.Context(), id); err != nil {
		Error(w, http.StatusInternalServerError, "failed to delete account")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type updateSessionRequest struct {
	SessionPath string `json:"session_path"`
}

func (h *Handler) updateAccountSession(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid account id")
		return
	}
	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionPath == "" {
		Error(w, http.StatusBadRequest, "session_path is required")
		return
	}
	if _, err := os.Stat(req.SessionPath); err != nil {
		Error(w, http.StatusBadRequest, "session artifact not found at path")
		return
	}
	if err := h.repo.UpdateAccountSession(r.Context(), id, req.SessionPath); err != nil {
		Error(w, http.StatusNotFound, "account not found")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = domain.StatusNew
	}
	if status != domain.StatusNew && status != domain.StatusCompleted {
		Error(w, http.StatusBadRequest, "status must be new or completed")
		return
	}

	reviews, err := h.repo.ListReviews(r.Context(), status)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}
	if reviews == nil {
		reviews = []*domain.Review{}
	}
	JSON(w, http.StatusOK, reviews)
}

type sendReplyRequest struct {
	Text string `json:"text"`
}

// sendReply delivers a manually approved reply. Each request runs on its own
// handler goroutine and serializes against scheduled sends only through the
// shared marketplace rate-limit gate.
func (h *Handler) sendReply(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")

	var req sendReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	review, err := h.repo.GetReview(r.Context(), uuid)
	if err != nil || review == nil {
		Error(w, http.StatusNotFound, "review not found")
		return
	}
	account, err := h.repo.GetAccount(r.Context(), review.AccountID)
	if err != nil || account == nil || !account.HasSession() {
		Error(w, http.StatusConflict, "review has no account with a session artifact")
		return
	}

	settingsMap, err := h.repo.GetSettings(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	settings := domain.SettingsFromMap(settingsMap)
	sendDelay := time.Duration(settings.SendInterval) * time.Second

	sent := h.portal.SendComment(r.Context(), account.SessionPath, uuid, req.Text, sendDelay)
	if !sent {
		Error(w, http.StatusBadGateway, "failed to deliver reply")
		return
	}

	if err := h.repo.UpdateReviewStatus(r.Context(), uuid, domain.StatusCompleted, req.Text); err != nil {
		Error(w, http.StatusInternalServerError, "reply sent but status update failed")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"sent": true})
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settingsMap, err := h.repo.GetSettings(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	JSON(w, http.StatusOK, domain.SettingsFromMap(settingsMap))
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	settings.Clamp()

	for key, value := range settings.ToMap() {
		if err := h.repo.SetSetting(r.Context(), key, value); err != nil {
			Error(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}
	JSON(w, http.StatusOK, settings)
}

func (h *Handler) listExamples(w http.ResponseWriter, r *http.Request) {
	examples, err := h.repo.ListExamples(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list examples")
		return
	}
	if examples == nil {
		examples = []*domain.Example{}
	}
	JSON(w, http.StatusOK, examples)
}

func (h *Handler) saveExample(w http.ResponseWriter, r *http.Request) {
	var example domain.Example
	if err := json.NewDecoder(r.Body).Decode(&example); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if example.Rating < 1 || example.Rating > 5 {
		Error(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}
	if example.CreatedAt.IsZero() {
		example.CreatedAt = time.Now()
	}

	id, err := h.repo.SaveExample(r.Context(), &example)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to save example")
		return
	}
	example.ID = id
	JSON(w, http.StatusOK, example)
}

func (h *Handler) deleteExample(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid example id")
		return
	}
	if err := h.repo.DeleteExample(r.Context(), id); err != nil {
		Error(w, http.StatusInternalServerError, "failed to delete example")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	if !h.poller.Trigger(r.Context()) {
		Error(w, http.StatusConflict, "a sync cycle is already running")
		return
	}
	JSON(w, http.StatusAccepted, map[string]bool{"started": true})
}

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]bool{"in_flight": h.poller.InFlight()})
}

type importHARRequest struct {
	Path      string `json:"path"`
	AccountID int64  `json:"account_id"`
}

// importHAR seeds the store from review payloads recorded in a HAR capture.
func (h *Handler) importHAR(w http.ResponseWriter, r *http.Request) {
	var req importHARRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		Error(w, http.StatusBadRequest, "path is required")
		return
	}
	if _, err := os.Stat(req.Path); err != nil {
		Error(w, http.StatusBadRequest, "HAR file not found at path")
		return
	}

	known, err := h.repo.ListReviewUUIDs(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load known reviews")
		return
	}

	imported := 0
	for _, review := range ozon.ImportReviewsFromHAR(req.Path) {
		if _, seen := known[review.UUID]; seen {
			continue
		}
		review.Status = domain.StatusNew
		review.AccountID = req.AccountID
		if err := h.repo.UpsertReview(r.Context(), &review); err != nil {
			Error(w, http.StatusInternalServerError, "failed to persist imported review")
			return
		}
		imported++
	}
	JSON(w, http.StatusOK, map[string]int{"imported": imported})
}
