package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/loyaltyops/notify-dispatch/internal/dispatch"
	"github.com/loyaltyops/notify-dispatch/internal/model"
	"github.com/loyaltyops/notify-dispatch/internal/repo"
	"github.com/loyaltyops/notify-dispatch/internal/resolver"
	"github.com/loyaltyops/notify-dispatch/internal/template"
)

// DispatchService is the slice of the dispatcher the HTTP layer needs.
type DispatchService interface {
	TriggerByEvent(ctx context.Context, eventKey string, userID int64, data template.Data) ([]model.DeliveryOutcome, error)
	SendManual(ctx context.Context, userID, templateID int64, data template.Data) ([]model.DeliveryOutcome, error)
	SendCampaign(ctx context.Context, userIDs []int64, templateID int64, data template.Data) ([]dispatch.CampaignResult, error)
}

// WorkerControl starts and stops the background campaign worker.
type WorkerControl interface {
	Start() bool
	Stop() bool
	IsRunning() bool
}

type Handler struct {
	dispatch   DispatchService
	worker     WorkerControl
	deliveries repo.DeliveryLogRepository
	jobs       repo.CampaignJobRepository
}

func NewHandler(d DispatchService, w WorkerControl, deliveries repo.DeliveryLogRepository, jobs repo.CampaignJobRepository) *Handler {
	return &Handler{dispatch: d, worker: w, deliveries: deliveries, jobs: jobs}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type triggerRequest struct {
	EventKey string        `json:"eventKey"`
	UserID   int64         `json:"userId"`
	Data     template.Data `json:"data"`
}

// TriggerEvent fires the event path by hand, mostly for integrations that
// have no broker. An event with no active binding still returns 200 with an
// empty outcome list.
func (h *Handler) TriggerEvent(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.EventKey == "" {
		http.Error(w, "eventKey is required", http.StatusBadRequest)
		return
	}
	if req.UserID <= 0 {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	outcomes, err := h.dispatch.TriggerByEvent(r.Context(), req.EventKey, req.UserID, req.Data)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": emptyIfNil(outcomes)})
}

type manualSendRequest struct {
	UserID     int64         `json:"userId"`
	TemplateID int64         `json:"templateId"`
	Data       template.Data `json:"data"`
}

func (h *Handler) SendManual(w http.ResponseWriter, r *http.Request) {
	var req manualSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.UserID <= 0 {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	if req.TemplateID <= 0 {
		http.Error(w, "templateId is required", http.StatusBadRequest)
		return
	}

	outcomes, err := h.dispatch.SendManual(r.Context(), req.UserID, req.TemplateID, req.Data)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": emptyIfNil(outcomes)})
}

type campaignSendRequest struct {
	UserIDs    []int64       `json:"userIds"`
	TemplateID int64         `json:"templateId"`
	Data       template.Data `json:"data"`
}

func (h *Handler) SendCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if len(req.UserIDs) == 0 {
		http.Error(w, "userIds must not be empty", http.StatusBadRequest)
		return
	}
	if req.TemplateID <= 0 {
		http.Error(w, "templateId is required", http.StatusBadRequest)
		return
	}

	report, err := h.dispatch.SendCampaign(r.Context(), req.UserIDs, req.TemplateID, req.Data)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

type scheduleCampaignRequest struct {
	UserIDs     []int64       `json:"userIds"`
	TemplateID  int64         `json:"templateId"`
	Data        template.Data `json:"data"`
	ScheduledAt string        `json:"scheduledAt"`
}

// ScheduleCampaign enqueues a campaign job for the background worker instead
// of sending inline.
func (h *Handler) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	var req scheduleCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if len(req.UserIDs) == 0 {
		http.Error(w, "userIds must not be empty", http.StatusBadRequest)
		return
	}
	if req.TemplateID <= 0 {
		http.Error(w, "templateId is required", http.StatusBadRequest)
		return
	}

	scheduledAt := time.Now().UTC()
	if req.ScheduledAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			http.Error(w, "scheduledAt must be RFC 3339", http.StatusBadRequest)
			return
		}
		scheduledAt = parsed
	}

	job := &model.CampaignJob{
		TemplateID:  req.TemplateID,
		UserIDs:     req.UserIDs,
		Data:        req.Data,
		Status:      model.CampaignPending,
		ScheduledAt: scheduledAt,
	}
	if err := h.jobs.Insert(r.Context(), job); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          job.ID,
		"status":      job.Status,
		"scheduledAt": job.ScheduledAt.Format(time.RFC3339),
	})
}

func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.deliveries.ListRecent(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) WorkerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.worker.IsRunning()})
}

func (h *Handler) WorkerStart(w http.ResponseWriter, r *http.Request) {
	h.worker.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.worker.IsRunning()})
}

func (h *Handler) WorkerStop(w http.ResponseWriter, r *http.Request) {
	h.worker.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.worker.IsRunning()})
}

// writeDispatchError maps resolution failures onto status codes. Everything
// else is a storage or internal fault.
func writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resolver.ErrTemplateNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, resolver.ErrTriggerTypeMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func emptyIfNil(outcomes []model.DeliveryOutcome) []model.DeliveryOutcome {
	if outcomes == nil {
		return []model.DeliveryOutcome{}
	}
	return outcomes
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
