// Package schedules exposes the daily activity timetable.
package schedules

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	apierrors "github.com/kinderlink/kinderlink/internal/app/features/errors"
	schedulestore "github.com/kinderlink/kinderlink/internal/app/store/schedules"
	"github.com/kinderlink/kinderlink/internal/app/system/apperr"
	"github.com/kinderlink/kinderlink/internal/app/system/timeouts"
	"github.com/kinderlink/kinderlink/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Store *schedulestore.Store
	Resp  *apierrors.Responder
	Log   *zap.Logger
}

func NewHandler(store *schedulestore.Store, resp *apierrors.Responder, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Resp: resp, Log: logger}
}

// List handles GET /api/schedules.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Store.List(ctx)
	if err != nil {
		h.Resp.Error(w, r, apperr.Internal(err))
		return
	}
	h.Resp.OK(w, "schedules", map[string]any{"schedules": list})
}

// Get handles GET /api/schedules/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.Resp.Error(w, r, apperr.NotFound("schedule not found"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	sch, err := h.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.Resp.Error(w, r, apperr.NotFound("schedule not found"))
			return
		}
		h.Resp.Error(w, r, apperr.Internal(err))
		return
	}
	h.Resp.OK(w, "schedule", map[string]any{"schedule": sch})
}

type writeRequest struct {
	Day      string                    `json:"day"`
	Date     string                    `json:"date"`
	Activity []models.ScheduleActivity `json:"activity"`
}

// Create handles POST /api/schedules (admin).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Resp.Error(w, r, apperr.Validation("invalid request body", nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Store.Create(ctx, models.Schedule{
		Day:      req.Day,
		Date:     req.Date,
		Activity: req.Activity,
	})
	if err != nil {
		h.Resp.Error(w, r, apperr.Validation(err.Error(), nil))
		return
	}

	h.Resp.Created(w, "schedule created", map[string]any{"schedule": created})
}

// Update handles PUT /api/schedules/{id} (admin).
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.Resp.Error(w, r, apperr.NotFound("schedule not found"))
		return
	}

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Resp.Error(w, r, apperr.Validation("invalid request body", nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	updated, err := h.Store.Update(ctx, id, models.Schedule{
		Day:      req.Day,
		Date:     req.Date,
		Activity: req.Activity,
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.Resp.Error(w, r, apperr.NotFound("schedule not found"))
			return
		}
		h.Resp.Error(w, r, apperr.Validation(err.Error(), nil))
		return
	}

	h.Resp.OK(w, "schedule updated", map[string]any{"schedule": updated})
}

// Delete handles DELETE /api/schedules/{id} (admin).
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.Resp.Error(w, r, apperr.NotFound("schedule not found"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	count, err := h.Store.Delete(ctx, id)
	if err != nil {
		h.Resp.Error(w, r, apperr.Internal(err))
		return
	}
	if count == 0 {
		h.Resp.Error(w, r, apperr.NotFound("schedule not found"))
		return
	}

	h.Resp.OK(w, "schedule deleted", nil)
}
