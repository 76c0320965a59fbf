// Package announcements serves the school-wide notice board. Admins
// write; everyone signed in reads.
package announcements

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	apierrors "github.com/kinderlink/kinderlink/internal/app/features/errors"
	announcementstore "github.com/kinderlink/kinderlink/internal/app/store/announcements"
	"github.com/kinderlink/kinderlink/internal/app/system/apperr"
	"github.com/kinderlink/kinderlink/internal/app/system/auth"
	"github.com/kinderlink/kinderlink/internal/app/system/htmlsanitize"
	"github.com/kinderlink/kinderlink/internal/app/system/timeouts"
	"github.com/kinderlink/kinderlink/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Store *announcementstore.Store
	Resp  *apierrors.Responder
	Log   *zap.Logger
}

func NewHandler(store *announcementstore.Store, resp *apierrors.Responder, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Resp: resp, Log: logger}
}

// List handles GET /api/announcements.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Store.List(ctx)
	if err != nil {
		h.Resp.Error(w, r, apperr.Internal(err))
		return
	}
	h.Resp.OK(w, "announcements", map[string]any{"announcements": list})
}

// Get handles GET /api/announcements/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.Resp.Error(w, r, apperr.NotFound("announcement not found"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ann, err := h.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.Resp.Error(w, r, apperr.NotFound("announcement not found"))
			return
		}
		h.Resp.Error(w, r, apperr.Internal(err))
		return
	}
	h.Resp.OK(w, "announcement", map[string]any{"announcement": ann})
}

type writeRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Create handles POST /api/announcements (admin). Content may carry
// formatting; it is sanitized before storage.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Resp.Error(w, r, apperr.Validation("invalid request body", nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Store.Create(ctx, models.Announcement{
		Title:   htmlsanitize.StripTags(req.Title),
		Content: htmlsanitize.Sanitize(req.Content),
		SentBy:  &user.ID,
	})
	if err != nil {
		h.Resp.Error(w, r, apperr.Validation(err.Error(), nil))
		return
	}

	h.Resp.Created(w, "announcement created", map[string]any{"announcement": created})
}

// Update handles PUT /api/announcements/{id} (admin).
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.Resp.Error(w, r, apperr.NotFound("announcement not found"))
		return
	}

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Resp.Error(w, r, apperr.Validation("invalid request body", nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	updated, err := h.Store.Update(ctx, id,
		htmlsanitize.StripTags(req.Title),
		htmlsanitize.Sanitize(req.Content))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.Resp.Error(w, r, apperr.NotFound("announcement not found"))
			return
		}
		h.Resp.Error(w, r, apperr.Internal(err))
		return
	}

	h.Resp.OK(w, "announcement updated", map[string]any{"announcement": updated})
}

// Delete handles DELETE /api/announcements/{id} (admin).
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.Resp.Error(w, r, apperr.NotFound("announcement not found"))
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
		h.Resp.Error(w, r, apperr.NotFound("announcement not found"))
		return
	}

	h.Resp.OK(w, "announcement deleted", nil)
}
