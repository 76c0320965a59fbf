// Package feedback lets guardians submit suggestions (saran) and
// complaints (keluhan), and lets admins review them.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	apierrors "github.com/kinderlink/kinderlink/internal/app/features/errors"
	feedbackstore "github.com/kinderlink/kinderlink/internal/app/store/feedback"
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
	Store *feedbackstore.Store
	Resp  *apierrors.Responder
	Log   *zap.Logger
}

func NewHandler(store *feedbackstore.Store, resp *apierrors.Responder, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Resp: resp, Log: logger}
}

type createRequest struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

// Create handles POST /api/feedback. The submitting guardian is taken
// from the session, never from the body.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Resp.Error(w, r, apperr.Validation("invalid request body", nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Store.Create(ctx, models.Feedback{
		Parent:  user.ID,
		Content: htmlsanitize.StripTags(req.Content),
		Type:    req.Type,
	})
	if err != nil {
		h.Resp.Error(w, r, apperr.Validation(err.Error(), nil))
		return
	}

	h.Resp.Created(w, "feedback submitted", map[string]any{"feedback": created})
}

// List handles GET /api/feedback. Admins see everything; guardians see
// only their own submissions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var (
		list []models.Feedback
		err  error
	)
	if user.Role == models.RoleAdmin {
		list, err = h.Store.List(ctx)
	} else {
		list, err = h.Store.ListByParent(ctx, user.ID)
	}
	if err != nil {
		h.Resp.Error(w, r, apperr.Internal(err))
		return
	}

	h.Resp.OK(w, "feedback", map[string]any{"feedback": list})
}

// Get handles GET /api/feedback/{id}. Guardians can read their own
// submissions; admins any.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.Resp.Error(w, r, apperr.NotFound("feedback not found"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	fb, err := h.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.Resp.Error(w, r, apperr.NotFound("feedback not found"))
			return
		}
		h.Resp.Error(w, r, apperr.Internal(err))
		return
	}

	if user.Role != models.RoleAdmin && fb.Parent != user.ID {
		// Present absence, not denial, so ids can't be probed.
		h.Resp.Error(w, r, apperr.NotFound("feedback not found"))
		return
	}

	h.Resp.OK(w, "feedback", map[string]any{"feedback": fb})
}

// Delete handles DELETE /api/feedback/{id} (admin).
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.Resp.Error(w, r, apperr.NotFound("feedback not found"))
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
		h.Resp.Error(w, r, apperr.NotFound("feedback not found"))
		return
	}

	h.Resp.OK(w, "feedback deleted", nil)
}
