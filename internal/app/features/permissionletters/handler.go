// Package permissionletters handles absence notices that guardians file
// for their children.
package permissionletters

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	apierrors "github.com/kinderlink/kinderlink/internal/app/features/errors"
	letterstore "github.com/kinderlink/kinderlink/internal/app/store/permissionletters"
	"github.com/kinderlink/kinderlink/internal/app/system/apperr"
	"github.com/kinderlink/kinderlink/internal/app/system/auth"
	"github.com/kinderlink/kinderlink/internal/app/system/htmlsanitize"
	"github.com/kinderlink/kinderlink/internal/app/system/normalize"
	"github.com/kinderlink/kinderlink/internal/app/system/timeouts"
	"github.com/kinderlink/kinderlink/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type Handler struct {
	Store *letterstore.Store
	Resp  *apierrors.Responder
	Log   *zap.Logger
}

func NewHandler(store *letterstore.Store, resp *apierrors.Responder, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Resp: resp, Log: logger}
}

type createRequest struct {
	StudentName string `json:"student_name"`
	Reason      string `json:"reason"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// Create handles POST /api/permission-letters. The filing guardian is
// taken from the session.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Resp.Error(w, r, apperr.Validation("invalid request body", nil))
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		h.Resp.Error(w, r, apperr.Validation("validation failed",
			map[string]string{"start_date": "must be YYYY-MM-DD"}))
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		h.Resp.Error(w, r, apperr.Validation("validation failed",
			map[string]string{"end_date": "must be YYYY-MM-DD"}))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Store.Create(ctx, models.PermissionLetter{
		Parent:      user.ID,
		StudentName: normalize.Name(req.StudentName),
		Reason:      htmlsanitize.StripTags(req.Reason),
		DateRange:   models.DateRange{StartDate: start, EndDate: end},
	})
	if err != nil {
		h.Resp.Error(w, r, apperr.Validation(err.Error(), nil))
		return
	}

	h.Resp.Created(w, "permission letter submitted", map[string]any{"letter": created})
}

// List handles GET /api/permission-letters. Admins see every letter;
// guardians see only their own.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var (
		list []models.PermissionLetter
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

	h.Resp.OK(w, "permission letters", map[string]any{"letters": list})
}

// Get handles GET /api/permission-letters/{id}. Guardians can read
// their own letters; admins any.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.Resp.Error(w, r, apperr.NotFound("permission letter not found"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	letter, err := h.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.Resp.Error(w, r, apperr.NotFound("permission letter not found"))
			return
		}
		h.Resp.Error(w, r, apperr.Internal(err))
		return
	}

	if user.Role != models.RoleAdmin && letter.Parent != user.ID {
		// Present absence, not denial, so ids can't be probed.
		h.Resp.Error(w, r, apperr.NotFound("permission letter not found"))
		return
	}

	h.Resp.OK(w, "permission letter", map[string]any{"letter": letter})
}

// Delete handles DELETE /api/permission-letters/{id} (admin).
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.Resp.Error(w, r, apperr.NotFound("permission letter not found"))
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
		h.Resp.Error(w, r, apperr.NotFound("permission letter not found"))
		return
	}

	h.Resp.OK(w, "permission letter deleted", nil)
}
