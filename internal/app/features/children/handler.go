// Package children serves child enrollment and the guardian's roster
// view. Enrollment mints the invitation code that later authorizes
// account linking.
package children

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	apierrors "github.com/kinderlink/kinderlink/internal/app/features/errors"
	childstore "github.com/kinderlink/kinderlink/internal/app/store/children"
	userstore "github.com/kinderlink/kinderlink/internal/app/store/users"
	"github.com/kinderlink/kinderlink/internal/app/system/apperr"
	"github.com/kinderlink/kinderlink/internal/app/system/auth"
	"github.com/kinderlink/kinderlink/internal/app/system/invite"
	"github.com/kinderlink/kinderlink/internal/app/system/timeouts"
	"github.com/kinderlink/kinderlink/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// How many times enrollment retries when the unique index catches a
// code collision the pre-check missed.
const createRetries = 3

type Handler struct {
	Children *childstore.Store
	Users    *userstore.Store
	Resp     *apierrors.Responder
	Log      *zap.Logger
}

func NewHandler(children *childstore.Store, users *userstore.Store, resp *apierrors.Responder, logger *zap.Logger) *Handler {
	return &Handler{Children: children, Users: users, Resp: resp, Log: logger}
}

// List handles GET /api/children. Admins see the full roster; guardians
// see only their linked children.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var (
		children []models.Child
		err      error
	)
	if user.Role == models.RoleAdmin {
		children, err = h.Children.List(ctx)
	} else {
		children, err = h.Children.ListByGuardian(ctx, user.ID)
	}
	if err != nil {
		h.Resp.Error(w, r, apperr.Internal(err))
		return
	}

	h.Resp.OK(w, "children", map[string]any{"children": children})
}

type createRequest struct {
	Name         string   `json:"name"`
	BirthDate    string   `json:"birth_date"` // YYYY-MM-DD
	Class        string   `json:"class"`
	MedicalNotes []string `json:"medical_notes,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

// Create handles POST /api/children (admin). Enrollment generates a
// fresh invitation code; the unique index is the last word on clashes.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Resp.Error(w, r, apperr.Validation("invalid request body", nil))
		return
	}

	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		h.Resp.Error(w, r, apperr.Validation("validation failed",
			map[string]string{"birth_date": "must be YYYY-MM-DD"}))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	var created models.Child
	for attempt := 0; ; attempt++ {
		code, err := invite.GenerateUnique(ctx, h.Children.CodeExists)
		if err != nil {
			h.Resp.Error(w, r, apperr.Internal(err))
			return
		}

		created, err = h.Children.Create(ctx, models.Child{
			Name:           req.Name,
			BirthDate:      birthDate,
			Class:          req.Class,
			InvitationCode: code,
			MedicalNotes:   req.MedicalNotes,
			Notes:          req.Notes,
		})
		if err == nil {
			break
		}
		if errors.Is(err, childstore.ErrDuplicateCode) && attempt < createRetries {
			h.Log.Debug("invitation code collision, regenerating",
				zap.String("code", code))
			continue
		}
		h.Resp.Error(w, r, apperr.Validation(err.Error(), nil))
		return
	}

	h.Log.Info("child enrolled",
		zap.String("child_id", created.ID.Hex()),
		zap.String("class", created.Class))

	h.Resp.Created(w, "child enrolled", map[string]any{"child": created})
}

// Get handles GET /api/children/{id}. Admins see any child; guardians
// only their own.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.Resp.Error(w, r, apperr.NotFound("child not found"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	child, err := h.Children.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.Resp.Error(w, r, apperr.NotFound("child not found"))
			return
		}
		h.Resp.Error(w, r, apperr.Internal(err))
		return
	}

	if user.Role != models.RoleAdmin && !child.HasGuardian(user.ID) {
		// Present absence, not denial, so ids can't be probed.
		h.Resp.Error(w, r, apperr.NotFound("child not found"))
		return
	}

	h.Resp.OK(w, "child", map[string]any{"child": child})
}

type updateRequest struct {
	Name         string   `json:"name,omitempty"`
	BirthDate    string   `json:"birth_date,omitempty"`
	Class        string   `json:"class,omitempty"`
	MedicalNotes []string `json:"medical_notes,omitempty"`
	Notes        *string  `json:"notes,omitempty"`
}

// Update handles PUT /api/children/{id} (admin).
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.Resp.Error(w, r, apperr.NotFound("child not found"))
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Resp.Error(w, r, apperr.Validation("invalid request body", nil))
		return
	}

	upd := childstore.Update{
		Name:         req.Name,
		Class:        req.Class,
		MedicalNotes: req.MedicalNotes,
		Notes:        req.Notes,
	}
	if req.BirthDate != "" {
		birthDate, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			h.Resp.Error(w, r, apperr.Validation("validation failed",
				map[string]string{"birth_date": "must be YYYY-MM-DD"}))
			return
		}
		upd.BirthDate = &birthDate
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	child, err := h.Children.Update(ctx, id, upd)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.Resp.Error(w, r, apperr.NotFound("child not found"))
			return
		}
		h.Resp.Error(w, r, apperr.Validation(err.Error(), nil))
		return
	}

	h.Resp.OK(w, "child updated", map[string]any{"child": child})
}

// Delete handles DELETE /api/children/{id} (admin). Guardian-side links
// are cleaned up so no account keeps a reference to a removed child.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.Resp.Error(w, r, apperr.NotFound("child not found"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	count, err := h.Children.Delete(ctx, id)
	if err != nil {
		h.Resp.Error(w, r, apperr.Internal(err))
		return
	}
	if count == 0 {
		h.Resp.Error(w, r, apperr.NotFound("child not found"))
		return
	}

	unlinked, err := h.Users.PullChildFromAll(ctx, id)
	if err != nil {
		// The child is gone; log the orphaned links rather than failing.
		h.Log.Error("failed to unlink deleted child from guardians",
			zap.String("child_id", id.Hex()), zap.Error(err))
	} else if unlinked > 0 {
		h.Log.Info("deleted child unlinked from guardians",
			zap.String("child_id", id.Hex()),
			zap.Int64("guardians", unlinked))
	}

	h.Resp.OK(w, "child deleted", nil)
}
