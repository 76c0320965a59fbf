// Package profile serves the signed-in guardian's profile: reading it,
// editing it, and the deferred-path completion that links a child.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	apierrors "github.com/kinderlink/kinderlink/internal/app/features/errors"
	userstore "github.com/kinderlink/kinderlink/internal/app/store/users"
	"github.com/kinderlink/kinderlink/internal/app/system/apperr"
	"github.com/kinderlink/kinderlink/internal/app/system/auth"
	"github.com/kinderlink/kinderlink/internal/app/system/onboarding"
	"github.com/kinderlink/kinderlink/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Onboarding *onboarding.Service
	Users      *userstore.Store
	Resp       *apierrors.Responder
	Log        *zap.Logger
}

func NewHandler(svc *onboarding.Service, users *userstore.Store, resp *apierrors.Responder, logger *zap.Logger) *Handler {
	return &Handler{Onboarding: svc, Users: users, Resp: resp, Log: logger}
}

// Get handles GET /api/users/profile.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		h.Resp.Error(w, r, apperr.Unauthorized("missing or invalid session token"))
		return
	}

	h.Resp.OK(w, "profile", map[string]any{
		"user":             user,
		"profile_complete": user.IsComplete(),
	})
}

type updateRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Update handles PUT /api/users/profile. Plain field edits; linking is
// the complete-profile endpoint's job.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		h.Resp.Error(w, r, apperr.Unauthorized("missing or invalid session token"))
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Resp.Error(w, r, apperr.Validation("invalid request body", nil))
		return
	}
	if req.Name == "" && req.Phone == "" && req.Address == "" {
		h.Resp.Error(w, r, apperr.Validation("nothing to update", nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	updated, err := h.Users.UpdateProfile(ctx, user.ID, userstore.ProfileUpdate{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.Resp.Error(w, r, apperr.NotFound("user not found"))
			return
		}
		h.Resp.Error(w, r, apperr.Internal(err))
		return
	}

	h.Resp.OK(w, "profile updated", map[string]any{
		"user":             updated,
		"profile_complete": updated.IsComplete(),
	})
}

type completeRequest struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	InvitationCode string `json:"invitation_code"`
}

// Complete handles PUT /api/users/complete-profile: the deferred-path
// finish that fills the profile and binds the invitation code's child.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		h.Resp.Error(w, r, apperr.Unauthorized("missing or invalid session token"))
		return
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Resp.Error(w, r, apperr.Validation("invalid request body", nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	updated, child, err := h.Onboarding.CompleteProfile(ctx, user.ID, onboarding.ProfileInput{
		Name:           req.Name,
		Phone:          req.Phone,
		Address:        req.Address,
		InvitationCode: req.InvitationCode,
	})
	if err != nil {
		h.Resp.Error(w, r, err)
		return
	}

	h.Resp.OK(w, "profile completed", map[string]any{
		"user":             updated,
		"child":            child,
		"profile_complete": updated.IsComplete(),
	})
}
