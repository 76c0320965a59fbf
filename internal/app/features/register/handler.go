// Package register serves direct account registration.
package register

import (
	"context"
	"encoding/json"
	"net/http"

	apierrors "github.com/kinderlink/kinderlink/internal/app/features/errors"
	"github.com/kinderlink/kinderlink/internal/app/system/apperr"
	"github.com/kinderlink/kinderlink/internal/app/system/onboarding"
	"github.com/kinderlink/kinderlink/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type Handler struct {
	Onboarding *onboarding.Service
	Resp       *apierrors.Responder
	Log        *zap.Logger
}

func NewHandler(svc *onboarding.Service, resp *apierrors.Responder, logger *zap.Logger) *Handler {
	return &Handler{Onboarding: svc, Resp: resp, Log: logger}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/users/register. The response always marks
// the account incomplete; the profile and child link come later.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Resp.Error(w, r, apperr.Validation("invalid request body", nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	sess, err := h.Onboarding.Register(ctx, req.Email, req.Password)
	if err != nil {
		h.Resp.Error(w, r, err)
		return
	}

	h.Resp.JSON(w, http.StatusCreated, "registered; complete your profile to finish", map[string]any{
		"token":            sess.Token,
		"user":             sess.User,
		"profile_complete": sess.User.IsComplete(),
	})
}
