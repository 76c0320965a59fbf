// Package login serves password login. The response status tells the
// client where the account stands: 200 for a finished account, 202 when
// authentication succeeded but onboarding still has steps left.
package login

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

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/users/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Resp.Error(w, r, apperr.Validation("invalid request body", nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	sess, err := h.Onboarding.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.Resp.Error(w, r, err)
		return
	}

	// Completeness is recomputed here, not read from a stored flag, so an
	// account finished elsewhere since its last login routes correctly.
	complete := sess.User.IsComplete()
	status := http.StatusOK
	message := "login successful"
	if !complete {
		status = http.StatusAccepted
		message = "login successful; complete your profile to finish"
	}

	h.Resp.JSON(w, status, message, map[string]any{
		"token":            sess.Token,
		"user":             sess.User,
		"profile_complete": complete,
	})
}
