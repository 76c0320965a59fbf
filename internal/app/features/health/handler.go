// Package health exposes a liveness endpoint that also verifies the
// database connection.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kinderlink/kinderlink/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type Handler struct {
	Client *mongo.Client
	Log    *zap.Logger
}

func NewHandler(client *mongo.Client, logger *zap.Logger) *Handler {
	return &Handler{Client: client, Log: logger}
}

type healthResponse struct {
	Status string `json:"status"`
	Mongo  string `json:"mongo"`
	Time   string `json:"time"`
}

// ServeHealth handles GET /health. Returns 503 when mongo is
// unreachable so load balancers can rotate the instance out.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	resp := healthResponse{
		Status: "ok",
		Mongo:  "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Warn("health check: mongo ping failed", zap.Error(err))
		resp.Status = "degraded"
		resp.Mongo = "unreachable"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
