package controllers

import (
	"context"
	"net/http"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/dtos"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

// Pinger is anything that can report its own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	pinger Pinger
}

func NewHealthController(p Pinger) *HealthController {
	return &HealthController{pinger: p}
}

func (c *HealthController) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	// The profile backend is the one hard dependency.
	if err := c.pinger.Ping(r.Context()); err != nil {
		utils.RespondErrorWithCode(
			w,
			http.StatusServiceUnavailable,
			utils.ErrCodeInternal,
			"Service unhealthy",
			nil,
			err,
		)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, dtos.HealthCheckResponse{Status: "OK"})
}
