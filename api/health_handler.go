package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type healthHandler struct {
	responder   Responder
	startupTime time.Time
	now         func() time.Time
}

func newHealthHandler(startupTime time.Time) healthHandler {
	logger := log.With().Str("handlerName", "healthHandler").Logger()

	return healthHandler{
		responder:   NewResponder(logger),
		startupTime: startupTime,
		now:         time.Now,
	}
}

// health reports liveness and uptime
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string "Service is up"
// @Router /health [get]
func (h healthHandler) health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.responder.WriteJSON(w, map[string]string{
			"status":    "ok",
			"startedAt": h.startupTime.UTC().Format(time.RFC3339),
			"uptime":    h.now().Sub(h.startupTime).Round(time.Second).String(),
		})
	}
}
