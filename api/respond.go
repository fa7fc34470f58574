package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rpupo63/portfolio-projects-backend/errs"
	"github.com/rs/zerolog"
)

// Responses larger than this are replaced by an error payload
const maxResponseSize = 10 * 1024 * 1024 // 10MB

type Responder struct {
	logger zerolog.Logger
}

func NewResponder(logger zerolog.Logger) Responder {
	return Responder{logger}
}

func (r Responder) WriteJSON(w http.ResponseWriter, data any) {
	r.WriteJSONStatus(w, http.StatusOK, data)
}

// WriteJSONStatus marshals data before touching the status line, so a marshal
// failure can still become a 500.
func (r Responder) WriteJSONStatus(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		r.logger.Error().Err(err).Msg("error marshaling response data")
		status, body = http.StatusInternalServerError, []byte(`{"error":"Internal Server Error","status":"error"}`)
	}

	if len(body) > maxResponseSize {
		r.logger.Error().
			Int("responseSize", len(body)).
			Int("maxSize", maxResponseSize).
			Msg("response too large")
		status, body = http.StatusInternalServerError, []byte(`{"error":"Response too large","status":"error"}`)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		r.logger.Error().Err(err).Msg("error writing response")
	}
}

// WriteError maps err to a status and an ErrorResponse. Anything that is not
// an *errs.ApiErr, and every 5xx, is reported without its cause.
func (r Responder) WriteError(w http.ResponseWriter, err error) {
	var apiErr *errs.ApiErr
	if !errors.As(err, &apiErr) {
		r.logger.Error().Err(err).Msg("unexpected error")
		r.WriteJSONStatus(w, http.StatusInternalServerError, ErrorResponse{
			Error:  "Internal Server Error",
			Status: "error",
		})
		return
	}

	resp := ErrorResponse{Error: apiErr.Message(), Status: "error"}

	if apiErr.IsServerError() {
		r.logger.Error().
			Err(apiErr.Cause).
			Int("status", apiErr.StatusCode).
			Msg(apiErr.Error())
	} else {
		resp.Field = apiErr.Field
		resp.Details = apiErr.Details
	}

	r.WriteJSONStatus(w, apiErr.StatusCode, resp)
}
