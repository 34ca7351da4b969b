package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"taskboard/app/ai"
	"taskboard/app/models"
	"taskboard/app/services"
	"taskboard/app/sizing"
)

type errorBody struct {
	Error      string   `json:"error"`
	Field      string   `json:"field,omitempty"`
	Message    string   `json:"message"`
	Violations []string `json:"violations,omitempty"`
}

// writeError maps service errors onto status codes. Anything unrecognized is
// logged and reported as 500.
func (c *TaskController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *sizing.ValidationError
	var berr *services.BreakdownError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: verr.Kind.Error(), Field: verr.Field, Message: verr.Msg})
	case errors.As(err, &berr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "BreakdownRejected", Message: err.Error(), Violations: berr.Violations})
	case errors.Is(err, services.ErrParentNotFound):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "ParentNotFound", Field: "parent_id", Message: err.Error()})
	case errors.Is(err, models.ErrTaskNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "NotFound", Message: "Task not found"})
	case errors.Is(err, services.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "InvalidPayload", Message: err.Error()})
	case errors.Is(err, services.ErrHierarchyTooDeep):
		writeJSON(w, http.StatusConflict, errorBody{Error: "HierarchyTooDeep", Message: err.Error()})
	case errors.Is(err, services.ErrAIUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "AIUnavailable", Message: err.Error()})
	case errors.Is(err, ai.ErrInvalidResponse), errors.Is(err, ai.ErrEmptyBreakdown):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "InvalidAIResponse", Message: err.Error()})
	default:
		c.log.Error().Err(err).Str("m", r.Method).Str("p", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal", Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
