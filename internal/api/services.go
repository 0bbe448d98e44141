package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/smartqasa/scene-capture/internal/capture"
)

// serviceRequest is the body of a service call.
type serviceRequest struct {
	EntityID string `json:"entity_id"`
}

// handleCapture runs a capture for the requested scene entity. It backs both
// the update and scene_update routes, which are aliases of the same call.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.EntityID == "" {
		writeBadRequest(w, "entity_id is required")
		return
	}

	result, err := s.capture.CaptureScene(r.Context(), req.EntityID)
	if err != nil {
		s.writeCaptureError(w, r, req.EntityID, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSceneGet returns the entity IDs recorded for a scene entity.
func (s *Server) handleSceneGet(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.EntityID == "" {
		writeBadRequest(w, "entity_id is required")
		return
	}

	entities, err := s.capture.SceneEntities(r.Context(), req.EntityID)
	if err != nil {
		s.writeCaptureError(w, r, req.EntityID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": req.EntityID,
		"entities":  entities,
	})
}

// writeCaptureError maps capture service errors to HTTP responses.
func (s *Server) writeCaptureError(w http.ResponseWriter, r *http.Request, entityID string, err error) {
	switch {
	case errors.Is(err, capture.ErrInvalidEntityID):
		writeBadRequest(w, "entity_id must belong to the scene domain")
	case errors.Is(err, capture.ErrEntityUnavailable):
		writeNotFound(w, "scene entity unavailable")
	case errors.Is(err, capture.ErrSceneNotFound):
		writeNotFound(w, "scene not found")
	case errors.Is(err, capture.ErrSceneIDMissing):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation,
			"scene entity has no id attribute")
	case errors.Is(err, capture.ErrNoEntities):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation,
			"scene has no entities")
	default:
		s.logger.Error("capture request failed",
			"entity_id", entityID,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, "capture failed")
	}
}
