package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/smartqasa/scene-capture/internal/capture"
	"github.com/smartqasa/scene-capture/internal/history"
)

// handleListCaptures returns capture history, most recent first.
//
// Query parameters:
//   - scene_id: filter by scene record id
//   - status: filter by outcome (completed, partial, failed)
//   - limit: page size (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal,
			"capture history is not configured")
		return
	}

	filter := history.Filter{
		SceneID: r.URL.Query().Get("scene_id"),
		Status:  r.URL.Query().Get("status"),
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing capture history failed",
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, "listing capture history failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSceneEntities returns the entity IDs of a scenes.yaml record
// addressed directly by its document id.
func (s *Server) handleSceneEntities(w http.ResponseWriter, r *http.Request) {
	sceneID := chi.URLParam(r, "scene_id")
	if sceneID == "" {
		writeBadRequest(w, "scene_id is required")
		return
	}

	entities, err := s.capture.SceneEntitiesByID(r.Context(), sceneID)
	if err != nil {
		if errors.Is(err, capture.ErrSceneNotFound) {
			writeNotFound(w, "scene not found")
			return
		}
		s.logger.Error("reading scene entities failed",
			"scene_id", sceneID,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, "reading scene entities failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scene_id": sceneID,
		"entities": entities,
	})
}
