package capture

import "errors"

// Sentinel errors for capture operations. Callers use errors.Is to
// categorise failures for transport responses.
var (
	// ErrInvalidEntityID indicates the target is not a scene entity ID.
	ErrInvalidEntityID = errors.New("capture: entity_id must belong to the scene domain")

	// ErrSceneIDMissing indicates the scene entity carries no id attribute
	// linking it to a scenes.yaml record.
	ErrSceneIDMissing = errors.New("capture: scene entity has no id attribute")

	// ErrSceneNotFound indicates no record with the requested id exists in
	// the scenes document.
	ErrSceneNotFound = errors.New("capture: scene not found")

	// ErrEntityUnavailable indicates the scene entity itself could not be
	// resolved from the state provider.
	ErrEntityUnavailable = errors.New("capture: scene entity unavailable")

	// ErrEmptyDocument indicates a mutation produced an empty scene list,
	// which is never written to disk.
	ErrEmptyDocument = errors.New("capture: refusing to write empty scenes document")

	// ErrMalformedDocument indicates scenes.yaml could not be parsed as a
	// sequence of scene records.
	ErrMalformedDocument = errors.New("capture: malformed scenes document")

	// ErrNoEntities indicates the scene record lists no entities to capture.
	ErrNoEntities = errors.New("capture: scene has no entities")
)
