package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Mutation is the outcome a Mutator produces for a scene record.
type Mutation struct {
	// Entities replaces the record's entities map.
	Entities EntityMap

	// Updated lists entity IDs whose captured state changed.
	Updated []string

	// Skipped lists entities that kept their previous attributes.
	Skipped []Skipped
}

// Mutator transforms a scene's stored entity map into its replacement.
// It receives a copy of the stored map and must not assume document order.
type Mutator func(ctx context.Context, current EntityMap) (*Mutation, error)

// Store provides serialised read-mutate-write access to a scenes.yaml
// document.
//
// The document is held as yaml.Node trees so that fields this service does
// not model (names, icons, metadata blocks) round-trip byte-faithfully; only
// the entities value of the target record is replaced. Writes go through a
// temp file in the same directory followed by an atomic rename, so readers
// never observe a partial document.
//
// Thread Safety:
//   - A per-instance mutex serialises every operation, including the reload
//     notification, so concurrent captures cannot interleave their
//     read-mutate-write cycles.
type Store struct {
	path     string
	mu       sync.Mutex
	notifier ReloadNotifier
	logger   Logger
}

// NewStore creates a Store for the scenes document at path.
//
// Parameters:
//   - path: Location of scenes.yaml (created on first write if missing)
//   - notifier: Invoked after each successful write (nil to disable)
//   - logger: Logger for store events (nil for none)
func NewStore(path string, notifier ReloadNotifier, logger Logger) *Store {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Store{path: path, notifier: notifier, logger: logger}
}

// Path returns the location of the scenes document.
func (s *Store) Path() string {
	return s.path
}

// UpdateScene applies a mutator to one scene record under the store lock.
//
// The full cycle runs while holding the lock: parse the document, locate the
// record by its id, apply the mutator to the decoded entity map, rewrite the
// document atomically, and notify the reload hook. A failure at any step
// leaves the file untouched.
//
// When the mutator updates nothing (every entity skipped), the document is
// not rewritten and the result status is failed.
//
// Parameters:
//   - ctx: Context passed through to the mutator and reload notifier
//   - sceneID: The record's id value in scenes.yaml
//   - mutate: Producer of the replacement entity map
//
// Returns:
//   - *Result: Outcome with per-entity detail (nil on error)
//   - error: ErrSceneNotFound, ErrMalformedDocument, ErrEmptyDocument, or a
//     wrapped IO error
func (s *Store) UpdateScene(ctx context.Context, sceneID string, mutate Mutator) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	record, err := locateScene(doc, sceneID)
	if err != nil {
		return nil, err
	}

	entitiesNode := mappingValue(record, "entities")
	current, err := decodeEntities(entitiesNode)
	if err != nil {
		return nil, err
	}

	mutation, err := mutate(ctx, current)
	if err != nil {
		return nil, err
	}

	result := &Result{
		SceneID: sceneID,
		Status:  statusFor(mutation),
		Updated: mutation.Updated,
		Skipped: mutation.Skipped,
	}

	if len(mutation.Updated) == 0 {
		s.logger.Warn("capture updated no entities, document unchanged",
			"scene_id", sceneID,
			"skipped", len(mutation.Skipped),
		)
		return result, nil
	}

	replacement, err := encodeEntities(entitiesNode, mutation.Entities)
	if err != nil {
		return nil, fmt.Errorf("encoding entities: %w", err)
	}
	setMappingValue(record, "entities", replacement)

	if err := s.write(doc); err != nil {
		return nil, err
	}

	s.logger.Info("scene captured",
		"scene_id", sceneID,
		"status", string(result.Status),
		"updated", len(result.Updated),
		"skipped", len(result.Skipped),
	)

	if s.notifier != nil {
		if err := s.notifier.ReloadScenes(ctx); err != nil {
			// The write succeeded; surface the reload failure without
			// discarding the capture outcome.
			s.logger.Warn("scene reload failed after write", "error", err)
		}
	}

	return result, nil
}

// SceneEntities returns the entity IDs recorded for a scene, in document
// order. It takes the same lock as UpdateScene so reads never observe a
// mid-mutation document.
func (s *Store) SceneEntities(ctx context.Context, sceneID string) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	record, err := locateScene(doc, sceneID)
	if err != nil {
		return nil, err
	}

	entitiesNode := mappingValue(record, "entities")
	if entitiesNode == nil || entitiesNode.Kind != yaml.MappingNode {
		return []string{}, nil
	}

	ids := make([]string, 0, len(entitiesNode.Content)/2)
	for i := 0; i+1 < len(entitiesNode.Content); i += 2 {
		ids = append(ids, entitiesNode.Content[i].Value)
	}
	return ids, nil
}

// load parses the scenes document. A missing file yields an empty sequence;
// any other read failure or a non-sequence document is an error.
func (s *Store) load() (*yaml.Node, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return emptyDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading scenes document: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}

	if len(doc.Content) == 0 {
		// A file of comments or whitespace decodes to an empty document
		return emptyDocument(), nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: top level is not a sequence", ErrMalformedDocument)
	}

	for _, record := range root.Content {
		if record.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: scene record is not a mapping", ErrMalformedDocument)
		}
		if mappingValue(record, "id") == nil {
			return nil, fmt.Errorf("%w: scene record missing id", ErrMalformedDocument)
		}
		if mappingValue(record, "entities") == nil {
			return nil, fmt.Errorf("%w: scene record missing entities", ErrMalformedDocument)
		}
	}

	return &doc, nil
}

// write marshals the document and replaces the file atomically. The temp
// file lives in the destination directory so the rename stays on one
// filesystem, and is removed if any step fails.
func (s *Store) write(doc *yaml.Node) error {
	root := doc.Content[0]
	if len(root.Content) == 0 {
		return ErrEmptyDocument
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshalling scenes document: %w", err)
	}
	if len(data) == 0 {
		return ErrEmptyDocument
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".scenes-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()          //nolint:errcheck // Best effort cleanup on error path
		os.Remove(tmpPath)   //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()          //nolint:errcheck // Best effort cleanup on error path
		os.Remove(tmpPath)   //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("replacing scenes document: %w", err)
	}

	return nil
}

// statusFor categorises a mutation outcome.
func statusFor(m *Mutation) Status {
	switch {
	case len(m.Updated) == 0:
		return StatusFailed
	case len(m.Skipped) > 0:
		return StatusPartial
	default:
		return StatusCompleted
	}
}

// emptyDocument builds a document node holding an empty scene sequence.
func emptyDocument() *yaml.Node {
	return &yaml.Node{
		Kind: yaml.DocumentNode,
		Content: []*yaml.Node{
			{Kind: yaml.SequenceNode, Tag: "!!seq"},
		},
	}
}

// locateScene finds the record whose id value equals sceneID.
func locateScene(doc *yaml.Node, sceneID string) (*yaml.Node, error) {
	root := doc.Content[0]
	for _, record := range root.Content {
		idNode := mappingValue(record, "id")
		if idNode != nil && idNode.Value == sceneID {
			return record, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSceneNotFound, sceneID)
}

// mappingValue returns the value node for key in a mapping, or nil.
func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// setMappingValue replaces the value node for key, appending the pair when
// the key is absent.
func setMappingValue(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

// decodeEntities converts a record's entities node into an EntityMap.
func decodeEntities(node *yaml.Node) (EntityMap, error) {
	if node == nil {
		return EntityMap{}, nil
	}
	if node.Kind != yaml.MappingNode {
		// An empty entities key decodes as a null scalar
		if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
			return EntityMap{}, nil
		}
		return nil, fmt.Errorf("%w: entities is not a mapping", ErrMalformedDocument)
	}

	var out EntityMap
	if err := node.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	if out == nil {
		out = EntityMap{}
	}
	return out, nil
}

// encodeEntities builds the replacement entities node. Entities already in
// the document keep their position; new entities follow in sorted order, so
// rewrites produce stable diffs.
func encodeEntities(previous *yaml.Node, entities EntityMap) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	seen := make(map[string]bool, len(entities))
	appendEntity := func(entityID string) error {
		attrs, ok := entities[entityID]
		if !ok || seen[entityID] {
			return nil
		}
		seen[entityID] = true

		valueNode, err := encodeAttributes(attrs)
		if err != nil {
			return err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: entityID},
			valueNode,
		)
		return nil
	}

	if previous != nil && previous.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(previous.Content); i += 2 {
			if err := appendEntity(previous.Content[i].Value); err != nil {
				return nil, err
			}
		}
	}

	remaining := make([]string, 0, len(entities))
	for entityID := range entities {
		if !seen[entityID] {
			remaining = append(remaining, entityID)
		}
	}
	sort.Strings(remaining)
	for _, entityID := range remaining {
		if err := appendEntity(entityID); err != nil {
			return nil, err
		}
	}

	return node, nil
}

// encodeAttributes encodes one entity's attribute map with the state key
// first and the rest in sorted order.
func encodeAttributes(attrs AttributeMap) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if k != "state" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := attrs["state"]; ok {
		keys = append([]string{"state"}, keys...)
	}

	for _, k := range keys {
		var valueNode yaml.Node
		if err := valueNode.Encode(attrs[k]); err != nil {
			return nil, fmt.Errorf("encoding attribute %s: %w", k, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&valueNode,
		)
	}

	return node, nil
}
