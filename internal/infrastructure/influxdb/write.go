package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteCaptureMetric writes a single capture run measurement to InfluxDB.
//
// This is the primary method for recording capture telemetry. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - sceneID: The scene's document identifier
//   - status: Run outcome ("completed", "partial", "failed")
//   - updated: Number of entities refreshed in the document
//   - skipped: Number of entities that failed to resolve
//   - duration: Wall-clock duration of the capture
//
// Example:
//
//	client.WriteCaptureMetric("living_room_evening", "completed", 8, 0, 120*time.Millisecond)
func (c *Client) WriteCaptureMetric(sceneID, status string, updated, skipped int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"capture",
		map[string]string{
			"scene_id": sceneID,
			"status":   status,
		},
		map[string]interface{}{
			"entities_updated": updated,
			"entities_skipped": skipped,
			"duration_ms":      duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteResolverMetric records a per-entity resolution outcome.
//
// Used to spot entities that routinely need retries or never load.
//
// Parameters:
//   - entityID: The entity being resolved
//   - attempts: Number of attempts made (1-3)
//   - resolved: Whether the entity eventually produced a usable state
func (c *Client) WriteResolverMetric(entityID string, attempts int, resolved bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"resolver",
		map[string]string{
			"entity_id": entityID,
		},
		map[string]interface{}{
			"attempts": attempts,
			"resolved": resolved,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
