// Package influxdb provides time-series metrics for Scene Capture Core.
//
// It wraps the official InfluxDB v2 Go client with non-blocking batched
// writes and connection health monitoring. Each capture run is recorded as
// a point in the "capture" measurement, tagged by scene and outcome, so
// dashboards can track capture frequency, partial failures, and latency.
//
// The integration is optional; when influxdb.enabled is false the service
// runs without it and no metrics are recorded.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteCaptureMetric("living_room_evening", "completed", 8, 0, elapsed)
package influxdb
