// Package config provides configuration loading for Scene Capture Core.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. The loading precedence is:
//
//  1. Hardcoded defaults
//  2. YAML file values
//  3. SCENECAPTURE_* environment variables
//
// # Example
//
//	scenes:
//	  path: "/config/scenes.yaml"
//	homeassistant:
//	  url: "ws://homeassistant.local:8123/api/websocket"
//	logging:
//	  level: "info"
//	  format: "json"
//
// Secrets (the Home Assistant token, the JWT secret, the InfluxDB token)
// should be provided via environment variables rather than committed to the
// config file.
package config
