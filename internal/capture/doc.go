// Package capture implements scene state capture: reading live entity
// states from the runtime and writing them into the matching record of a
// Home Assistant scenes.yaml document.
//
// The package is built from four pieces:
//
//   - Serializer coerces arbitrary attribute values into YAML-safe form.
//     It is total: every value maps to something yaml.Marshal can encode.
//   - Resolver fetches entity states with a short retry schedule, so
//     captures issued right after an automation settle correctly.
//   - Store owns the scenes.yaml document. Each capture is a locked
//     read-mutate-write cycle ending in an atomic rename; unrecognised
//     record fields round-trip untouched.
//   - Service is the façade the transports call: it validates the target
//     scene entity, maps it to its record id, and drives the Store.
//
// Listener additionally exposes the service calls over MQTT, mirroring the
// runtime's service registration model.
package capture
