// Package device provides the Device Registry for Biofleet Core.
//
// The Device Registry is the in-memory catalogue of configured biometric
// terminals. It holds each terminal's network location, display name,
// enabled flag, lifecycle status, and lazily discovered hardware metadata.
//
// # Ownership rules
//
//   - Administrative callers (the REST API) may change only the mutable
//     configuration fields: name, enabled, address, port.
//   - Status and Info are written exclusively by the listener supervisor
//     and the connection paths; they reflect what the fleet actually did,
//     not what an operator asked for.
//
// # Concurrency
//
// Every registry entry carries its own lock, so status updates for one
// terminal never serialise against updates for another. The registry-level
// lock protects only map membership (add/remove/list).
//
// Device configuration is not persisted; the registry is seeded from
// config.yaml at process start and administrative changes live until the
// process exits.
package device
