// Package terminal provides the protocol-facing half of fleet management:
// the driver abstraction for speaking to biometric terminals, the transport
// reachability probe, and the connection establisher that combines the two.
//
// The vendor wire protocol is deliberately out of scope. Everything above
// this package talks to terminals exclusively through the Driver and Session
// interfaces, so a vendor implementation can be registered at start-up
// without touching the listener or API layers. A built-in simulator driver
// backs development and tests.
//
// Connection establishment is two-tier: a cheap transport-level probe gates
// the expensive protocol handshake, so hosts that are simply down fail in
// milliseconds instead of burning a full driver timeout per retry.
package terminal
