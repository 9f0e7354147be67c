// Package database provides the SQLite connection used for Biofleet's
// audit trail.
//
// The database stores administrative history only. Device configuration is
// deliberately not persisted: the registry is rebuilt from config.yaml on
// every start, and the audit trail exists so operators can answer "who
// changed what, when" after the fact.
//
// The wrapper configures SQLite for a single-writer workload (WAL mode,
// busy timeout, one open connection) and applies schema migrations
// in-process at start-up. Each migration runs in its own transaction, so a
// failed migration rolls back alone and a re-run continues from it.
package database
