// Package influxdb provides InfluxDB connectivity for BioFleet Core.
//
// It wraps the official influxdb-client-go v2 library with BioFleet-specific
// patterns for connection management, telemetry writing, and health
// monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Terminal lifecycle transitions (online, listening, offline, error)
//   - Poll activity (records read per poll cycle)
//   - Attendance relay outcomes (delivered vs dropped)
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "biofleet",
//	    Bucket: "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteDeviceStatus("dev-01", "listening")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a
// callback. Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size,
// flush_interval). This keeps per-record overhead negligible even when
// many terminals are polling concurrently.
package influxdb
