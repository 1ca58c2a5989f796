// Package metrics records command activity in InfluxDB.
//
// One point is written per command cycle (measurement "command": the
// event kind, applied delay) and one per reboot (measurement "reboot":
// the new generation). Writes are batched and asynchronous; a slow or
// absent InfluxDB never blocks the session loop.
//
// The integration is optional and disabled by default; enable it in
// config.yaml when a test bench wants latency dashboards.
package metrics
