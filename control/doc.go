// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, telemetry and debug introspection for hioload-net processes.
//
// Provides:
//   - Config loading from YAML with HIOLOAD_* environment overrides
//   - A ConfigStore with reload listeners and file watching
//   - A Prometheus collector over session manager statistics
//   - Debug probe registration and dumps
package control
