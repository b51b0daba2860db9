// Package app wires configuration, logging, telemetry, the report pipeline,
// the task store and the dashboard server together, and owns their
// lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, YAML and the environment
//	2. Initialize logging and OpenTelemetry
//	3. Open the task store and seed one task per report step
//	4. Build the report pipeline and the task service
//	5. Start the WebSocket hub and the scheduler
//	6. Serve the dashboard API until the context is cancelled
//
// Errors are returned to the caller; nothing in this package calls
// os.Exit.
package app
