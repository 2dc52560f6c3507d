// Package server provides the HTTP control API for the streekeeper
// daemon.
//
// The API listens on loopback only and is consumed by the streekeeper
// CLI, the MCP surface, and anything else that wants to drive the
// supervised syntax_tree language server.
//
// # Endpoints
//
//   - GET  /health: liveness probe
//   - GET  /status: supervisor state, launch ID, PID, resolved command
//   - POST /server/start, /server/stop, /server/restart: lifecycle
//     triggers returning the post-operation status
//   - GET  /logs?n=: most recent diagnostics log lines
//   - GET  /events: Server-Sent Events stream of bus events
//   - POST /visualize, /format: dependent-feature requests
//   - GET  /prompts, POST /prompts/{promptID}: pending recovery prompts
//     and their resolution
//
// # Event streaming
//
// The /events endpoint bridges the in-process event bus onto SSE. Each
// bus event is forwarded as one message event whose data is the JSON
// encoding of the event. A heartbeat comment keeps idle connections
// alive, and a synthetic stream.connected event carrying the current
// status opens every stream.
package server
