// Package sqlite persists aiming sessions and per-frame tracker results.
//
// The aim layers (internal/aim/...) never import this package; the
// pipeline reaches it through pipeline.PersistenceSink. The schema lives in
// embedded golang-migrate migrations under migrations/ and is applied by
// Open.
//
// Key types:
//   - DB: connection wrapper with migration and admin-route helpers
//   - Session: one run of the pipeline over a frame source
//   - FrameRow: one persisted tracker snapshot
//   - FrameSink: pipeline.PersistenceSink bound to a session
package sqlite
