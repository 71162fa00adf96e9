// Package l4tracker owns Layer 4 (Tracker) of the aiming data model.
//
// Responsibilities: the single-target state machine (LOST, DETECTING,
// TRACKING, TEMP_LOST), candidate selection against the estimator's
// prediction, and the tracker's exposed snapshot.
// Key types: Tracker, TrackerConfig, TrackerState, TrackedPlate, Snapshot.
//
// Dependency rule: L4 may depend on L1-L3. No I/O is performed here; the
// tracker is driven one frame at a time by its owner.
//
// The tracker never keeps a plate pointer past the frame that produced
// it. The matched plate is copied into a TrackedPlate.
package l4tracker
