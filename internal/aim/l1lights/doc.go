// Package l1lights owns Layer 1 (Lights) of the aiming data model.
//
// Responsibilities: the per-frame light-strip observation produced by the
// external detector, its construction from strip endpoints, and the
// per-light shape filter applied before pairing.
// Key types: Point, Light, Color, ShapeFilter.
//
// Dependency rule: L1 depends on nothing above it. Lights are frame
// scoped: they are created fresh from each frame's detections and are
// never retained across frames.
package l1lights
