// Package pipeline drives the per-frame aiming flow: light observations
// from a frame source go through the Matcher (L2) and the Tracker (L4),
// and each frame's result is handed to persistence, publish and pose
// sinks.
//
// This package is the composition root for the aim layers. It imports
// l1lights through l4tracker and the debug collector, but none of those
// packages import pipeline/. Sinks are interfaces so storage and
// transport adapters live in their own packages.
package pipeline
