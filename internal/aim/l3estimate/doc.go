// Package l3estimate owns Layer 3 (Estimate) of the aiming data model.
//
// Responsibilities: the constant-velocity position filter that smooths the
// tracked plate centre and predicts it across missed detections.
// Key types: Estimator, EstimatorConfig.
//
// Dependency rule: L3 may depend on L1, but never on L2 or L4.
// Matrix algebra uses gonum/mat.
package l3estimate
