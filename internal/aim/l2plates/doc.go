// Package l2plates owns Layer 2 (Plates) of the aiming data model.
//
// Responsibilities: pairing same-colour lights into plate candidates by
// pairwise geometric compatibility, ordering plate vertices, and size
// classification.
// Key types: Plate, Size, Matcher, MatcherConfig.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
// Plates are frame scoped and hold pointers to the lights of the frame
// that produced them; callers that keep a plate past its frame must copy
// the fields they need.
package l2plates
