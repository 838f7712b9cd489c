// Package tracking owns the multi-object tracking core.
//
// Responsibilities: a bank of constant-velocity Kalman estimators (Bank),
// greedy track-to-observation association (GreedyAssign), track birth and
// pruning with hysteresis (Lifecycle), and the per-frame cycle that
// sequences them (Tracker).
// Key types: Track, Match, Assignment, Plan, FrameResult.
//
// Track identity at the package boundary is the monotonically increasing
// Track.ID; a track's position inside the bank is internal and only valid
// for the cycle that produced it.
//
// No transport, storage or coordinate-frame code is allowed in this package.
package tracking
