// Package loss implements the grasp training objectives.
//
// Control points are (N, M, 3) tensors: N grasps, M gripper points each.
// Confidence is one value per grasp, shaped (N) or (N, 1). Class labels are
// plain integer slices.
//
// Every function is pure: inputs are never modified, and on an autodiff
// backend the returned tensors carry the graph back to their inputs.
// Incompatible shapes are reported as *ShapeError before any kernel runs.
// Confidence is clamped below by a small floor before taking its log, so the
// confidence terms stay finite as confidence approaches zero.
package loss
