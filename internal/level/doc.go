// Package level decides how segment levels are squashed when a new level is
// written on top of an existing chain.
//
// Levels are listed newest first. A policy only looks at level sizes, so the
// same policy serves commit segments and changed-path segments.
package level
