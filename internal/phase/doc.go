// Package phase runs a validated policy's phases against a track
// snapshot and assembles the resulting mutation plan. Operations within
// a phase always execute in the canonical order, and evaluation is pure:
// an error leaves no partial plan behind.
package phase
