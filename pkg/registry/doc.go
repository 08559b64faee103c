// Package registry provides a generic, type-safe registry used to hold
// the small, closed set of compiler backends a build can target (see
// spec.md §9: "model as an explicit registry object passed to Project
// rather than process-wide state").
package registry
