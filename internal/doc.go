// Package internal holds small helpers shared by the engine that must not
// become public API surface.
package internal
