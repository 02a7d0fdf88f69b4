// Package otel bridges engine counters into an OpenTelemetry meter as
// observable counters read on collection.
package otel
