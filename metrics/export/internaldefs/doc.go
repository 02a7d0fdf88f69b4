// Package internaldefs exposes the stable metric name definitions shared
// by exporter implementations.
//
// Counter definitions live here so the Prometheus and OTel exporters
// publish identical metric names. A change here affects all exporters at
// once.
package internaldefs
