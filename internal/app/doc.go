// Package app assembles the import pipeline from configuration: analyzer,
// queue, event handlers, exporters and the import service. Both binaries
// build on it.
package app
