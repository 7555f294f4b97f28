// Package export writes collected artifacts to local JSON files.
package export
