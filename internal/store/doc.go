// Package store defines the persistence ports used by the import pipeline.
// Collected artifacts are handed to an ArtifactStore, and the set of exercise
// filenames already persisted is read through a LibraryReader so that the
// queue can reject payloads that were imported before.
package store
