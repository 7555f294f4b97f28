// Package domain defines the core entities of the import pipeline: the exercise
// extracted from a submitted image, the analysis result attached to a finished
// queue item, and the artifact handed to persistence.
package domain
