// Package generation defines the boundary between the import queue and the
// external image analysis service. It provides the Analyzer interface consumed
// by the queue driver, the Extractor and Renderer ports implemented by the
// Gemini adapter and the media package, and the error sentinels that the
// queue's error classifier understands.
package generation
