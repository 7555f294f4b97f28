// Package gemini provides an implementation of the generation.Extractor interface
// that uses Google's Gemini API to turn a worksheet image into a structured
// exercise.
//
// This package is an infrastructure adapter in the hexagonal architecture,
// connecting the import queue to Google's external Gemini AI service. It
// translates between the application's domain models and the Gemini API
// without exposing the details of the external service to the core application.
//
// Key components:
//
// 1. Extractor:
//   - Implements the generation.Extractor interface
//   - Sends the image bytes and the rendered prompt in a single request
//   - Requests JSON output constrained by a response schema
//
// 2. Prompt Management:
//   - Ships a built-in prompt template
//   - Optionally loads a replacement template from a file
//
// 3. Error Handling:
//   - Translates API status codes into generation sentinels (429 becomes
//     generation.ErrRateLimited, 503 becomes generation.ErrServiceOverloaded)
//   - Reports safety blocks and malformed output as permanent failures
//
// The Extractor performs no retries of its own: one call to Extract is one
// request, and the import queue decides whether and when to try again.
package gemini
