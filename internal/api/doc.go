// Package api implements the HTTP control surface of the import queue.
// Handlers translate requests into ImportService calls and map service and
// queue errors to status codes without exposing internal error text.
package api
