// Package service provides the application-level import service. It owns a
// queue, resolves the exercise library used for duplicate rejection, runs the
// queue in the background and hands collected artifacts to exporters.
package service
