// Package postgres provides PostgreSQL-specific implementations for the
// persistence ports defined in the internal/store package. It owns the
// connection setup, the embedded goose migrations and the mapping between
// domain artifacts and the exercises table.
package postgres
