//go:build integration

// Package testdb opens a migrated PostgreSQL database for integration tests.
//
// Tests are skipped unless one of SCRY_TEST_DB_URL, DATABASE_URL or
// SCRY_DATABASE_URL is set. Run them with:
//
//	go test -tags=integration ./internal/platform/postgres/...
package testdb
