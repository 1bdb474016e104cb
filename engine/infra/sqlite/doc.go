// Package sqlite provides the modernc.org/sqlite backed store.
//
// The package mirrors the postgres driver layout: the same repositories,
// embedded goose migrations, and JSON documents stored as TEXT columns.
package sqlite
