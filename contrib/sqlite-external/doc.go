// Package sqliteexternal links the CGO SQLite driver (github.com/mattn/go-sqlite3).
//
// core/sqlite imports it when built with the cgo_sqlite tag:
//
//	CGO_ENABLED=1 go build -tags "cgo_sqlite sqlite_fts5" ./cmd/christus
//
// Without the tag the pure Go modernc.org/sqlite driver is used and this
// package is not compiled in. Add sqlite_fts5 so `christus db export --fts`
// keeps working with the CGO driver.
package sqliteexternal
