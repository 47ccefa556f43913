// Package dbmigrations exposes embedded SQL migrations for spreadscan binaries.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into spreadscan binaries.
//
//go:embed *.sql
var Files embed.FS
