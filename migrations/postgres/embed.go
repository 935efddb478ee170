// Package migrations embeds the PostgreSQL schema, applied with goose.
package migrations

import "embed"

// FS holds the goose SQL migrations at its root.
//
//go:embed *.sql
var FS embed.FS
