// Package migrations embeds the Postgres schema migrations so they work
// regardless of the working directory.
package migrations

import "embed"

// FS holds every .sql file in this directory, applied in file-name order.
//
//go:embed *.sql
var FS embed.FS
