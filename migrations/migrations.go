// Package migrations embeds the schema migration files so they apply
// regardless of the working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
