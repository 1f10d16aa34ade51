// Package migrations embeds the SQL schema migrations so the server and the
// migrate command ship without a separate migrations directory.
package migrations

import "embed"

// FS holds every *.up.sql and *.down.sql file in this directory
//
//go:embed *.sql
var FS embed.FS
