// Package migrations embeds the Postgres schema applied by outreachctl migrate.
package migrations

import "embed"

// FS holds the NNNN_name.{up,down}.sql files in golang-migrate naming.
//
//go:embed *.sql
var FS embed.FS
