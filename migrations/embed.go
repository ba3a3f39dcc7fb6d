// Package migrations embeds the Postgres schema applied by `runway migrate`.
package migrations

import "embed"

// FS holds every *.sql migration in lexical order of application.
//
//go:embed *.sql
var FS embed.FS
