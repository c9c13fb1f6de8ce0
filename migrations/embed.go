// Package migrations embeds the SQL schema applied by internal/pkg/migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
