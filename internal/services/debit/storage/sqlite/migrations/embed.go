// Package migrations embeds SQL migration scripts for the attempt store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
