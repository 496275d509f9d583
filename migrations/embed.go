// Package migrations holds the SQL schema of the invoice store
package migrations

import "embed"

// FS contains every *.up.sql / *.down.sql pair, ordered by version prefix
//
//go:embed *.sql
var FS embed.FS
