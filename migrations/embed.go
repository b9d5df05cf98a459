// Package migrations carries the SQL schema applied by the migrate manager.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
