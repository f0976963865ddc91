// Package migrations embeds the Postgres schema for scan history, reported
// accounts, admin roles and audit events. Files pair as NNNNNN_name.up.sql
// and NNNNNN_name.down.sql.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
