// Package migrations embeds the SQL schema migrations for the shoppingcart
// service. database.RunMigrations applies the *.up.sql files in lexical
// order at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
