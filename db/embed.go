// Package db embeds the SQL migrations so the server binary carries its
// own schema and golang-migrate can apply it without files on disk.
package db

import "embed"

// Migrations holds every *.up.sql / *.down.sql pair under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS
