// Package appfs embeds the files shipped inside the binaries:
// SQL migrations (run by goose) and e-mail templates.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/*
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
)
