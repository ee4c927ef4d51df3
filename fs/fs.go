package appfs

import "embed"

// FS holds the SQL migrations and the static assets (email templates, question bank, models).
//
//go:embed migrations/*.sql all:assets
var FS embed.FS
