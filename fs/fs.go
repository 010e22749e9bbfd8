// Package appfs embeds the files shipped with every binary: SQL migrations, email templates and assets.
package appfs

import "embed"

//go:embed assets migrations/*.sql templates
var FS embed.FS
