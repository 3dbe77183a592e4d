// Embeds the SQL migration files so the binary can apply them at startup
// without needing the source tree on disk.

package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
