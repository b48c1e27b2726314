// Package migrations holds the state database schema history.
// Versions are timestamps (YYYYMMDDHHmmss) and new migrations are appended
// to All.
package migrations

import (
	"github.com/jingkaihe/pluginreg/pkg/db"
)

// All returns every migration in version order.
func All() []db.Migration {
	return []db.Migration{
		Migration20260901100000CreateInstalls(),
		Migration20260901100001CreateActivations(),
	}
}
