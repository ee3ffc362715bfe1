package postgres

import (
	"github.com/vigilhome/vigil_v3/server/worker/internal/database"
)

// PostgresBaseRepo holds the shared database handle embedded by every
// concrete Postgres repository.
type PostgresBaseRepo struct {
	db database.DB
}
