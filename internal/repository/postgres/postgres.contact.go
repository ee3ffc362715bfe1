// FilePath: server/worker/internal/repository/postgres/postgres.contact.go
package postgres

import (
	"context"

	"github.com/vigilhome/vigil_v3/server/worker/internal/database"
	"github.com/vigilhome/vigil_v3/server/worker/internal/errors"
	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
)

type ContactRepo struct {
	PostgresBaseRepo
}

func NewContactRepository(db database.DB) *ContactRepo {
	repo := &PostgresBaseRepo{db: db}
	return &ContactRepo{PostgresBaseRepo: *repo}
}

// ListByHome returns a home's emergency contacts, highest priority first.
func (r *ContactRepo) ListByHome(ctx context.Context, homeID string) ([]*models.Contact, error) {
	contacts := []*models.Contact{}
	query := `
		SELECT id, home_id, name, channel, value, priority
		FROM contacts
		WHERE home_id = $1
		ORDER BY priority DESC`

	err := r.db.GetDB().SelectContext(ctx, &contacts, query, homeID)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list contacts", err)
	}

	return contacts, nil
}
