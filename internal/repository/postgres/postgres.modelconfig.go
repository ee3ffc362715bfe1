// FilePath: server/worker/internal/repository/postgres/postgres.modelconfig.go
package postgres

import (
	"context"
	"database/sql"

	"github.com/vigilhome/vigil_v3/server/worker/internal/database"
	"github.com/vigilhome/vigil_v3/server/worker/internal/errors"
	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
)

type ModelConfigRepo struct {
	PostgresBaseRepo
}

func NewModelConfigRepository(db database.DB) *ModelConfigRepo {
	repo := &PostgresBaseRepo{db: db}
	return &ModelConfigRepo{PostgresBaseRepo: *repo}
}

// GetByHomeAndKey resolves the configuration row for one (home, model key)
// pair. The pair carries a unique constraint, written by the config API.
func (r *ModelConfigRepo) GetByHomeAndKey(ctx context.Context, homeID, modelKey string) (*models.ModelConfig, error) {
	cfg := &models.ModelConfig{}
	query := `
		SELECT id, home_id, model_key, enabled, threshold, params_json
		FROM model_configs
		WHERE home_id = $1 AND model_key = $2`

	err := r.db.GetDB().GetContext(ctx, cfg, query, homeID, modelKey)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("model config not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get model config", err)
	}
	return cfg, nil
}

func (r *ModelConfigRepo) ListByHome(ctx context.Context, homeID string) ([]*models.ModelConfig, error) {
	configs := []*models.ModelConfig{}
	query := `
		SELECT id, home_id, model_key, enabled, threshold, params_json
		FROM model_configs
		WHERE home_id = $1
		ORDER BY model_key`

	err := r.db.GetDB().SelectContext(ctx, &configs, query, homeID)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list model configs", err)
	}

	return configs, nil
}
