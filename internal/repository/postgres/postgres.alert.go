// FilePath: server/worker/internal/repository/postgres/postgres.alert.go
package postgres

import (
	"context"
	"database/sql"

	"github.com/vigilhome/vigil_v3/server/worker/internal/database"
	"github.com/vigilhome/vigil_v3/server/worker/internal/errors"
	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
)

type AlertRepo struct {
	PostgresBaseRepo
}

func NewAlertRepository(db database.DB) *AlertRepo {
	repo := &PostgresBaseRepo{db: db}
	return &AlertRepo{PostgresBaseRepo: *repo}
}

func (r *AlertRepo) Create(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (
			id, home_id, room_id, device_id, type, severity,
			status, score, created_at, acked_at, escalated_at, closed_at
		) VALUES (
			:id, :home_id, :room_id, :device_id, :type, :severity,
			:status, :score, :created_at, :acked_at, :escalated_at, :closed_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, alert)
	if err != nil {
		return errors.NewDatabaseError("failed to create alert", err)
	}
	return nil
}

func (r *AlertRepo) Get(ctx context.Context, id string) (*models.Alert, error) {
	alert := &models.Alert{}
	query := `SELECT * FROM alerts WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, alert, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("alert not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get alert", err)
	}
	return alert, nil
}

func (r *AlertRepo) ListByHome(ctx context.Context, homeID string, offset, limit int) ([]*models.Alert, error) {
	alerts := []*models.Alert{}
	query := `SELECT * FROM alerts WHERE home_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	err := r.db.GetDB().SelectContext(ctx, &alerts, query, homeID, limit, offset)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list alerts", err)
	}

	return alerts, nil
}

func (r *AlertRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM alerts WHERE status = $1`

	err := r.db.GetDB().GetContext(ctx, &count, query, status)
	if err != nil {
		return 0, errors.NewDatabaseError("failed to count alerts", err)
	}
	return count, nil
}
