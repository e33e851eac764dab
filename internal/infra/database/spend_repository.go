package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
)

// SpendRepository guarda unidades pagas por (campanha, worker, dia UTC).
type SpendRepository struct {
	DB *sql.DB
}

func NewSpendRepository(db *sql.DB) *SpendRepository {
	return &SpendRepository{DB: db}
}

var _ entity.SpendRepository = (*SpendRepository)(nil)

func (r *SpendRepository) Usage(ctx context.Context, campaignID string, worker entity.PaidWorker, now time.Time) (entity.SpendUsage, error) {
	var u entity.SpendUsage
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(units) FILTER (WHERE day = $3::date), 0),
			COALESCE(SUM(units), 0)
		FROM paid_calls
		WHERE campaign_id = $1 AND worker = $2 AND day >= $4::date
	`, campaignID, string(worker), entity.DayStart(now), entity.MonthStart(now)).Scan(&u.Today, &u.Month)
	return u, err
}

func (r *SpendRepository) Record(ctx context.Context, campaignID string, worker entity.PaidWorker, units int, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO paid_calls (campaign_id, worker, day, units)
		VALUES ($1, $2, $3::date, $4)
		ON CONFLICT (campaign_id, worker, day)
		DO UPDATE SET units = paid_calls.units + EXCLUDED.units
	`, campaignID, string(worker), entity.DayStart(at), units)
	return err
}
