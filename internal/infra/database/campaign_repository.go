package database

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
)

type CampaignRepository struct {
	DB *sql.DB
}

func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{DB: db}
}

var _ entity.CampaignRepository = (*CampaignRepository)(nil)

const campaignColumns = `
	c.id, c.client_id, c.name, c.product_description, c.target_audience, c.geo, c.red_flags,
	c.tone, c.ticket_price, c.competitors, c.daily_prospects_quota, c.status,
	c.hunt_platform, c.hunt_audience, c.hunt_query, c.created_at, c.updated_at`

func scanCampaign(row rowScanner) (*entity.Campaign, error) {
	var (
		c                  entity.Campaign
		competitors        pq.StringArray
		status             string
		platform, audience string
	)
	err := row.Scan(
		&c.ID, &c.ClientID, &c.Name, &c.ProductDescription, &c.TargetAudience, &c.Geo, &c.RedFlags,
		&c.Tone, &c.TicketPrice, &competitors, &c.DailyQuota, &status,
		&platform, &audience, &c.Plan.Query, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	c.Competitors = []string(competitors)
	c.Status = entity.CampaignStatus(status)
	c.Plan.Platform = entity.Platform(platform)
	c.Plan.Audience = entity.Audience(audience)
	return &c, nil
}

func (r *CampaignRepository) Create(ctx context.Context, c *entity.Campaign) error {
	query := `
		INSERT INTO campaigns (
			id, client_id, name, product_description, target_audience, geo, red_flags,
			tone, ticket_price, competitors, daily_prospects_quota, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	competitors := c.Competitors
	if competitors == nil {
		competitors = []string{}
	}
	_, err := r.DB.ExecContext(ctx, query,
		c.ID, c.ClientID, c.Name, c.ProductDescription, c.TargetAudience, c.Geo, c.RedFlags,
		c.Tone, c.TicketPrice, pq.StringArray(competitors), c.DailyQuota, string(c.Status),
		c.CreatedAt, c.UpdatedAt,
	)
	return mapError(err)
}

func (r *CampaignRepository) FindByID(ctx context.Context, id string) (*entity.Campaign, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns c WHERE c.id = $1`, id)
	return scanCampaign(row)
}

// ListRunnable: campanha ativa de cliente em dia.
func (r *CampaignRepository) ListRunnable(ctx context.Context) ([]*entity.Campaign, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns c
		JOIN clients cl ON cl.id = c.client_id
		WHERE c.status = 'active' AND cl.billing_status = 'active'
		ORDER BY c.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id string, status entity.CampaignStatus) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE campaigns SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	return expectFound(res)
}

func (r *CampaignRepository) SaveHuntPlan(ctx context.Context, id string, plan entity.HuntPlan) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE campaigns
		SET hunt_platform = $2, hunt_audience = $3, hunt_query = $4, updated_at = NOW()
		WHERE id = $1
	`, id, string(plan.Platform), string(plan.Audience), plan.Query)
	if err != nil {
		return err
	}
	return expectFound(res)
}

func (r *CampaignRepository) PauseByClient(ctx context.Context, clientID string) (int, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE campaigns SET status = 'paused', updated_at = NOW()
		WHERE client_id = $1 AND status = 'active'
	`, clientID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func expectFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}
