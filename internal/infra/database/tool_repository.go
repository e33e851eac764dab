package database

import (
	"context"
	"database/sql"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
)

type ToolRepository struct {
	DB *sql.DB
}

func NewToolRepository(db *sql.DB) *ToolRepository {
	return &ToolRepository{DB: db}
}

var _ entity.ToolRepository = (*ToolRepository)(nil)

func (r *ToolRepository) Best(ctx context.Context, platform entity.Platform, audience entity.Audience) (*entity.ToolCatalogEntry, error) {
	var (
		t       entity.ToolCatalogEntry
		pl, aud string
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, name, platform, audience, actor_id, confidence
		FROM tool_catalog
		WHERE platform = $1 AND audience = $2
		ORDER BY confidence DESC, name
		LIMIT 1
	`, string(platform), string(audience)).Scan(&t.ID, &t.Name, &pl, &aud, &t.ActorID, &t.Confidence)
	if err != nil {
		return nil, mapError(err)
	}
	t.Platform = entity.Platform(pl)
	t.Audience = entity.Audience(aud)
	return &t, nil
}

func (r *ToolRepository) Upsert(ctx context.Context, t *entity.ToolCatalogEntry) error {
	query := `
		INSERT INTO tool_catalog (id, name, platform, audience, actor_id, confidence)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name)
		DO UPDATE SET
			platform = EXCLUDED.platform,
			audience = EXCLUDED.audience,
			actor_id = EXCLUDED.actor_id,
			confidence = EXCLUDED.confidence
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		t.ID, t.Name, string(t.Platform), string(t.Audience), t.ActorID, t.Confidence,
	).Scan(&t.ID)
}
