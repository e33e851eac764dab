package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
)

type ProspectRepository struct {
	DB *sql.DB
}

func NewProspectRepository(db *sql.DB) *ProspectRepository {
	return &ProspectRepository{DB: db}
}

var _ entity.ProspectRepository = (*ProspectRepository)(nil)

const prospectColumns = `
	id, campaign_id, COALESCE(tool_id, ''), source_key, business_name, website, phone, email,
	social_profiles, review_snippets, status, pain_points, content, access_token,
	interactions, qualified, qualified_at, conversation, spy_attempts, process_attempts,
	claim_token, claim_until, last_touch_at, outreach_queued_at, last_error, raw_payload,
	created_at, updated_at`

func scanProspect(row rowScanner) (*entity.Prospect, error) {
	var (
		p                                      entity.Prospect
		social, pain, content, conv, raw       []byte
		reviews                                pq.StringArray
		status                                 string
		accessToken, claimToken                sql.NullString
		qualifiedAt, claimUntil, touch, queued sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.CampaignID, &p.ToolID, &p.SourceKey, &p.BusinessName, &p.Website, &p.Phone, &p.Email,
		&social, &reviews, &status, &pain, &content, &accessToken,
		&p.Interactions, &p.Qualified, &qualifiedAt, &conv, &p.SpyAttempts, &p.ProcessAttempts,
		&claimToken, &claimUntil, &touch, &queued, &p.LastError, &raw,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	p.Status = entity.Status(status)
	p.ReviewSnippets = []string(reviews)
	p.AccessToken = accessToken.String
	p.ClaimToken = claimToken.String
	p.QualifiedAt = nullTime(qualifiedAt)
	p.ClaimUntil = nullTime(claimUntil)
	p.LastTouchAt = nullTime(touch)
	p.OutreachQueuedAt = nullTime(queued)
	p.RawPayload = raw

	if len(social) > 0 {
		if err := json.Unmarshal(social, &p.SocialProfiles); err != nil {
			return nil, fmt.Errorf("social_profiles inválido: %w", err)
		}
	}
	if len(pain) > 0 {
		p.PainPoints = &entity.PainLedger{}
		if err := json.Unmarshal(pain, p.PainPoints); err != nil {
			return nil, fmt.Errorf("pain_points inválido: %w", err)
		}
	}
	if len(content) > 0 {
		p.Content = &entity.ContentBundle{}
		if err := json.Unmarshal(content, p.Content); err != nil {
			return nil, fmt.Errorf("content inválido: %w", err)
		}
	}
	if len(conv) > 0 {
		if err := json.Unmarshal(conv, &p.Conversation); err != nil {
			return nil, fmt.Errorf("conversation inválida: %w", err)
		}
	}
	return &p, nil
}

func scanProspects(rows *sql.Rows) ([]*entity.Prospect, error) {
	defer rows.Close()
	var out []*entity.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// jsonArg devolve nil para ponteiro nulo, senão o documento serializado.
func jsonArg[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *ProspectRepository) Insert(ctx context.Context, p *entity.Prospect) (bool, error) {
	social, err := json.Marshal(p.SocialProfiles)
	if err != nil {
		return false, err
	}
	if p.SocialProfiles == nil {
		social = []byte("{}")
	}
	var raw any
	if len(p.RawPayload) > 0 {
		raw = string(p.RawPayload)
	}
	status := p.Status
	if status == "" {
		status = entity.StatusHunted
	}

	query := `
		INSERT INTO prospects (
			id, campaign_id, tool_id, source_key, business_name, website, phone, email,
			social_profiles, review_snippets, status, raw_payload, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (campaign_id, source_key) DO NOTHING
	`
	res, err := r.DB.ExecContext(ctx, query,
		p.ID, p.CampaignID, nullString(p.ToolID), p.SourceKey, p.BusinessName,
		p.Website, p.Phone, p.Email, string(social), pq.StringArray(p.ReviewSnippets),
		string(status), raw, p.CreatedAt,
	)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *ProspectRepository) FindByID(ctx context.Context, id string) (*entity.Prospect, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+prospectColumns+` FROM prospects WHERE id = $1`, id)
	return scanProspect(row)
}

func (r *ProspectRepository) FindByAccessToken(ctx context.Context, token string) (*entity.Prospect, error) {
	if token == "" {
		return nil, entity.ErrNotFound
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+prospectColumns+` FROM prospects WHERE access_token = $1`, token)
	return scanProspect(row)
}

func (r *ProspectRepository) CountCreatedSince(ctx context.Context, campaignID string, since time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM prospects WHERE campaign_id = $1 AND created_at >= $2`,
		campaignID, since,
	).Scan(&n)
	return n, err
}

func (r *ProspectRepository) PromoteContacted(ctx context.Context, campaignID string, now time.Time) (int, error) {
	query := `
		UPDATE prospects
		SET status = 'espiado', updated_at = $2
		WHERE campaign_id = $1
			AND status = 'cazado'
			AND (email <> '' OR phone <> '')
			AND (claim_token IS NULL OR claim_until <= $2)
	`
	res, err := r.DB.ExecContext(ctx, query, campaignID, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Claim reserva o lote numa única instrução: quem já está travado por outra
// transação é pulado, quem tem lease vigente nem entra no filtro.
func (r *ProspectRepository) Claim(ctx context.Context, req entity.ClaimRequest) ([]*entity.Prospect, error) {
	if req.Limit <= 0 || len(req.Statuses) == 0 {
		return nil, nil
	}
	if req.Token == "" {
		return nil, fmt.Errorf("claim token is required")
	}
	statuses := make(pq.StringArray, len(req.Statuses))
	for i, s := range req.Statuses {
		statuses[i] = string(s)
	}
	var touchedBefore any
	if req.TouchedBefore != nil {
		touchedBefore = *req.TouchedBefore
	}

	query := `
		WITH picked AS (
			SELECT id FROM prospects
			WHERE status = ANY($1::text[])
				AND ($2::text = '' OR campaign_id::text = $2::text)
				AND (claim_token IS NULL OR claim_until <= $3)
				AND (
					$4::int = 0
					OR ($4::int = 1 AND (email <> '' OR phone <> ''))
					OR ($4::int = 2 AND email = '' AND phone = '')
				)
				AND (NOT $5::boolean OR spy_attempts = 0)
				AND ($6::timestamptz IS NULL OR last_touch_at <= $6::timestamptz)
			ORDER BY created_at, id
			LIMIT $7
			FOR UPDATE SKIP LOCKED
		)
		UPDATE prospects p
		SET claim_token = $8,
			claim_until = $9,
			process_attempts = p.process_attempts + 1,
			updated_at = $3
		FROM picked
		WHERE p.id = picked.id
		RETURNING ` + prospectQualified

	rows, err := r.DB.QueryContext(ctx, query,
		statuses, req.CampaignID, req.Now, int(req.Contact), req.FreshForSpy,
		touchedBefore, req.Limit, req.Token, req.Until,
	)
	if err != nil {
		return nil, err
	}
	return scanProspects(rows)
}

// mesmas colunas, qualificadas para o RETURNING do UPDATE ... FROM
const prospectQualified = `
	p.id, p.campaign_id, COALESCE(p.tool_id, ''), p.source_key, p.business_name, p.website, p.phone, p.email,
	p.social_profiles, p.review_snippets, p.status, p.pain_points, p.content, p.access_token,
	p.interactions, p.qualified, p.qualified_at, p.conversation, p.spy_attempts, p.process_attempts,
	p.claim_token, p.claim_until, p.last_touch_at, p.outreach_queued_at, p.last_error, p.raw_payload,
	p.created_at, p.updated_at`

func (r *ProspectRepository) Advance(ctx context.Context, a entity.Advance) error {
	if !entity.CanTransition(a.From, a.To) {
		return entity.ErrInvalidTransition
	}
	pain, err := jsonArg(a.PainPoints)
	if err != nil {
		return err
	}
	content, err := jsonArg(a.Content)
	if err != nil {
		return err
	}

	query := `
		UPDATE prospects
		SET status = $4,
			email = CASE WHEN email = '' THEN $5 ELSE email END,
			phone = CASE WHEN phone = '' THEN $6 ELSE phone END,
			pain_points = COALESCE($7::jsonb, pain_points),
			content = COALESCE($8::jsonb, content),
			access_token = COALESCE(access_token, $9),
			last_touch_at = CASE WHEN $10::boolean THEN $11 ELSE last_touch_at END,
			last_error = $12,
			claim_token = NULL,
			claim_until = NULL,
			process_attempts = 0,
			updated_at = $11
		WHERE id = $1 AND claim_token = $2 AND status = $3
	`
	res, err := r.DB.ExecContext(ctx, query,
		a.ProspectID, a.ClaimToken, string(a.From), string(a.To),
		a.Email, a.Phone, pain, content, nullString(a.AccessToken),
		a.Touch, a.At, a.Note,
	)
	if err != nil {
		return mapError(err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entity.ErrClaimLost
	}
	return nil
}

func (r *ProspectRepository) Release(ctx context.Context, id, claimToken, reason string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE prospects
		SET claim_token = NULL, claim_until = NULL, last_error = $3
		WHERE id = $1 AND claim_token = $2
	`, id, claimToken, reason)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *ProspectRepository) MarkSpyAttempt(ctx context.Context, id, claimToken string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE prospects SET spy_attempts = spy_attempts + 1
		WHERE id = $1 AND claim_token = $2
	`, id, claimToken)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *ProspectRepository) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE prospects
		SET claim_token = NULL, claim_until = NULL
		WHERE claim_token IS NOT NULL AND claim_until <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *ProspectRepository) ListPendingOutreach(ctx context.Context, limit int) ([]*entity.Prospect, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+prospectColumns+`
		FROM prospects
		WHERE status = 'persuadido' AND outreach_queued_at IS NULL
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return scanProspects(rows)
}

func (r *ProspectRepository) MarkOutreachQueued(ctx context.Context, id string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE prospects SET outreach_queued_at = $2, last_touch_at = $2, updated_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (r *ProspectRepository) RecordChatTurns(ctx context.Context, id string, turns []entity.ChatTurn, threshold int, at time.Time) (entity.ChatState, error) {
	var state entity.ChatState

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return state, err
	}
	defer tx.Rollback()

	var (
		raw       []byte
		qualified bool
		count     int
	)
	err = tx.QueryRowContext(ctx,
		`SELECT conversation, interactions, qualified FROM prospects WHERE id = $1 FOR UPDATE`, id,
	).Scan(&raw, &count, &qualified)
	if err != nil {
		return state, mapError(err)
	}

	var conv []entity.ChatTurn
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &conv); err != nil {
			return state, fmt.Errorf("conversation inválida: %w", err)
		}
	}
	for _, t := range turns {
		conv = entity.AppendTurn(conv, t)
	}
	encoded, err := json.Marshal(conv)
	if err != nil {
		return state, err
	}

	count++
	state.Interactions = count
	if !qualified && threshold > 0 && count >= threshold {
		qualified = true
		state.NewlyQualified = true
	}
	state.Qualified = qualified

	_, err = tx.ExecContext(ctx, `
		UPDATE prospects
		SET conversation = $2,
			interactions = $3,
			qualified = $4,
			qualified_at = CASE WHEN $5::boolean THEN $6 ELSE qualified_at END,
			last_touch_at = $6,
			updated_at = $6
		WHERE id = $1
	`, id, string(encoded), count, qualified, state.NewlyQualified, at)
	if err != nil {
		return entity.ChatState{}, err
	}
	if err := tx.Commit(); err != nil {
		return entity.ChatState{}, err
	}
	return state, nil
}

// Escalate ignora o claim: o pedido de humano vence qualquer worker em curso,
// cujo Advance posterior falha por status divergente.
func (r *ProspectRepository) Escalate(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE prospects
		SET status = 'alerta_humana', claim_token = NULL, claim_until = NULL, updated_at = $2
		WHERE id = $1 AND status <> 'alerta_humana'
	`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM prospects WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, entity.ErrNotFound
	}
	return false, nil
}

func (r *ProspectRepository) Reset(ctx context.Context, id string, at time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM prospects WHERE id = $1 FOR UPDATE`, id).Scan(&status); err != nil {
		return mapError(err)
	}
	if !entity.CanReset(entity.Status(status)) {
		return entity.ErrInvalidTransition
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE prospects
		SET status = 'cazado',
			claim_token = NULL,
			claim_until = NULL,
			spy_attempts = 0,
			process_attempts = 0,
			outreach_queued_at = NULL,
			last_error = '',
			updated_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return err
	}
	return tx.Commit()
}
