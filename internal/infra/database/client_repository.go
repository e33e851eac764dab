package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
)

type ClientRepository struct {
	DB *sql.DB
}

func NewClientRepository(db *sql.DB) *ClientRepository {
	return &ClientRepository{DB: db}
}

var _ entity.ClientRepository = (*ClientRepository)(nil)

const clientColumns = `
	id, name, email, balance, plan_cost, billing_status, next_payment_at,
	alert_sent, suspended_at, created_at, updated_at`

func scanClient(row rowScanner) (*entity.Client, error) {
	var (
		c         entity.Client
		status    string
		suspended sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Email, &c.Balance, &c.PlanCost, &status, &c.NextPaymentAt,
		&c.AlertSent, &suspended, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	c.BillingStatus = entity.BillingStatus(status)
	c.SuspendedAt = nullTime(suspended)
	return &c, nil
}

func (r *ClientRepository) Create(ctx context.Context, c *entity.Client) error {
	query := `
		INSERT INTO clients (
			id, name, email, balance, plan_cost, billing_status, next_payment_at,
			alert_sent, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.DB.ExecContext(ctx, query,
		c.ID, c.Name, c.Email, c.Balance, c.PlanCost, string(c.BillingStatus), c.NextPaymentAt,
		c.AlertSent, c.CreatedAt, c.UpdatedAt,
	)
	return mapError(err)
}

func (r *ClientRepository) FindByID(ctx context.Context, id string) (*entity.Client, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	return scanClient(row)
}

func (r *ClientRepository) ListBillable(ctx context.Context) ([]*entity.Client, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE billing_status <> 'deleted_data'
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ClientRepository) UpdateBilling(ctx context.Context, c *entity.Client) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE clients
		SET balance = $2,
			billing_status = $3,
			next_payment_at = $4,
			alert_sent = $5,
			suspended_at = $6,
			updated_at = $7
		WHERE id = $1
	`, c.ID, c.Balance, string(c.BillingStatus), c.NextPaymentAt, c.AlertSent, c.SuspendedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	return expectFound(res)
}

// Purge apaga campanhas (e em cascata prospects e gastos) e marca o cliente.
// O registro do cliente fica para auditoria.
func (r *ClientRepository) Purge(ctx context.Context, clientID string, at time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM campaigns WHERE client_id = $1`, clientID); err != nil {
		return fmt.Errorf("erro ao apagar campanhas: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE clients SET billing_status = 'deleted_data', updated_at = $2 WHERE id = $1
	`, clientID, at)
	if err != nil {
		return err
	}
	if err := expectFound(res); err != nil {
		return err
	}
	return tx.Commit()
}
