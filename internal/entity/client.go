package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type BillingStatus string

const (
	BillingActive    BillingStatus = "active"
	BillingSuspended BillingStatus = "suspended"
	BillingPurged    BillingStatus = "deleted_data"
)

// Entidade: Client (quem contrata as campanhas)
type Client struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Balance       float64       `json:"balance"`
	PlanCost      float64       `json:"plan_cost"`
	BillingStatus BillingStatus `json:"billing_status"`
	NextPaymentAt time.Time     `json:"next_payment_at"`
	AlertSent     bool          `json:"alert_sent"`
	SuspendedAt   *time.Time    `json:"suspended_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Factory
func NewClient(name, email string, planCost float64, firstPayment time.Time) (*Client, error) {
	now := time.Now().UTC()
	c := &Client{
		ID:            uuid.New().String(),
		Name:          name,
		Email:         email,
		PlanCost:      planCost,
		BillingStatus: BillingActive,
		NextPaymentAt: firstPayment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.Email == "" {
		return errors.New("email is required")
	}
	if c.PlanCost < 0 {
		return errors.New("plan cost must not be negative")
	}
	return nil
}

func (c *Client) PaidUp() bool {
	return c.BillingStatus == BillingActive
}
