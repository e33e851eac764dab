package entity

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type CampaignStatus string

const (
	CampaignActive CampaignStatus = "active"
	CampaignPaused CampaignStatus = "paused"
)

// HuntPlan é a estratégia de busca decidida uma vez por campanha.
type HuntPlan struct {
	Platform Platform `json:"platform"`
	Audience Audience `json:"audience"`
	Query    string   `json:"query"`
}

func (h HuntPlan) Empty() bool {
	return h.Platform == "" || strings.TrimSpace(h.Query) == ""
}

// Entidade: Campaign
type Campaign struct {
	ID                 string         `json:"id"`
	ClientID           string         `json:"client_id"`
	Name               string         `json:"name"`
	ProductDescription string         `json:"product_description"`
	TargetAudience     string         `json:"target_audience"`
	Geo                string         `json:"geo"`
	RedFlags           string         `json:"red_flags"`
	Tone               string         `json:"tone"`
	TicketPrice        float64        `json:"ticket_price"`
	Competitors        []string       `json:"competitors"`
	DailyQuota         int            `json:"daily_prospects_quota"`
	Status             CampaignStatus `json:"status"`
	Plan               HuntPlan       `json:"hunt_plan"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Factory
func NewCampaign(clientID, name, product, audience, geo string, quota int) (*Campaign, error) {
	now := time.Now().UTC()
	c := &Campaign{
		ID:                 uuid.New().String(),
		ClientID:           clientID,
		Name:               strings.TrimSpace(name),
		ProductDescription: strings.TrimSpace(product),
		TargetAudience:     strings.TrimSpace(audience),
		Geo:                strings.TrimSpace(geo),
		DailyQuota:         quota,
		Status:             CampaignActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Campaign) Validate() error {
	if c.ClientID == "" {
		return errors.New("client id is required")
	}
	if c.ProductDescription == "" {
		return errors.New("product description is required")
	}
	if c.TargetAudience == "" {
		return errors.New("target audience is required")
	}
	if c.DailyQuota <= 0 {
		return errors.New("daily quota must be positive")
	}
	return nil
}

// RedFlagTerms quebra o texto livre de red flags em termos minúsculos.
func (c *Campaign) RedFlagTerms() []string {
	fields := strings.FieldsFunc(c.RedFlags, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	var terms []string
	for _, f := range fields {
		if t := strings.ToLower(strings.TrimSpace(f)); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}
