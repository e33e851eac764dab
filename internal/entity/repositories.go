package entity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("registro não encontrado")
	ErrClaimLost         = errors.New("claim perdido ou estágio alterado")
	ErrInvalidTransition = errors.New("transição de estágio inválida")
	ErrDuplicate         = errors.New("registro duplicado")
)

type ContactFilter int

const (
	ContactAny ContactFilter = iota
	ContactPresent
	ContactMissing
)

// ClaimRequest descreve um lote a ser reservado com exclusividade.
// Linhas com claim vigente nunca entram no lote.
type ClaimRequest struct {
	Statuses      []Status
	CampaignID    string
	Contact       ContactFilter
	FreshForSpy   bool       // spy_attempts = 0
	TouchedBefore *time.Time // last_touch_at <= TouchedBefore
	Limit         int
	Token         string
	Until         time.Time
	Now           time.Time
}

// Advance é a mudança de estágio feita por quem detém o claim.
// Campos vazios não sobrescrevem o que já existe.
type Advance struct {
	ProspectID  string
	ClaimToken  string
	From        Status
	To          Status
	Email       string
	Phone       string
	PainPoints  *PainLedger
	Content     *ContentBundle
	AccessToken string
	Touch       bool
	Note        string
	At          time.Time
}

type ChatState struct {
	Interactions   int
	Qualified      bool
	NewlyQualified bool
}

type ProspectRepository interface {
	Insert(ctx context.Context, p *Prospect) (bool, error)
	FindByID(ctx context.Context, id string) (*Prospect, error)
	FindByAccessToken(ctx context.Context, token string) (*Prospect, error)
	CountCreatedSince(ctx context.Context, campaignID string, since time.Time) (int, error)
	PromoteContacted(ctx context.Context, campaignID string, now time.Time) (int, error)

	Claim(ctx context.Context, req ClaimRequest) ([]*Prospect, error)
	Advance(ctx context.Context, a Advance) error
	Release(ctx context.Context, id, claimToken, reason string) error
	MarkSpyAttempt(ctx context.Context, id, claimToken string) error
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)

	ListPendingOutreach(ctx context.Context, limit int) ([]*Prospect, error)
	MarkOutreachQueued(ctx context.Context, id string, at time.Time) error

	RecordChatTurns(ctx context.Context, id string, turns []ChatTurn, threshold int, at time.Time) (ChatState, error)
	Escalate(ctx context.Context, id string, at time.Time) (bool, error)
	Reset(ctx context.Context, id string, at time.Time) error
}

type CampaignRepository interface {
	Create(ctx context.Context, c *Campaign) error
	FindByID(ctx context.Context, id string) (*Campaign, error)
	ListRunnable(ctx context.Context) ([]*Campaign, error)
	UpdateStatus(ctx context.Context, id string, status CampaignStatus) error
	SaveHuntPlan(ctx context.Context, id string, plan HuntPlan) error
	PauseByClient(ctx context.Context, clientID string) (int, error)
}

type ClientRepository interface {
	Create(ctx context.Context, c *Client) error
	FindByID(ctx context.Context, id string) (*Client, error)
	ListBillable(ctx context.Context) ([]*Client, error)
	UpdateBilling(ctx context.Context, c *Client) error
	Purge(ctx context.Context, clientID string, at time.Time) error
}

type ToolRepository interface {
	Best(ctx context.Context, platform Platform, audience Audience) (*ToolCatalogEntry, error)
	Upsert(ctx context.Context, t *ToolCatalogEntry) error
}

type SpendRepository interface {
	Usage(ctx context.Context, campaignID string, worker PaidWorker, now time.Time) (SpendUsage, error)
	Record(ctx context.Context, campaignID string, worker PaidWorker, units int, at time.Time) error
}
