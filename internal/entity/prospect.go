package entity

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Entidade: Prospect
type Prospect struct {
	ID           string `json:"id"`
	CampaignID   string `json:"campaign_id"`
	ToolID       string `json:"tool_id,omitempty"`
	SourceKey    string `json:"source_key"`
	BusinessName string `json:"business_name"`
	Website      string `json:"website,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`

	// plataforma -> handle ou URL (instagram, tiktok, facebook...)
	SocialProfiles map[string]string `json:"social_profiles,omitempty"`
	ReviewSnippets []string          `json:"review_snippets,omitempty"`

	Status      Status         `json:"status"`
	PainPoints  *PainLedger    `json:"pain_points,omitempty"`
	Content     *ContentBundle `json:"content,omitempty"`
	AccessToken string         `json:"access_token,omitempty"`

	Interactions int        `json:"interactions"`
	Qualified    bool       `json:"qualified"`
	QualifiedAt  *time.Time `json:"qualified_at,omitempty"`
	Conversation []ChatTurn `json:"conversation,omitempty"`

	SpyAttempts     int        `json:"spy_attempts"`
	ProcessAttempts int        `json:"process_attempts"`
	ClaimToken      string     `json:"-"`
	ClaimUntil      *time.Time `json:"-"`

	LastTouchAt      *time.Time      `json:"last_touch_at,omitempty"`
	OutreachQueuedAt *time.Time      `json:"outreach_queued_at,omitempty"`
	LastError        string          `json:"last_error,omitempty"`
	RawPayload       json.RawMessage `json:"-"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type ChatTurn struct {
	Role string    `json:"role"` // prospect | agent
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

const MaxConversationTurns = 20

// Factory
func NewProspect(campaignID, businessName string) (*Prospect, error) {
	now := time.Now().UTC()
	p := &Prospect{
		ID:           uuid.New().String(),
		CampaignID:   campaignID,
		BusinessName: strings.TrimSpace(businessName),
		Status:       StatusHunted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Prospect) Validate() error {
	if p.CampaignID == "" {
		return errors.New("campaign id is required")
	}
	if p.BusinessName == "" {
		return errors.New("business name is required")
	}
	return nil
}

// HasContact indica se já existe um canal direto (email ou telefone).
func (p *Prospect) HasContact() bool {
	return p.Email != "" || p.Phone != ""
}

// NaturalKey é a chave de dedup: URL de descoberta, senão nome+dígitos do
// telefone, senão nome+site. Vazio quando não há identidade utilizável.
func NaturalKey(discoveryURL, businessName, phone, website string) string {
	if u := strings.TrimSpace(strings.ToLower(discoveryURL)); u != "" {
		return "url:" + strings.TrimSuffix(u, "/")
	}
	name := compactLower(businessName)
	if name == "" {
		return ""
	}
	if d := digitsOnly(phone); d != "" {
		return "tel:" + name + ":" + d
	}
	if w := strings.TrimSpace(strings.ToLower(website)); w != "" {
		w = strings.TrimPrefix(strings.TrimPrefix(w, "https://"), "http://")
		return "web:" + name + ":" + strings.TrimSuffix(strings.TrimPrefix(w, "www."), "/")
	}
	return ""
}

// AppendTurn mantém só as últimas MaxConversationTurns mensagens.
func AppendTurn(conv []ChatTurn, turn ChatTurn) []ChatTurn {
	conv = append(conv, turn)
	if len(conv) > MaxConversationTurns {
		conv = conv[len(conv)-MaxConversationTurns:]
	}
	return conv
}

func compactLower(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
