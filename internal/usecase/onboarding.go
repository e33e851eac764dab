package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
)

// Onboarding cadastra clientes e campanhas pelo CLI do operador.
type Onboarding struct {
	Clients   entity.ClientRepository
	Campaigns entity.CampaignRepository
	Logger    *zap.Logger
	Now       Clock
}

func NewOnboarding(clients entity.ClientRepository, campaigns entity.CampaignRepository, logger *zap.Logger, now Clock) *Onboarding {
	return &Onboarding{Clients: clients, Campaigns: campaigns, Logger: logger, Now: clockOrSystem(now)}
}

func joinValidation(errs []ValidationError) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return &DomainError{Code: "VALIDATION", Message: strings.Join(msgs, "; ")}
}

func (o *Onboarding) CreateClient(ctx context.Context, input CreateClientInput) (*CreateClientOutput, error) {
	if errs := ValidateCreateClientInput(input); len(errs) > 0 {
		return nil, joinValidation(errs)
	}

	first := o.Now().AddDate(0, 1, 0)
	if strings.TrimSpace(input.FirstPayment) != "" {
		t, err := parseDate(input.FirstPayment)
		if err != nil {
			return nil, &DomainError{Code: "VALIDATION", Message: "first_payment: is invalid"}
		}
		first = t
	}

	client, err := entity.NewClient(strings.TrimSpace(input.Name), strings.TrimSpace(input.Email), input.PlanCost, first)
	if err != nil {
		return nil, &DomainError{Code: "VALIDATION", Message: err.Error()}
	}
	client.Balance = input.Balance

	if err := o.Clients.Create(ctx, client); err != nil {
		if errors.Is(err, entity.ErrDuplicate) {
			return nil, &DomainError{Code: "DUPLICATE", Message: "já existe um cliente com esse email"}
		}
		return nil, fmt.Errorf("erro ao salvar cliente: %w", err)
	}

	o.Logger.Info("cliente cadastrado", zap.String("client_id", client.ID))
	return &CreateClientOutput{
		ID:            client.ID,
		Name:          client.Name,
		NextPaymentAt: client.NextPaymentAt.Format(time.DateOnly),
	}, nil
}

func (o *Onboarding) CreateCampaign(ctx context.Context, input CreateCampaignInput) (*CreateCampaignOutput, error) {
	if errs := ValidateCreateCampaignInput(input); len(errs) > 0 {
		return nil, joinValidation(errs)
	}

	client, err := o.Clients.FindByID(ctx, input.ClientID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, &DomainError{Code: "CLIENT_NOT_FOUND", Message: "cliente não encontrado"}
		}
		return nil, fmt.Errorf("erro ao buscar cliente: %w", err)
	}
	if !client.PaidUp() {
		return nil, &DomainError{Code: "CLIENT_SUSPENDED", Message: "cliente sem pagamento em dia"}
	}

	campaign, err := entity.NewCampaign(client.ID, input.Name, input.ProductDescription, input.TargetAudience, input.Geo, input.DailyQuota)
	if err != nil {
		return nil, &DomainError{Code: "VALIDATION", Message: err.Error()}
	}
	campaign.RedFlags = strings.TrimSpace(input.RedFlags)
	campaign.Tone = strings.TrimSpace(input.Tone)
	campaign.TicketPrice = input.TicketPrice
	for _, c := range input.Competitors {
		campaign.Competitors = append(campaign.Competitors, strings.TrimSpace(c))
	}

	if err := o.Campaigns.Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("erro ao salvar campanha: %w", err)
	}

	o.Logger.Info("campanha criada",
		zap.String("campaign_id", campaign.ID),
		zap.String("client_id", client.ID),
		zap.Int("daily_quota", campaign.DailyQuota),
	)
	return &CreateCampaignOutput{ID: campaign.ID, Name: campaign.Name, Status: string(campaign.Status)}, nil
}

// FindLanding resolve o token para o conteúdo da página pessoal.
func FindLanding(ctx context.Context, prospects entity.ProspectRepository, token string) (*LandingOutput, error) {
	p, err := prospects.FindByAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if p.Content == nil {
		return nil, entity.ErrNotFound
	}
	return &LandingOutput{
		BusinessName: p.BusinessName,
		Headline:     p.Content.LandingHeadline,
		Body:         p.Content.LandingBody,
	}, nil
}
