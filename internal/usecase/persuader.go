package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/infra/metrics"
	"github.com/xavierca1/prospect-pipeline/internal/infra/queue"
)

type PersuaderConfig struct {
	BatchSize   int
	ClaimTTL    time.Duration
	MaxAttempts int
}

type PersuaderOutput struct {
	Claimed   int
	Persuaded int
	Released  int
	GaveUp    int
}

// Persuader gera a abordagem personalizada e o token da landing.
type Persuader struct {
	Prospects entity.ProspectRepository
	Campaigns entity.CampaignRepository
	Generator TextGenerator
	Config    PersuaderConfig
	Logger    *zap.Logger
	Now       Clock
}

func NewPersuader(prospects entity.ProspectRepository, campaigns entity.CampaignRepository, gen TextGenerator, cfg PersuaderConfig, logger *zap.Logger, now Clock) *Persuader {
	return &Persuader{
		Prospects: prospects,
		Campaigns: campaigns,
		Generator: gen,
		Config:    cfg,
		Logger:    logger,
		Now:       clockOrSystem(now),
	}
}

// outreachReply é o formato exigido do gerador.
type outreachReply struct {
	Subject         string `json:"subject"`
	Body            string `json:"body"`
	LandingHeadline string `json:"landing_headline"`
	LandingBody     string `json:"landing_body"`
}

const persuaderSystemPrompt = `Eres un vendedor B2B. Escribes un primer contacto breve y concreto,
basado SOLO en los hallazgos entregados. Responde SOLO JSON con las claves
"subject", "body", "landing_headline", "landing_body".`

func (p *Persuader) Execute(ctx context.Context) (PersuaderOutput, error) {
	var out PersuaderOutput
	now := p.Now()
	token := uuid.New().String()

	batch, err := p.Prospects.Claim(ctx, entity.ClaimRequest{
		Statuses: []entity.Status{entity.StatusQualified},
		Limit:    p.Config.BatchSize,
		Token:    token,
		Until:    now.Add(p.Config.ClaimTTL),
		Now:      now,
	})
	if err != nil {
		return out, newPipelineError(KindPersistence, "persuader.claim", err)
	}
	out.Claimed = len(batch)
	metrics.RecordClaims("persuader", len(batch))

	campaigns := newCampaignCache(p.Campaigns)
	for _, prospect := range batch {
		switch p.process(ctx, campaigns, prospect, token) {
		case entity.StatusPersuaded:
			out.Persuaded++
		case entity.StatusDiscarded:
			out.GaveUp++
		default:
			out.Released++
		}
	}

	if out.Claimed > 0 {
		p.Logger.Info("persuasão concluída",
			zap.String("worker", "persuader"),
			zap.Int("claimed", out.Claimed),
			zap.Int("persuaded", out.Persuaded),
			zap.Int("released", out.Released),
			zap.Int("gave_up", out.GaveUp),
		)
	}
	return out, nil
}

func (p *Persuader) process(ctx context.Context, campaigns *campaignCache, prospect *entity.Prospect, token string) entity.Status {
	log := p.Logger.With(zap.String("worker", "persuader"), zap.String("prospect_id", prospect.ID))

	campaign, err := campaigns.get(ctx, prospect.CampaignID)
	if err != nil {
		log.Error("campanha não encontrada", zap.Error(err))
		return p.fail(ctx, prospect, token, "campanha indisponível")
	}

	content, err := p.Compose(ctx, campaign, prospect)
	if err != nil {
		log.Warn("geração falhou", zap.Int("attempt", prospect.ProcessAttempts), zap.Error(err))
		return p.fail(ctx, prospect, token, err.Error())
	}

	// token já emitido nunca é trocado
	access := prospect.AccessToken
	if access == "" {
		if access, err = entity.NewAccessToken(); err != nil {
			return p.fail(ctx, prospect, token, "falha ao gerar token")
		}
	}

	err = p.Prospects.Advance(ctx, entity.Advance{
		ProspectID:  prospect.ID,
		ClaimToken:  token,
		From:        entity.StatusQualified,
		To:          entity.StatusPersuaded,
		Content:     content,
		AccessToken: access,
		Touch:       true,
		At:          p.Now(),
	})
	switch {
	case err == nil:
		metrics.RecordTransition(string(entity.StatusQualified), string(entity.StatusPersuaded))
		return entity.StatusPersuaded
	case errors.Is(err, entity.ErrClaimLost):
		log.Warn("claim perdido antes de gravar a abordagem")
		return ""
	default:
		log.Error("falha ao gravar abordagem", zap.Error(err))
		return p.fail(ctx, prospect, token, "falha ao gravar abordagem")
	}
}

// fail libera o claim; esgotadas as tentativas o prospect é descartado.
func (p *Persuader) fail(ctx context.Context, prospect *entity.Prospect, token, reason string) entity.Status {
	ctx = context.WithoutCancel(ctx)
	if p.Config.MaxAttempts > 0 && prospect.ProcessAttempts >= p.Config.MaxAttempts {
		err := p.Prospects.Advance(ctx, entity.Advance{
			ProspectID: prospect.ID,
			ClaimToken: token,
			From:       entity.StatusQualified,
			To:         entity.StatusDiscarded,
			Note:       "tentativas esgotadas: " + reason,
			At:         p.Now(),
		})
		if err == nil {
			metrics.RecordTransition(string(entity.StatusQualified), string(entity.StatusDiscarded))
			return entity.StatusDiscarded
		}
		p.Logger.Warn("falha ao descartar prospect", zap.String("prospect_id", prospect.ID), zap.Error(err))
	}
	if err := p.Prospects.Release(ctx, prospect.ID, token, reason); err != nil && !errors.Is(err, entity.ErrClaimLost) {
		p.Logger.Warn("falha ao liberar claim", zap.String("prospect_id", prospect.ID), zap.Error(err))
	}
	return ""
}

// Compose pede o conteúdo ao gerador e valida antes de qualquer escrita.
func (p *Persuader) Compose(ctx context.Context, campaign *entity.Campaign, prospect *entity.Prospect) (*entity.ContentBundle, error) {
	ledger := entity.PainLedger{}
	if prospect.PainPoints != nil {
		ledger = *prospect.PainPoints
	}

	prompt := fmt.Sprintf(`Oferta: %s
Precio: %.2f
Tono: %s
Negocio: %s
Hallazgos: %s`,
		campaign.ProductDescription, campaign.TicketPrice, toneOrDefault(campaign.Tone),
		prospect.BusinessName, ledger.Describe())

	raw, err := p.Generator.Generate(ctx, GenerationRequest{
		Purpose: "outreach",
		System:  persuaderSystemPrompt,
		Prompt:  prompt,
		JSON:    true,
	})
	if err != nil {
		metrics.RecordIntegrationError("text_generation")
		return nil, newPipelineError(KindGeneration, "persuader.generate", err)
	}

	var reply outreachReply
	if err := decodeJSONReply(raw, &reply); err != nil {
		return nil, newPipelineError(KindGeneration, "persuader.decode", err)
	}
	content := &entity.ContentBundle{
		Subject:         reply.Subject,
		Body:            reply.Body,
		LandingHeadline: reply.LandingHeadline,
		LandingBody:     reply.LandingBody,
	}
	if err := content.Validate(); err != nil {
		return nil, newPipelineError(KindGeneration, "persuader.validate", err)
	}
	return content, nil
}

func toneOrDefault(t string) string {
	if strings.TrimSpace(t) == "" {
		return "cercano y profesional"
	}
	return t
}

// OutreachDispatcher publica a primeira abordagem de quem já está persuadido.
type OutreachDispatcher struct {
	Prospects     entity.ProspectRepository
	Queue         QueueProducerInterface
	PublicBaseURL string
	BatchSize     int
	Logger        *zap.Logger
	Now           Clock
}

func NewOutreachDispatcher(prospects entity.ProspectRepository, q QueueProducerInterface, publicBaseURL string, batchSize int, logger *zap.Logger, now Clock) *OutreachDispatcher {
	return &OutreachDispatcher{
		Prospects:     prospects,
		Queue:         q,
		PublicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		BatchSize:     batchSize,
		Logger:        logger,
		Now:           clockOrSystem(now),
	}
}

func (d *OutreachDispatcher) LandingURL(token string) string {
	return d.PublicBaseURL + "/p/" + token
}

// Execute devolve quantas mensagens foram publicadas. Falha de publicação
// mantém o prospect pendente para o próximo ciclo.
func (d *OutreachDispatcher) Execute(ctx context.Context) (int, error) {
	pending, err := d.Prospects.ListPendingOutreach(ctx, d.BatchSize)
	if err != nil {
		return 0, newPipelineError(KindPersistence, "outreach.list", err)
	}

	sent := 0
	for _, p := range pending {
		if p.Email != "" && p.Content != nil {
			err := d.Queue.PublishOutreach(ctx, queue.OutreachPayload{
				Kind:       queue.KindOutreach,
				ProspectID: p.ID,
				CampaignID: p.CampaignID,
				To:         p.Email,
				Name:       p.BusinessName,
				Subject:    p.Content.Subject,
				Body:       p.Content.Body,
				LandingURL: d.LandingURL(p.AccessToken),
			})
			if err != nil {
				metrics.RecordIntegrationError("queue")
				d.Logger.Error("falha ao publicar abordagem", zap.String("prospect_id", p.ID), zap.Error(err))
				continue
			}
			sent++
		} else {
			d.Logger.Warn("prospect persuadido sem email, nada a enviar", zap.String("prospect_id", p.ID))
		}
		if err := d.Prospects.MarkOutreachQueued(ctx, p.ID, d.Now()); err != nil {
			d.Logger.Error("falha ao marcar abordagem enfileirada", zap.String("prospect_id", p.ID), zap.Error(err))
		}
	}
	return sent, nil
}
