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

type NurtureConfig struct {
	BatchSize          int
	ClaimTTL           time.Duration
	ValueDelay         time.Duration
	SocialProofDelay   time.Duration
	BreakupDelay       time.Duration
	MaxAttempts        int
	QualifiedThreshold int
	OperatorEmail      string
	PublicBaseURL      string
}

// delayFor é o tempo parado no estágio antes do próximo toque.
func (c NurtureConfig) delayFor(s entity.Status) time.Duration {
	switch s {
	case entity.StatusPersuaded:
		return c.ValueDelay
	case entity.StatusNurture1:
		return c.SocialProofDelay
	case entity.StatusNurture2:
		return c.BreakupDelay
	}
	return 0
}

type DripOutput struct {
	Advanced int
	Released int
}

// Nurturer cuida do drip agendado e do chat ao vivo da landing.
type Nurturer struct {
	Prospects entity.ProspectRepository
	Campaigns entity.CampaignRepository
	Generator TextGenerator
	Queue     QueueProducerInterface
	Config    NurtureConfig
	Logger    *zap.Logger
	Now       Clock
}

func NewNurturer(prospects entity.ProspectRepository, campaigns entity.CampaignRepository, gen TextGenerator, q QueueProducerInterface, cfg NurtureConfig, logger *zap.Logger, now Clock) *Nurturer {
	return &Nurturer{
		Prospects: prospects,
		Campaigns: campaigns,
		Generator: gen,
		Queue:     q,
		Config:    cfg,
		Logger:    logger,
		Now:       clockOrSystem(now),
	}
}

// ------------------------------------------------------------------ drip

var dripKinds = map[entity.DripKind]queue.MessageKind{
	entity.DripValue:       queue.KindDripValue,
	entity.DripSocialProof: queue.KindDripSocialProof,
	entity.DripBreakup:     queue.KindDripBreakup,
}

var dripIntents = map[entity.DripKind]string{
	entity.DripValue:       "Aporta valor: un consejo práctico ligado a su problema principal, sin vender.",
	entity.DripSocialProof: "Prueba social: un caso breve de un negocio parecido que resolvió el mismo problema.",
	entity.DripBreakup:     "Despedida: último mensaje, amable, deja la puerta abierta y no insiste.",
}

// Drip avança no máximo um estágio por prospect a cada passada.
func (n *Nurturer) Drip(ctx context.Context) (DripOutput, error) {
	var out DripOutput
	campaigns := newCampaignCache(n.Campaigns)

	for _, stage := range []entity.Status{entity.StatusNurture2, entity.StatusNurture1, entity.StatusPersuaded} {
		now := n.Now()
		cutoff := now.Add(-n.Config.delayFor(stage))
		token := uuid.New().String()

		batch, err := n.Prospects.Claim(ctx, entity.ClaimRequest{
			Statuses:      []entity.Status{stage},
			TouchedBefore: &cutoff,
			Limit:         n.Config.BatchSize,
			Token:         token,
			Until:         now.Add(n.Config.ClaimTTL),
			Now:           now,
		})
		if err != nil {
			return out, newPipelineError(KindPersistence, "nurture.claim", err)
		}
		metrics.RecordClaims("nurturer", len(batch))

		for _, p := range batch {
			if n.touch(ctx, campaigns, p, token) {
				out.Advanced++
			} else {
				out.Released++
			}
		}
	}

	if out.Advanced+out.Released > 0 {
		n.Logger.Info("drip concluído",
			zap.String("worker", "nurturer"),
			zap.Int("advanced", out.Advanced),
			zap.Int("released", out.Released),
		)
	}
	return out, nil
}

func (n *Nurturer) touch(ctx context.Context, campaigns *campaignCache, p *entity.Prospect, token string) bool {
	log := n.Logger.With(zap.String("worker", "nurturer"), zap.String("prospect_id", p.ID))

	next, kind, ok := entity.NextNurtureStage(p.Status)
	if !ok {
		n.release(ctx, p, token, "estágio fora do drip")
		return false
	}
	campaign, err := campaigns.get(ctx, p.CampaignID)
	if err != nil {
		log.Error("campanha não encontrada", zap.Error(err))
		n.release(ctx, p, token, "campanha indisponível")
		return false
	}

	msg, err := n.composeDrip(ctx, campaign, p, kind)
	if err != nil {
		if n.Config.MaxAttempts <= 0 || p.ProcessAttempts < n.Config.MaxAttempts {
			log.Warn("geração do drip falhou", zap.String("kind", string(kind)), zap.Int("attempt", p.ProcessAttempts), zap.Error(err))
			n.release(ctx, p, token, err.Error())
			return false
		}
		log.Warn("tentativas esgotadas, usando mensagem padrão", zap.String("kind", string(kind)), zap.Error(err))
		msg = fallbackDrip(campaign, p, kind)
	}

	// grava antes de enviar: se o chat escalou no meio, o Advance falha e nada sai
	err = n.Prospects.Advance(ctx, entity.Advance{
		ProspectID: p.ID,
		ClaimToken: token,
		From:       p.Status,
		To:         next,
		Touch:      true,
		At:         n.Now(),
	})
	if err != nil {
		if !errors.Is(err, entity.ErrClaimLost) {
			log.Error("falha ao avançar drip", zap.Error(err))
			n.release(ctx, p, token, "falha ao avançar drip")
		}
		return false
	}
	metrics.RecordTransition(string(p.Status), string(next))

	if p.Email == "" {
		return true
	}
	err = n.Queue.PublishOutreach(ctx, queue.OutreachPayload{
		Kind:       dripKinds[kind],
		ProspectID: p.ID,
		CampaignID: p.CampaignID,
		To:         p.Email,
		Name:       p.BusinessName,
		Subject:    msg.Subject,
		Body:       msg.Body,
		LandingURL: n.Config.PublicBaseURL + "/p/" + p.AccessToken,
	})
	if err != nil {
		metrics.RecordIntegrationError("queue")
		log.Error("falha ao publicar drip", zap.String("kind", string(kind)), zap.Error(err))
	}
	return true
}

type dripMessage struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (n *Nurturer) composeDrip(ctx context.Context, campaign *entity.Campaign, p *entity.Prospect, kind entity.DripKind) (dripMessage, error) {
	ledger := entity.PainLedger{}
	if p.PainPoints != nil {
		ledger = *p.PainPoints
	}
	prompt := fmt.Sprintf("Objetivo: %s\nOferta: %s\nNegocio: %s\nHallazgos: %s\nTono: %s",
		dripIntents[kind], campaign.ProductDescription, p.BusinessName, ledger.Describe(), toneOrDefault(campaign.Tone))

	raw, err := n.Generator.Generate(ctx, GenerationRequest{
		Purpose: "drip_" + string(kind),
		System:  `Escribes correos de seguimiento breves. Responde SOLO JSON {"subject": "...", "body": "..."}.`,
		Prompt:  prompt,
		JSON:    true,
	})
	if err != nil {
		metrics.RecordIntegrationError("text_generation")
		return dripMessage{}, newPipelineError(KindGeneration, "nurture.drip", err)
	}
	var msg dripMessage
	if err := decodeJSONReply(raw, &msg); err != nil {
		return dripMessage{}, newPipelineError(KindGeneration, "nurture.drip.decode", err)
	}
	msg.Subject = truncateRunes(strings.TrimSpace(msg.Subject), entity.MaxSubjectLength)
	msg.Body = strings.TrimSpace(msg.Body)
	if msg.Subject == "" || msg.Body == "" {
		return dripMessage{}, newPipelineError(KindGeneration, "nurture.drip.validate", errors.New("assunto ou corpo vazio"))
	}
	return msg, nil
}

// fallbackDrip é o texto fixo de cada estágio quando o gerador não responde.
func fallbackDrip(campaign *entity.Campaign, p *entity.Prospect, kind entity.DripKind) dripMessage {
	switch kind {
	case entity.DripSocialProof:
		return dripMessage{
			Subject: truncateRunes("Negocios como "+p.BusinessName+" ya lo usan", entity.MaxSubjectLength),
			Body:    fmt.Sprintf("Hola, equipo de %s. Otros negocios de la zona ya trabajan con nosotros: %s. Si quieres ver cómo, tu página sigue disponible.", p.BusinessName, campaign.ProductDescription),
		}
	case entity.DripBreakup:
		return dripMessage{
			Subject: "Último mensaje de nuestra parte",
			Body:    fmt.Sprintf("Hola, equipo de %s. No volveremos a escribir. Si más adelante te interesa %s, tu página seguirá disponible.", p.BusinessName, campaign.ProductDescription),
		}
	}
	return dripMessage{
		Subject: truncateRunes("Una idea para "+p.BusinessName, entity.MaxSubjectLength),
		Body:    fmt.Sprintf("Hola, equipo de %s. Preparamos una propuesta breve: %s. Puedes verla en tu página personal.", p.BusinessName, campaign.ProductDescription),
	}
}

func (n *Nurturer) release(ctx context.Context, p *entity.Prospect, token, reason string) {
	if err := n.Prospects.Release(context.WithoutCancel(ctx), p.ID, token, reason); err != nil && !errors.Is(err, entity.ErrClaimLost) {
		n.Logger.Warn("falha ao liberar claim", zap.String("prospect_id", p.ID), zap.Error(err))
	}
}
