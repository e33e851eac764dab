package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/infra/metrics"
)

type AnalystConfig struct {
	BatchSize         int
	Parallelism       int
	ClaimTTL          time.Duration
	MaxAttempts       int
	SlowSiteThreshold time.Duration
}

type AnalystOutput struct {
	Claimed    int
	Qualified  int
	LowQuality int
	Discarded  int
	Released   int
}

type Verdict struct {
	Status entity.Status
	Ledger entity.PainLedger
	Reason string
}

// Analyst qualifica prospects com contato e monta o ledger de dores.
type Analyst struct {
	Prospects  entity.ProspectRepository
	Campaigns  entity.CampaignRepository
	Sites      SiteProbe
	Generator  TextGenerator
	Reputation ReputationCache
	Config     AnalystConfig
	Logger     *zap.Logger
	Now        Clock
}

func NewAnalyst(prospects entity.ProspectRepository, campaigns entity.CampaignRepository, sites SiteProbe, gen TextGenerator, cache ReputationCache, cfg AnalystConfig, logger *zap.Logger, now Clock) *Analyst {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	return &Analyst{
		Prospects:  prospects,
		Campaigns:  campaigns,
		Sites:      sites,
		Generator:  gen,
		Reputation: cache,
		Config:     cfg,
		Logger:     logger,
		Now:        clockOrSystem(now),
	}
}

func (a *Analyst) Execute(ctx context.Context) (AnalystOutput, error) {
	var out AnalystOutput
	now := a.Now()
	token := uuid.New().String()

	batch, err := a.Prospects.Claim(ctx, entity.ClaimRequest{
		Statuses: []entity.Status{entity.StatusSpied, entity.StatusHunted},
		Contact:  entity.ContactPresent,
		Limit:    a.Config.BatchSize,
		Token:    token,
		Until:    now.Add(a.Config.ClaimTTL),
		Now:      now,
	})
	if err != nil {
		return out, newPipelineError(KindPersistence, "analyst.claim", err)
	}
	out.Claimed = len(batch)
	metrics.RecordClaims("analyst", len(batch))
	if len(batch) == 0 {
		return out, nil
	}

	campaigns := newCampaignCache(a.Campaigns)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Config.Parallelism)
	for _, p := range batch {
		g.Go(func() error {
			status := a.process(gctx, campaigns, p, token)
			mu.Lock()
			defer mu.Unlock()
			switch status {
			case entity.StatusQualified:
				out.Qualified++
			case entity.StatusLowQuality:
				out.LowQuality++
			case entity.StatusDiscarded:
				out.Discarded++
			default:
				out.Released++
			}
			return nil
		})
	}
	_ = g.Wait()

	a.Logger.Info("análise concluída",
		zap.String("worker", "analyst"),
		zap.Int("claimed", out.Claimed),
		zap.Int("qualified", out.Qualified),
		zap.Int("low_quality", out.LowQuality),
		zap.Int("discarded", out.Discarded),
		zap.Int("released", out.Released),
	)
	return out, nil
}

// process devolve o estágio final, ou "" quando o claim foi liberado.
func (a *Analyst) process(ctx context.Context, campaigns *campaignCache, p *entity.Prospect, token string) entity.Status {
	log := a.Logger.With(zap.String("worker", "analyst"), zap.String("prospect_id", p.ID))

	campaign, err := campaigns.get(ctx, p.CampaignID)
	if err != nil {
		log.Error("campanha não encontrada", zap.Error(err))
		a.release(ctx, p, token, "campanha indisponível")
		return ""
	}

	verdict, err := a.Evaluate(ctx, campaign, p, p.ProcessAttempts >= a.Config.MaxAttempts)
	if err != nil {
		log.Warn("avaliação incompleta, liberando claim", zap.Int("attempt", p.ProcessAttempts), zap.Error(err))
		a.release(ctx, p, token, err.Error())
		return ""
	}

	err = a.Prospects.Advance(ctx, entity.Advance{
		ProspectID: p.ID,
		ClaimToken: token,
		From:       p.Status,
		To:         verdict.Status,
		PainPoints: &verdict.Ledger,
		Note:       verdict.Reason,
		At:         a.Now(),
	})
	if err != nil {
		log.Error("falha ao gravar veredito", zap.Error(err))
		if !errors.Is(err, entity.ErrClaimLost) {
			a.release(ctx, p, token, "falha ao gravar veredito")
		}
		return ""
	}
	metrics.RecordTransition(string(p.Status), string(verdict.Status))
	if verdict.Status != entity.StatusQualified {
		log.Info("prospect reprovado",
			zap.String("status", string(verdict.Status)),
			zap.Error(newPipelineError(KindDataQuality, "analyst.verdict", errors.New(verdict.Reason))),
		)
	}
	return verdict.Status
}

func (a *Analyst) release(ctx context.Context, p *entity.Prospect, token, reason string) {
	if err := a.Prospects.Release(context.WithoutCancel(ctx), p.ID, token, reason); err != nil && !errors.Is(err, entity.ErrClaimLost) {
		a.Logger.Warn("falha ao liberar claim", zap.String("prospect_id", p.ID), zap.Error(err))
	}
}

// Evaluate é determinístico para as mesmas entradas: não olha claim nem relógio.
// skipReputation ignora o sinal de reviews quando a classificação já falhou demais.
func (a *Analyst) Evaluate(ctx context.Context, campaign *entity.Campaign, p *entity.Prospect, skipReputation bool) (Verdict, error) {
	var ledger entity.PainLedger

	haystack := strings.ToLower(strings.Join(append([]string{p.BusinessName, p.Website}, p.ReviewSnippets...), " "))
	for _, term := range campaign.RedFlagTerms() {
		if strings.Contains(haystack, term) {
			ledger.Add(entity.PainRedFlag, term)
		}
	}
	name := compactText(p.BusinessName + " " + p.Website)
	for _, comp := range campaign.Competitors {
		if c := compactText(comp); c != "" && strings.Contains(name, c) {
			ledger.Add(entity.PainCompetitor, comp)
		}
	}

	if strings.TrimSpace(p.Website) == "" {
		ledger.Add(entity.PainNoWebsite, "")
	} else {
		report, err := a.Sites.Probe(ctx, p.Website)
		switch {
		case err != nil || !report.Reachable:
			evidence := "sem resposta"
			if report.StatusCode > 0 {
				evidence = fmt.Sprintf("HTTP %d", report.StatusCode)
			}
			ledger.Add(entity.PainSiteUnreachable, evidence)
		default:
			if a.Config.SlowSiteThreshold > 0 && report.Latency > a.Config.SlowSiteThreshold {
				ledger.Add(entity.PainSlowSite, "acima de "+a.Config.SlowSiteThreshold.String())
			}
			if !report.HasWhatsApp {
				ledger.Add(entity.PainNoWhatsAppLink, "")
			}
			if !report.HasMailto {
				ledger.Add(entity.PainNoVisibleEmail, "")
			}
		}
	}

	if p.Email == "" {
		ledger.Add(entity.PainNoEmailChannel, "")
	}
	if p.Phone == "" {
		ledger.Add(entity.PainNoPhoneChannel, "")
	}

	if len(p.ReviewSnippets) > 0 && !skipReputation {
		tag, err := a.classifyReviews(ctx, p.ReviewSnippets)
		if err != nil {
			return Verdict{}, err
		}
		ledger.Add(tag, fmt.Sprintf("%d reviews negativas", len(p.ReviewSnippets)))
	}

	ledger.Normalize()
	return decide(ledger, p), nil
}

func decide(ledger entity.PainLedger, p *entity.Prospect) Verdict {
	for _, f := range ledger.Findings {
		if f.Tag.Disqualifying() {
			return Verdict{Status: entity.StatusDiscarded, Ledger: ledger, Reason: string(f.Tag) + ": " + f.Evidence}
		}
	}
	// a entrega da abordagem é por email
	if p.Email == "" {
		return Verdict{Status: entity.StatusLowQuality, Ledger: ledger, Reason: "sem email para abordagem"}
	}
	if len(ledger.SellingPoints()) == 0 {
		return Verdict{Status: entity.StatusLowQuality, Ledger: ledger, Reason: "nenhuma oportunidade encontrada"}
	}
	return Verdict{Status: entity.StatusQualified, Ledger: ledger}
}

var reviewCategories = map[string]entity.PainTag{
	"service":  entity.PainServiceComplaints,
	"price":    entity.PainPriceComplaints,
	"quality":  entity.PainQualityComplaints,
	"timing":   entity.PainSlowResponse,
	"other":    entity.PainOtherComplaints,
	"servicio": entity.PainServiceComplaints,
	"precio":   entity.PainPriceComplaints,
	"calidad":  entity.PainQualityComplaints,
	"tiempo":   entity.PainSlowResponse,
	"otro":     entity.PainOtherComplaints,
}

const reviewSystemPrompt = `Clasificas quejas de clientes de un negocio local.
Responde SOLO JSON: {"category": "service" | "price" | "quality" | "timing" | "other"}.
"timing" cubre demoras, reservas y tiempos de respuesta.`

func (a *Analyst) classifyReviews(ctx context.Context, reviews []string) (entity.PainTag, error) {
	sum := sha256.Sum256([]byte(strings.Join(reviews, "\n")))
	key := "reputation:" + hex.EncodeToString(sum[:])

	if a.Reputation != nil {
		if cached, ok, err := a.Reputation.Get(ctx, key); err == nil && ok {
			if tag, known := reviewCategories[cached]; known {
				return tag, nil
			}
		}
	}

	var prompt strings.Builder
	prompt.WriteString("Reseñas negativas:\n")
	for _, r := range reviews {
		prompt.WriteString("- ")
		prompt.WriteString(truncateRunes(r, 500))
		prompt.WriteString("\n")
	}

	raw, err := a.Generator.Generate(ctx, GenerationRequest{
		Purpose:       "review_classification",
		System:        reviewSystemPrompt,
		Prompt:        prompt.String(),
		JSON:          true,
		Deterministic: true,
	})
	if err != nil {
		metrics.RecordIntegrationError("text_generation")
		return "", newPipelineError(KindExternalAPI, "analyst.classify", err)
	}

	var reply struct {
		Category string `json:"category"`
	}
	category := "other"
	if err := decodeJSONReply(raw, &reply); err == nil {
		if c := strings.ToLower(strings.TrimSpace(reply.Category)); c != "" {
			if _, known := reviewCategories[c]; known {
				category = c
			}
		}
	}

	if a.Reputation != nil {
		if err := a.Reputation.Set(ctx, key, category); err != nil {
			a.Logger.Warn("falha ao gravar cache de reputação", zap.Error(err))
		}
	}
	return reviewCategories[category], nil
}

func compactText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// campaignCache evita reler a mesma campanha para cada prospect do lote.
type campaignCache struct {
	repo entity.CampaignRepository
	mu   sync.Mutex
	byID map[string]*entity.Campaign
}

func newCampaignCache(repo entity.CampaignRepository) *campaignCache {
	return &campaignCache{repo: repo, byID: make(map[string]*entity.Campaign)}
}

func (c *campaignCache) get(ctx context.Context, id string) (*entity.Campaign, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if camp, ok := c.byID[id]; ok {
		return camp, nil
	}
	camp, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.byID[id] = camp
	return camp, nil
}
