package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
)

// Strategist decide uma vez por campanha onde e como caçar.
type Strategist struct {
	Campaigns entity.CampaignRepository
	Generator TextGenerator
	Logger    *zap.Logger
}

func NewStrategist(campaigns entity.CampaignRepository, gen TextGenerator, logger *zap.Logger) *Strategist {
	return &Strategist{Campaigns: campaigns, Generator: gen, Logger: logger}
}

const strategistSystemPrompt = `Eres un estratega de prospección. Elige la mejor fuente para encontrar
a estos clientes. Responde SOLO JSON:
{"platform": "google_maps" | "instagram" | "tiktok" | "facebook" | "linkedin",
 "audience": "business" | "person",
 "query": "término de búsqueda corto"}`

type planReply struct {
	Platform string `json:"platform"`
	Audience string `json:"audience"`
	Query    string `json:"query"`
}

// aliases aceitos além do vocabulário canônico
var platformAliases = map[string]entity.Platform{
	"google maps": entity.PlatformGoogleMaps,
	"maps":        entity.PlatformGoogleMaps,
	"gmaps":       entity.PlatformGoogleMaps,
}

var audienceAliases = map[string]entity.Audience{
	"empresas":      entity.AudienceBusiness,
	"emprendedores": entity.AudiencePerson,
	"personas":      entity.AudiencePerson,
	"businesses":    entity.AudienceBusiness,
	"people":        entity.AudiencePerson,
}

// FallbackPlan é o plano quando a IA falha ou devolve algo fora do vocabulário.
func FallbackPlan(c *entity.Campaign) entity.HuntPlan {
	return entity.HuntPlan{
		Platform: entity.PlatformGoogleMaps,
		Audience: entity.AudienceBusiness,
		Query:    c.TargetAudience,
	}
}

func (s *Strategist) PlanHunt(ctx context.Context, c *entity.Campaign) entity.HuntPlan {
	if !c.Plan.Empty() {
		return c.Plan
	}
	log := s.Logger.With(zap.String("worker", "strategist"), zap.String("campaign_id", c.ID))

	plan, err := s.ask(ctx, c)
	if err != nil {
		log.Warn("estratégia da IA indisponível, usando padrão", zap.Error(err))
		plan = FallbackPlan(c)
	}

	if err := s.Campaigns.SaveHuntPlan(ctx, c.ID, plan); err != nil {
		log.Error("falha ao gravar plano de caça", zap.Error(err))
	}
	c.Plan = plan
	log.Info("plano de caça definido",
		zap.String("platform", string(plan.Platform)),
		zap.String("audience", string(plan.Audience)),
		zap.String("query", plan.Query),
	)
	return plan
}

func (s *Strategist) ask(ctx context.Context, c *entity.Campaign) (entity.HuntPlan, error) {
	prompt := fmt.Sprintf("Campaña: %s\nVende: %s\nDirigido a: %s\nZona: %s",
		c.Name, c.ProductDescription, c.TargetAudience, c.Geo)

	raw, err := s.Generator.Generate(ctx, GenerationRequest{
		Purpose:       "hunt_plan",
		System:        strategistSystemPrompt,
		Prompt:        prompt,
		JSON:          true,
		Deterministic: true,
	})
	if err != nil {
		return entity.HuntPlan{}, newPipelineError(KindExternalAPI, "strategist.generate", err)
	}
	var reply planReply
	if err := decodeJSONReply(raw, &reply); err != nil {
		return entity.HuntPlan{}, newPipelineError(KindGeneration, "strategist.decode", err)
	}
	return parsePlan(reply, c)
}

func parsePlan(r planReply, c *entity.Campaign) (entity.HuntPlan, error) {
	key := strings.ToLower(strings.TrimSpace(r.Platform))
	platform := entity.Platform(strings.ReplaceAll(key, " ", "_"))
	if alias, ok := platformAliases[key]; ok {
		platform = alias
	}
	if !platform.Valid() {
		return entity.HuntPlan{}, newPipelineError(KindGeneration, "strategist.platform", fmt.Errorf("plataforma desconhecida %q", r.Platform))
	}

	key = strings.ToLower(strings.TrimSpace(r.Audience))
	audience := entity.Audience(key)
	if alias, ok := audienceAliases[key]; ok {
		audience = alias
	}
	if !audience.Valid() {
		audience = entity.AudienceBusiness
	}

	query := truncateRunes(strings.TrimSpace(r.Query), 80)
	if query == "" {
		query = c.TargetAudience
	}
	return entity.HuntPlan{Platform: platform, Audience: audience, Query: query}, nil
}
