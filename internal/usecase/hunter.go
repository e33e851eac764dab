package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/infra/metrics"
)

type HuntInput struct {
	Campaign  *entity.Campaign
	Plan      entity.HuntPlan
	Tool      *entity.ToolCatalogEntry
	Shortfall int
}

type HuntOutput struct {
	Requested int
	Received  int
	Dropped   int
	Inserted  int
}

// Hunter faz no máximo uma chamada de descoberta por ciclo e insere os novos como cazado.
type Hunter struct {
	Prospects entity.ProspectRepository
	Discovery DiscoveryService
	Governor  *BudgetGovernor
	Logger    *zap.Logger
}

func NewHunter(prospects entity.ProspectRepository, discovery DiscoveryService, governor *BudgetGovernor, logger *zap.Logger) *Hunter {
	return &Hunter{
		Prospects: prospects,
		Discovery: discovery,
		Governor:  governor,
		Logger:    logger,
	}
}

func (h *Hunter) Execute(ctx context.Context, in HuntInput) (HuntOutput, error) {
	var out HuntOutput
	if in.Campaign == nil || in.Tool == nil || in.Shortfall <= 0 {
		return out, nil
	}
	log := h.Logger.With(
		zap.String("worker", "hunter"),
		zap.String("campaign_id", in.Campaign.ID),
		zap.String("tool", in.Tool.Name),
	)

	allowed, err := h.Governor.Allowance(ctx, in.Campaign, entity.WorkerHunter)
	if err != nil {
		return out, err
	}
	out.Requested = min(in.Shortfall, allowed)
	if out.Requested <= 0 {
		return out, newPipelineError(KindBudgetExhausted, "hunter.allowance", nil)
	}

	// custo proporcional ao pedido, registrado antes da chamada
	if err := h.Governor.Charge(ctx, in.Campaign.ID, entity.WorkerHunter, out.Requested); err != nil {
		return out, err
	}

	records, err := h.Discovery.Discover(ctx, DiscoveryRequest{
		ActorID:    in.Tool.ActorID,
		Platform:   in.Plan.Platform,
		Query:      in.Plan.Query,
		Location:   in.Campaign.Geo,
		MaxRecords: out.Requested,
	})
	if err != nil {
		metrics.RecordIntegrationError("discovery")
		log.Error("descoberta falhou", zap.Error(err))
		return out, newPipelineError(KindExternalAPI, "hunter.discover", err)
	}
	out.Received = len(records)

	for _, rec := range records {
		p, ok := normalizeRecord(in.Campaign.ID, in.Tool, in.Plan.Platform, rec)
		if !ok {
			out.Dropped++
			continue
		}
		inserted, err := h.Prospects.Insert(ctx, p)
		if err != nil {
			if errors.Is(err, entity.ErrDuplicate) {
				continue
			}
			log.Error("falha ao inserir prospect", zap.String("business", p.BusinessName), zap.Error(err))
			continue
		}
		if inserted {
			out.Inserted++
		}
	}

	metrics.RecordInserted(out.Inserted)
	log.Info("caça concluída",
		zap.Int("requested", out.Requested),
		zap.Int("received", out.Received),
		zap.Int("dropped", out.Dropped),
		zap.Int("inserted", out.Inserted),
	)
	return out, nil
}
