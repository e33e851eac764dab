package usecase

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/infra/metrics"
)

const daysPerMonth = 30

// BudgetPolicy é o teto de gasto de um worker pago.
type BudgetPolicy struct {
	CeilingPerLead float64
	CostPerCall    float64
	MinCallsPerDay int
}

// Allowance converte quota em unidades pagas ainda permitidas hoje.
//
//	monthly = quota * teto por lead
//	daily   = monthly / 30
//	hoje    = max(floor(daily / custo), mínimo)
//
// O teto mensal (floor(monthly / custo)) sempre prevalece sobre o mínimo diário.
func Allowance(quota int, p BudgetPolicy, used entity.SpendUsage) int {
	if quota <= 0 || p.CostPerCall <= 0 || p.CeilingPerLead <= 0 {
		return 0
	}

	monthly := float64(quota) * p.CeilingPerLead
	monthCap := floorUnits(monthly / p.CostPerCall)
	if used.Month >= monthCap {
		return 0
	}

	daily := floorUnits(monthly / daysPerMonth / p.CostPerCall)
	if daily < p.MinCallsPerDay {
		daily = p.MinCallsPerDay
	}

	remaining := daily - used.Today
	if left := monthCap - used.Month; left < remaining {
		remaining = left
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// floorUnits tolera o erro de ponto flutuante (0.3/0.1 = 2.9999...).
func floorUnits(x float64) int {
	return int(math.Floor(x + 1e-9))
}

type BudgetGovernor struct {
	Spend    entity.SpendRepository
	Policies map[entity.PaidWorker]BudgetPolicy
	Logger   *zap.Logger
	Now      Clock
}

func NewBudgetGovernor(spend entity.SpendRepository, hunter, spy BudgetPolicy, logger *zap.Logger, now Clock) *BudgetGovernor {
	return &BudgetGovernor{
		Spend: spend,
		Policies: map[entity.PaidWorker]BudgetPolicy{
			entity.WorkerHunter: hunter,
			entity.WorkerSpy:    spy,
		},
		Logger: logger,
		Now:    clockOrSystem(now),
	}
}

// Allowance lê o consumo e devolve as unidades liberadas. Falha de leitura
// devolve zero junto com o erro.
func (g *BudgetGovernor) Allowance(ctx context.Context, campaign *entity.Campaign, worker entity.PaidWorker) (int, error) {
	policy, ok := g.Policies[worker]
	if !ok {
		return 0, nil
	}
	used, err := g.Spend.Usage(ctx, campaign.ID, worker, g.Now())
	if err != nil {
		g.Logger.Error("falha ao ler consumo, bloqueando chamadas pagas",
			zap.String("campaign_id", campaign.ID),
			zap.String("worker", string(worker)),
			zap.Error(err),
		)
		return 0, newPipelineError(KindPersistence, "budget.usage", err)
	}
	n := Allowance(campaign.DailyQuota, policy, used)
	if n == 0 {
		g.Logger.Debug("orçamento esgotado",
			zap.String("campaign_id", campaign.ID),
			zap.String("worker", string(worker)),
			zap.Int("used_today", used.Today),
			zap.Int("used_month", used.Month),
		)
	}
	return n, nil
}

// Charge registra as unidades antes da chamada externa.
func (g *BudgetGovernor) Charge(ctx context.Context, campaignID string, worker entity.PaidWorker, units int) error {
	if units <= 0 {
		return nil
	}
	if err := g.Spend.Record(ctx, campaignID, worker, units, g.Now()); err != nil {
		return newPipelineError(KindPersistence, "budget.charge", err)
	}
	metrics.RecordPaidCalls(string(worker), units)
	return nil
}
