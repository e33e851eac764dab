package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/infra/memory"
)

func TestAllowance(t *testing.T) {
	tests := []struct {
		name   string
		quota  int
		policy BudgetPolicy
		used   entity.SpendUsage
		want   int
	}{
		// 10 * 0.30 = 3.00/mês -> 300 chamadas/mês, 10/dia
		{"dia zerado", 10, hunterPolicy, entity.SpendUsage{}, 10},
		{"parte do dia consumida", 10, hunterPolicy, entity.SpendUsage{Today: 4, Month: 40}, 6},
		{"dia esgotado", 10, hunterPolicy, entity.SpendUsage{Today: 10, Month: 50}, 0},
		{"acima do dia não fica negativo", 10, hunterPolicy, entity.SpendUsage{Today: 15, Month: 50}, 0},
		{"teto mensal limita o dia", 10, hunterPolicy, entity.SpendUsage{Today: 0, Month: 298}, 2},
		{"teto mensal esgotado", 10, hunterPolicy, entity.SpendUsage{Month: 300}, 0},
		// 1 * 0.15 = 0.15/mês -> 7 chamadas/mês, 0.25/dia -> mínimo 1
		{"mínimo diário", 1, spyPolicy, entity.SpendUsage{}, 1},
		{"mínimo não fura o teto mensal", 1, spyPolicy, entity.SpendUsage{Month: 7}, 0},
		{"quota zero", 0, hunterPolicy, entity.SpendUsage{}, 0},
		{"custo inválido", 10, BudgetPolicy{CeilingPerLead: 0.3}, entity.SpendUsage{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allowance(tt.quota, tt.policy, tt.used))
		})
	}
}

func TestFloorUnits_ToleratesFloatError(t *testing.T) {
	assert.Equal(t, 3, floorUnits(0.3/0.1))
	assert.Equal(t, 2, floorUnits(2.9999))
}

func TestBudgetGovernor_ChargeThenAllowance(t *testing.T) {
	store := memory.NewStore()
	clock := newClock(t0)
	g := NewBudgetGovernor(store.Spend(), hunterPolicy, spyPolicy, nop(), clock.Now)
	campaign := &entity.Campaign{ID: "camp-1", DailyQuota: 10}
	ctx := context.Background()

	n, err := g.Allowance(ctx, campaign, entity.WorkerHunter)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	require.NoError(t, g.Charge(ctx, campaign.ID, entity.WorkerHunter, 7))
	n, err = g.Allowance(ctx, campaign, entity.WorkerHunter)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// spy tem contador próprio: 10 * 0.15 / 30 / 0.02 = 2.5 -> 2
	n, err = g.Allowance(ctx, campaign, entity.WorkerSpy)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// dia seguinte zera o diário, mantém o mês
	clock.Advance(24 * time.Hour)
	used, err := store.Spend().Usage(ctx, campaign.ID, entity.WorkerHunter, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, entity.SpendUsage{Today: 0, Month: 7}, used)
}

func TestBudgetGovernor_UsageFailureBlocks(t *testing.T) {
	g := NewBudgetGovernor(brokenSpend{}, hunterPolicy, spyPolicy, nop(), newClock(t0).Now)

	n, err := g.Allowance(context.Background(), &entity.Campaign{ID: "c", DailyQuota: 10}, entity.WorkerHunter)
	assert.Zero(t, n)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindPersistence))
	assert.True(t, isBudgetFailure(err))
}

func TestBudgetGovernor_ChargeIgnoresZero(t *testing.T) {
	g := NewBudgetGovernor(brokenSpend{}, hunterPolicy, spyPolicy, nop(), newClock(t0).Now)
	assert.NoError(t, g.Charge(context.Background(), "c", entity.WorkerSpy, 0))
}
