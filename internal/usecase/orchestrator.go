package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/infra/metrics"
)

// Orchestrator é o laço de topo. Hunter e Spy rodam em goroutines por campanha;
// as passadas em lote rodam em sequência dentro do ciclo.
type Orchestrator struct {
	Prospects  entity.ProspectRepository
	Campaigns  entity.CampaignRepository
	Tools      entity.ToolRepository
	Billing    *Billing
	Strategist *Strategist
	Hunter     *Hunter
	Spy        *Spy
	Analyst    *Analyst
	Persuader  *Persuader
	Dispatcher *OutreachDispatcher
	Nurturer   *Nurturer
	Logger     *zap.Logger
	Now        Clock

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

type CycleReport struct {
	Reclaimed  int
	Dispatched int
	Skipped    int
	Billing    BillingOutput
	Analyst    AnalystOutput
	Persuader  PersuaderOutput
	Outreach   int
	Drip       DripOutput
}

func (o *Orchestrator) now() time.Time {
	return clockOrSystem(o.Now)()
}

// RunCycle faz uma passada completa. Não espera as tarefas por campanha:
// uma campanha lenta só é pulada no ciclo seguinte.
func (o *Orchestrator) RunCycle(ctx context.Context) CycleReport {
	start := time.Now()
	var report CycleReport
	log := o.Logger.With(zap.String("worker", "orchestrator"))

	reclaimed, err := o.Prospects.ReleaseExpired(ctx, o.now())
	if err != nil {
		log.Error("falha ao liberar claims vencidos", zap.Error(err))
	} else if reclaimed > 0 {
		log.Warn("claims vencidos devolvidos à fila", zap.Int("count", reclaimed))
	}
	report.Reclaimed = reclaimed

	if o.Billing != nil {
		if report.Billing, err = o.Billing.Execute(ctx); err != nil {
			log.Error("passada de cobrança falhou", zap.Error(err))
		}
	}

	campaigns, err := o.Campaigns.ListRunnable(ctx)
	if err != nil {
		log.Error("falha ao listar campanhas", zap.Error(err))
	}
	for _, c := range campaigns {
		if !o.acquire(c.ID) {
			report.Skipped++
			log.Debug("campanha ainda em execução, pulando", zap.String("campaign_id", c.ID))
			continue
		}
		report.Dispatched++
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			defer o.release(c.ID)
			o.runCampaign(ctx, c)
		}()
	}

	if o.Analyst != nil {
		if report.Analyst, err = o.Analyst.Execute(ctx); err != nil {
			log.Error("passada do analista falhou", zap.Error(err))
		}
	}
	if o.Persuader != nil {
		if report.Persuader, err = o.Persuader.Execute(ctx); err != nil {
			log.Error("passada do persuasor falhou", zap.Error(err))
		}
	}
	if o.Dispatcher != nil {
		if report.Outreach, err = o.Dispatcher.Execute(ctx); err != nil {
			log.Error("envio de abordagens falhou", zap.Error(err))
		}
	}
	if o.Nurturer != nil {
		if report.Drip, err = o.Nurturer.Drip(ctx); err != nil {
			log.Error("passada do drip falhou", zap.Error(err))
		}
	}

	metrics.ObserveCycle(time.Since(start))
	log.Debug("ciclo concluído",
		zap.Int("campaigns", report.Dispatched),
		zap.Int("skipped", report.Skipped),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report
}

// Wait bloqueia até todas as tarefas por campanha terminarem.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) acquire(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight == nil {
		o.inFlight = make(map[string]struct{})
	}
	if _, busy := o.inFlight[id]; busy {
		return false
	}
	o.inFlight[id] = struct{}{}
	return true
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, id)
}

func (o *Orchestrator) runCampaign(ctx context.Context, c *entity.Campaign) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		o.hunt(ctx, c)
	}()
	go func() {
		defer wg.Done()
		o.spy(ctx, c)
	}()
	wg.Wait()
}

func (o *Orchestrator) hunt(ctx context.Context, c *entity.Campaign) {
	if o.Hunter == nil {
		return
	}
	log := o.Logger.With(zap.String("worker", "orchestrator"), zap.String("campaign_id", c.ID))

	created, err := o.Prospects.CountCreatedSince(ctx, c.ID, entity.DayStart(o.now()))
	if err != nil {
		log.Error("falha ao contar prospects do dia", zap.Error(err))
		return
	}
	shortfall := c.DailyQuota - created
	if shortfall <= 0 {
		return
	}

	plan := FallbackPlan(c)
	if o.Strategist != nil {
		plan = o.Strategist.PlanHunt(ctx, c)
	}
	tool, err := o.Tools.Best(ctx, plan.Platform, plan.Audience)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			log.Warn("nenhuma ferramenta cadastrada para o plano",
				zap.String("platform", string(plan.Platform)),
				zap.String("audience", string(plan.Audience)),
			)
		} else {
			log.Error("falha ao consultar catálogo de ferramentas", zap.Error(err))
		}
		return
	}

	_, err = o.Hunter.Execute(ctx, HuntInput{Campaign: c, Plan: plan, Tool: tool, Shortfall: shortfall})
	o.handleWorkerError(ctx, c, "hunter", err)
}

func (o *Orchestrator) spy(ctx context.Context, c *entity.Campaign) {
	if o.Spy == nil {
		return
	}
	_, err := o.Spy.Execute(ctx, c)
	o.handleWorkerError(ctx, c, "spy", err)
}

// handleWorkerError: orçamento esgotado é parada suave; falha ao ler o
// orçamento pausa a campanha.
func (o *Orchestrator) handleWorkerError(ctx context.Context, c *entity.Campaign, worker string, err error) {
	if err == nil {
		return
	}
	log := o.Logger.With(zap.String("worker", worker), zap.String("campaign_id", c.ID))
	switch {
	case IsKind(err, KindBudgetExhausted):
		log.Debug("orçamento do dia esgotado")
	case isBudgetFailure(err):
		log.Error("orçamento ilegível, pausando campanha", zap.Error(err))
		if perr := o.Campaigns.UpdateStatus(context.WithoutCancel(ctx), c.ID, entity.CampaignPaused); perr != nil {
			log.Error("falha ao pausar campanha", zap.Error(perr))
		}
	default:
		log.Warn("worker terminou com erro", zap.Error(err))
	}
}

func isBudgetFailure(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Kind == KindPersistence && strings.HasPrefix(pe.Op, "budget.")
}
