package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/prospect-pipeline/internal/usecase"
)

// Cycler é o Orchestrator visto pelo worker.
type Cycler interface {
	RunCycle(ctx context.Context) usecase.CycleReport
	Wait()
}

// PipelineWorker dispara um ciclo do orquestrador a cada tick.
type PipelineWorker struct {
	cycler       Cycler
	tickInterval time.Duration
	logger       *zap.Logger
}

func NewPipelineWorker(cycler Cycler, tickInterval time.Duration, logger *zap.Logger) *PipelineWorker {
	if tickInterval <= 0 {
		tickInterval = 10 * time.Minute
	}
	return &PipelineWorker{
		cycler:       cycler,
		tickInterval: tickInterval,
		logger:       logger.With(zap.String("worker", "pipeline")),
	}
}

// Start roda um ciclo imediatamente e depois a cada tick, até o ctx terminar.
// Na saída espera as tarefas de campanha em andamento.
func (w *PipelineWorker) Start(ctx context.Context) {
	w.logger.Info("pipeline worker iniciado", zap.Duration("interval", w.tickInterval))

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.cycler.Wait()
			w.logger.Info("pipeline worker encerrado")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *PipelineWorker) runOnce(ctx context.Context) {
	r := w.cycler.RunCycle(ctx)

	if r.Reclaimed+r.Analyst.Claimed+r.Persuader.Claimed+r.Outreach+r.Drip.Advanced == 0 && r.Dispatched == 0 {
		return
	}
	w.logger.Info("ciclo executado",
		zap.Int("reclaimed", r.Reclaimed),
		zap.Int("campaigns", r.Dispatched),
		zap.Int("skipped", r.Skipped),
		zap.Int("qualified", r.Analyst.Qualified),
		zap.Int("low_quality", r.Analyst.LowQuality),
		zap.Int("persuaded", r.Persuader.Persuaded),
		zap.Int("outreach", r.Outreach),
		zap.Int("drip_advanced", r.Drip.Advanced),
		zap.Int("billing_charged", r.Billing.Charged),
		zap.Int("billing_suspended", r.Billing.Suspended),
	)
}
