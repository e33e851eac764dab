package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/infra/queue"
)

type BillingOutput struct {
	Alerted     int
	Charged     int
	Suspended   int
	Reactivated int
	Purged      int
	Failed      int
}

// Billing avança o estado de cobrança dos clientes:
// active -> suspended -> deleted_data, com carência antes do expurgo.
type Billing struct {
	Clients   entity.ClientRepository
	Campaigns entity.CampaignRepository
	Queue     QueueProducerInterface
	AlertLead time.Duration
	Grace     time.Duration
	Logger    *zap.Logger
	Now       Clock
}

func NewBilling(clients entity.ClientRepository, campaigns entity.CampaignRepository, q QueueProducerInterface, alertLead, grace time.Duration, logger *zap.Logger, now Clock) *Billing {
	return &Billing{
		Clients:   clients,
		Campaigns: campaigns,
		Queue:     q,
		AlertLead: alertLead,
		Grace:     grace,
		Logger:    logger,
		Now:       clockOrSystem(now),
	}
}

type billingAction int

const (
	billingNone billingAction = iota
	billingAlert
	billingCharge
	billingSuspend
	billingReactivate
	billingPurge
)

// nextAction é puro: decide o que fazer com o cliente no instante now.
func (b *Billing) nextAction(c *entity.Client, now time.Time) billingAction {
	switch c.BillingStatus {
	case entity.BillingActive:
		if !now.Before(c.NextPaymentAt) {
			if c.Balance >= c.PlanCost {
				return billingCharge
			}
			return billingSuspend
		}
		if !c.AlertSent && !now.Before(c.NextPaymentAt.Add(-b.AlertLead)) {
			return billingAlert
		}
	case entity.BillingSuspended:
		if c.Balance >= c.PlanCost {
			return billingReactivate
		}
		if c.SuspendedAt != nil && !now.Before(c.SuspendedAt.Add(b.Grace)) {
			return billingPurge
		}
	}
	return billingNone
}

// Execute nunca para no primeiro erro; cliente com falha tem as campanhas pausadas.
func (b *Billing) Execute(ctx context.Context) (BillingOutput, error) {
	var out BillingOutput
	clients, err := b.Clients.ListBillable(ctx)
	if err != nil {
		return out, newPipelineError(KindPersistence, "billing.list", err)
	}

	now := b.Now()
	for _, c := range clients {
		action := b.nextAction(c, now)
		if action == billingNone {
			continue
		}
		if err := b.apply(ctx, c, action, now); err != nil {
			out.Failed++
			b.Logger.Error("falha na cobrança, pausando campanhas",
				zap.String("client_id", c.ID),
				zap.Error(err),
			)
			if _, perr := b.Campaigns.PauseByClient(ctx, c.ID); perr != nil {
				b.Logger.Error("falha ao pausar campanhas", zap.String("client_id", c.ID), zap.Error(perr))
			}
			continue
		}
		switch action {
		case billingAlert:
			out.Alerted++
		case billingCharge:
			out.Charged++
		case billingSuspend:
			out.Suspended++
		case billingReactivate:
			out.Reactivated++
		case billingPurge:
			out.Purged++
		}
	}

	if out != (BillingOutput{}) {
		b.Logger.Info("cobrança processada",
			zap.Int("alerted", out.Alerted),
			zap.Int("charged", out.Charged),
			zap.Int("suspended", out.Suspended),
			zap.Int("reactivated", out.Reactivated),
			zap.Int("purged", out.Purged),
			zap.Int("failed", out.Failed),
		)
	}
	return out, nil
}

func (b *Billing) apply(ctx context.Context, c *entity.Client, action billingAction, now time.Time) error {
	switch action {
	case billingAlert:
		c.AlertSent = true
		c.UpdatedAt = now
		if err := b.Clients.UpdateBilling(ctx, c); err != nil {
			return newPipelineError(KindPersistence, "billing.alert", err)
		}
		b.notify(ctx, c, "Tu próximo cobro se acerca",
			fmt.Sprintf("Hola %s, el %s cobraremos %.2f de tu saldo. Saldo actual: %.2f.",
				c.Name, c.NextPaymentAt.Format("02/01/2006"), c.PlanCost, c.Balance))
		return nil

	case billingCharge:
		c.Balance -= c.PlanCost
		c.NextPaymentAt = c.NextPaymentAt.AddDate(0, 1, 0)
		c.AlertSent = false
		c.UpdatedAt = now
		if err := b.Clients.UpdateBilling(ctx, c); err != nil {
			return newPipelineError(KindPersistence, "billing.charge", err)
		}
		return nil

	case billingSuspend:
		c.BillingStatus = entity.BillingSuspended
		c.SuspendedAt = &now
		c.UpdatedAt = now
		if err := b.Clients.UpdateBilling(ctx, c); err != nil {
			return newPipelineError(KindPersistence, "billing.suspend", err)
		}
		b.notify(ctx, c, "Tu cuenta fue suspendida",
			fmt.Sprintf("Hola %s, no tienes saldo para el plan (%.2f). Tus campañas están detenidas; si no recargas, tus datos se eliminarán en %s.",
				c.Name, c.PlanCost, b.Grace))
		return nil

	case billingReactivate:
		c.Balance -= c.PlanCost
		c.BillingStatus = entity.BillingActive
		c.SuspendedAt = nil
		c.NextPaymentAt = now.AddDate(0, 1, 0)
		c.AlertSent = false
		c.UpdatedAt = now
		if err := b.Clients.UpdateBilling(ctx, c); err != nil {
			return newPipelineError(KindPersistence, "billing.reactivate", err)
		}
		return nil

	case billingPurge:
		if err := b.Clients.Purge(ctx, c.ID, now); err != nil {
			return newPipelineError(KindPersistence, "billing.purge", err)
		}
		b.Logger.Warn("dados do cliente expurgados após carência", zap.String("client_id", c.ID))
		return nil
	}
	return nil
}

// notify é melhor esforço: o estado já foi gravado.
func (b *Billing) notify(ctx context.Context, c *entity.Client, subject, body string) {
	if c.Email == "" || b.Queue == nil {
		return
	}
	err := b.Queue.PublishOutreach(ctx, queue.OutreachPayload{
		Kind:     queue.KindBillingAlert,
		ClientID: c.ID,
		To:       c.Email,
		Name:     c.Name,
		Subject:  subject,
		Body:     body,
	})
	if err != nil {
		b.Logger.Warn("falha ao publicar aviso de cobrança", zap.String("client_id", c.ID), zap.Error(err))
	}
}
