package queue

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher substitui o RabbitMQ quando RABBITMQ_URL está vazio: a mensagem
// só vai para o log, nada é entregue.
type LogPublisher struct {
	Logger *zap.Logger
}

var _ OutreachPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{Logger: logger}
}

func (p *LogPublisher) PublishOutreach(_ context.Context, payload OutreachPayload) error {
	p.Logger.Info("mensagem não enviada (sem broker)",
		zap.String("kind", string(payload.Kind)),
		zap.String("prospect_id", payload.ProspectID),
		zap.String("campaign_id", payload.CampaignID),
		zap.String("to", payload.To),
		zap.String("subject", payload.Subject),
	)
	return nil
}
