package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrUndeliverable indica mensagem que nunca vai ser entregue (sem destinatário etc).
var ErrUndeliverable = errors.New("mensagem sem destino entregável")

// Deliverer é o canal de saída (SMTP hoje).
type Deliverer interface {
	Deliver(ctx context.Context, payload OutreachPayload) error
}

type Worker struct {
	Channel   *amqp.Channel
	Deliverer Deliverer
	Logger    *zap.Logger
}

func NewWorker(ch *amqp.Channel, deliverer Deliverer, logger *zap.Logger) *Worker {
	return &Worker{
		Channel:   ch,
		Deliverer: deliverer,
		Logger:    logger,
	}
}

// Start consome a fila até o ctx ser cancelado ou o canal fechar.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.Channel.Consume(
		queueName,
		"",    // consumer
		false, // auto-ack (manual é mais seguro)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("falha ao registrar consumidor RabbitMQ: %w", err)
	}

	w.Logger.Info("consumidor de outreach aguardando", zap.String("queue", queueName))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("canal do RabbitMQ fechado")
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var payload OutreachPayload
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		// mensagem podre: rejeita sem requeue para não travar a fila
		w.Logger.Error("payload inválido na fila", zap.Error(err))
		d.Nack(false, false)
		return
	}

	log := w.Logger.With(
		zap.String("kind", string(payload.Kind)),
		zap.String("prospect_id", payload.ProspectID),
	)

	err := w.process(ctx, payload)
	switch {
	case err == nil:
		log.Info("mensagem entregue")
		d.Ack(false)
	case errors.Is(err, ErrUndeliverable):
		log.Warn("mensagem descartada", zap.Error(err))
		d.Nack(false, false)
	case d.Redelivered:
		// segunda falha seguida: DLQ
		log.Error("falha na entrega, enviando para DLQ", zap.Error(err))
		d.Nack(false, false)
	default:
		log.Warn("falha na entrega, devolvendo para a fila", zap.Error(err))
		d.Nack(false, true)
	}
}

func (w *Worker) process(ctx context.Context, payload OutreachPayload) error {
	switch payload.Kind {
	case KindOutreach, KindDripValue, KindDripSocialProof, KindDripBreakup,
		KindHumanAlert, KindBillingAlert:
	default:
		return fmt.Errorf("%w: tipo desconhecido %q", ErrUndeliverable, payload.Kind)
	}
	if payload.To == "" {
		return fmt.Errorf("%w: destinatário vazio", ErrUndeliverable)
	}
	return w.Deliverer.Deliver(ctx, payload)
}
