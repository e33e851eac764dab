package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type MessageKind string

const (
	KindOutreach        MessageKind = "outreach"
	KindDripValue       MessageKind = "drip_value"
	KindDripSocialProof MessageKind = "drip_social_proof"
	KindDripBreakup     MessageKind = "drip_breakup"
	KindHumanAlert      MessageKind = "human_alert"
	KindBillingAlert    MessageKind = "billing_alert"
)

// OutreachPayload é tudo que o consumidor precisa para entregar a mensagem,
// sem voltar ao banco.
type OutreachPayload struct {
	Kind       MessageKind `json:"kind"`
	ProspectID string      `json:"prospect_id,omitempty"`
	CampaignID string      `json:"campaign_id,omitempty"`
	ClientID   string      `json:"client_id,omitempty"`

	To         string `json:"to"`
	Name       string `json:"name"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	LandingURL string `json:"landing_url,omitempty"`
}

type OutreachPublisher interface {
	PublishOutreach(ctx context.Context, payload OutreachPayload) error
}

type RabbitMQProducer struct {
	Conn *amqp.Connection
	Ch   *amqp.Channel
}

var _ OutreachPublisher = (*RabbitMQProducer)(nil)

func NewProducer(conn *amqp.Connection, ch *amqp.Channel) *RabbitMQProducer {
	return &RabbitMQProducer{
		Conn: conn,
		Ch:   ch,
	}
}

func (p *RabbitMQProducer) PublishOutreach(ctx context.Context, payload OutreachPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("erro ao converter payload: %w", err)
	}

	err = p.Ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false, // Mandatory
		false, // Immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         string(payload.Kind),
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("falha ao publicar no RabbitMQ: %w", err)
	}

	return nil
}
