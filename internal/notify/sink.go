package notify

import (
	"context"

	"github.com/petvoice/chat-service/internal/logger"
	"github.com/petvoice/chat-service/internal/models"
	"github.com/petvoice/chat-service/internal/rabbitmq"
)

// Sink fires best-effort user-facing notification signals. Failures are
// swallowed: delivery is the notification service's problem, not ours.
type Sink interface {
	NewMessage(ctx context.Context, msg models.PrivateMessage)
	ChatReactivated(ctx context.Context, chat models.Chat)
}

type amqpSink struct {
	publisher  rabbitmq.Publisher
	routingKey string
}

// NewAMQPSink builds a Sink over the platform exchange.
func NewAMQPSink(publisher rabbitmq.Publisher, routingKey string) Sink {
	return &amqpSink{publisher: publisher, routingKey: routingKey}
}

type signal struct {
	Kind        string `json:"kind"`
	ChatID      int    `json:"chat_id"`
	MessageID   int    `json:"message_id,omitempty"`
	RecipientID int    `json:"recipient_id"`
	SenderID    int    `json:"sender_id,omitempty"`
	IsEmergency bool   `json:"is_emergency,omitempty"`
}

func (s *amqpSink) NewMessage(ctx context.Context, msg models.PrivateMessage) {
	s.fire(ctx, signal{
		Kind:        "new_message",
		ChatID:      msg.ChatID,
		MessageID:   msg.ID,
		RecipientID: msg.RecipientID,
		SenderID:    msg.SenderID,
		IsEmergency: msg.IsEmergency,
	})
}

func (s *amqpSink) ChatReactivated(ctx context.Context, chat models.Chat) {
	for _, participant := range []int{chat.Participant1ID, chat.Participant2ID} {
		s.fire(ctx, signal{
			Kind:        "chat_reactivated",
			ChatID:      chat.ID,
			RecipientID: participant,
		})
	}
}

func (s *amqpSink) fire(ctx context.Context, sig signal) {
	if err := s.publisher.PublishJSON(ctx, s.routingKey, sig, nil); err != nil {
		logger.Warn().Err(err).Str("kind", sig.Kind).Msg("notification signal dropped")
	}
}
