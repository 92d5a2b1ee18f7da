package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/yourorg/pairchat/internal/models"
)

// MessageSent is emitted after a message has been durably persisted, for
// downstream consumers (notifications, analytics). Realtime delivery does not
// depend on it.
type MessageSent struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	RecipientID    string    `json:"recipient_id"`
	SentAt         time.Time `json:"sent_at"`
}

type Producer struct {
	writer *kafkago.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireAll,
		},
	}
}

func (p *Producer) PublishMessageSent(ctx context.Context, m *models.Message, conversationID string) error {
	b, err := json.Marshal(MessageSent{
		MessageID:      m.ID.Hex(),
		ConversationID: conversationID,
		SenderID:       m.SenderID,
		RecipientID:    m.RecipientID,
		SentAt:         m.CreatedAt,
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(conversationID),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
