package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/yourorg/pairchat/internal/metrics"
	"github.com/yourorg/pairchat/internal/models"
	"github.com/yourorg/pairchat/internal/repository"
)

var (
	ErrEmptyMessage   = errors.New("message is required")
	ErrMessageTooLong = errors.New("message must be 255 or fewer characters long")
)

// Relayer pushes a persisted message to the recipient's live connection, if
// any. Best effort; SendMessage ignores the delivery flag by contract.
type Relayer interface {
	Relay(m *models.Message) bool
}

// Publisher emits message.sent events for downstream consumers.
type Publisher interface {
	PublishMessageSent(ctx context.Context, m *models.Message, conversationID string) error
}

type ChatService struct {
	repo  repository.ChatRepository
	relay Relayer
	pub   Publisher
	log   *zap.SugaredLogger
}

func NewChatService(repo repository.ChatRepository, relay Relayer, pub Publisher, log *zap.SugaredLogger) *ChatService {
	return &ChatService{repo: repo, relay: relay, pub: pub, log: log}
}

// SendMessage validates and persists a message, then hands it to the relay.
// Persistence success is never contingent on event publishing or realtime
// delivery: once the repository commit returns, the sender gets a success no
// matter what happens on the push path.
func (s *ChatService) SendMessage(ctx context.Context, senderID, recipientID, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > 255 {
		return nil, ErrMessageTooLong
	}

	conv, err := s.repo.FindOrCreateConversation(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}

	m := &models.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
	}
	m, err = s.repo.InsertMessage(ctx, conv.ID, m)
	if err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()

	if s.pub != nil {
		if err := s.pub.PublishMessageSent(ctx, m, conv.ID.Hex()); err != nil {
			s.log.Warnw("message.sent publish failed", "messageId", m.ID.Hex(), "err", err)
		}
	}

	// Relay strictly after the commit above, exactly once per persisted
	// message. Delivery outcome is intentionally ignored.
	s.relay.Relay(m)

	return m, nil
}

// GetMessages returns the chronological history between the caller and peer.
func (s *ChatService) GetMessages(ctx context.Context, userID, peerID string) ([]*models.Message, error) {
	return s.repo.GetMessages(ctx, userID, peerID)
}
