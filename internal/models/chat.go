package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is one persisted chat message. The realtime layer relays it verbatim
// after the repository has committed it; it is never mutated afterwards.
type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID    string             `bson:"sender_id" json:"senderId"`
	RecipientID string             `bson:"recipient_id" json:"recipientId"`
	Body        string             `bson:"body" json:"message"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}

// Conversation links an unordered pair of participants to their message history.
// Created lazily on the first message between a pair and reused afterwards.
type Conversation struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Participants []string             `bson:"participants" json:"participants"`
	MessageIDs   []primitive.ObjectID `bson:"message_ids" json:"-"`
	CreatedAt    time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time            `bson:"updated_at" json:"updatedAt"`
}
