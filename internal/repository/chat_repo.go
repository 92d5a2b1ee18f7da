package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourorg/pairchat/internal/models"
)

// ChatRepository persists conversations and their messages. InsertMessage must
// have returned before the realtime relay may see the message.
type ChatRepository interface {
	FindOrCreateConversation(ctx context.Context, userA, userB string) (*models.Conversation, error)
	InsertMessage(ctx context.Context, convID primitive.ObjectID, m *models.Message) (*models.Message, error)
	GetMessages(ctx context.Context, userA, userB string) ([]*models.Message, error)
}

type mongoChatRepo struct {
	convCol *mongo.Collection
	msgCol  *mongo.Collection
}

func NewMongoChatRepo(db *mongo.Database) ChatRepository {
	convCol := db.Collection("conversations")
	msgCol := db.Collection("messages")
	_, _ = convCol.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "participants", Value: 1}},
		Options: options.Index().SetName("participants_idx"),
	})
	_, _ = msgCol.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: 1}},
		Options: options.Index().SetName("created_at_idx"),
	})
	return &mongoChatRepo{convCol: convCol, msgCol: msgCol}
}

// FindOrCreateConversation returns the conversation between the pair, creating
// it on first contact. The participant pair is unordered.
func (r *mongoChatRepo) FindOrCreateConversation(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	filter := bson.M{"participants": bson.M{"$all": []string{userA, userB}}}

	var conv models.Conversation
	err := r.convCol.FindOne(ctx, filter).Decode(&conv)
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	now := time.Now().UTC()
	conv = models.Conversation{
		Participants: []string{userA, userB},
		MessageIDs:   []primitive.ObjectID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	res, err := r.convCol.InsertOne(ctx, &conv)
	if err != nil {
		return nil, err
	}
	conv.ID = res.InsertedID.(primitive.ObjectID)
	return &conv, nil
}

func (r *mongoChatRepo) InsertMessage(ctx context.Context, convID primitive.ObjectID, m *models.Message) (*models.Message, error) {
	m.CreatedAt = time.Now().UTC()
	res, err := r.msgCol.InsertOne(ctx, m)
	if err != nil {
		return nil, err
	}
	m.ID = res.InsertedID.(primitive.ObjectID)

	_, err = r.convCol.UpdateByID(ctx, convID, bson.M{
		"$push": bson.M{"message_ids": m.ID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessages returns the full history between the pair in chronological order.
// No conversation yet means an empty history, not an error.
func (r *mongoChatRepo) GetMessages(ctx context.Context, userA, userB string) ([]*models.Message, error) {
	filter := bson.M{"participants": bson.M{"$all": []string{userA, userB}}}

	var conv models.Conversation
	if err := r.convCol.FindOne(ctx, filter).Decode(&conv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []*models.Message{}, nil
		}
		return nil, err
	}
	if len(conv.MessageIDs) == 0 {
		return []*models.Message{}, nil
	}

	cur, err := r.msgCol.Find(ctx,
		bson.M{"_id": bson.M{"$in": conv.MessageIDs}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Message
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, cur.Err()
}
