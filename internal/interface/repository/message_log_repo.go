package repository

import (
	"context"
	"fmt"
	"time"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoMessageLogRepository implements the MessageLogRepository interface
type MongoMessageLogRepository struct {
	collection *mongo.Collection
}

// NewMongoMessageLogRepository creates a new MongoDB message log repository
// and makes sure its indexes exist
func NewMongoMessageLogRepository(ctx context.Context, db *mongo.Database) (repository.MessageLogRepository, error) {
	collection := db.Collection("messageLogs")

	// One document per organization and mailbox message
	messageIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "organizationId", Value: 1},
			{Key: "messageId", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}

	statusIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "processStatus", Value: 1},
			{Key: "receivedAt", Value: -1},
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{messageIndex, statusIndex}); err != nil {
		return nil, fmt.Errorf("failed to create message log indexes: %w", err)
	}

	return &MongoMessageLogRepository{
		collection: collection,
	}, nil
}

// Record upserts the log entry of a fetched message and counts the attempt
func (r *MongoMessageLogRepository) Record(ctx context.Context, log *entity.MessageLog) error {
	if log.FetchedAt.IsZero() {
		log.FetchedAt = time.Now()
	}
	if log.ProcessStatus == "" {
		log.ProcessStatus = entity.MessageStatusReceived
	}

	filter := bson.M{
		"organizationId": log.OrganizationID,
		"messageId":      log.MessageID,
	}
	update := bson.M{
		"$setOnInsert": bson.M{
			"from":       log.From,
			"subject":    log.Subject,
			"receivedAt": log.ReceivedAt,
		},
		"$set": bson.M{
			"fetchedAt":     log.FetchedAt,
			"processStatus": log.ProcessStatus,
		},
		"$inc": bson.M{"attempts": 1},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to record message %s: %w", log.MessageID, err)
	}
	return nil
}

// MarkOutcome stores how a message was handled
func (r *MongoMessageLogRepository) MarkOutcome(ctx context.Context, organizationID uint, messageID, status, channel, errorDetail string, extractedData map[string]interface{}) error {
	set := bson.M{
		"processStatus": status,
		"processedAt":   time.Now(),
	}
	if channel != "" {
		set["channel"] = channel
	}
	if errorDetail != "" {
		set["errorDetail"] = errorDetail
	}
	if len(extractedData) > 0 {
		set["extractedData"] = extractedData
	}

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"organizationId": organizationID, "messageId": messageID},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("failed to update message %s: %w", messageID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("message %s not recorded: %w", messageID, entity.ErrNotFound)
	}
	return nil
}
