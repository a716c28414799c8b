package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/farmledger/access-codes/internal/core/domain"
)

const collectionAuditEvents = "access_code_events"

// AuditRepository persists access code lifecycle events to an append-only
// collection.
type AuditRepository struct {
	db *mongo.Database
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{db: db}
}

// InsertAuditEvent stores one lifecycle event. The code is kept so the trail
// can be correlated with access_codes; audit readers are operators.
func (r *AuditRepository) InsertAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"event_id":     event.ID,
		"action":       string(event.Action),
		"role":         string(event.Role),
		"code":         event.Code,
		"actor":        event.Actor,
		"count":        event.Count,
		"occurred_at":  event.OccurredAt.UTC(),
		"processed_at": time.Now().UTC(),
	}

	if _, err := r.db.Collection(collectionAuditEvents).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// EnsureIndexes makes event_id unique so a retried write is a no-op.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.db.Collection(collectionAuditEvents).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "occurred_at", Value: -1}}},
	})
	return err
}
