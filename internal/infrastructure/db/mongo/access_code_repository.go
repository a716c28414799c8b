package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/farmledger/access-codes/internal/core/domain"
	"github.com/farmledger/access-codes/internal/core/ports"
)

const collectionAccessCodes = "access_codes"

// AccessCodeRepository implements ports.AccessCodeRepository and
// ports.TxRunner on MongoDB. Conditional transitions are single-document
// UpdateOne calls whose filter carries the expected status, which makes
// them compare-and-set.
type AccessCodeRepository struct {
	col          *mongo.Collection
	transactions bool
}

// NewAccessCodeRepository returns a repository over db. transactions enables
// multi-document transactions for RunInTx and requires a replica set.
func NewAccessCodeRepository(db *mongo.Database, transactions bool) *AccessCodeRepository {
	return &AccessCodeRepository{col: db.Collection(collectionAccessCodes), transactions: transactions}
}

type accessCodeDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Role      string             `bson:"role"`
	Code      string             `bson:"code"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"created_at"`
	ExpiresAt time.Time          `bson:"expires_at"`
	UsedAt    *time.Time         `bson:"used_at"`
	UsedBy    *string            `bson:"used_by"`
	CreatedBy string             `bson:"created_by"`
}

func toDoc(c *domain.AccessCode) accessCodeDoc {
	return accessCodeDoc{
		Role:      string(c.Role),
		Code:      c.Code,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt.UTC(),
		ExpiresAt: c.ExpiresAt.UTC(),
		UsedAt:    c.UsedAt,
		UsedBy:    c.UsedBy,
		CreatedBy: c.CreatedBy,
	}
}

func (d accessCodeDoc) toDomain() *domain.AccessCode {
	return &domain.AccessCode{
		ID:        d.ID.Hex(),
		Role:      domain.Role(d.Role),
		Code:      d.Code,
		Status:    domain.CodeStatus(d.Status),
		CreatedAt: d.CreatedAt.UTC(),
		ExpiresAt: d.ExpiresAt.UTC(),
		UsedAt:    d.UsedAt,
		UsedBy:    d.UsedBy,
		CreatedBy: d.CreatedBy,
	}
}

// Insert appends a record. The partial unique index on active roles turns a
// second active code into domain.ErrActiveCodeExists.
func (r *AccessCodeRepository) Insert(ctx context.Context, code *domain.AccessCode) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, toDoc(code))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", domain.ErrActiveCodeExists
		}
		return "", fmt.Errorf("insert access code: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert access code: unexpected id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (r *AccessCodeRepository) TransitionOne(ctx context.Context, match ports.AccessCodeMatch, change ports.AccessCodeChange) (int64, error) {
	if err := domain.CheckTransition(match.Status, change.Status); err != nil {
		return 0, err
	}
	filter, err := matchFilter(match)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, filter, changeUpdate(change))
	if err != nil {
		return 0, fmt.Errorf("transition access code: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *AccessCodeRepository) TransitionAll(ctx context.Context, match ports.AccessCodeMatch, change ports.AccessCodeChange) (int64, error) {
	if err := domain.CheckTransition(match.Status, change.Status); err != nil {
		return 0, err
	}
	filter, err := matchFilter(match)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateMany(ctx, filter, changeUpdate(change))
	if err != nil {
		return 0, fmt.Errorf("transition access codes: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *AccessCodeRepository) Find(ctx context.Context, match ports.AccessCodeMatch, opts ports.FindOptions) ([]*domain.AccessCode, error) {
	filter, err := matchFilter(match)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	findOpts := options.Find()
	if opts.NewestFirst {
		findOpts.SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cur, err := r.col.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find access codes: %w", err)
	}
	defer cur.Close(ctx)

	var docs []accessCodeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode access codes: %w", err)
	}

	out := make([]*domain.AccessCode, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// RunInTx wraps fn in a multi-document transaction when enabled.
func (r *AccessCodeRepository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !r.transactions {
		return fn(ctx)
	}

	sess, err := r.col.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// EnsureIndexes creates the indexes the repository relies on, including the
// partial unique index that allows one active code per role.
func (r *AccessCodeRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "role", Value: 1}},
			Options: options.Index().
				SetName("one_active_per_role").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": string(domain.CodeActive)}),
		},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "code", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "code", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

// matchFilter builds the query document for match. Zero fields are omitted.
func matchFilter(m ports.AccessCodeMatch) (bson.M, error) {
	filter := bson.M{}
	if m.ID != "" {
		oid, err := primitive.ObjectIDFromHex(m.ID)
		if err != nil {
			return nil, fmt.Errorf("access code id %q: %w", m.ID, err)
		}
		filter["_id"] = oid
	}
	if m.Role != "" {
		filter["role"] = string(m.Role)
	}
	if m.Code != "" {
		filter["code"] = m.Code
	}
	if m.Status != "" {
		filter["status"] = string(m.Status)
	}
	return filter, nil
}

// changeUpdate builds the $set document for a transition.
func changeUpdate(ch ports.AccessCodeChange) bson.M {
	set := bson.M{"status": string(ch.Status)}
	if ch.ExpiresAt != nil {
		set["expires_at"] = ch.ExpiresAt.UTC()
	}
	if ch.UsedAt != nil {
		set["used_at"] = ch.UsedAt.UTC()
	}
	if ch.UsedBy != "" {
		set["used_by"] = ch.UsedBy
	}
	return bson.M{"$set": set}
}
