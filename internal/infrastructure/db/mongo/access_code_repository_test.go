package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/farmledger/access-codes/internal/core/domain"
	"github.com/farmledger/access-codes/internal/core/ports"
)

func TestMatchFilter_OmitsZeroFields(t *testing.T) {
	f, err := matchFilter(ports.AccessCodeMatch{Role: domain.RoleFinance, Status: domain.CodeActive})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"role": "finance", "status": "active"}, f)
}

func TestMatchFilter_ID(t *testing.T) {
	oid := primitive.NewObjectID()
	f, err := matchFilter(ports.AccessCodeMatch{ID: oid.Hex(), Status: domain.CodeActive})
	require.NoError(t, err)
	assert.Equal(t, oid, f["_id"])
	assert.Equal(t, "active", f["status"])
}

func TestMatchFilter_BadID(t *testing.T) {
	_, err := matchFilter(ports.AccessCodeMatch{ID: "not-an-object-id"})
	assert.Error(t, err)
}

func TestChangeUpdate_Consume(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CST", -6*3600))
	u := changeUpdate(ports.AccessCodeChange{Status: domain.CodeUsed, UsedAt: &at, UsedBy: "ana@example.com"})

	set, ok := u["$set"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, "used", set["status"])
	assert.Equal(t, at.UTC(), set["used_at"])
	assert.Equal(t, "ana@example.com", set["used_by"])
	assert.NotContains(t, set, "expires_at")
}

func TestChangeUpdate_Expire(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	u := changeUpdate(ports.AccessCodeChange{Status: domain.CodeExpired, ExpiresAt: &at})

	set := u["$set"].(bson.M)
	assert.Equal(t, "expired", set["status"])
	assert.Equal(t, at, set["expires_at"])
	assert.NotContains(t, set, "used_by")
}

func TestAccessCodeDoc_RoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	in := &domain.AccessCode{
		Role:      domain.RoleFieldOfficer,
		Code:      "0A1B2C3D",
		Status:    domain.CodeActive,
		CreatedAt: created,
		ExpiresAt: created.Add(domain.CodeTTL),
		CreatedBy: "mgr-1",
	}

	doc := toDoc(in)
	doc.ID = primitive.NewObjectID()
	out := doc.toDomain()

	assert.Equal(t, doc.ID.Hex(), out.ID)
	assert.Equal(t, in.Role, out.Role)
	assert.Equal(t, in.Code, out.Code)
	assert.Equal(t, in.ExpiresAt, out.ExpiresAt)
	assert.Nil(t, out.UsedAt)
}

func TestTransition_RejectsUnguardedMatch(t *testing.T) {
	repo := &AccessCodeRepository{}
	ctx := context.Background()

	_, err := repo.TransitionOne(ctx, ports.AccessCodeMatch{Code: "0A1B2C3D"}, ports.AccessCodeChange{Status: domain.CodeUsed})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = repo.TransitionAll(ctx, ports.AccessCodeMatch{Status: domain.CodeUsed}, ports.AccessCodeChange{Status: domain.CodeExpired})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
