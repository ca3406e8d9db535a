package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/craftlab/canvas-gateway/internal/domain"
)

// Compile-time interface assertion.
var _ UserRepository = (*MongoUserRepo)(nil)

const usersCollection = "users"

// MongoUserRepo implements UserRepository on a MongoDB collection.
// Correctness of concurrent first-sight upserts relies on the unique
// indexes created by EnsureIndexes, not on in-process locking.
type MongoUserRepo struct {
	col *mongo.Collection
}

// NewMongoUserRepo constructs the repository over the given database.
func NewMongoUserRepo(db *mongo.Database) *MongoUserRepo {
	return &MongoUserRepo{col: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique indexes the upsert race arbitration
// depends on: email always unique, external_id unique when present.
func (r *MongoUserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "external_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *MongoUserRepo) GetByID(ctx context.Context, id string) (domain.UserIdentity, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepo) GetByEmail(ctx context.Context, email string) (domain.UserIdentity, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepo) GetByExternalID(ctx context.Context, externalID string) (domain.UserIdentity, error) {
	return r.findOne(ctx, bson.M{"external_id": externalID})
}

func (r *MongoUserRepo) findOne(ctx context.Context, filter bson.M) (domain.UserIdentity, error) {
	var user domain.UserIdentity
	if err := r.col.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.UserIdentity{}, domain.ErrNotFound
		}
		return domain.UserIdentity{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (r *MongoUserRepo) Create(ctx context.Context, user domain.UserIdentity) (domain.UserIdentity, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.UserIdentity{}, domain.ErrConflict
		}
		return domain.UserIdentity{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *MongoUserRepo) RecordLogin(ctx context.Context, id string, profile domain.ProfileUpdate, externalID string, entry domain.LoginEntry) (domain.UserIdentity, error) {
	set := profileSet(profile)
	if externalID != "" {
		set["external_id"] = externalID
	}
	set["updated_at"] = time.Now().UTC()

	update := bson.M{
		"$set":  set,
		"$inc":  bson.M{"login_count": 1},
		"$push": bson.M{"login_log": entry},
	}

	var updated domain.UserIdentity
	err := r.col.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.UserIdentity{}, domain.ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return domain.UserIdentity{}, domain.ErrConflict
		}
		return domain.UserIdentity{}, fmt.Errorf("record login: %w", err)
	}
	return updated, nil
}

func (r *MongoUserRepo) UpdateProfile(ctx context.Context, id string, profile domain.ProfileUpdate) (domain.UserIdentity, error) {
	set := profileSet(profile)
	set["updated_at"] = time.Now().UTC()

	var updated domain.UserIdentity
	err := r.col.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.UserIdentity{}, domain.ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return domain.UserIdentity{}, domain.ErrConflict
		}
		return domain.UserIdentity{}, fmt.Errorf("update profile: %w", err)
	}
	return updated, nil
}

func (r *MongoUserRepo) MarkVerified(ctx context.Context, id string) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"verified":   true,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoUserRepo) SetCredentialHash(ctx context.Context, id, hash string) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"credential_hash": hash,
		"updated_at":      time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("set credential hash: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func profileSet(profile domain.ProfileUpdate) bson.M {
	set := bson.M{}
	if profile.DisplayName != nil {
		set["display_name"] = *profile.DisplayName
	}
	if profile.Email != nil {
		set["email"] = *profile.Email
	}
	if profile.AvatarURL != nil {
		set["avatar_url"] = *profile.AvatarURL
	}
	return set
}
