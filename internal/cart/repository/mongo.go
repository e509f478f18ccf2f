package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{collection: db.Collection("carts")}
}

func (m *MongoRepository) FindByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return normalize(&cart), nil
}

func (m *MongoRepository) Save(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	id := cart.ID
	if id == "" {
		id = uuid.NewString()
	}
	items := cart.Items
	if items == nil {
		items = []domain.CartItem{}
	}

	filter := bson.M{"user_id": cart.UserID}
	update := bson.M{
		"$set": bson.M{
			"items":      items,
			"updated_at": cart.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":        id,
			"created_at": cart.CreatedAt,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var saved domain.Cart
	if err := m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	return normalize(&saved), nil
}

const (
	userIndexName = "carts_user_id_unique"
	idleIndexName = "carts_idle_ttl"
)

// CreateIndexes enforces one cart per user. With a positive idleTTL, carts
// untouched for that long are expired by the server.
func (m *MongoRepository) CreateIndexes(ctx context.Context, idleTTL time.Duration) error {
	indexes := []mongo.IndexModel{{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetName(userIndexName).SetUnique(true),
	}}
	if idleTTL > 0 {
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetName(idleIndexName).SetExpireAfterSeconds(int32(idleTTL / time.Second)),
		})
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create cart indexes: %w", err)
	}
	return nil
}

func normalize(cart *domain.Cart) *domain.Cart {
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	cart.CreatedAt = cart.CreatedAt.UTC()
	cart.UpdatedAt = cart.UpdatedAt.UTC()
	return cart
}
