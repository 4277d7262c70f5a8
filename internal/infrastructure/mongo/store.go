// Package mongo provides a MongoDB credential store.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-api-otp/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection = "users"
	otpsCollection  = "otps"
)

// collection is the subset of *mongo.Collection the store uses.
type collection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
}

// Store implements domain.CredentialStore on two collections. Users are keyed
// by user id in _id with a unique index on email; otps are keyed by otp id.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	users  collection
	otps   collection
}

var _ domain.CredentialStore = (*Store)(nil)

// Connect dials uri, verifies the primary is reachable and ensures indexes.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	users := db.Collection(usersCollection)
	otps := db.Collection(otpsCollection)
	if err := ensureIndexes(ctx, users, otps); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &Store{client: client, db: db, users: users, otps: otps}, nil
}

func ensureIndexes(ctx context.Context, users, otps *mongo.Collection) error {
	_, err := users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("email_unique").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users.email index: %w", err)
	}
	_, err = otps.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetName("user_id"),
	})
	if err != nil {
		return fmt.Errorf("create otps.user_id index: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.users.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("user with email %s: %w", u.Email, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.findUser(ctx, bson.M{"_id": userID})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*domain.User, error) {
	var u domain.User
	err := s.users.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (s *Store) CreateOtp(ctx context.Context, o *domain.Otp) error {
	if _, err := s.otps.InsertOne(ctx, o); err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}
	return nil
}

// RedeemOtp relies on FindOneAndUpdate being atomic for a single document:
// only one caller can match used=false and flip it.
func (s *Store) RedeemOtp(ctx context.Context, otpID, code string, now time.Time) (*domain.User, error) {
	filter := bson.M{
		"_id":        otpID,
		"code":       code,
		"used":       false,
		"expires_at": bson.M{"$gte": now},
	}
	update := bson.M{"$set": bson.M{"used": true}}

	var o domain.Otp
	err := s.otps.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("otp %s: %w", otpID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redeem otp: %w", err)
	}
	return s.GetUser(ctx, o.UserID)
}
