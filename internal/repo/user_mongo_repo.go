package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/metflix/server/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDocument struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	Username     string    `bson:"username"`
	PasswordHash string    `bson:"password"`
	Role         string    `bson:"role"`
	IsBlocked    bool      `bson:"isBlocked"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func (d userDocument) toModel() (model.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to parse user ID: %w", err)
	}
	return model.User{
		ID:           id,
		Email:        d.Email,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		Role:         model.Role(d.Role),
		IsBlocked:    d.IsBlocked,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

type mongoUserRepo struct {
	users *mongo.Collection
}

// NewMongoUserRepo creates a MongoDB-backed UserRepo and ensures the unique
// email index exists
func NewMongoUserRepo(ctx context.Context, db *mongo.Database) (UserRepo, error) {
	users := db.Collection("users")
	_, err := users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create email index: %w", err)
	}
	return &mongoUserRepo{users: users}, nil
}

func (r *mongoUserRepo) findOne(ctx context.Context, filter bson.M) (model.User, error) {
	var doc userDocument
	err := r.users.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return doc.toModel()
}

// GetByID retrieves a user by ID
func (r *mongoUserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail retrieves a user by exact email
func (r *mongoUserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// Create inserts a new user, mapping duplicate-key errors to ErrUserExists
func (r *mongoUserRepo) Create(ctx context.Context, u model.NewUser) (model.User, error) {
	role := u.Role
	if !role.Valid() {
		role = model.RoleUser
	}
	now := time.Now().UTC()
	doc := userDocument{
		ID:           uuid.NewString(),
		Email:        u.Email,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         string(role),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.User{}, ErrUserExists
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return doc.toModel()
}

// ResetPassword replaces the password hash of the user with the given email
func (r *mongoUserRepo) ResetPassword(ctx context.Context, email, passwordHash string) (model.User, error) {
	var doc userDocument
	err := r.users.FindOneAndUpdate(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"password": passwordHash, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to reset password: %w", err)
	}
	return doc.toModel()
}

// UpsertFederated returns the user with the given email, creating a
// password-less USER account if none exists
func (r *mongoUserRepo) UpsertFederated(ctx context.Context, name, email string) (model.User, error) {
	now := time.Now().UTC()
	var doc userDocument
	err := r.users.FindOneAndUpdate(ctx,
		bson.M{"email": email},
		bson.M{"$setOnInsert": bson.M{
			"_id":       uuid.NewString(),
			"username":  name,
			"password":  "",
			"role":      string(model.RoleUser),
			"isBlocked": false,
			"createdAt": now,
			"updatedAt": now,
		}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to upsert user: %w", err)
	}
	return doc.toModel()
}

// SetBlocked sets the blocked flag of the user with the given email
func (r *mongoUserRepo) SetBlocked(ctx context.Context, email string, blocked bool) error {
	res, err := r.users.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"isBlocked": blocked, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
