package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/example/storefront/pkg/models"
)

type AdminStore struct {
	coll *mongo.Collection
}

func (s *AdminStore) CreateAdmin(ctx context.Context, a *models.AdminUser) error {
	doc := adminDoc{
		ID:           a.ID,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Role:         a.Role,
		CreatedAt:    a.CreatedAt,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert admin: %w", err)
	}
	return nil
}

func (s *AdminStore) FindAdmin(ctx context.Context, id string) (*models.AdminUser, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *AdminStore) FindAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *AdminStore) findOne(ctx context.Context, filter bson.M) (*models.AdminUser, error) {
	var doc adminDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}
	return &models.AdminUser{
		ID:           doc.ID,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		Role:         doc.Role,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

// Clear removes every admin user.
func (s *AdminStore) Clear(ctx context.Context) error {
	if _, err := s.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to clear admins: %w", err)
	}
	return nil
}
