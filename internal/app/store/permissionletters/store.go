// Package letterstore persists absence permission letters.
package letterstore

import (
	"context"
	"errors"
	"time"

	"github.com/kinderlink/kinderlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("permission_letters")}
}

func (s *Store) Create(ctx context.Context, l models.PermissionLetter) (models.PermissionLetter, error) {
	if l.Parent.IsZero() {
		return models.PermissionLetter{}, errors.New("parent is required")
	}
	if l.StudentName == "" {
		return models.PermissionLetter{}, errors.New("student name is required")
	}
	if l.Reason == "" {
		return models.PermissionLetter{}, errors.New("reason is required")
	}
	if l.DateRange.StartDate.IsZero() || l.DateRange.EndDate.IsZero() {
		return models.PermissionLetter{}, errors.New("date range is required")
	}
	if l.DateRange.EndDate.Before(l.DateRange.StartDate) {
		return models.PermissionLetter{}, errors.New("end date precedes start date")
	}

	l.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, l); err != nil {
		return models.PermissionLetter{}, err
	}
	return l, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.PermissionLetter, error) {
	var l models.PermissionLetter
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&l); err != nil {
		return nil, err
	}
	return &l, nil
}

// List returns all letters newest first. Admin view.
func (s *Store) List(ctx context.Context) ([]models.PermissionLetter, error) {
	return s.find(ctx, bson.M{})
}

// ListByParent returns one guardian's letters newest first.
func (s *Store) ListByParent(ctx context.Context, parentID primitive.ObjectID) ([]models.PermissionLetter, error) {
	return s.find(ctx, bson.M{"parent": parentID})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.PermissionLetter, error) {
	cur, err := s.c.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.PermissionLetter{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
