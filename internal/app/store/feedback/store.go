// Package feedbackstore persists guardian suggestions and complaints.
package feedbackstore

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
	return &Store{c: db.Collection("feedback")}
}

func (s *Store) Create(ctx context.Context, f models.Feedback) (models.Feedback, error) {
	if f.Parent.IsZero() {
		return models.Feedback{}, errors.New("parent is required")
	}
	if f.Content == "" {
		return models.Feedback{}, errors.New("content is required")
	}
	switch f.Type {
	case models.FeedbackSaran, models.FeedbackKeluhan:
		// ok
	default:
		return models.Feedback{}, errors.New(`type must be "saran"|"keluhan"`)
	}

	f.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, f); err != nil {
		return models.Feedback{}, err
	}
	return f, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Feedback, error) {
	var f models.Feedback
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// List returns all feedback newest first. Admin view.
func (s *Store) List(ctx context.Context) ([]models.Feedback, error) {
	return s.find(ctx, bson.M{})
}

// ListByParent returns one guardian's feedback newest first.
func (s *Store) ListByParent(ctx context.Context, parentID primitive.ObjectID) ([]models.Feedback, error) {
	return s.find(ctx, bson.M{"parent": parentID})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Feedback, error) {
	cur, err := s.c.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Feedback{}
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
