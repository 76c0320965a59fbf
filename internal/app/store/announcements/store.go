// Package announcementstore persists school-wide announcements.
package announcementstore

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
	return &Store{c: db.Collection("announcements")}
}

// Create inserts an announcement. DateSent defaults to now when unset.
func (s *Store) Create(ctx context.Context, a models.Announcement) (models.Announcement, error) {
	if a.Title == "" {
		return models.Announcement{}, errors.New("title is required")
	}
	if a.Content == "" {
		return models.Announcement{}, errors.New("content is required")
	}

	a.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	if a.DateSent.IsZero() {
		a.DateSent = now
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.Announcement{}, err
	}
	return a, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Announcement, error) {
	var a models.Announcement
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns announcements newest first.
func (s *Store) List(ctx context.Context) ([]models.Announcement, error) {
	cur, err := s.c.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "date_sent", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Announcement{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update edits title and content. Empty fields are skipped.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, title, content string) (*models.Announcement, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if title != "" {
		set["title"] = title
	}
	if content != "" {
		set["content"] = content
	}

	res := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var a models.Announcement
	if err := res.Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
