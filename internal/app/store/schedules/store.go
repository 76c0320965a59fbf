// Package schedulestore persists daily activity schedules.
package schedulestore

import (
	"context"
	"errors"
	"strings"
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
	return &Store{c: db.Collection("schedules")}
}

// Create inserts a schedule. The day name is canonicalized (senin -> Senin).
func (s *Store) Create(ctx context.Context, sch models.Schedule) (models.Schedule, error) {
	day, ok := models.ValidDays[strings.ToLower(strings.TrimSpace(sch.Day))]
	if !ok {
		return models.Schedule{}, errors.New("unknown day " + sch.Day)
	}
	sch.Day = day

	if len(sch.Activity) == 0 {
		return models.Schedule{}, errors.New("at least one activity is required")
	}
	for _, a := range sch.Activity {
		if a.Time == "" || a.Subject == "" {
			return models.Schedule{}, errors.New("every activity needs a time and subject")
		}
	}

	sch.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	sch.CreatedAt = now
	sch.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, sch); err != nil {
		return models.Schedule{}, err
	}
	return sch, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Schedule, error) {
	var sch models.Schedule
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&sch); err != nil {
		return nil, err
	}
	return &sch, nil
}

// List returns all schedules sorted by date.
func (s *Store) List(ctx context.Context) ([]models.Schedule, error) {
	cur, err := s.c.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Schedule{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces the mutable schedule fields.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, sch models.Schedule) (*models.Schedule, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if sch.Day != "" {
		day, ok := models.ValidDays[strings.ToLower(strings.TrimSpace(sch.Day))]
		if !ok {
			return nil, errors.New("unknown day " + sch.Day)
		}
		set["day"] = day
	}
	if sch.Date != "" {
		set["date"] = sch.Date
	}
	if len(sch.Activity) > 0 {
		set["activity"] = sch.Activity
	}

	res := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var out models.Schedule
	if err := res.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
