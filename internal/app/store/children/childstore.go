// Package childstore persists enrolled children and their guardian links.
package childstore

import (
	"context"
	"errors"
	"time"

	"github.com/kinderlink/kinderlink/internal/app/system/normalize"
	"github.com/kinderlink/kinderlink/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateCode is returned when an insert collides with the unique
// invitation code index.
var ErrDuplicateCode = errors.New("invitation code already in use")

// Store persists Child documents.
type Store struct {
	c *mongo.Collection
}

// New creates a child Store over the children collection.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("children")}
}

// Collection exposes the underlying collection for transactional callers.
func (s *Store) Collection() *mongo.Collection { return s.c }

// GetByID loads a child by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Child, error) {
	var c models.Child
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByInvitationCode resolves a normalized invitation code to its child.
// Returns mongo.ErrNoDocuments when the code matches nothing.
func (s *Store) GetByInvitationCode(ctx context.Context, code string) (*models.Child, error) {
	var c models.Child
	err := s.c.FindOne(ctx, bson.M{"invitation_code": normalize.Code(code)}).Decode(&c)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CodeExists reports whether an invitation code is already assigned.
// Shaped to plug into invite.GenerateUnique.
func (s *Store) CodeExists(ctx context.Context, code string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"invitation_code": normalize.Code(code)},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, err
}

// Create inserts a new child. The invitation code must already be set;
// the unique index catches generator races.
func (s *Store) Create(ctx context.Context, c models.Child) (models.Child, error) {
	c.ID = primitive.NewObjectID()
	c.Name = normalize.Name(c.Name)
	c.InvitationCode = normalize.Code(c.InvitationCode)

	if c.Name == "" {
		return models.Child{}, errors.New("child name is required")
	}
	if c.InvitationCode == "" {
		return models.Child{}, errors.New("invitation code is required")
	}
	if !models.IsValidClass(c.Class) {
		return models.Child{}, errors.New("unknown class " + c.Class)
	}

	if c.Guardians == nil {
		c.Guardians = []primitive.ObjectID{}
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, c); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Child{}, ErrDuplicateCode
		}
		return models.Child{}, err
	}
	return c, nil
}

// Update holds the mutable enrollment fields.
type Update struct {
	Name         string
	BirthDate    *time.Time
	Class        string
	MedicalNotes []string
	Notes        *string
}

// Update applies enrollment edits. Zero-valued fields are skipped.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd Update) (*models.Child, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != "" {
		set["name"] = normalize.Name(upd.Name)
	}
	if upd.BirthDate != nil {
		set["birth_date"] = *upd.BirthDate
	}
	if upd.Class != "" {
		if !models.IsValidClass(upd.Class) {
			return nil, errors.New("unknown class " + upd.Class)
		}
		set["class"] = upd.Class
	}
	if upd.MedicalNotes != nil {
		set["medical_notes"] = upd.MedicalNotes
	}
	if upd.Notes != nil {
		set["notes"] = *upd.Notes
	}

	res := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var c models.Child
	if err := res.Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes a child. Returns the number of documents deleted.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// List returns all children sorted by class then name.
func (s *Store) List(ctx context.Context) ([]models.Child, error) {
	cur, err := s.c.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "class", Value: 1}, {Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	children := []models.Child{}
	if err := cur.All(ctx, &children); err != nil {
		return nil, err
	}
	return children, nil
}

// ListByGuardian returns the children linked to a guardian.
func (s *Store) ListByGuardian(ctx context.Context, guardianID primitive.ObjectID) ([]models.Child, error) {
	cur, err := s.c.Find(ctx, bson.M{"guardians": guardianID},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	children := []models.Child{}
	if err := cur.All(ctx, &children); err != nil {
		return nil, err
	}
	return children, nil
}
