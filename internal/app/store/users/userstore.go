package userstore

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

// ErrDuplicateEmail is returned when a write collides with the unique
// email index. The index is the arbiter for racing registrations.
var ErrDuplicateEmail = errors.New("a user with this email already exists")

var errBadRole = errors.New(`role must be "guardian"|"admin"`)

// Store persists User documents.
type Store struct {
	c *mongo.Collection
}

// New creates a user Store over the users collection.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// Collection exposes the underlying collection for transactional callers
// (the linking transaction writes users and children in one session).
func (s *Store) Collection() *mongo.Collection { return s.c }

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by normalized email.
// Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByFederatedID looks up a user by external identity provider subject.
// Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByFederatedID(ctx context.Context, federatedID string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"federated_id": federatedID}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user after normalizing and validating fields.
// Every account must carry at least one credential path.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Name = normalize.Name(u.Name)
	u.Email = normalize.Email(u.Email)
	if u.Role == "" {
		u.Role = models.RoleGuardian
	}

	switch u.Role {
	case models.RoleGuardian, models.RoleAdmin:
		// ok
	default:
		return models.User{}, errBadRole
	}

	if !u.HasPassword() && u.FederatedID == nil {
		return models.User{}, errors.New("user must have a password or a federated identity")
	}

	if u.Children == nil {
		u.Children = []primitive.ObjectID{}
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// SetPasswordHash overwrites a user's password hash. Used when a register
// attempt continues onboarding of an existing incomplete account.
func (s *Store) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"password_hash": hash, "updated_at": time.Now().UTC()}},
	)
	return err
}

// SetFederatedID attaches an external identity to an existing account
// (the federated-login account merge).
func (s *Store) SetFederatedID(ctx context.Context, id primitive.ObjectID, federatedID string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"federated_id": federatedID, "updated_at": time.Now().UTC()}},
	)
	if err != nil && wafflemongo.IsDup(err) {
		return errors.New("federated identity already linked to another account")
	}
	return err
}

// PullChildFromAll removes a child id from every user's children array.
// Called when a child record is deleted so no account keeps a dangling link.
func (s *Store) PullChildFromAll(ctx context.Context, childID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"children": childID},
		bson.M{
			"$pull": bson.M{"children": childID},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ProfileUpdate holds the profile fields a guardian can set.
type ProfileUpdate struct {
	Name    string
	Phone   string
	Address string
}

// UpdateProfile sets profile fields on a user. Empty fields are skipped so
// partial updates don't blank out existing values.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*models.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != "" {
		set["name"] = normalize.Name(upd.Name)
	}
	if upd.Phone != "" {
		set["phone"] = upd.Phone
	}
	if upd.Address != "" {
		set["address"] = upd.Address
	}

	res := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var u models.User
	if err := res.Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}
