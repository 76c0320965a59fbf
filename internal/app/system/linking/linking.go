// Package linking writes both halves of a guardian-child relationship as
// one unit. The invitation code is the capability that authorizes the
// link; it is matched, never consumed, so several guardians can bind to
// the same child with one code.
package linking

import (
	"context"
	"errors"
	"time"

	"github.com/kinderlink/kinderlink/internal/app/system/apperr"
	"github.com/kinderlink/kinderlink/internal/app/system/normalize"
	"github.com/kinderlink/kinderlink/internal/app/system/txn"
	"github.com/kinderlink/kinderlink/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Linker binds users to children. Writes run in a multi-document
// transaction when the server supports them, and fall back to ordered
// compensating writes on standalone deployments.
type Linker struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
}

// New creates a Linker over the users and children collections.
func New(client *mongo.Client, db *mongo.Database, logger *zap.Logger) *Linker {
	return &Linker{client: client, db: db, log: logger}
}

type linkResult struct {
	user  *models.User
	child *models.Child
}

// Link binds an existing user to the child whose invitation code matches.
// Both edge halves are written, or neither.
func (l *Linker) Link(ctx context.Context, userID primitive.ObjectID, code string) (*models.User, *models.Child, error) {
	res, err := l.transact(ctx, func(ctx context.Context, compensate bool) (*linkResult, error) {
		return l.link(ctx, userID, code, compensate)
	})
	if err != nil {
		return nil, nil, err
	}
	return res.user, res.child, nil
}

// Profile carries the guardian fields written alongside a link. Empty
// fields are left untouched.
type Profile struct {
	Name    string
	Phone   string
	Address string
}

// LinkWithProfile fills in the guardian's profile and binds the account
// to the child named by the invitation code, as one unit. A bad code or
// a duplicate link fails before anything is written, so the account is
// exactly as it was.
func (l *Linker) LinkWithProfile(ctx context.Context, userID primitive.ObjectID, profile Profile, code string) (*models.User, *models.Child, error) {
	res, err := l.transact(ctx, func(ctx context.Context, compensate bool) (*linkResult, error) {
		return l.linkWithProfile(ctx, userID, profile, code, compensate)
	})
	if err != nil {
		return nil, nil, err
	}
	return res.user, res.child, nil
}

// LinkFederated finishes a federated registration: it creates (or merges
// into) the guardian account and links it to the child, all in one unit.
// Candidate must carry the federated subject id.
func (l *Linker) LinkFederated(ctx context.Context, candidate models.User, code string) (*models.User, *models.Child, error) {
	res, err := l.transact(ctx, func(ctx context.Context, compensate bool) (*linkResult, error) {
		return l.linkFederated(ctx, candidate, code, compensate)
	})
	if err != nil {
		return nil, nil, err
	}
	return res.user, res.child, nil
}

// transact runs fn inside a session transaction, retrying once without a
// transaction when the server reports transactions are unsupported.
func (l *Linker) transact(ctx context.Context, fn func(ctx context.Context, compensate bool) (*linkResult, error)) (*linkResult, error) {
	sess, err := l.client.StartSession()
	if err == nil {
		defer sess.EndSession(ctx)

		out, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			return fn(sc, false)
		})
		if err == nil {
			return out.(*linkResult), nil
		}
		if !txn.IsNotSupported(err) {
			return nil, err
		}
		l.log.Warn("transactions unavailable, falling back to compensating writes", zap.Error(err))
	} else {
		if !txn.IsNotSupported(err) {
			return nil, err
		}
		l.log.Warn("sessions unavailable, falling back to compensating writes", zap.Error(err))
	}

	return fn(ctx, true)
}

func (l *Linker) users() *mongo.Collection    { return l.db.Collection("users") }
func (l *Linker) children() *mongo.Collection { return l.db.Collection("children") }

func (l *Linker) resolveCode(ctx context.Context, code string) (*models.Child, error) {
	var child models.Child
	err := l.children().FindOne(ctx, bson.M{"invitation_code": normalize.Code(code)}).Decode(&child)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("invalid invitation code")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &child, nil
}

func (l *Linker) link(ctx context.Context, userID primitive.ObjectID, code string, compensate bool) (*linkResult, error) {
	child, err := l.resolveCode(ctx, code)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := l.users().FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal(err)
	}

	if user.HasChild(child.ID) {
		return nil, apperr.Conflict("already linked to this child")
	}

	if err := l.writeEdges(ctx, user.ID, child.ID, compensate); err != nil {
		return nil, err
	}

	return l.reload(ctx, user.ID, child.ID)
}

func (l *Linker) linkWithProfile(ctx context.Context, userID primitive.ObjectID, p Profile, code string, compensate bool) (*linkResult, error) {
	child, err := l.resolveCode(ctx, code)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := l.users().FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal(err)
	}

	if user.HasChild(child.ID) {
		return nil, apperr.Conflict("already linked to this child")
	}

	// One update carries both the profile and the user-side edge, so the
	// fallback path has a single user write to undo.
	set := bson.M{"updated_at": time.Now().UTC()}
	if p.Name != "" {
		set["name"] = normalize.Name(p.Name)
	}
	if p.Phone != "" {
		set["phone"] = p.Phone
	}
	if p.Address != "" {
		set["address"] = p.Address
	}

	if _, err := l.users().UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$set":      set,
			"$addToSet": bson.M{"children": child.ID},
		}); err != nil {
		return nil, apperr.Internal(err)
	}

	if _, err := l.children().UpdateOne(ctx,
		bson.M{"_id": child.ID},
		bson.M{
			"$addToSet": bson.M{"guardians": userID},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		}); err != nil {
		if compensate {
			l.restoreProfile(ctx, &user, child.ID)
		}
		return nil, apperr.Internal(err)
	}

	return l.reload(ctx, userID, child.ID)
}

// restoreProfile undoes the combined profile-and-edge write by putting
// the previously loaded field values back and pulling the child ref.
func (l *Linker) restoreProfile(ctx context.Context, prev *models.User, childID primitive.ObjectID) {
	set := bson.M{"updated_at": prev.UpdatedAt}
	unset := bson.M{}
	for field, old := range map[string]string{
		"name":    prev.Name,
		"phone":   prev.Phone,
		"address": prev.Address,
	} {
		if old == "" {
			unset[field] = ""
		} else {
			set[field] = old
		}
	}

	update := bson.M{
		"$set":  set,
		"$pull": bson.M{"children": childID},
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	if _, err := l.users().UpdateOne(ctx, bson.M{"_id": prev.ID}, update); err != nil {
		l.log.Error("failed to undo profile-and-link write",
			zap.String("user_id", prev.ID.Hex()),
			zap.String("child_id", childID.Hex()),
			zap.Error(err))
	}
}

func (l *Linker) linkFederated(ctx context.Context, candidate models.User, code string, compensate bool) (*linkResult, error) {
	if candidate.FederatedID == nil || *candidate.FederatedID == "" {
		return nil, apperr.Internal(errors.New("linkFederated: candidate has no federated id"))
	}

	child, err := l.resolveCode(ctx, code)
	if err != nil {
		return nil, err
	}

	userID, inserted, err := l.upsertFederatedUser(ctx, candidate)
	if err != nil {
		return nil, err
	}

	if err := l.writeEdges(ctx, userID, child.ID, compensate); err != nil {
		if compensate && inserted {
			if _, derr := l.users().DeleteOne(ctx, bson.M{"_id": userID}); derr != nil {
				l.log.Error("failed to undo federated user insert",
					zap.String("user_id", userID.Hex()), zap.Error(derr))
			}
		}
		return nil, err
	}

	return l.reload(ctx, userID, child.ID)
}

// upsertFederatedUser creates the account or merges the federated identity
// into an existing incomplete account with the same email. A complete
// account with the same email belongs to someone already signed up; the
// registration is rejected rather than hijacking it.
func (l *Linker) upsertFederatedUser(ctx context.Context, candidate models.User) (primitive.ObjectID, bool, error) {
	email := normalize.Email(candidate.Email)

	var existing models.User
	err := l.users().FindOne(ctx, bson.M{"email": email}).Decode(&existing)
	switch {
	case err == nil:
		if existing.IsComplete() {
			return primitive.NilObjectID, false, apperr.Conflict("email taken")
		}
		set := bson.M{
			"federated_id": *candidate.FederatedID,
			"updated_at":   time.Now().UTC(),
		}
		if existing.Name == "" && candidate.Name != "" {
			set["name"] = normalize.Name(candidate.Name)
		}
		if _, err := l.users().UpdateOne(ctx, bson.M{"_id": existing.ID}, bson.M{"$set": set}); err != nil {
			if wafflemongo.IsDup(err) {
				return primitive.NilObjectID, false, apperr.Conflict("federated identity already linked to another account")
			}
			return primitive.NilObjectID, false, apperr.Internal(err)
		}
		return existing.ID, false, nil

	case errors.Is(err, mongo.ErrNoDocuments):
		now := time.Now().UTC()
		candidate.ID = primitive.NewObjectID()
		candidate.Email = email
		candidate.Name = normalize.Name(candidate.Name)
		candidate.Role = models.RoleGuardian
		candidate.Children = []primitive.ObjectID{}
		candidate.CreatedAt = now
		candidate.UpdatedAt = now

		if _, err := l.users().InsertOne(ctx, candidate); err != nil {
			if wafflemongo.IsDup(err) {
				// Raced another registration for the same email or subject.
				return primitive.NilObjectID, false, apperr.Conflict("email taken")
			}
			return primitive.NilObjectID, false, apperr.Internal(err)
		}
		return candidate.ID, true, nil

	default:
		return primitive.NilObjectID, false, apperr.Internal(err)
	}
}

// writeEdges adds the child to the user and the user to the child.
// $addToSet keeps both writes idempotent. In compensate mode, a failed
// child-side write rolls the user-side write back.
func (l *Linker) writeEdges(ctx context.Context, userID, childID primitive.ObjectID, compensate bool) error {
	now := time.Now().UTC()

	_, err := l.users().UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$addToSet": bson.M{"children": childID},
			"$set":      bson.M{"updated_at": now},
		})
	if err != nil {
		return apperr.Internal(err)
	}

	_, err = l.children().UpdateOne(ctx,
		bson.M{"_id": childID},
		bson.M{
			"$addToSet": bson.M{"guardians": userID},
			"$set":      bson.M{"updated_at": now},
		})
	if err != nil {
		if compensate {
			if _, uerr := l.users().UpdateOne(ctx,
				bson.M{"_id": userID},
				bson.M{"$pull": bson.M{"children": childID}}); uerr != nil {
				l.log.Error("failed to undo user-side link",
					zap.String("user_id", userID.Hex()),
					zap.String("child_id", childID.Hex()),
					zap.Error(uerr))
			}
		}
		return apperr.Internal(err)
	}
	return nil
}

func (l *Linker) reload(ctx context.Context, userID, childID primitive.ObjectID) (*linkResult, error) {
	var user models.User
	if err := l.users().FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		return nil, apperr.Internal(err)
	}
	var child models.Child
	if err := l.children().FindOne(ctx, bson.M{"_id": childID}).Decode(&child); err != nil {
		return nil, apperr.Internal(err)
	}
	return &linkResult{user: &user, child: &child}, nil
}
