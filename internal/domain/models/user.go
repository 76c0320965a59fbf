// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles assignable to a user. Guardians are parents/caregivers; admins run
// the school side of the portal.
const (
	RoleGuardian = "guardian"
	RoleAdmin    = "admin"
)

// User represents a guardian or admin account.
//
// An account may legitimately exist in an incomplete state: email plus a
// credential first, profile fields and child links later. Completeness is
// derived (see IsComplete), never stored, so it can't drift.
type User struct {
	ID    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name  string             `bson:"name,omitempty" json:"name,omitempty"`
	Email string             `bson:"email" json:"email"`

	// PasswordHash is set only for password-provenance accounts. Accounts
	// that originated federally and never set a password have no hash and
	// cannot log in by password.
	PasswordHash *string `bson:"password_hash,omitempty" json:"-"`

	// FederatedID is the external identity provider's subject id, set when
	// the account is linked to a federated login. At most one per account.
	FederatedID *string `bson:"federated_id,omitempty" json:"federated_id,omitempty"`

	Phone   string `bson:"phone,omitempty" json:"phone,omitempty"`
	Address string `bson:"address,omitempty" json:"address,omitempty"`

	Role string `bson:"role" json:"role"` // guardian | admin

	// Children holds the ids of linked Child documents. The linking
	// transaction is the only writer of this field.
	Children []primitive.ObjectID `bson:"children" json:"children"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsComplete reports whether the account has finished onboarding: all
// profile fields populated and at least one child linked. Recomputed on
// every read that needs it.
func (u *User) IsComplete() bool {
	return u.Name != "" && u.Phone != "" && u.Address != "" && len(u.Children) > 0
}

// HasPassword reports whether password login is possible for this account.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// HasChild reports whether the given child is already linked.
func (u *User) HasChild(childID primitive.ObjectID) bool {
	for _, id := range u.Children {
		if id == childID {
			return true
		}
	}
	return false
}
