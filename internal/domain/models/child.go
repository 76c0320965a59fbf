// internal/domain/models/child.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Valid class names for enrolled children.
var ValidClasses = []string{"Kelas A", "Kelas B"}

// Child represents an enrolled child. The invitation code is minted at
// enrollment and lets guardians bind their account to this record; codes
// are matched, not consumed, so a child can gain additional guardians
// from the same code.
type Child struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	BirthDate time.Time          `bson:"birth_date" json:"birth_date"`
	Class     string             `bson:"class" json:"class"`

	InvitationCode string `bson:"invitation_code" json:"invitation_code"`

	// Guardians holds the ids of linked User documents. Mirror of
	// User.Children; both halves are written by the linking transaction.
	Guardians []primitive.ObjectID `bson:"guardians" json:"guardians"`

	MedicalNotes []string `bson:"medical_notes,omitempty" json:"medical_notes,omitempty"`
	Notes        string   `bson:"notes,omitempty" json:"notes,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasGuardian reports whether the given user is already a guardian.
func (c *Child) HasGuardian(userID primitive.ObjectID) bool {
	for _, id := range c.Guardians {
		if id == userID {
			return true
		}
	}
	return false
}

// IsValidClass reports whether name is an accepted class.
func IsValidClass(name string) bool {
	for _, c := range ValidClasses {
		if c == name {
			return true
		}
	}
	return false
}
