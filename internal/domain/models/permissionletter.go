// internal/domain/models/permissionletter.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DateRange is an inclusive absence interval.
type DateRange struct {
	StartDate time.Time `bson:"start_date" json:"start_date"`
	EndDate   time.Time `bson:"end_date" json:"end_date"`
}

// PermissionLetter is a guardian's absence notice for a student.
type PermissionLetter struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Parent      primitive.ObjectID `bson:"parent" json:"parent"`
	StudentName string             `bson:"student_name" json:"student_name"`
	Reason      string             `bson:"reason" json:"reason"`
	DateRange   DateRange          `bson:"date_range" json:"date_range"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
