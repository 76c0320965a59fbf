// internal/domain/models/announcement.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Announcement is a school-wide notice shown to all guardians.
type Announcement struct {
	ID       primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title    string              `bson:"title" json:"title"`
	Content  string              `bson:"content" json:"content"`
	DateSent time.Time           `bson:"date_sent" json:"date_sent"`
	SentBy   *primitive.ObjectID `bson:"sent_by,omitempty" json:"sent_by,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
