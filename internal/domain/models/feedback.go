// internal/domain/models/feedback.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Feedback types: suggestions (saran) and complaints (keluhan).
const (
	FeedbackSaran   = "saran"
	FeedbackKeluhan = "keluhan"
)

// Feedback is a message a guardian sends to the school.
type Feedback struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Parent  primitive.ObjectID `bson:"parent" json:"parent"`
	Content string             `bson:"content" json:"content"`
	Type    string             `bson:"type" json:"type"` // saran | keluhan

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
