// internal/domain/models/schedule.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ValidDays maps lowercased day names to their canonical form.
var ValidDays = map[string]string{
	"senin":  "Senin",
	"selasa": "Selasa",
	"rabu":   "Rabu",
	"kamis":  "Kamis",
	"jumat":  "Jumat",
	"sabtu":  "Sabtu",
	"minggu": "Minggu",
}

// ScheduleActivity is one timed slot in a daily schedule.
type ScheduleActivity struct {
	Time    string `bson:"time" json:"time"`
	Subject string `bson:"subject" json:"subject"`
	Teacher string `bson:"teacher" json:"teacher"`
}

// Schedule is the activity plan for one school day.
type Schedule struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Day      string             `bson:"day" json:"day"`
	Date     string             `bson:"date,omitempty" json:"date,omitempty"`
	Activity []ScheduleActivity `bson:"activity" json:"activity"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
