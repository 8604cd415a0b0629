// Package meal holds the meal check-in domain: submission records, the upload
// policy that gates new photos, and the status aggregation the coach and
// athlete views are built from.
package meal

import (
	"fmt"
	"time"
)

// Type is the meal a photo is submitted for.
type Type string

const (
	Lunch  Type = "lunch"
	Dinner Type = "dinner"
)

// Types lists every meal type in display order.
var Types = []Type{Lunch, Dinner}

// ParseType validates a meal type from user input.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case Lunch, Dinner:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown meal type %q", s)
}

// Label is the Vietnamese label used in reports and the dashboard.
func (t Type) Label() string {
	switch t {
	case Lunch:
		return "Trưa"
	case Dinner:
		return "Tối"
	}
	return string(t)
}

// Athlete is a roster entry.
type Athlete struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// Submission is one athlete's photo proof for a date and meal type.
// (AthleteID, Date, Meal) is unique.
type Submission struct {
	ID           string    `json:"id"`
	AthleteID    string    `json:"user_id"`
	Date         string    `json:"date"`
	Meal         Type      `json:"meal_type"`
	ImageKey     string    `json:"image_key"`
	ImageVersion string    `json:"image_version"`
	Late         bool      `json:"late"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
