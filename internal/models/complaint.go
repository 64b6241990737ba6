package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout formats the Date column (YYYY-MM-DD HH:MM:SS).
const TimestampLayout = "2006-01-02 15:04:05"

// ReportHeader is the fixed header row of the tabular report.
var ReportHeader = []string{"Date", "FullName", "Floor", "Apartment", "HouseNumber", "Intercom", "Problem"}

// ComplaintRecord is a finalized complaint. ID is not part of the tabular
// layout; SQL backends use it as the primary key.
type ComplaintRecord struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	FullName    string    `json:"full_name"`
	Floor       string    `json:"floor"`
	Apartment   string    `json:"apartment"`
	HouseNumber string    `json:"house_number"`
	Intercom    string    `json:"intercom"`
	ProblemType string    `json:"problem_type"`
}

// MissingFieldError names the first required field left empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("complaint record is incomplete: %s is required", e.Field)
}

// NewComplaintRecord builds a record from fully collected fields.
func NewComplaintRecord(f Fields, now time.Time) (ComplaintRecord, error) {
	rec := ComplaintRecord{
		ID:          uuid.NewString(),
		Timestamp:   now,
		FullName:    f.FullName,
		Floor:       f.Floor,
		Apartment:   f.Apartment,
		HouseNumber: f.HouseNumber,
		Intercom:    f.Intercom,
		ProblemType: f.ProblemType,
	}
	if err := rec.Validate(); err != nil {
		return ComplaintRecord{}, err
	}
	return rec, nil
}

// Validate checks that every required field is present.
func (r ComplaintRecord) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"fullName", r.FullName},
		{"floor", r.Floor},
		{"apartment", r.Apartment},
		{"houseNumber", r.HouseNumber},
		{"intercom", r.Intercom},
		{"problemType", r.ProblemType},
	}
	if r.Timestamp.IsZero() {
		return &MissingFieldError{Field: "timestamp"}
	}
	for _, f := range required {
		if f.value == "" {
			return &MissingFieldError{Field: f.name}
		}
	}
	return nil
}

// FormattedTimestamp returns the Date column value.
func (r ComplaintRecord) FormattedTimestamp() string {
	return r.Timestamp.Format(TimestampLayout)
}

// Row returns the record in ReportHeader order.
func (r ComplaintRecord) Row() []string {
	return []string{
		r.FormattedTimestamp(),
		r.FullName,
		r.Floor,
		r.Apartment,
		r.HouseNumber,
		r.Intercom,
		r.ProblemType,
	}
}
