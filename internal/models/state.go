// Conversation state structures.

package models

import "time"

// Step is the position of a user in the complaint dialogue.
type Step string

// Dialogue steps. StepComplete is transient: the engine never stores it.
const (
	StepIdle                    Step = "IDLE"
	StepAwaitingCategory        Step = "AWAITING_CATEGORY"
	StepAwaitingFreeformProblem Step = "AWAITING_FREEFORM_PROBLEM"
	StepAwaitingFullName        Step = "AWAITING_FULL_NAME"
	StepAwaitingFloor           Step = "AWAITING_FLOOR"
	StepAwaitingApartment       Step = "AWAITING_APARTMENT"
	StepAwaitingHouseNumber     Step = "AWAITING_HOUSE_NUMBER"
	StepAwaitingIntercom        Step = "AWAITING_INTERCOM"
	StepComplete                Step = "COMPLETE"
)

// IsValid reports whether s is one of the known steps.
func (s Step) IsValid() bool {
	switch s {
	case StepIdle, StepAwaitingCategory, StepAwaitingFreeformProblem, StepAwaitingFullName,
		StepAwaitingFloor, StepAwaitingApartment, StepAwaitingHouseNumber, StepAwaitingIntercom, StepComplete:
		return true
	default:
		return false
	}
}

// Fields holds the values collected so far. An empty string means unset.
type Fields struct {
	ProblemType string `json:"problem_type,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	Floor       string `json:"floor,omitempty"`
	Apartment   string `json:"apartment,omitempty"`
	HouseNumber string `json:"house_number,omitempty"`
	Intercom    string `json:"intercom,omitempty"`
}

// Merge returns a copy of f with every non-empty value of patch applied.
func (f Fields) Merge(patch Fields) Fields {
	if patch.ProblemType != "" {
		f.ProblemType = patch.ProblemType
	}
	if patch.FullName != "" {
		f.FullName = patch.FullName
	}
	if patch.Floor != "" {
		f.Floor = patch.Floor
	}
	if patch.Apartment != "" {
		f.Apartment = patch.Apartment
	}
	if patch.HouseNumber != "" {
		f.HouseNumber = patch.HouseNumber
	}
	if patch.Intercom != "" {
		f.Intercom = patch.Intercom
	}
	return f
}

// IsEmpty reports whether no field has been collected.
func (f Fields) IsEmpty() bool {
	return f == Fields{}
}

// Session is the in-progress dialogue of a single user.
type Session struct {
	UserID    string    `json:"user_id"`
	Step      Step      `json:"step"`
	Fields    Fields    `json:"fields"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns an idle session for userID.
func NewSession(userID string, now time.Time) Session {
	return Session{
		UserID:    userID,
		Step:      StepIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SessionPatch describes a change to a session. An empty Step keeps the
// current step; empty field values keep the current values.
type SessionPatch struct {
	Step   Step
	Fields Fields
}
