// Package models defines the core data structures for ComplaintDesk.
//
// It includes the inbound events delivered by a messaging transport, the
// replies sent back to users, and the complaint record handed to storage.
package models

import (
	"errors"
	"time"
)

// EventKind classifies an inbound event.
type EventKind string

const (
	// EventMenuSelect is a keyboard button press carrying a choice id.
	EventMenuSelect EventKind = "menu_select"
	// EventTextInput is a free-text message.
	EventTextInput EventKind = "text_input"
	// EventCommand is a platform command such as /start.
	EventCommand EventKind = "command"
)

// Command names accepted from the platform command registry.
const (
	CommandStart = "start"
	CommandHelp  = "help"
	CommandReset = "reset"
	CommandClear = "clear"
)

// Error variables for event validation.
var (
	ErrEmptyUserID      = errors.New("user id cannot be empty")
	ErrInvalidEventKind = errors.New("invalid event kind")
)

// Event is a user-originated input delivered by a transport.
type Event struct {
	UserID  string    `json:"user_id"`
	Kind    EventKind `json:"kind"`
	Choice  string    `json:"choice,omitempty"`
	Text    string    `json:"text,omitempty"`
	Command string    `json:"command,omitempty"`
	Time    time.Time `json:"time"`
}

// MenuSelect builds a keyboard selection event.
func MenuSelect(userID, choice string) Event {
	return Event{UserID: userID, Kind: EventMenuSelect, Choice: choice, Time: time.Now()}
}

// TextInput builds a free-text event.
func TextInput(userID, text string) Event {
	return Event{UserID: userID, Kind: EventTextInput, Text: text, Time: time.Now()}
}

// Command builds a command event.
func Command(userID, name string) Event {
	return Event{UserID: userID, Kind: EventCommand, Command: name, Time: time.Now()}
}

// Validate checks that the event can be routed.
func (e Event) Validate() error {
	if e.UserID == "" {
		return ErrEmptyUserID
	}
	switch e.Kind {
	case EventMenuSelect, EventTextInput, EventCommand:
		return nil
	default:
		return ErrInvalidEventKind
	}
}

// Button is one keyboard entry. Exactly one of ChoiceID and URL is set.
type Button struct {
	Label    string `json:"label"`
	ChoiceID string `json:"choice_id,omitempty"`
	URL      string `json:"url,omitempty"`
}

// IsLink reports whether the button opens an external link.
func (b Button) IsLink() bool {
	return b.URL != ""
}

// Reply is an outbound message. A reply with a keyboard is a prompt; one
// without is a plain message. KeepKeyboard marks an aside, such as help,
// after which the previously shown keyboard is still valid.
type Reply struct {
	Text         string   `json:"text"`
	Keyboard     []Button `json:"keyboard,omitempty"`
	KeepKeyboard bool     `json:"keep_keyboard,omitempty"`
}

// Prompt builds a reply that offers a keyboard.
func Prompt(text string, keyboard ...Button) Reply {
	return Reply{Text: text, Keyboard: keyboard}
}

// PlainMessage builds a reply without a keyboard.
func PlainMessage(text string) Reply {
	return Reply{Text: text}
}

// Aside builds a plain message that leaves the previous keyboard in place.
func Aside(text string) Reply {
	return Reply{Text: text, KeepKeyboard: true}
}

// HasKeyboard reports whether the reply carries buttons.
func (r Reply) HasKeyboard() bool {
	return len(r.Keyboard) > 0
}

// OutboundMessage is a reply addressed to a user, used by transports that
// forward structured replies.
type OutboundMessage struct {
	UserID string    `json:"user_id"`
	Reply  Reply     `json:"reply"`
	Time   time.Time `json:"time"`
}
