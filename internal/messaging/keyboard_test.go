package messaging

import (
	"testing"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestKeyboardRenderNumbersChoicesAndLinks(t *testing.T) {
	k := NewKeyboardState()
	text := k.Render("u", models.Prompt("Welcome!",
		models.Button{Label: "House problem", ChoiceID: "house_problem"},
		models.Button{Label: "Support", ChoiceID: "support"},
		models.Button{Label: "GitHub", URL: "https://github.com"},
	))

	assert.Equal(t, "Welcome!\n1. House problem\n2. Support\nGitHub: https://github.com", text)
}

func TestKeyboardParse(t *testing.T) {
	k := NewKeyboardState()
	k.Render("u", models.Prompt("Floor?",
		models.Button{Label: "1", ChoiceID: "floor_1"},
		models.Button{Label: "2", ChoiceID: "floor_2"},
	))

	tests := []struct {
		name string
		in   string
		want models.Event
		ok   bool
	}{
		{"listed number", " 2 ", models.Event{UserID: "u", Kind: models.EventMenuSelect, Choice: "floor_2"}, true},
		{"number beyond list", "6", models.Event{UserID: "u", Kind: models.EventTextInput, Text: "6"}, true},
		{"zero", "0", models.Event{UserID: "u", Kind: models.EventTextInput, Text: "0"}, true},
		{"free text", "Ivanov I.I.", models.Event{UserID: "u", Kind: models.EventTextInput, Text: "Ivanov I.I."}, true},
		{"command", "/start", models.Event{UserID: "u", Kind: models.EventCommand, Command: "start"}, true},
		{"command with bot suffix", "/Help@complaint_bot", models.Event{UserID: "u", Kind: models.EventCommand, Command: "help"}, true},
		{"clear alias", "/clear", models.Event{UserID: "u", Kind: models.EventCommand, Command: "clear"}, true},
		{"unknown command", "/weather", models.Event{}, false},
		{"bare slash", "/", models.Event{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := k.Parse("u", tt.in)
			assert.Equal(t, tt.ok, ok)
			got.Time = tt.want.Time
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyboardForgottenAfterPlainMessage(t *testing.T) {
	k := NewKeyboardState()
	k.Render("u", models.Prompt("Pick", models.Button{Label: "A", ChoiceID: "a"}))
	k.Render("u", models.PlainMessage("Enter apartment number:"))

	ev, ok := k.Parse("u", "1")
	assert.True(t, ok)
	assert.Equal(t, models.EventTextInput, ev.Kind)
	assert.Equal(t, "1", ev.Text)
}

func TestKeyboardKeptAfterAside(t *testing.T) {
	k := NewKeyboardState()
	k.Render("u", models.Prompt("Pick", models.Button{Label: "A", ChoiceID: "a"}, models.Button{Label: "B", ChoiceID: "b"}))
	text := k.Render("u", models.Aside("Available commands:"))
	assert.Equal(t, "Available commands:", text)

	ev, ok := k.Parse("u", "2")
	assert.True(t, ok)
	assert.Equal(t, models.EventMenuSelect, ev.Kind)
	assert.Equal(t, "b", ev.Choice)
}

func TestKeyboardPerUser(t *testing.T) {
	k := NewKeyboardState()
	k.Render("a", models.Prompt("Pick", models.Button{Label: "A", ChoiceID: "a"}))

	ev, _ := k.Parse("b", "1")
	assert.Equal(t, models.EventTextInput, ev.Kind)

	ev, _ = k.Parse("a", "1")
	assert.Equal(t, "a", ev.Choice)

	k.Forget("a")
	ev, _ = k.Parse("a", "1")
	assert.Equal(t, models.EventTextInput, ev.Kind)
}
