package flow

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/ComplaintDesk/internal/catalog"
	"github.com/BTreeMap/ComplaintDesk/internal/models"
)

// Choice ids carried by keyboard buttons.
const (
	ChoiceHouseProblem = "house_problem"
	ChoiceSupport      = "support"
	ChoiceClearChat    = "clear_chat"
	ChoiceOtherProblem = "other_problem"
	ChoiceBackToStart  = "back_to_start"

	floorChoicePrefix = "floor_"
	floorKeyboardMax  = 5
)

// CommandInfo describes an entry of the platform command registry.
type CommandInfo struct {
	Name        string
	Description string
}

// Commands lists the commands the bot registers with a platform.
var Commands = []CommandInfo{
	{Name: models.CommandStart, Description: "Main menu"},
	{Name: models.CommandHelp, Description: "Help and commands"},
	{Name: models.CommandReset, Description: "Start over"},
	{Name: models.CommandClear, Description: "Clear chat (symbolic)"},
}

// Texts holds every user-facing string the engine emits.
type Texts struct {
	Welcome         string
	HouseProblem    string
	Support         string
	ClearChat       string
	Back            string
	ProjectLink     string
	ChooseProblem   string
	OtherProblem    string
	DescribeProblem string
	EnterFullName   string
	EnterFloor      string
	InvalidFloor    string
	FloorSelected   string // fmt verb: floor
	EnterApartment  string
	EnterHouse      string
	EnterIntercom   string
	Submitted       string
	SubmitFailed    string
	SessionLost     string
	SupportInfo     string
	ChatCleared     string
	ResetDone       string
	HelpHeader      string
	HelpFooter      string
}

// DefaultTexts returns the built-in English texts.
func DefaultTexts() Texts {
	return Texts{
		Welcome:         "Welcome! Choose an action:",
		HouseProblem:    "House problem",
		Support:         "Support",
		ClearChat:       "Clear chat",
		Back:            "Back",
		ProjectLink:     "GitHub",
		ChooseProblem:   "Choose the problem:",
		OtherProblem:    "Other problem",
		DescribeProblem: "Describe the problem:",
		EnterFullName:   "Enter full name:",
		EnterFloor:      "Enter floor (choose or type a number):",
		InvalidFloor:    "❌ Enter a valid floor (digits only):",
		FloorSelected:   "Floor selected: %s",
		EnterApartment:  "Enter apartment number:",
		EnterHouse:      "Enter house number:",
		EnterIntercom:   "Enter intercom number:",
		Submitted:       "✅ Complaint submitted!",
		SubmitFailed:    "❌ An error occurred while saving your complaint. Please send the intercom number again.",
		SessionLost:     "Something went wrong with your complaint. Please start over with /start.",
		SupportInfo:     "📞 +7 (123) 456-78-90\n📧 support@example.com\n🕒 9:00-18:00 (Mon-Fri)",
		ChatCleared:     "History cleared (symbolically).",
		ResetDone:       "Your complaint was discarded. Send /start to begin again.",
		HelpHeader:      "🆘 Commands:",
		HelpFooter:      "You can also use the buttons inside the bot.",
	}
}

func (t Texts) backButton() models.Button {
	return models.Button{Label: t.Back, ChoiceID: ChoiceBackToStart}
}

func (t Texts) mainMenu(projectURL string) models.Reply {
	kb := []models.Button{
		{Label: t.HouseProblem, ChoiceID: ChoiceHouseProblem},
		{Label: t.Support, ChoiceID: ChoiceSupport},
		{Label: t.ClearChat, ChoiceID: ChoiceClearChat},
	}
	if projectURL != "" {
		kb = append(kb, models.Button{Label: t.ProjectLink, URL: projectURL})
	}
	return models.Prompt(t.Welcome, kb...)
}

func (t Texts) categoryMenu(cat *catalog.Catalog) models.Reply {
	kb := make([]models.Button, 0, cat.Len()+2)
	for _, e := range cat.Entries() {
		kb = append(kb, models.Button{Label: e.Label, ChoiceID: e.ID})
	}
	kb = append(kb,
		models.Button{Label: t.OtherProblem, ChoiceID: ChoiceOtherProblem},
		t.backButton(),
	)
	return models.Prompt(t.ChooseProblem, kb...)
}

func (t Texts) floorPrompt(text string) models.Reply {
	kb := make([]models.Button, 0, floorKeyboardMax)
	for i := 1; i <= floorKeyboardMax; i++ {
		kb = append(kb, models.Button{Label: fmt.Sprint(i), ChoiceID: FloorChoice(i)})
	}
	return models.Prompt(text, kb...)
}

func (t Texts) help() models.Reply {
	var b strings.Builder
	b.WriteString(t.HelpHeader)
	for _, c := range Commands {
		fmt.Fprintf(&b, "\n/%s – %s", c.Name, c.Description)
	}
	if t.HelpFooter != "" {
		b.WriteString("\n\n")
		b.WriteString(t.HelpFooter)
	}
	return models.Aside(b.String())
}

// FloorChoice returns the choice id of floor keyboard button n.
func FloorChoice(n int) string {
	return fmt.Sprintf("%s%d", floorChoicePrefix, n)
}

// isDigits reports whether s is non-empty and made of ASCII digits only.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
