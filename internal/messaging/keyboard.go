package messaging

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
)

// Formats for keyboards rendered as text.
const (
	OptionFormat = "\n%d. %s"
	LinkFormat   = "\n%s: %s"
)

var knownCommands = map[string]bool{
	models.CommandStart: true,
	models.CommandHelp:  true,
	models.CommandReset: true,
	models.CommandClear: true,
}

// KeyboardState renders keyboards as numbered lists for text-only
// transports and maps numbered replies back to choices. It remembers the
// last keyboard sent to each user.
type KeyboardState struct {
	mu   sync.Mutex
	last map[string][]string
}

// NewKeyboardState creates an empty KeyboardState.
func NewKeyboardState() *KeyboardState {
	return &KeyboardState{last: make(map[string][]string)}
}

// Render returns the text for reply and remembers its choices for userID.
// A reply without choice buttons forgets the previous keyboard unless it is
// marked KeepKeyboard.
func (k *KeyboardState) Render(userID string, reply models.Reply) string {
	var (
		b       strings.Builder
		choices []string
	)
	b.WriteString(reply.Text)
	for _, btn := range reply.Keyboard {
		if btn.IsLink() {
			fmt.Fprintf(&b, LinkFormat, btn.Label, btn.URL)
			continue
		}
		choices = append(choices, btn.ChoiceID)
		fmt.Fprintf(&b, OptionFormat, len(choices), btn.Label)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if len(choices) > 0 {
		k.last[userID] = choices
	} else if !reply.KeepKeyboard {
		delete(k.last, userID)
	}
	return b.String()
}

// Parse turns inbound text into an event. It returns false for input that
// should be dropped, such as unknown slash commands.
func (k *KeyboardState) Parse(userID, text string) (models.Event, bool) {
	trimmed := strings.TrimSpace(text)

	if name, ok := strings.CutPrefix(trimmed, "/"); ok {
		fields := strings.Fields(name)
		if len(fields) == 0 {
			return models.Event{}, false
		}
		// Telegram-style "/start@botname".
		name, _, _ = strings.Cut(strings.ToLower(fields[0]), "@")
		if !knownCommands[name] {
			return models.Event{}, false
		}
		return models.Command(userID, name), true
	}

	if n, err := strconv.Atoi(trimmed); err == nil {
		k.mu.Lock()
		choices := k.last[userID]
		k.mu.Unlock()
		if n >= 1 && n <= len(choices) {
			return models.MenuSelect(userID, choices[n-1]), true
		}
	}

	return models.TextInput(userID, text), true
}

// Forget drops the remembered keyboard for userID.
func (k *KeyboardState) Forget(userID string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.last, userID)
}
