package teams

import (
	"fmt"

	"github.com/kart-io/errmonitor/pkg/event"
	"github.com/kart-io/errmonitor/pkg/message"
	"github.com/kart-io/errmonitor/pkg/platform"
)

const maxStackChars = 3000

// TeamsMessage is a legacy Office 365 connector card
type TeamsMessage struct {
	Type       string    `json:"@type"`
	Context    string    `json:"@context"`
	Summary    string    `json:"summary"`
	ThemeColor string    `json:"themeColor"`
	Title      string    `json:"title"`
	Text       string    `json:"text,omitempty"`
	Sections   []Section `json:"sections,omitempty"`
}

// Section groups facts under a heading
type Section struct {
	ActivityTitle string `json:"activityTitle,omitempty"`
	Text          string `json:"text,omitempty"`
	Facts         []Fact `json:"facts,omitempty"`
}

// Fact is a name/value row
type Fact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ThemeColor maps a level to the card accent color.
func ThemeColor(l event.Level) string {
	switch l {
	case event.LevelError:
		return "FF0000"
	case event.LevelWarn:
		return "FF8C00"
	case event.LevelInfo:
		return "0078D4"
	case event.LevelDebug:
		return "6264A7"
	default:
		return "808080"
	}
}

// Format renders msg as a MessageCard.
func Format(msg message.Message) TeamsMessage {
	level := msg.Level().String()
	app := msg.ApplicationName()

	facts := []Fact{{Name: "Application", Value: app}}
	if msg.Environment() != "" {
		facts = append(facts, Fact{Name: "Environment", Value: msg.Environment()})
	}
	facts = append(facts, Fact{Name: "Level", Value: level})
	if msg.Title() != "" {
		facts = append(facts, Fact{Name: "Title", Value: msg.Title()})
	}

	sections := []Section{{ActivityTitle: "Log Details", Text: msg.Content(), Facts: facts}}

	if msg.HasStackTrace() {
		sections = append(sections, Section{
			ActivityTitle: "Stack Trace",
			Text:          "```\n" + event.Truncate(msg.StackTrace(), maxStackChars) + "\n```",
		})
	}

	if keys := msg.DisplayKeys(); len(keys) > 0 {
		md := msg.DisplayMetadata()
		extra := make([]Fact, 0, len(keys))
		for _, k := range keys {
			extra = append(extra, Fact{Name: platform.DisplayKey(k), Value: fmt.Sprint(md[k])})
		}
		sections = append(sections, Section{ActivityTitle: "Additional Context", Facts: extra})
	}

	return TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		Summary:    fmt.Sprintf("Log Alert from %s - %s", app, level),
		ThemeColor: ThemeColor(msg.Level()),
		Title:      fmt.Sprintf("%s %s Alert - %s", platform.LevelEmoji(msg.Level()), level, app),
		Text:       msg.Content(),
		Sections:   sections,
	}
}
