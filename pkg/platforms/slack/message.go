package slack

import (
	"fmt"

	"github.com/kart-io/errmonitor/pkg/event"
	"github.com/kart-io/errmonitor/pkg/message"
	"github.com/kart-io/errmonitor/pkg/platform"
)

const maxStackChars = 2000

// SlackMessage represents a Slack webhook message
type SlackMessage struct {
	Text      string  `json:"text,omitempty"`
	Blocks    []Block `json:"blocks,omitempty"`
	Channel   string  `json:"channel,omitempty"`
	Username  string  `json:"username,omitempty"`
	IconEmoji string  `json:"icon_emoji,omitempty"`
}

// Block represents a Block Kit block
type Block struct {
	Type   string `json:"type"`
	Text   *Text  `json:"text,omitempty"`
	Fields []Text `json:"fields,omitempty"`
}

// Text represents a Block Kit text object
type Text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

func markdown(s string) Text { return Text{Type: "mrkdwn", Text: s} }

func header(s string) Block {
	return Block{Type: "header", Text: &Text{Type: "plain_text", Text: s, Emoji: true}}
}

func section(s string) Block {
	t := markdown(s)
	return Block{Type: "section", Text: &t}
}

func divider() Block { return Block{Type: "divider"} }

// Format renders msg as Block Kit.
func Format(msg message.Message) SlackMessage {
	blocks := []Block{
		header(fmt.Sprintf("%s %s Alert - %s", platform.LevelEmoji(msg.Level()), msg.Level(), msg.ApplicationName())),
		section(mainText(msg)),
	}

	fields := []Text{markdown("*Application:*\n" + msg.ApplicationName())}
	if msg.Environment() != "" {
		fields = append(fields, markdown("*Environment:*\n"+msg.Environment()))
	}
	fields = append(fields, markdown("*Level:*\n"+msg.Level().String()))
	blocks = append(blocks, Block{Type: "section", Fields: fields})

	if msg.HasStackTrace() {
		blocks = append(blocks, divider(),
			section("*Stack Trace:*\n```\n"+event.Truncate(msg.StackTrace(), maxStackChars)+"\n```"))
	}

	if keys := msg.DisplayKeys(); len(keys) > 0 {
		md := msg.DisplayMetadata()
		ctxFields := make([]Text, 0, len(keys))
		for _, k := range keys {
			ctxFields = append(ctxFields, markdown(fmt.Sprintf("*%s:*\n%v", platform.DisplayKey(k), md[k])))
		}
		// Slack rejects sections with more than 10 fields
		if len(ctxFields) > 10 {
			ctxFields = ctxFields[:10]
		}
		blocks = append(blocks, divider(), Block{Type: "section", Text: &Text{Type: "mrkdwn", Text: "*Additional Context:*"}, Fields: ctxFields})
	}

	return SlackMessage{
		Text:   fmt.Sprintf("Log Alert from %s - %s", msg.ApplicationName(), msg.Content()),
		Blocks: blocks,
	}
}

func mainText(msg message.Message) string {
	text := "*Message:* " + msg.Content()
	if msg.Title() != "" && msg.Title() != msg.Content() {
		text = "*Title:* " + msg.Title() + "\n" + text
	}
	return text
}
