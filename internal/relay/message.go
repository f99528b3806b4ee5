package relay

import (
	"fmt"

	"github.com/slack-go/slack"
)

// ButtonActionIDPrefix prefixes the action_id of every button the relay sends.
const ButtonActionIDPrefix = "button_click"

const actionsBlockID = "relay_actions"

// OutboundMessage is a chat.postMessage request addressed to one user.
type OutboundMessage struct {
	// Channel is the resolved Slack user ID; posting to it opens the DM.
	Channel string
	// Text is the notification fallback shown where blocks are not rendered.
	Text   string
	Blocks []slack.Block
}

// BuildMessage turns a notification into a Block Kit message for recipient.
//
// The message always carries a header block (title) and a section block
// (body). An actions block with one URL button per action is appended only
// when the notification has actions, with buttons in input order.
func BuildMessage(recipient string, n *Notification) OutboundMessage {
	// Header blocks only accept plain_text.
	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, n.Title, false, false),
	)
	section := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, n.Body, false, false),
		nil, nil,
	)

	blocks := []slack.Block{header, section}

	if len(n.Actions) > 0 {
		elements := make([]slack.BlockElement, 0, len(n.Actions))
		for i, action := range n.Actions {
			button := slack.NewButtonBlockElement(
				fmt.Sprintf("%s_%d", ButtonActionIDPrefix, i),
				"",
				slack.NewTextBlockObject(slack.PlainTextType, action.Label, false, false),
			)
			button.URL = action.URL
			elements = append(elements, button)
		}
		blocks = append(blocks, slack.NewActionBlock(actionsBlockID, elements...))
	}

	return OutboundMessage{
		Channel: recipient,
		Text:    n.Body,
		Blocks:  blocks,
	}
}
