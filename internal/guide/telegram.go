// Package guide holds the step-by-step instructions shown for channel setup.
package guide

import (
	"fmt"
	"io"
	"regexp"
)

// BotFatherURL opens the Telegram bot that issues bot tokens.
const BotFatherURL = "https://t.me/BotFather"

// ExampleBotToken shows the shape of a token without being a real one.
const ExampleBotToken = "110201543:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"

// Step is one instruction of a guide.
type Step struct {
	Text string
	// Hint is shown under the instruction.
	Hint string
	// Link is an optional URL to open for this step.
	Link string
	// Example is an optional literal to show, such as a sample value.
	Example string
}

// TelegramSteps walks a user through creating a bot and obtaining its token.
var TelegramSteps = []Step{
	{
		Text: "Open @BotFather in Telegram.",
		Hint: "BotFather is Telegram's official bot for creating and managing bots.",
		Link: BotFatherURL,
	},
	{
		Text: "Send the /newbot command.",
		Hint: "BotFather replies asking for a name.",
	},
	{
		Text: "Choose a display name for your bot.",
		Hint: "This is what people see in chats. It can be changed later.",
	},
	{
		Text: "Choose a username for your bot. It must end in \"bot\", e.g. my_assistant_bot.",
		Hint: "Usernames are unique across Telegram; try another if it is taken.",
	},
	{
		Text:    "Copy the token BotFather sends you and paste it into the channel settings.",
		Hint:    "Keep the token private. Anyone holding it controls your bot.",
		Example: ExampleBotToken,
	},
}

var botTokenPattern = regexp.MustCompile(`^[0-9]{5,}:[A-Za-z0-9_-]{30,}$`)

// LooksLikeBotToken reports whether s has the shape of a Telegram bot token.
func LooksLikeBotToken(s string) bool {
	return botTokenPattern.MatchString(s)
}

// RenderTelegram writes the Telegram guide as numbered plain text.
func RenderTelegram(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "=== Telegram Bot Token ==="); err != nil {
		return err
	}
	for i, step := range TelegramSteps {
		if _, err := fmt.Fprintf(w, "\n%d. %s\n   %s\n", i+1, step.Text, step.Hint); err != nil {
			return err
		}
		if step.Link != "" {
			if _, err := fmt.Fprintf(w, "   %s\n", step.Link); err != nil {
				return err
			}
		}
		if step.Example != "" {
			if _, err := fmt.Fprintf(w, "   Example: %s\n", step.Example); err != nil {
				return err
			}
		}
	}
	return nil
}
