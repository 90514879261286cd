package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"calorie-lens/api/internal/analysis"
	"calorie-lens/api/internal/session"
)

const (
	callbackAnalyze = "analyze"
	maxMessageLen   = 3900
)

const (
	textWelcome       = "Welcome! Send the app password to get started."
	textAskPhoto      = "Send me a photo of your meal and I will estimate its calories."
	textPasswordSaved = "Password saved."
	textNeedPassword  = "Send the app password first."
	textUsagePassword = "Usage: /password <value>"
	textNothingReady  = "Nothing to analyze yet. Send a photo first."
	textAnalyzing     = "Analyzing your meal..."
	textRetryHint     = "Send the photo again to retry."
	textUnknown       = "Unknown command. Try /start or /password <value>."
	textHelp          = "Send a food photo, then tap Analyze.\n/password <value> sets the app password."
)

func analyzeKeyboard() tgbotapi.InlineKeyboardMarkup {
	btn := tgbotapi.NewInlineKeyboardButtonData("Analyze", callbackAnalyze)
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(btn))
}

// render returns the message for a transition into snap.State, or nil.
func render(chatID int64, snap session.Snapshot) *tgbotapi.MessageConfig {
	var msg tgbotapi.MessageConfig
	switch snap.State {
	case session.AwaitingImage:
		msg = tgbotapi.NewMessage(chatID, textPasswordSaved+" "+textAskPhoto)
	case session.ImageReady:
		msg = tgbotapi.NewMessage(chatID, fmt.Sprintf("Photo ready (%dx%d). Tap Analyze when you are.", snap.Width, snap.Height))
		msg.ReplyMarkup = analyzeKeyboard()
	case session.Analyzing:
		msg = tgbotapi.NewMessage(chatID, textAnalyzing)
	case session.ResultShown:
		msg = tgbotapi.NewMessage(chatID, truncate(analysis.Format(snap.Result)))
	case session.ErrorShown:
		msg = tgbotapi.NewMessage(chatID, snap.Message()+"\n"+textRetryHint)
	default:
		return nil
	}
	return &msg
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) > maxMessageLen {
		return string(r[:maxMessageLen]) + "…"
	}
	return s
}
