// Package telegram is a chat front end for the analysis server. Each chat
// drives its own session.Machine.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxPhotoBytes matches the Bot API download limit.
const maxPhotoBytes = 20 << 20

// Sender is the subset of *tgbotapi.BotAPI the router needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// FileFetcher downloads a file sent to the bot.
type FileFetcher interface {
	Fetch(ctx context.Context, fileID string) ([]byte, error)
}

// BotFiles fetches files through the Bot API file endpoint.
type BotFiles struct {
	Bot  *tgbotapi.BotAPI
	HTTP *http.Client
}

func NewBotFiles(bot *tgbotapi.BotAPI) *BotFiles {
	return &BotFiles{Bot: bot, HTTP: &http.Client{Timeout: 60 * time.Second}}
}

func (f *BotFiles) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	url, err := f.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("download status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
}
