package telegram

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// UpdatesGetter is the long-polling part of *tgbotapi.BotAPI.
type UpdatesGetter interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

// RetryDelayFromError picks the pause before the next poll. Telegram's
// "retry after N" hint wins for 429s.
func RetryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		return time.Duration(tgErr.RetryAfter) * time.Second
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

// PollConfig bounds the polling loop. Zero values get defaults.
type PollConfig struct {
	Timeout   int // long-poll seconds
	BaseDelay time.Duration
	MaxDelay  time.Duration
	IdleDelay time.Duration
}

func (c PollConfig) withDefaults() PollConfig {
	if c.Timeout <= 0 {
		c.Timeout = 30
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 15 * time.Second
	}
	if c.IdleDelay <= 0 {
		c.IdleDelay = 200 * time.Millisecond
	}
	return c
}

// RunPolling fetches updates until ctx is done. Errors never stop the loop.
func RunPolling(ctx context.Context, bot UpdatesGetter, cfg PollConfig, handle func(tgbotapi.Update), log *zap.Logger) {
	cfg = cfg.withDefaults()
	offset := 0
	for {
		if ctx.Err() != nil {
			log.Info("polling stopped")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = cfg.Timeout

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := RetryDelayFromError(err)
			d = max(d, cfg.BaseDelay)
			d = min(d, cfg.MaxDelay)
			log.Warn("polling error", zap.Error(err), zap.Duration("retry_in", d))
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}
		if len(updates) == 0 {
			sleep(ctx, cfg.IdleDelay)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// WebhookPath is a stable secret path derived from the bot token.
func WebhookPath(token string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	return fmt.Sprintf("/webhook/%016x", h.Sum64())
}

// WebhookHandler decodes an update with parse and hands it to handle.
// Telegram only needs a 200; bad payloads get a 400.
func WebhookHandler(parse func(*http.Request) (*tgbotapi.Update, error), handle func(tgbotapi.Update), log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upd, err := parse(r)
		if err != nil {
			log.Warn("bad webhook payload", zap.Error(err))
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		handle(*upd)
		w.WriteHeader(http.StatusOK)
	}
}
