package telegram

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calorie-lens/api/internal/analysis"
	"calorie-lens/api/internal/auth"
	"calorie-lens/api/internal/imageprep"
	"calorie-lens/api/internal/session"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
	edits    int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		f.messages = append(f.messages, v)
	case tgbotapi.EditMessageReplyMarkupConfig:
		f.edits++
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m.Text)
	}
	return out
}

func (f *fakeSender) last() tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[len(f.messages)-1]
}

type fakeFiles struct {
	data map[string][]byte
}

func (f fakeFiles) Fetch(_ context.Context, id string) ([]byte, error) {
	b, ok := f.data[id]
	if !ok {
		return nil, errors.New("no such file")
	}
	return b, nil
}

type stubAnalyzer struct {
	res analysis.Result
	err error
}

func (s stubAnalyzer) Analyze(context.Context, analysis.ImagePayload) (analysis.Result, error) {
	return s.res, s.err
}

const chatID int64 = 42

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func newTestRouter(t *testing.T, an session.Analyzer) (*Router, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	files := fakeFiles{data: map[string][]byte{
		"big":    pngBytes(t, 2000, 1000),
		"broken": []byte("not an image"),
	}}
	store := auth.NewMemoryStore()
	factory := func(_ int64, onChange func(session.Snapshot)) *session.Machine {
		return session.New(auth.NewGate(store), imageprep.New(), an, session.WithOnChange(onChange))
	}
	r := NewRouter(sender, files, factory, nil)
	t.Cleanup(r.Close)
	return r, sender
}

func textUpdate(text string) tgbotapi.Update {
	msg := &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: chatID}, Text: text}
	if len(text) > 0 && text[0] == '/' {
		end := len(text)
		for i, c := range text {
			if c == ' ' {
				end = i
				break
			}
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return tgbotapi.Update{Message: msg}
}

func photoUpdate(fileID string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: chatID},
		Photo: []tgbotapi.PhotoSize{{FileID: "thumb"}, {FileID: fileID}},
	}}
}

func analyzeTap() tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    callbackAnalyze,
		Message: &tgbotapi.Message{MessageID: 9, Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func (r *Router) wait(t *testing.T) {
	t.Helper()
	cs, err := r.session(context.Background(), chatID)
	require.NoError(t, err)
	cs.m.Wait()
}

func TestStart_AsksForPassword(t *testing.T) {
	r, sender := newTestRouter(t, stubAnalyzer{})
	r.HandleUpdate(context.Background(), textUpdate("/start"))
	assert.Equal(t, []string{textWelcome}, sender.texts())
}

func TestFullFlow(t *testing.T) {
	pizza := analysis.ItemizedResult{
		Items:              []analysis.Item{{Name: "Pizza slice", Portion: "1 slice", CaloriesRange: "250-300"}},
		TotalCaloriesRange: "250-300",
		Confidence:         "medium",
	}
	r, sender := newTestRouter(t, stubAnalyzer{res: pizza})
	ctx := context.Background()

	r.HandleUpdate(ctx, photoUpdate("big"))
	assert.Equal(t, []string{textNeedPassword}, sender.texts())

	r.HandleUpdate(ctx, textUpdate("abc"))
	assert.Contains(t, sender.last().Text, textPasswordSaved)

	r.HandleUpdate(ctx, photoUpdate("big"))
	r.wait(t)
	ready := sender.last()
	assert.Contains(t, ready.Text, "1024x512")
	assert.NotNil(t, ready.ReplyMarkup)

	r.HandleUpdate(ctx, analyzeTap())
	r.wait(t)
	assert.Contains(t, sender.last().Text, "Pizza slice")
	assert.Equal(t, 1, sender.edits)
}

func TestPasswordMessageIsDeleted(t *testing.T) {
	r, sender := newTestRouter(t, stubAnalyzer{})
	r.HandleUpdate(context.Background(), textUpdate("/password s3cret"))

	var deleted bool
	for _, c := range sender.requests {
		if d, ok := c.(tgbotapi.DeleteMessageConfig); ok && d.MessageID == 7 {
			deleted = true
		}
	}
	assert.True(t, deleted)

	r.HandleUpdate(context.Background(), textUpdate("/password"))
	assert.Equal(t, textUsagePassword, sender.last().Text)
}

func TestUnauthorizedShowsError(t *testing.T) {
	r, sender := newTestRouter(t, stubAnalyzer{err: analysis.ErrUnauthorized})
	ctx := context.Background()
	r.HandleUpdate(ctx, textUpdate("abc"))
	r.HandleUpdate(ctx, photoUpdate("big"))
	r.wait(t)
	r.HandleUpdate(ctx, analyzeTap())
	r.wait(t)

	assert.Contains(t, sender.last().Text, "Unauthorized")
}

func TestBrokenImageIsANotice(t *testing.T) {
	r, sender := newTestRouter(t, stubAnalyzer{})
	ctx := context.Background()
	r.HandleUpdate(ctx, textUpdate("abc"))
	r.HandleUpdate(ctx, photoUpdate("broken"))
	r.wait(t)

	assert.Equal(t, analysis.Describe(analysis.ErrInvalidImage), sender.last().Text)

	r.HandleUpdate(ctx, analyzeTap())
	assert.Equal(t, textNothingReady, sender.last().Text)
}

func TestUnknownCommand(t *testing.T) {
	r, sender := newTestRouter(t, stubAnalyzer{})
	r.HandleUpdate(context.Background(), textUpdate("/engine gpt"))
	assert.Equal(t, textUnknown, sender.last().Text)
}
