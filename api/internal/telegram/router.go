package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"calorie-lens/api/internal/analysis"
	"calorie-lens/api/internal/session"
)

// SessionFactory builds the machine for one chat. onChange must be passed to
// the machine as its change callback.
type SessionFactory func(chatID int64, onChange func(session.Snapshot)) *session.Machine

type Router struct {
	bot        Sender
	files      FileFetcher
	newSession SessionFactory
	log        *zap.Logger

	mu       sync.Mutex
	sessions map[int64]*chatSession
}

type chatSession struct {
	m *session.Machine

	// touched only from onChange, which the machine serializes
	rendered   bool
	lastState  session.State
	lastNotice string
}

func NewRouter(bot Sender, files FileFetcher, factory SessionFactory, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		bot:        bot,
		files:      files,
		newSession: factory,
		log:        log,
		sessions:   make(map[int64]*chatSession),
	}
}

func (r *Router) session(ctx context.Context, chatID int64) (*chatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cs, ok := r.sessions[chatID]; ok {
		return cs, nil
	}
	cs := &chatSession{}
	cs.m = r.newSession(chatID, func(snap session.Snapshot) { r.onChange(chatID, cs, snap) })
	if err := cs.m.Start(ctx); err != nil {
		cs.m.Close()
		return nil, err
	}
	r.sessions[chatID] = cs
	return cs, nil
}

// onChange sends a message for each new state and each new notice. The
// first snapshot after Start only sets the baseline.
func (r *Router) onChange(chatID int64, cs *chatSession, snap session.Snapshot) {
	if !cs.rendered {
		cs.rendered, cs.lastState, cs.lastNotice = true, snap.State, snap.Notice
		return
	}
	if snap.Notice != "" && snap.Notice != cs.lastNotice {
		r.send(chatID, snap.Notice)
	}
	cs.lastNotice = snap.Notice
	if snap.State == cs.lastState {
		return
	}
	cs.lastState = snap.State
	if msg := render(chatID, snap); msg != nil {
		r.sendMsg(*msg)
	}
}

// HandleUpdate dispatches one update. It returns once the update is accepted;
// decoding and analysis continue in the chat's machine.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	cid := msg.Chat.ID
	cs, err := r.session(ctx, cid)
	if err != nil {
		r.log.Error("load chat session", zap.Int64("chat_id", cid), zap.Error(err))
		r.send(cid, "Something went wrong, please try again later.")
		return
	}

	switch {
	case msg.IsCommand():
		r.handleCommand(ctx, cs, msg)
	case len(msg.Photo) > 0:
		r.acceptImage(ctx, cs, cid, msg.Photo[len(msg.Photo)-1].FileID)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		r.acceptImage(ctx, cs, cid, msg.Document.FileID)
	case msg.Text != "":
		if cs.m.Snapshot().State == session.Idle {
			r.savePassword(ctx, cs, msg, msg.Text)
			return
		}
		r.send(cid, textAskPhoto)
	}
}

func (r *Router) handleCommand(ctx context.Context, cs *chatSession, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start":
		if cs.m.Snapshot().State == session.Idle {
			r.send(cid, textWelcome)
			return
		}
		r.send(cid, textAskPhoto)
	case "password":
		arg := msg.CommandArguments()
		if strings.TrimSpace(arg) == "" {
			r.send(cid, textUsagePassword)
			return
		}
		r.savePassword(ctx, cs, msg, arg)
	case "help":
		r.send(cid, textHelp)
	default:
		r.send(cid, textUnknown)
	}
}

func (r *Router) savePassword(ctx context.Context, cs *chatSession, msg *tgbotapi.Message, value string) {
	cid := msg.Chat.ID
	before := cs.m.Snapshot().State
	// the password should not linger in the chat history
	if _, err := r.bot.Request(tgbotapi.NewDeleteMessage(cid, msg.MessageID)); err != nil {
		r.log.Debug("delete password message", zap.Error(err))
	}
	if err := cs.m.SaveCredential(ctx, value); err != nil {
		r.log.Info("save credential", zap.Int64("chat_id", cid), zap.Error(err))
		r.send(cid, analysis.Describe(err))
		return
	}
	if before != session.Idle {
		r.send(cid, textPasswordSaved)
	}
}

func (r *Router) acceptImage(ctx context.Context, cs *chatSession, cid int64, fileID string) {
	if cs.m.Snapshot().State == session.Idle {
		r.send(cid, textNeedPassword)
		return
	}
	data, err := r.files.Fetch(ctx, fileID)
	if err != nil {
		r.log.Warn("download photo", zap.Int64("chat_id", cid), zap.Error(err))
		r.send(cid, "Could not download the photo. Please send it again.")
		return
	}
	cs.m.SelectImage(data)
}

func (r *Router) handleCallback(ctx context.Context, cb tgbotapi.CallbackQuery) {
	_, _ = r.bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	cid := cb.Message.Chat.ID
	if cb.Data != callbackAnalyze {
		return
	}
	// drop the button so it cannot be pressed twice
	edit := tgbotapi.NewEditMessageReplyMarkup(cid, cb.Message.MessageID, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	_, _ = r.bot.Send(edit)

	cs, err := r.session(ctx, cid)
	if err != nil {
		r.log.Error("load chat session", zap.Int64("chat_id", cid), zap.Error(err))
		return
	}
	if !cs.m.Analyze() {
		r.send(cid, textNothingReady)
	}
}

func (r *Router) send(chatID int64, text string) {
	r.sendMsg(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) sendMsg(msg tgbotapi.MessageConfig) {
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("telegram send", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}
}

// Close stops every chat machine.
func (r *Router) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[int64]*chatSession)
	r.mu.Unlock()
	for _, cs := range sessions {
		cs.m.Close()
	}
}
