package telegram

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-story-bot/internal/config"
	"telegram-story-bot/internal/domain/ports/adapter"
	"telegram-story-bot/internal/infra/logging"
	"telegram-story-bot/internal/infra/metrics"
	red "telegram-story-bot/internal/infra/redis"
	"telegram-story-bot/internal/infra/worker"
	"telegram-story-bot/internal/usecase"
)

var _ adapter.ChatTransport = (*RealTelegramBotAdapter)(nil)

// UpdateHandler consumes inbound chat events.
type UpdateHandler interface {
	Handle(ctx context.Context, ev usecase.Event) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Translator interface {
	T(key string, args ...interface{}) string
}

// RealTelegramBotAdapter long-polls the Bot API and dispatches every message
// to a keyed worker pool, so one user's messages are handled in order.
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI
	cfg         config.BotConfig
	tr          Translator
	rateLimiter RateLimiter
	log         *zerolog.Logger
}

func NewRealTelegramBotAdapter(cfg config.BotConfig, tr Translator, rateLimiter RateLimiter, log *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg.Token == "" {
		return nil, errors.New("bot token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newAdapter(bot, cfg, tr, rateLimiter, log), nil
}

func newAdapter(bot *tgbotapi.BotAPI, cfg config.BotConfig, tr Translator, rateLimiter RateLimiter, log *zerolog.Logger) *RealTelegramBotAdapter {
	return &RealTelegramBotAdapter{bot: bot, cfg: cfg, tr: tr, rateLimiter: rateLimiter, log: log}
}

// StartPolling blocks until ctx is cancelled.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context, handler UpdateHandler, pool *worker.Pool) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	r.log.Info().Str("bot", r.bot.Self.UserName).Msg("polling started")
	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.dispatch(ctx, up, handler, pool)
		}
	}
}

func (r *RealTelegramBotAdapter) dispatch(ctx context.Context, up tgbotapi.Update, handler UpdateHandler, pool *worker.Pool) {
	ev, ok := eventFromMessage(up.Message)
	if !ok {
		return
	}
	metrics.IncTelegramCommand(commandLabel(ev.Command))

	if !r.allow(ctx, ev) {
		metrics.IncRateLimitTriggered()
		_ = r.Reply(ctx, adapter.Reply{ChatID: ev.ChatID, ReplyTo: ev.MessageID, Text: r.tr.T("rate_limited")})
		return
	}

	traceID := logging.NewTraceID()
	err := pool.Submit(ctx, ev.UserID, func(ctx context.Context) error {
		ctx = logging.WithTraceID(ctx, traceID)
		if err := handler.Handle(ctx, ev); err != nil {
			_ = r.Reply(ctx, adapter.Reply{ChatID: ev.ChatID, ReplyTo: ev.MessageID, Text: r.tr.T("completion_failed")})
			return err
		}
		return nil
	})
	if err != nil {
		r.log.Warn().Err(err).Str("trace_id", traceID).Int64("tg_id", ev.UserID).Msg("update dropped")
		if errors.Is(err, worker.ErrQueueFull) {
			_ = r.Reply(ctx, adapter.Reply{ChatID: ev.ChatID, ReplyTo: ev.MessageID, Text: r.tr.T("busy")})
		}
	}
}

func (r *RealTelegramBotAdapter) allow(ctx context.Context, ev usecase.Event) bool {
	if r.rateLimiter == nil || r.cfg.RateLimit <= 0 {
		return true
	}
	allowed, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(ev.UserID, ev.Command), r.cfg.RateLimit, r.cfg.RateWindow)
	if err != nil {
		// Fail open on limiter errors.
		r.log.Warn().Err(err).Msg("rate limit check failed")
		return true
	}
	return allowed
}

// eventFromMessage skips updates that carry no text from a user.
func eventFromMessage(m *tgbotapi.Message) (usecase.Event, bool) {
	if m == nil || m.From == nil || m.Chat == nil || m.Text == "" {
		return usecase.Event{}, false
	}
	ev := usecase.Event{
		UserID:    m.From.ID,
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		Text:      m.Text,
	}
	if m.IsCommand() {
		ev.Command = m.Command()
	}
	return ev, true
}

var knownCommands = map[string]struct{}{
	usecase.CmdStart: {}, usecase.CmdHelp: {}, usecase.CmdNewChat: {},
	usecase.CmdEndChat: {}, usecase.CmdEndStory: {}, usecase.CmdDebug: {},
}

// commandLabel keeps the metric label set bounded.
func commandLabel(cmd string) string {
	if cmd == "" {
		return ""
	}
	if _, ok := knownCommands[cmd]; ok {
		return cmd
	}
	return "other"
}

func (r *RealTelegramBotAdapter) Reply(ctx context.Context, rep adapter.Reply) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := tgbotapi.NewMessage(rep.ChatID, rep.Text)
	msg.ReplyToMessageID = rep.ReplyTo
	msg.AllowSendingWithoutReply = true
	if rep.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if kb := keyboardMarkup(rep.Keyboard); kb != nil {
		msg.ReplyMarkup = kb
	}
	if _, err := r.bot.Send(msg); err != nil {
		metrics.IncSendFailure("message")
		return err
	}
	return nil
}

func (r *RealTelegramBotAdapter) SendDocument(ctx context.Context, chatID int64, name string, data []byte) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	if _, err := r.bot.Send(doc); err != nil {
		metrics.IncSendFailure("document")
		return err
	}
	return nil
}

// SetMenuCommands publishes the command menu shown by Telegram clients.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context) error {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: usecase.CmdHelp, Description: r.tr.T("command_help")},
		tgbotapi.BotCommand{Command: usecase.CmdNewChat, Description: r.tr.T("command_new_chat")},
		tgbotapi.BotCommand{Command: usecase.CmdEndChat, Description: r.tr.T("command_end_chat")},
		tgbotapi.BotCommand{Command: usecase.CmdEndStory, Description: r.tr.T("command_end_story")},
	)
	_, err := r.bot.Request(cmds)
	return err
}

func keyboardMarkup(kb adapter.Keyboard) interface{} {
	var rows [][]tgbotapi.KeyboardButton
	switch kb {
	case adapter.KeyboardIdle:
		rows = [][]tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/"+usecase.CmdHelp),
			tgbotapi.NewKeyboardButton("/"+usecase.CmdNewChat),
		)}
	case adapter.KeyboardChat:
		rows = [][]tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/"+usecase.CmdHelp),
			tgbotapi.NewKeyboardButton("/"+usecase.CmdEndChat),
			tgbotapi.NewKeyboardButton("/"+usecase.CmdEndStory),
		)}
	default:
		return nil
	}
	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = true
	return markup
}
