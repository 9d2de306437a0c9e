// File: internal/usecase/story_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-story-bot/internal/domain"
	"telegram-story-bot/internal/domain/model"
	"telegram-story-bot/internal/domain/ports/adapter"
	"telegram-story-bot/internal/domain/ports/repository"
	"telegram-story-bot/internal/infra/logging"
	"telegram-story-bot/internal/infra/metrics"
)

// Bot commands, without the leading slash.
const (
	CmdStart    = "start"
	CmdHelp     = "help"
	CmdNewChat  = "new_chat"
	CmdEndChat  = "end_chat"
	CmdEndStory = "end_story"
	CmdDebug    = "debug"
)

// DebugLogName is the file name the warning log is sent under.
const DebugLogName = "logs.log"

// Event is one inbound chat message. Command is set when the text is a bot
// command and holds its name without the slash.
type Event struct {
	UserID    int64
	ChatID    int64
	MessageID int
	Text      string
	Command   string
}

func (e Event) key() model.SessionKey {
	return model.SessionKey{UserID: e.UserID, ChatID: e.ChatID}
}

// Translator resolves user-facing texts.
type Translator interface {
	T(key string, args ...interface{}) string
	Variants(prefix string) []string
}

type StoryOptions struct {
	TokensLimitByUser int64
	RequestMaxTokens  int
	MaxMessageLen     int
	// LockTTL bounds how long one event may hold the per-user lease.
	LockTTL     time.Duration
	DebugUserID int64
	WarnLogPath string
	// Intn picks the witty reply; math/rand when nil.
	Intn func(n int) int
}

type inputKind int

const (
	inputText inputKind = iota
	inputHelp
	inputNewChat
	inputEndChat
	inputEndStory
	inputDebug
)

type route struct {
	phase model.Phase
	kind  inputKind
}

// stepFunc handles one event and returns the phase the session moves to.
type stepFunc func(ctx context.Context, ev Event, phase model.Phase) (model.Phase, error)

// errLengthUnverified marks a tokenize failure, which gets its own reply.
var errLengthUnverified = errors.New("request length could not be verified")

// StoryMachine drives the story wizard and the chat with the model for every
// (user, chat) pair.
type StoryMachine struct {
	users   repository.UserRepository
	ledger  repository.TokenLedger
	history repository.HistoryRepository
	tm      repository.TransactionManager
	phases  repository.PhaseRepository
	locker  repository.Locker
	llm     adapter.LLMGateway
	chat    adapter.ChatTransport
	tr      Translator
	opts    StoryOptions

	routes   map[route]stepFunc
	defaults map[model.Phase]stepFunc

	log *zerolog.Logger
}

func NewStoryMachine(
	users repository.UserRepository,
	ledger repository.TokenLedger,
	history repository.HistoryRepository,
	tm repository.TransactionManager,
	phases repository.PhaseRepository,
	locker repository.Locker,
	llm adapter.LLMGateway,
	chat adapter.ChatTransport,
	tr Translator,
	opts StoryOptions,
	logger *zerolog.Logger,
) *StoryMachine {
	if opts.MaxMessageLen <= 0 {
		opts.MaxMessageLen = DefaultMaxMessageLen
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = time.Minute
	}
	if opts.Intn == nil {
		opts.Intn = rand.Intn
	}
	m := &StoryMachine{
		users:   users,
		ledger:  ledger,
		history: history,
		tm:      tm,
		phases:  phases,
		locker:  locker,
		llm:     llm,
		chat:    chat,
		tr:      tr,
		opts:    opts,
		log:     logger,
	}
	m.buildRoutes()
	return m
}

func (m *StoryMachine) buildRoutes() {
	m.routes = make(map[route]stepFunc)
	for _, p := range model.Phases {
		m.routes[route{p, inputHelp}] = m.showHelp
		m.routes[route{p, inputDebug}] = m.sendDebugLog
	}

	m.routes[route{model.PhaseIdle, inputNewChat}] = m.startWizard

	for _, p := range []model.Phase{model.PhaseAwaitingGenre, model.PhaseAwaitingCharacter, model.PhaseAwaitingSetting, model.PhaseActive} {
		m.routes[route{p, inputEndChat}] = m.endChat
	}
	m.routes[route{model.PhaseActive, inputEndStory}] = m.endStory

	m.defaults = map[model.Phase]stepFunc{
		model.PhaseIdle:              m.unknownInput,
		model.PhaseAwaitingGenre:     m.storeField,
		model.PhaseAwaitingCharacter: m.storeField,
		model.PhaseAwaitingSetting:   m.storeField,
		model.PhaseActive:            m.converse,
	}
}

func (m *StoryMachine) classify(ev Event) inputKind {
	switch ev.Command {
	case CmdHelp, CmdStart:
		return inputHelp
	case CmdNewChat:
		return inputNewChat
	case CmdEndChat:
		return inputEndChat
	case CmdEndStory:
		return inputEndStory
	case CmdDebug:
		if m.opts.DebugUserID != 0 && ev.UserID == m.opts.DebugUserID {
			return inputDebug
		}
	}
	return inputText
}

func (m *StoryMachine) step(phase model.Phase, kind inputKind) stepFunc {
	if fn, ok := m.routes[route{phase, kind}]; ok {
		return fn
	}
	return m.defaults[phase]
}

// Handle processes one event. Events of the same user are serialized through
// a lease; a second event arriving while one is in flight is answered with a
// "please wait" reply. Returned errors are persistence or transport failures.
func (m *StoryMachine) Handle(ctx context.Context, ev Event) error {
	ctx = logging.WithChatID(logging.WithTgID(ctx, ev.UserID), ev.ChatID)
	log := logging.With(ctx, m.log)
	defer logging.TraceDuration(log, "StoryMachine.Handle")()

	lockKey := fmt.Sprintf("user:%d", ev.UserID)
	token, err := m.locker.TryLock(ctx, lockKey, m.opts.LockTTL)
	if errors.Is(err, domain.ErrUserBusy) {
		metrics.IncStoryRejection("busy")
		return m.reply(ctx, ev, m.tr.T("busy"), adapter.KeyboardNone, false)
	}
	if err != nil {
		return fmt.Errorf("acquire user lease: %w", err)
	}
	defer func() {
		if err := m.locker.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			log.Warn().Err(err).Msg("release user lease")
		}
	}()

	key := ev.key()
	phase, err := m.phases.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load phase: %w", err)
	}

	// A step reports the phase matching what it already stored, also when a
	// later reply fails, so the phase is saved before the step error returns.
	next, stepErr := m.step(phase, m.classify(ev))(ctx, ev, phase)
	if next != phase {
		if err := m.phases.Set(ctx, key, next); err != nil {
			return errors.Join(stepErr, fmt.Errorf("store phase: %w", err))
		}
		metrics.IncPhaseTransition(string(phase), string(next))
		log.Debug().Str("from", string(phase)).Str("to", string(next)).Msg("phase changed")
	}
	return stepErr
}

// Phase reports the current phase of a session.
func (m *StoryMachine) Phase(ctx context.Context, key model.SessionKey) (model.Phase, error) {
	return m.phases.Get(ctx, key)
}

// ---- steps ----

func (m *StoryMachine) showHelp(ctx context.Context, ev Event, phase model.Phase) (model.Phase, error) {
	kb := adapter.KeyboardIdle
	if phase == model.PhaseActive {
		kb = adapter.KeyboardChat
	}
	return phase, m.reply(ctx, ev, m.tr.T("help_message", m.opts.TokensLimitByUser), kb, true)
}

func (m *StoryMachine) unknownInput(ctx context.Context, ev Event, phase model.Phase) (model.Phase, error) {
	text := m.tr.T("unknown_hint")
	if variants := m.tr.Variants("unknown_reply_"); len(variants) > 0 {
		text = variants[m.opts.Intn(len(variants))] + text
	}
	return phase, m.reply(ctx, ev, text, adapter.KeyboardIdle, false)
}

func (m *StoryMachine) startWizard(ctx context.Context, ev Event, _ model.Phase) (model.Phase, error) {
	if err := m.reply(ctx, ev, m.tr.T("ask_genre"), adapter.KeyboardChat, false); err != nil {
		return model.PhaseIdle, err
	}
	return model.PhaseAwaitingGenre, nil
}

var nextPrompt = map[model.Phase]string{
	model.PhaseAwaitingCharacter: "ask_character",
	model.PhaseAwaitingSetting:   "ask_setting",
	model.PhaseActive:            "story_start",
}

func (m *StoryMachine) storeField(ctx context.Context, ev Event, phase model.Phase) (model.Phase, error) {
	field, next, ok := phase.WizardStep()
	if !ok {
		return phase, fmt.Errorf("phase %s collects no field: %w", phase, domain.ErrInvalidArgument)
	}
	value := strings.TrimSpace(ev.Text)
	if value == "" {
		return phase, m.reply(ctx, ev, m.tr.T("empty_input"), adapter.KeyboardChat, false)
	}

	var err error
	if field == model.FieldGenre {
		// A new story starts here: drop whatever an interrupted one left behind.
		err = m.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := m.users.SetStoryField(ctx, tx, ev.UserID, field, value); err != nil {
				return err
			}
			return m.history.Clear(ctx, tx, ev.UserID)
		})
	} else {
		err = m.users.SetStoryField(ctx, repository.NoTX, ev.UserID, field, value)
	}
	if err != nil {
		return phase, fmt.Errorf("store %s: %w", field, err)
	}

	return next, m.reply(ctx, ev, m.tr.T(nextPrompt[next]), adapter.KeyboardChat, false)
}

func (m *StoryMachine) endChat(ctx context.Context, ev Event, phase model.Phase) (model.Phase, error) {
	if err := m.history.Clear(ctx, repository.NoTX, ev.UserID); err != nil {
		return phase, fmt.Errorf("clear history: %w", err)
	}
	metrics.IncStoryFinished("end_chat")
	return model.PhaseIdle, m.reply(ctx, ev, m.tr.T("chat_deleted"), adapter.KeyboardIdle, false)
}

func (m *StoryMachine) converse(ctx context.Context, ev Event, phase model.Phase) (model.Phase, error) {
	prompt := strings.TrimSpace(ev.Text)
	if prompt == "" {
		return phase, m.reply(ctx, ev, m.tr.T("empty_input"), adapter.KeyboardChat, false)
	}

	res, _, err := m.complete(ctx, ev.UserID, prompt, "", true)
	switch {
	case errors.Is(err, errLengthUnverified):
		return phase, m.reply(ctx, ev, m.tr.T("length_check_failed"), adapter.KeyboardChat, false)
	case errors.Is(err, domain.ErrRequestTooLong):
		return phase, m.reply(ctx, ev, m.tr.T("message_too_long"), adapter.KeyboardChat, false)
	case errors.Is(err, domain.ErrTokenBudgetExceeded):
		return phase, m.reply(ctx, ev, m.tr.T("budget_exceeded"), adapter.KeyboardChat, false)
	case errors.Is(err, domain.ErrLLMUnavailable):
		return phase, m.reply(ctx, ev, m.tr.T("completion_failed"), adapter.KeyboardChat, false)
	case err != nil:
		return phase, err
	}

	text := res.Text + m.tr.T("tokens_spent_note", res.CompletionTokens)
	return phase, m.reply(ctx, ev, text, adapter.KeyboardChat, false)
}

func (m *StoryMachine) endStory(ctx context.Context, ev Event, phase model.Phase) (model.Phase, error) {
	res, turns, err := m.complete(ctx, ev.UserID, m.tr.T("end_story_prompt"), m.tr.T("end_story_directive"), false)
	var ending string
	switch {
	case errors.Is(err, domain.ErrTokenBudgetExceeded):
		err = m.reply(ctx, ev, m.tr.T("end_story_budget_exceeded"), adapter.KeyboardIdle, false)
	case errors.Is(err, domain.ErrLLMUnavailable):
		err = m.reply(ctx, ev, m.tr.T("end_story_failed"), adapter.KeyboardIdle, false)
	case err != nil:
		return phase, err
	default:
		ending = res.Text
		err = m.reply(ctx, ev, res.Text+m.tr.T("tokens_spent_note", res.CompletionTokens), adapter.KeyboardIdle, false)
	}
	if err != nil {
		return phase, err
	}

	if err := m.reply(ctx, ev, m.tr.T("full_story_header"), adapter.KeyboardIdle, false); err != nil {
		return phase, err
	}
	if err := m.sendStory(ctx, ev, turns, ending); err != nil {
		return phase, err
	}

	if err := m.history.Clear(ctx, repository.NoTX, ev.UserID); err != nil {
		return phase, fmt.Errorf("clear history: %w", err)
	}
	metrics.IncStoryFinished("end_story")
	return model.PhaseIdle, m.reply(ctx, ev, m.tr.T("chat_deleted"), adapter.KeyboardIdle, false)
}

func (m *StoryMachine) sendDebugLog(ctx context.Context, ev Event, phase model.Phase) (model.Phase, error) {
	data, err := os.ReadFile(m.opts.WarnLogPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.With(ctx, m.log).Warn().Err(err).Msg("read warning log")
	}
	if len(data) == 0 {
		return phase, m.reply(ctx, ev, m.tr.T("debug_log_empty"), adapter.KeyboardNone, false)
	}
	if err := m.chat.SendDocument(ctx, ev.ChatID, DebugLogName, data); err != nil {
		return phase, fmt.Errorf("send warning log: %w", err)
	}
	return phase, nil
}

// ---- completion pipeline ----

// complete runs one guarded completion and commits it. checkLength enables
// the tokenize pre-flight. The history the model saw is returned with the
// result, also when admission or the model call fails.
func (m *StoryMachine) complete(ctx context.Context, tgID int64, prompt, directive string, checkLength bool) (adapter.Completion, []model.HistoryTurn, error) {
	log := logging.With(ctx, m.log)

	if checkLength {
		n, err := m.llm.Tokenize(ctx, prompt)
		if err != nil {
			log.Warn().Err(err).Msg("tokenize failed")
			metrics.IncStoryRejection("length_unverified")
			return adapter.Completion{}, nil, fmt.Errorf("%w: %w", errLengthUnverified, err)
		}
		if n > m.opts.RequestMaxTokens {
			metrics.IncStoryRejection("too_long")
			return adapter.Completion{}, nil, fmt.Errorf("%d tokens: %w", n, domain.ErrRequestTooLong)
		}
	}

	turns, err := m.history.AllTurns(ctx, repository.NoTX, tgID)
	if err != nil {
		return adapter.Completion{}, nil, fmt.Errorf("load history: %w", err)
	}

	spent, err := m.ledger.Spent(ctx, repository.NoTX, tgID)
	if err != nil {
		return adapter.Completion{}, turns, fmt.Errorf("load ledger: %w", err)
	}
	if !model.Admits(spent, m.opts.TokensLimitByUser) {
		metrics.IncStoryRejection("budget")
		log.Info().Int64("spent", spent).Msg("token budget exceeded")
		return adapter.Completion{}, turns, domain.ErrTokenBudgetExceeded
	}

	user, err := m.users.FindByTelegramID(ctx, repository.NoTX, tgID)
	if errors.Is(err, domain.ErrNotFound) {
		user = &model.User{TelegramID: tgID}
	} else if err != nil {
		return adapter.Completion{}, turns, fmt.Errorf("load user: %w", err)
	}

	res, err := m.llm.Complete(ctx, adapter.CompletionRequest{
		SystemPrompt: m.tr.T("system_prompt", user.Genre, user.Character, user.Setting),
		History:      turns,
		UserPrompt:   prompt,
		Directive:    directive,
	})
	if err != nil {
		log.Warn().Err(err).Msg("completion failed")
		metrics.IncStoryRejection("unavailable")
		return adapter.Completion{}, turns, err
	}

	err = m.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := m.history.Append(ctx, tx, tgID, model.RoleUser, prompt); err != nil {
			return err
		}
		if err := m.history.Append(ctx, tx, tgID, model.RoleAssistant, res.Text); err != nil {
			return err
		}
		return m.ledger.Increment(ctx, tx, tgID, res.CompletionTokens)
	})
	if err != nil {
		return adapter.Completion{}, turns, fmt.Errorf("commit completion: %w", err)
	}
	metrics.AddTokensCommitted(res.CompletionTokens)
	log.Info().Int64("tokens", res.CompletionTokens).Str("prompt", logging.Redact(prompt, false)).Msg("completion committed")
	return res, turns, nil
}

// sendStory replays the story turn by turn, packing as many turns into one
// message as fit.
func (m *StoryMachine) sendStory(ctx context.Context, ev Event, turns []model.HistoryTurn, ending string) error {
	units := make([]string, 0, len(turns)+1)
	for _, t := range turns {
		if t.Role == model.RoleSystem || strings.TrimSpace(t.Message) == "" {
			continue
		}
		units = append(units, t.Message)
	}
	if ending != "" {
		units = append(units, ending)
	}
	for i := 0; i < len(units)-1; i++ {
		units[i] += "\n\n"
	}
	for _, part := range Split(units, m.opts.MaxMessageLen) {
		if err := m.send(ctx, ev, part, adapter.KeyboardIdle, false); err != nil {
			return err
		}
	}
	return nil
}

// reply answers the triggering message, splitting text that is too long for
// one message.
func (m *StoryMachine) reply(ctx context.Context, ev Event, text string, kb adapter.Keyboard, html bool) error {
	for _, part := range SplitText(text, m.opts.MaxMessageLen) {
		if err := m.send(ctx, ev, part, kb, html); err != nil {
			return err
		}
	}
	return nil
}

func (m *StoryMachine) send(ctx context.Context, ev Event, text string, kb adapter.Keyboard, html bool) error {
	err := m.chat.Reply(ctx, adapter.Reply{
		ChatID:   ev.ChatID,
		ReplyTo:  ev.MessageID,
		Text:     text,
		Keyboard: kb,
		HTML:     html,
	})
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}
