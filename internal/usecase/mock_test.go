//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-story-bot/internal/domain"
	"telegram-story-bot/internal/domain/model"
	"telegram-story-bot/internal/domain/ports/adapter"
	"telegram-story-bot/internal/domain/ports/repository"
	"telegram-story-bot/internal/infra/i18n"
)

// =============================
// Repositories
// =============================

// MemStore backs the user, ledger and history mocks with one shared table set,
// the way the real repositories share the database.
type MemStore struct {
	mu      sync.Mutex
	users   map[int64]*model.User
	history map[int64][]model.HistoryTurn
	nextID  int64

	// Hooks to inject failures.
	AppendErr    error
	IncrementErr error
	ClearErr     error
}

func NewMemStore() *MemStore {
	return &MemStore{users: make(map[int64]*model.User), history: make(map[int64][]model.HistoryTurn)}
}

func (s *MemStore) User(tgID int64) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[tgID]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (s *MemStore) Turns(tgID int64) []model.HistoryTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.HistoryTurn(nil), s.history[tgID]...)
}

// Seed creates a user in the active phase of a story.
func (s *MemStore) Seed(u model.User, turns ...model.HistoryTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u.ID = s.nextID
	s.users[u.TelegramID] = &u
	for _, t := range turns {
		s.nextID++
		t.ID = s.nextID
		t.UserID = u.ID
		s.history[u.TelegramID] = append(s.history[u.TelegramID], t)
	}
}

// ---- UserRepository ----

type MockUserRepo struct {
	*MemStore
	FindByTelegramIDFunc func(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func (m *MockUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	if m.FindByTelegramIDFunc != nil {
		return m.FindByTelegramIDFunc(ctx, tx, tgID)
	}
	if u := m.User(tgID); u != nil {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) SetStoryField(ctx context.Context, tx repository.Tx, tgID int64, field model.StoryField, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[tgID]
	if !ok {
		m.nextID++
		u = &model.User{ID: m.nextID, TelegramID: tgID, CreatedAt: time.Now()}
		m.users[tgID] = u
	}
	u.UpdatedAt = time.Now()
	return u.Set(field, value)
}

func (m *MockUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *MockUserRepo) TotalTokensSpent(ctx context.Context, tx repository.Tx) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, u := range m.users {
		total += u.TokensSpent
	}
	return total, nil
}

// ---- TokenLedger ----

type MockLedger struct {
	*MemStore
	SpentFunc func(ctx context.Context, tx repository.Tx, tgID int64) (int64, error)
}

var _ repository.TokenLedger = (*MockLedger)(nil)

func (m *MockLedger) Spent(ctx context.Context, tx repository.Tx, tgID int64) (int64, error) {
	if m.SpentFunc != nil {
		return m.SpentFunc(ctx, tx, tgID)
	}
	if u := m.User(tgID); u != nil {
		return u.TokensSpent, nil
	}
	return 0, nil
}

func (m *MockLedger) Increment(ctx context.Context, tx repository.Tx, tgID int64, amount int64) error {
	if amount < 0 {
		return domain.ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IncrementErr != nil {
		return m.IncrementErr
	}
	u, ok := m.users[tgID]
	if !ok {
		return domain.ErrNotFound
	}
	u.TokensSpent += amount
	return nil
}

// ---- HistoryRepository ----

type MockHistoryRepo struct {
	*MemStore
}

var _ repository.HistoryRepository = (*MockHistoryRepo)(nil)

func (m *MockHistoryRepo) Append(ctx context.Context, tx repository.Tx, tgID int64, role model.Role, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	u, ok := m.users[tgID]
	if !ok {
		return domain.ErrNotFound
	}
	m.nextID++
	m.history[tgID] = append(m.history[tgID], model.HistoryTurn{
		ID: m.nextID, UserID: u.ID, Role: role, Message: text, CreatedAt: time.Now(),
	})
	return nil
}

func (m *MockHistoryRepo) AllTurns(ctx context.Context, tx repository.Tx, tgID int64) ([]model.HistoryTurn, error) {
	return m.Turns(tgID), nil
}

func (m *MockHistoryRepo) Clear(ctx context.Context, tx repository.Tx, tgID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClearErr != nil {
		return m.ClearErr
	}
	delete(m.history, tgID)
	return nil
}

func (m *MockHistoryRepo) CountTurns(ctx context.Context, tx repository.Tx, tgID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history[tgID]), nil
}

// ---- TransactionManager ----

// MockTxManager snapshots the store and restores it when fn fails, so tests
// can observe that nothing of a failed unit is left behind.
type MockTxManager struct {
	store      *MemStore
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	Commits    int
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager(store *MemStore) *MockTxManager {
	return &MockTxManager{store: store}
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	users, history := m.store.snapshot()
	if err := fn(ctx, repository.NoTX); err != nil {
		m.store.restore(users, history)
		return err
	}
	m.Commits++
	return nil
}

func (s *MemStore) snapshot() (map[int64]model.User, map[int64][]model.HistoryTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make(map[int64]model.User, len(s.users))
	for k, u := range s.users {
		users[k] = *u
	}
	history := make(map[int64][]model.HistoryTurn, len(s.history))
	for k, h := range s.history {
		history[k] = append([]model.HistoryTurn(nil), h...)
	}
	return users, history
}

func (s *MemStore) restore(users map[int64]model.User, history map[int64][]model.HistoryTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[int64]*model.User, len(users))
	for k, u := range users {
		u := u
		s.users[k] = &u
	}
	s.history = history
}

// =============================
// Adapters
// =============================

// ---- LLMGateway ----

type MockLLM struct {
	mu       sync.Mutex
	Requests []adapter.CompletionRequest

	TokenizeFunc func(ctx context.Context, text string) (int, error)
	CompleteFunc func(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error)
}

var _ adapter.LLMGateway = (*MockLLM)(nil)

func (m *MockLLM) Tokenize(ctx context.Context, text string) (int, error) {
	if m.TokenizeFunc != nil {
		return m.TokenizeFunc(ctx, text)
	}
	return len([]rune(text)) / 4, nil
}

func (m *MockLLM) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return adapter.Completion{Text: "Once upon a time", CompletionTokens: 10}, nil
}

func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// ---- ChatTransport ----

type sentDocument struct {
	ChatID int64
	Name   string
	Data   []byte
}

type MockChat struct {
	mu        sync.Mutex
	Replies   []adapter.Reply
	Documents []sentDocument

	ReplyFunc func(ctx context.Context, r adapter.Reply) error
}

var _ adapter.ChatTransport = (*MockChat)(nil)

func (m *MockChat) Reply(ctx context.Context, r adapter.Reply) error {
	if m.ReplyFunc != nil {
		if err := m.ReplyFunc(ctx, r); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Replies = append(m.Replies, r)
	return nil
}

func (m *MockChat) SendDocument(ctx context.Context, chatID int64, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Documents = append(m.Documents, sentDocument{ChatID: chatID, Name: name, Data: data})
	return nil
}

func (m *MockChat) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Replies))
	for i, r := range m.Replies {
		out[i] = r.Text
	}
	return out
}

func (m *MockChat) Last() adapter.Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Replies) == 0 {
		return adapter.Reply{}
	}
	return m.Replies[len(m.Replies)-1]
}

func (m *MockChat) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Replies = nil
	m.Documents = nil
}

// =============================
// Helpers
// =============================

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// newTestTranslator loads the shipped English texts so tests can compare
// replies with the real wording.
func newTestTranslator() *i18n.Translator {
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		panic(err)
	}
	return tr
}
