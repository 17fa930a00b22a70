package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"medichat-be/internal/constant"
	"medichat-be/internal/dto"
	"medichat-be/internal/entity"
	"medichat-be/internal/model"
	"medichat-be/internal/pkg/apperror"
	"medichat-be/internal/repository/contract"
	"medichat-be/internal/repository/unitofwork"
	"medichat-be/pkg/auth/cognito"
	"medichat-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeLLMProvider struct {
	reply       string
	err         error
	lastHistory []llm.Message
	calls       int
}

func (f *fakeLLMProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	f.calls++
	f.lastHistory = history
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// recordingLogger captures Error calls so tests can assert on what was
// reported without parsing log output.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Debug(module, message string, details map[string]interface{}) {}
func (l *recordingLogger) Info(module, message string, details map[string]interface{})  {}
func (l *recordingLogger) Warn(module, message string, details map[string]interface{})  {}
func (l *recordingLogger) Error(module, message string, details map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, message)
}
func (l *recordingLogger) Sync() error { return nil }

// failingAssistantFactory wraps the real factory so every unit of work
// rejects assistant message inserts while passing everything else through.
type failingAssistantFactory struct {
	inner unitofwork.RepositoryFactory
}

func (f failingAssistantFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return failingAssistantUOW{f.inner.NewUnitOfWork(ctx)}
}

type failingAssistantUOW struct {
	unitofwork.UnitOfWork
}

func (u failingAssistantUOW) ChatMessageRepository() contract.ChatMessageRepository {
	return failingAssistantMessages{u.UnitOfWork.ChatMessageRepository()}
}

type failingAssistantMessages struct {
	contract.ChatMessageRepository
}

func (r failingAssistantMessages) Create(ctx context.Context, message *entity.ChatMessage) error {
	if message.Role == constant.ChatMessageRoleAssistant {
		return errors.New("insert rejected")
	}
	return r.ChatMessageRepository.Create(ctx, message)
}

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps every session on the same in-memory DB.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.User{}, &model.ChatSession{}, &model.ChatMessage{}))

	t.Cleanup(func() {
		db.Exec("DELETE FROM chat_messages")
		db.Exec("DELETE FROM chat_sessions")
		db.Exec("DELETE FROM users")
	})

	return db
}

func newTestService(t *testing.T, db *gorm.DB, provider *fakeLLMProvider) IChatbotService {
	t.Helper()
	return NewChatbotService(
		unitofwork.NewRepositoryFactory(db),
		provider,
		nil,
		ChatbotConfig{
			Temperature: 0.8,
			TopP:        1,
			MaxTokens:   512,
			Timeout:     5 * time.Second,
		},
		nopLogger{},
	)
}

func identityFor(subject string) *cognito.Identity {
	return &cognito.Identity{
		Subject: subject,
		Email:   subject + "@example.com",
	}
}

func TestStartSessionGetOrCreate(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &fakeLLMProvider{reply: "hello"})
	ctx := context.Background()
	u1 := identityFor("u1")

	first, err := svc.StartSession(ctx, u1)
	require.NoError(t, err)

	// No intervening chat turn: the untitled session is reused.
	second, err := svc.StartSession(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, first.SessionId, second.SessionId)

	var sessionCount, messageCount int64
	db.Model(&model.ChatSession{}).Count(&sessionCount)
	db.Model(&model.ChatMessage{}).Count(&messageCount)
	assert.Equal(t, int64(1), sessionCount)
	assert.Equal(t, int64(1), messageCount)

	var systemMessage model.ChatMessage
	require.NoError(t, db.First(&systemMessage).Error)
	assert.Equal(t, constant.ChatMessageRoleSystem, systemMessage.Role)
	assert.Equal(t, constant.SystemPromptV1, systemMessage.Content)

	var userCount int64
	db.Model(&model.User{}).Count(&userCount)
	assert.Equal(t, int64(1), userCount)
}

func TestStartSessionCreatesDistinctSessionsPerUser(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &fakeLLMProvider{reply: "hello"})
	ctx := context.Background()

	s1, err := svc.StartSession(ctx, identityFor("u1"))
	require.NoError(t, err)
	s2, err := svc.StartSession(ctx, identityFor("u2"))
	require.NoError(t, err)

	assert.NotEqual(t, s1.SessionId, s2.SessionId)
}

func TestSendChatFullTurn(t *testing.T) {
	db := newTestDB(t)
	provider := &fakeLLMProvider{reply: "How long have you had it?"}
	svc := newTestService(t, db, provider)
	ctx := context.Background()
	u1 := identityFor("u1")

	started, err := svc.StartSession(ctx, u1)
	require.NoError(t, err)

	res, err := svc.SendChat(ctx, u1, &dto.SendChatRequest{
		SessionId: started.SessionId,
		UserInput: "My head hurts",
	})
	require.NoError(t, err)
	assert.Equal(t, "How long have you had it?", res.Response)
	assert.Equal(t, started.SessionId, res.SessionId)

	// Title transitioned from the sentinel to the first user message.
	var session model.ChatSession
	require.NoError(t, db.First(&session, "id = ?", started.SessionId).Error)
	assert.Equal(t, "My head hurts", session.Title)

	history, err := svc.GetChatHistory(ctx, u1, started.SessionId)
	require.NoError(t, err)
	require.Len(t, history.History, 3)
	assert.Equal(t, constant.ChatMessageRoleSystem, history.History[0].Role)
	assert.Equal(t, constant.ChatMessageRoleUser, history.History[1].Role)
	assert.Equal(t, "My head hurts", history.History[1].Content)
	assert.Equal(t, constant.ChatMessageRoleAssistant, history.History[2].Role)
	assert.Equal(t, "How long have you had it?", history.History[2].Content)

	// The model saw the full history up to and including the user turn.
	require.Len(t, provider.lastHistory, 2)
	assert.Equal(t, constant.ChatMessageRoleSystem, provider.lastHistory[0].Role)
	assert.Equal(t, "My head hurts", provider.lastHistory[1].Content)

	// The second turn no longer renames the session.
	_, err = svc.SendChat(ctx, u1, &dto.SendChatRequest{
		SessionId: started.SessionId,
		UserInput: "It started yesterday",
	})
	require.NoError(t, err)

	require.NoError(t, db.First(&session, "id = ?", started.SessionId).Error)
	assert.Equal(t, "My head hurts", session.Title)
}

func TestSendChatTitleTruncation(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &fakeLLMProvider{reply: "ok"})
	ctx := context.Background()
	u1 := identityFor("u1")

	started, err := svc.StartSession(ctx, u1)
	require.NoError(t, err)

	long := "  " + strings.Repeat("a", 80) + "  "
	_, err = svc.SendChat(ctx, u1, &dto.SendChatRequest{
		SessionId: started.SessionId,
		UserInput: long,
	})
	require.NoError(t, err)

	var session model.ChatSession
	require.NoError(t, db.First(&session, "id = ?", started.SessionId).Error)
	assert.Equal(t, strings.Repeat("a", constant.SessionTitleMaxLen), session.Title)
}

func TestSendChatUnknownSession(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &fakeLLMProvider{reply: "ok"})

	_, err := svc.SendChat(context.Background(), identityFor("u1"), &dto.SendChatRequest{
		SessionId: uuid.New(),
		UserInput: "hello",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindSessionNotFound))
}

func TestSendChatForbiddenForNonOwner(t *testing.T) {
	db := newTestDB(t)
	provider := &fakeLLMProvider{reply: "ok"}
	svc := newTestService(t, db, provider)
	ctx := context.Background()
	u1 := identityFor("u1")

	started, err := svc.StartSession(ctx, u1)
	require.NoError(t, err)
	_, err = svc.SendChat(ctx, u1, &dto.SendChatRequest{
		SessionId: started.SessionId,
		UserInput: "My head hurts",
	})
	require.NoError(t, err)

	// A different identity may neither chat in nor read the session.
	_, err = svc.SendChat(ctx, identityFor("u2"), &dto.SendChatRequest{
		SessionId: started.SessionId,
		UserInput: "injected",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	_, err = svc.GetChatHistory(ctx, identityFor("u2"), started.SessionId)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	// History is unchanged by the rejected turn.
	history, err := svc.GetChatHistory(ctx, u1, started.SessionId)
	require.NoError(t, err)
	assert.Len(t, history.History, 3)
}

func TestSendChatUpstreamFailureKeepsUserMessage(t *testing.T) {
	db := newTestDB(t)
	provider := &fakeLLMProvider{err: context.DeadlineExceeded}
	svc := newTestService(t, db, provider)
	ctx := context.Background()
	u1 := identityFor("u1")

	started, err := svc.StartSession(ctx, u1)
	require.NoError(t, err)

	_, err = svc.SendChat(ctx, u1, &dto.SendChatRequest{
		SessionId: started.SessionId,
		UserInput: "My head hurts",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindUpstreamUnavailable))

	// The user turn stays persisted; no assistant row was written.
	history, err := svc.GetChatHistory(ctx, u1, started.SessionId)
	require.NoError(t, err)
	require.Len(t, history.History, 2)
	assert.Equal(t, constant.ChatMessageRoleUser, history.History[1].Role)
}

func TestSendChatAssistantPersistFailureStillReturnsReply(t *testing.T) {
	db := newTestDB(t)
	provider := &fakeLLMProvider{reply: "Rest and drink water."}
	log := &recordingLogger{}
	svc := NewChatbotService(
		failingAssistantFactory{unitofwork.NewRepositoryFactory(db)},
		provider,
		nil,
		ChatbotConfig{Timeout: 5 * time.Second},
		log,
	)
	ctx := context.Background()
	u1 := identityFor("u1")

	started, err := svc.StartSession(ctx, u1)
	require.NoError(t, err)

	// Losing the assistant row after a successful completion is reported,
	// not surfaced; the caller still gets the reply.
	res, err := svc.SendChat(ctx, u1, &dto.SendChatRequest{
		SessionId: started.SessionId,
		UserInput: "My head hurts",
	})
	require.NoError(t, err)
	assert.Equal(t, "Rest and drink water.", res.Response)

	history, err := svc.GetChatHistory(ctx, u1, started.SessionId)
	require.NoError(t, err)
	require.Len(t, history.History, 2)
	assert.Equal(t, constant.ChatMessageRoleUser, history.History[1].Role)

	require.Len(t, log.errors, 1)
	assert.Contains(t, log.errors[0], "assistant message not persisted")
}

func TestGetAllSessionsScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &fakeLLMProvider{reply: "ok"})
	ctx := context.Background()

	s1, err := svc.StartSession(ctx, identityFor("u1"))
	require.NoError(t, err)
	_, err = svc.StartSession(ctx, identityFor("u2"))
	require.NoError(t, err)

	sessions, err := svc.GetAllSessions(ctx, identityFor("u1"))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, s1.SessionId, sessions[0].Id)
	assert.Equal(t, constant.UntitledSessionTitle, sessions[0].Title)
}

func TestDeleteSessionCascades(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &fakeLLMProvider{reply: "ok"})
	ctx := context.Background()
	u1 := identityFor("u1")

	started, err := svc.StartSession(ctx, u1)
	require.NoError(t, err)
	_, err = svc.SendChat(ctx, u1, &dto.SendChatRequest{
		SessionId: started.SessionId,
		UserInput: "My head hurts",
	})
	require.NoError(t, err)

	res, err := svc.DeleteSession(ctx, u1, started.SessionId)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Message)

	var sessionCount, messageCount int64
	db.Model(&model.ChatSession{}).Count(&sessionCount)
	db.Model(&model.ChatMessage{}).Where("chat_session_id = ?", started.SessionId).Count(&messageCount)
	assert.Equal(t, int64(0), sessionCount)
	assert.Equal(t, int64(0), messageCount)

	_, err = svc.GetChatHistory(ctx, u1, started.SessionId)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindSessionNotFound))
}

func TestDeleteSessionForbiddenForNonOwner(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &fakeLLMProvider{reply: "ok"})
	ctx := context.Background()

	started, err := svc.StartSession(ctx, identityFor("u1"))
	require.NoError(t, err)

	_, err = svc.DeleteSession(ctx, identityFor("u2"), started.SessionId)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
}

func TestEnricherAppliesToOutboundOnly(t *testing.T) {
	db := newTestDB(t)
	provider := &fakeLLMProvider{reply: "ok"}
	enriched := llm.TimestampEnricher(func() time.Time {
		return time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	})
	svc := NewChatbotService(
		unitofwork.NewRepositoryFactory(db),
		provider,
		enriched,
		ChatbotConfig{Timeout: 5 * time.Second},
		nopLogger{},
	)
	ctx := context.Background()
	u1 := identityFor("u1")

	started, err := svc.StartSession(ctx, u1)
	require.NoError(t, err)
	_, err = svc.SendChat(ctx, u1, &dto.SendChatRequest{
		SessionId: started.SessionId,
		UserInput: "hello",
	})
	require.NoError(t, err)

	// Outbound system turn carries the injected timestamp.
	require.NotEmpty(t, provider.lastHistory)
	assert.Contains(t, provider.lastHistory[0].Content, "Current date and time")

	// The persisted system message is untouched.
	history, err := svc.GetChatHistory(ctx, u1, started.SessionId)
	require.NoError(t, err)
	assert.Equal(t, constant.SystemPromptV1, history.History[0].Content)
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "hello", deriveTitle("  hello  "))
	assert.Equal(t, strings.Repeat("x", 50), deriveTitle(strings.Repeat("x", 51)))
	assert.Equal(t, "", deriveTitle("   "))
}
