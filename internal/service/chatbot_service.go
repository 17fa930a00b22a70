package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"medichat-be/internal/constant"
	"medichat-be/internal/dto"
	"medichat-be/internal/entity"
	"medichat-be/internal/pkg/apperror"
	"medichat-be/internal/pkg/logger"
	"medichat-be/internal/repository/specification"
	"medichat-be/internal/repository/unitofwork"
	"medichat-be/pkg/auth/cognito"
	"medichat-be/pkg/llm"

	"github.com/google/uuid"
)

// IChatbotService defines the chatbot service interface
type IChatbotService interface {
	StartSession(ctx context.Context, identity *cognito.Identity) (*dto.StartSessionResponse, error)
	SendChat(ctx context.Context, identity *cognito.Identity, request *dto.SendChatRequest) (*dto.SendChatResponse, error)
	GetAllSessions(ctx context.Context, identity *cognito.Identity) ([]*dto.SessionSummaryResponse, error)
	GetChatHistory(ctx context.Context, identity *cognito.Identity, sessionId uuid.UUID) (*dto.GetHistoryResponse, error)
	DeleteSession(ctx context.Context, identity *cognito.Identity, sessionId uuid.UUID) (*dto.DeleteSessionResponse, error)
}

type ChatbotConfig struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
	Timeout     time.Duration
}

type chatbotService struct {
	uowFactory  unitofwork.RepositoryFactory
	llmProvider llm.LLMProvider
	enricher    llm.Enricher
	cfg         ChatbotConfig
	log         logger.ILogger
}

func NewChatbotService(
	uowFactory unitofwork.RepositoryFactory,
	llmProvider llm.LLMProvider,
	enricher llm.Enricher,
	cfg ChatbotConfig,
	log logger.ILogger,
) IChatbotService {
	return &chatbotService{
		uowFactory:  uowFactory,
		llmProvider: llmProvider,
		enricher:    enricher,
		cfg:         cfg,
		log:         log,
	}
}

// ensureUser lazily creates the user row for a verified identity. The
// insert is conflict-as-no-op, so concurrent first requests for the same
// subject cannot create duplicates.
func (cs *chatbotService) ensureUser(ctx context.Context, uow unitofwork.UnitOfWork, identity *cognito.Identity) error {
	name := identity.Email
	if name == "" {
		name = "User"
	}
	return uow.UserRepository().CreateIfAbsent(ctx, &entity.User{
		Id:        identity.Subject,
		Name:      name,
		CreatedAt: time.Now(),
	})
}

// StartSession returns the caller's existing untitled session if one
// exists; otherwise it creates a fresh session together with its system
// message in one transaction. Repeated calls without an intervening chat
// turn therefore yield the same session id.
func (cs *chatbotService) StartSession(ctx context.Context, identity *cognito.Identity) (*dto.StartSessionResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	if err := uow.Begin(ctx); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	defer uow.Rollback()

	if err := cs.ensureUser(ctx, uow, identity); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	existing, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.OwnedBy{UserID: identity.Subject},
		specification.ByTitle{Title: constant.UntitledSessionTitle},
	)
	if err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	if existing != nil {
		if err := uow.Commit(); err != nil {
			return nil, apperror.StoreUnavailable(err)
		}
		return &dto.StartSessionResponse{SessionId: existing.Id}, nil
	}

	now := time.Now()
	chatSession := entity.ChatSession{
		Id:        uuid.New(),
		UserId:    identity.Subject,
		Title:     constant.UntitledSessionTitle,
		CreatedAt: now,
	}
	systemMessage := entity.ChatMessage{
		ChatSessionId: chatSession.Id,
		Role:          constant.ChatMessageRoleSystem,
		Content:       constant.SystemPromptV1,
		CreatedAt:     now,
	}

	if err := uow.ChatSessionRepository().Create(ctx, &chatSession); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	if err := uow.ChatMessageRepository().Create(ctx, &systemMessage); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	if err := uow.Commit(); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	return &dto.StartSessionResponse{SessionId: chatSession.Id}, nil
}

// SendChat runs one chat turn: persist the user message (renaming an
// untitled session), hand the accumulated history to the model and
// persist its reply. A missing session is a 404; silently creating one
// here would mask client bugs.
func (cs *chatbotService) SendChat(ctx context.Context, identity *cognito.Identity, request *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	chatSession, err := cs.verifyChatSession(ctx, uow, identity, request.SessionId)
	if err != nil {
		return nil, err
	}

	// The user message commits before the model call so a slow or failed
	// completion never loses what the user said.
	if err := uow.Begin(ctx); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	defer uow.Rollback()

	if chatSession.Title == constant.UntitledSessionTitle {
		title := deriveTitle(request.UserInput)
		if err := uow.ChatSessionRepository().UpdateTitle(ctx, chatSession.Id, title); err != nil {
			return nil, apperror.StoreUnavailable(err)
		}
	}

	userMessage := entity.ChatMessage{
		ChatSessionId: chatSession.Id,
		Role:          constant.ChatMessageRoleUser,
		Content:       request.UserInput,
		CreatedAt:     time.Now(),
	}
	if err := uow.ChatMessageRepository().Create(ctx, &userMessage); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	if err := uow.Commit(); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	history, err := cs.loadHistory(ctx, uow, chatSession.Id)
	if err != nil {
		return nil, err
	}

	reply, err := cs.complete(ctx, history)
	if err != nil {
		return nil, err
	}

	// The completion already happened; losing the assistant row is an
	// accepted durability gap, reported but not surfaced to the caller.
	assistantMessage := entity.ChatMessage{
		ChatSessionId: chatSession.Id,
		Role:          constant.ChatMessageRoleAssistant,
		Content:       reply,
		CreatedAt:     time.Now(),
	}
	if err := uow.ChatMessageRepository().Create(ctx, &assistantMessage); err != nil {
		cs.log.Error("chatbot", "assistant message not persisted after successful completion", map[string]interface{}{
			"session_id": chatSession.Id.String(),
			"error":      err.Error(),
		})
	}

	return &dto.SendChatResponse{
		Response:  reply,
		SessionId: chatSession.Id,
	}, nil
}

func (cs *chatbotService) GetAllSessions(ctx context.Context, identity *cognito.Identity) ([]*dto.SessionSummaryResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	chatSessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.OwnedBy{UserID: identity.Subject},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	response := make([]*dto.SessionSummaryResponse, 0, len(chatSessions))
	for _, s := range chatSessions {
		response = append(response, &dto.SessionSummaryResponse{
			Id:    s.Id,
			Title: s.Title,
		})
	}

	return response, nil
}

func (cs *chatbotService) GetChatHistory(ctx context.Context, identity *cognito.Identity, sessionId uuid.UUID) (*dto.GetHistoryResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	if _, err := cs.verifyChatSession(ctx, uow, identity, sessionId); err != nil {
		return nil, err
	}

	messages, err := cs.loadHistory(ctx, uow, sessionId)
	if err != nil {
		return nil, err
	}

	history := make([]dto.HistoryMessage, 0, len(messages))
	for _, msg := range messages {
		history = append(history, dto.HistoryMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return &dto.GetHistoryResponse{History: history}, nil
}

func (cs *chatbotService) DeleteSession(ctx context.Context, identity *cognito.Identity, sessionId uuid.UUID) (*dto.DeleteSessionResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	if _, err := cs.verifyChatSession(ctx, uow, identity, sessionId); err != nil {
		return nil, err
	}

	// Messages and the session row go in one transaction; no intermediate
	// state where one exists without the other.
	if err := uow.Begin(ctx); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().DeleteByChatSessionId(ctx, sessionId); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	if err := uow.ChatSessionRepository().Delete(ctx, sessionId); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	if err := uow.Commit(); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	return &dto.DeleteSessionResponse{Message: "Session deleted"}, nil
}

// verifyChatSession distinguishes "no such session" from "not yours";
// the latter must never leak session contents.
func (cs *chatbotService) verifyChatSession(ctx context.Context, uow unitofwork.UnitOfWork, identity *cognito.Identity, sessionId uuid.UUID) (*entity.ChatSession, error) {
	chatSession, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
	)
	if err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	if chatSession == nil {
		return nil, apperror.SessionNotFound()
	}
	if chatSession.UserId != identity.Subject {
		return nil, apperror.Forbidden()
	}
	return chatSession, nil
}

func (cs *chatbotService) loadHistory(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID) ([]*entity.ChatMessage, error) {
	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "id", Desc: false},
	)
	if err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	return messages, nil
}

// complete hands the history to the LLM collaborator under a timeout.
// Enrichment applies to the outbound copy only; stored rows are never
// rewritten.
func (cs *chatbotService) complete(ctx context.Context, messages []*entity.ChatMessage) (string, error) {
	outbound := make([]llm.Message, len(messages))
	for i, msg := range messages {
		outbound[i] = llm.Message{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	if cs.enricher != nil {
		outbound = cs.enricher(outbound)
	}

	llmCtx := ctx
	if cs.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, cs.cfg.Timeout)
		defer cancel()
	}

	reply, err := cs.llmProvider.Chat(llmCtx, outbound,
		llm.WithTemperature(cs.cfg.Temperature),
		llm.WithTopP(cs.cfg.TopP),
		llm.WithMaxTokens(cs.cfg.MaxTokens),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperror.UpstreamTimeout("completion service timed out", err)
		}
		return "", apperror.UpstreamUnavailable("completion service unavailable", err)
	}

	return reply, nil
}

// deriveTitle turns the first user message into the session title,
// trimmed and capped at SessionTitleMaxLen characters.
func deriveTitle(userInput string) string {
	title := strings.TrimSpace(userInput)
	runes := []rune(title)
	if len(runes) > constant.SessionTitleMaxLen {
		return string(runes[:constant.SessionTitleMaxLen])
	}
	return title
}
