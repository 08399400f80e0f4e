package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"support-chat-be/internal/metrics"
	"support-chat-be/internal/pkg/apperror"
	"support-chat-be/internal/pkg/logger"
	"support-chat-be/internal/pkg/validation"
	"support-chat-be/internal/repository/unitofwork"
	"support-chat-be/pkg/llm"

	"github.com/google/uuid"
)

const draftSystemPrompt = `You draft messages for a customer support agent.
Write only the message text, ready to send. Be concise, friendly and specific.
Do not invent order numbers, prices or policies that are not in the context.`

type DraftRequest struct {
	Instruction string `validate:"required,notblank"`
	ContextText string `validate:"max=8000"`
	SessionId   *uint64
}

type DraftResult struct {
	RequestId uuid.UUID
	Text      string
	Elapsed   time.Duration
}

// DraftCallback is invoked once per Draft call, on success and failure alike.
type DraftCallback func(requestId uuid.UUID, elapsed time.Duration, ok bool)

// IDraftService generates suggested text. It only reads chat history; it never
// writes to the stores or the bus, so a generation failure cannot affect delivery.
type IDraftService interface {
	Draft(ctx context.Context, req DraftRequest) (*DraftResult, error)
}

type draftService struct {
	provider     llm.LLMProvider
	uowFactory   unitofwork.RepositoryFactory
	timeout      time.Duration
	historyLimit int
	onComplete   DraftCallback
	logger       logger.ILogger
}

func NewDraftService(
	provider llm.LLMProvider,
	uowFactory unitofwork.RepositoryFactory,
	timeout time.Duration,
	historyLimit int,
	onComplete DraftCallback,
	logger logger.ILogger,
) IDraftService {
	return &draftService{
		provider:     provider,
		uowFactory:   uowFactory,
		timeout:      timeout,
		historyLimit: historyLimit,
		onComplete:   onComplete,
		logger:       logger,
	}
}

func (s *draftService) Draft(ctx context.Context, req DraftRequest) (*DraftResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	requestId := uuid.New()
	start := time.Now()

	text, err := s.generate(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("provider returned empty text")
	}
	elapsed := time.Since(start)
	ok := err == nil

	result := "ok"
	if !ok {
		result = "failed"
	}
	metrics.DraftDuration.WithLabelValues(result).Observe(elapsed.Seconds())
	if s.onComplete != nil {
		s.onComplete(requestId, elapsed, ok)
	}

	if !ok {
		s.logger.Warn("DRAFT", "Draft generation failed", map[string]interface{}{
			"request_id": requestId,
			"elapsed_ms": elapsed.Milliseconds(),
			"error":      err.Error(),
		})
		return nil, apperror.GenerationFailed(err)
	}

	s.logger.Info("DRAFT", "Draft generated", map[string]interface{}{
		"request_id": requestId,
		"elapsed_ms": elapsed.Milliseconds(),
	})
	return &DraftResult{RequestId: requestId, Text: strings.TrimSpace(text), Elapsed: elapsed}, nil
}

func (s *draftService) generate(ctx context.Context, req DraftRequest) (text string, err error) {
	if s.provider == nil {
		return "", errors.New("no LLM provider configured")
	}

	// A misbehaving provider must not take the request goroutine down with it.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	return s.provider.Chat(ctx, s.buildPrompt(ctx, req), llm.WithTemperature(0.4))
}

func (s *draftService) buildPrompt(ctx context.Context, req DraftRequest) []llm.Message {
	var b strings.Builder
	if req.ContextText != "" {
		b.WriteString("Context:\n")
		b.WriteString(req.ContextText)
		b.WriteString("\n\n")
	}
	if transcript := s.transcript(ctx, req.SessionId); transcript != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(transcript)
		b.WriteString("\n")
	}
	b.WriteString("Instruction: ")
	b.WriteString(req.Instruction)

	return []llm.Message{
		{Role: "system", Content: draftSystemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// transcript renders the last historyLimit messages of the session, or "" when
// there is no session or it cannot be read.
func (s *draftService) transcript(ctx context.Context, sessionId *uint64) string {
	if sessionId == nil || s.uowFactory == nil || s.historyLimit <= 0 {
		return ""
	}

	messages, err := s.uowFactory.NewUnitOfWork(ctx).ChatMessageRepository().ListBySession(ctx, *sessionId, nil)
	if err != nil {
		s.logger.Warn("DRAFT", "Drafting without history", map[string]interface{}{
			"session_id": *sessionId,
			"error":      err.Error(),
		})
		return ""
	}
	if len(messages) > s.historyLimit {
		messages = messages[len(messages)-s.historyLimit:]
	}

	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.SenderType, m.Message)
	}
	return b.String()
}
