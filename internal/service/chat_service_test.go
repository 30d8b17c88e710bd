package service

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"ai-regassist-be/internal/dto"
	"ai-regassist-be/pkg/events"
	"ai-regassist-be/pkg/llm"
	"ai-regassist-be/pkg/rag/decision"
	"ai-regassist-be/pkg/rag/fusion"
	"ai-regassist-be/pkg/rag/locator"
	"ai-regassist-be/pkg/rag/prompt"
	"ai-regassist-be/pkg/rag/response"
	"ai-regassist-be/pkg/ratelimit"
	"ai-regassist-be/pkg/session"
	"ai-regassist-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type stubLLM struct {
	text string
}

func (s *stubLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return s.text, nil
}

func (s *stubLLM) Generate(ctx context.Context, p string, options ...llm.Option) (string, error) {
	return s.text, nil
}

func (s *stubLLM) ChatWithTools(ctx context.Context, history []llm.Message, tools []llm.Tool, options ...llm.Option) (*llm.ToolResult, error) {
	return &llm.ToolResult{Text: s.text}, nil
}

type stubEmbedder struct{}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type stubIndex struct{}

func (s *stubIndex) Search(ctx context.Context, query string) ([]store.Document, error) {
	return []store.Document{{Content: "regulation text"}}, nil
}

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type capturingPublisher struct {
	messages []dto.AnalyticsEventMessage
}

func (p *capturingPublisher) Publish(ctx context.Context, payload []byte) error {
	var msg dto.AnalyticsEventMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func newTestChatService(t *testing.T, llmText string, rateLimit int) (IChatService, *session.Store, *capturingPublisher) {
	t.Helper()

	stdLogger := log.New(io.Discard, "", 0)
	provider := &stubLLM{text: llmText}

	sessions := session.NewStore(30*time.Minute, 10, stdLogger)
	limiter := ratelimit.NewLimiter(rateLimit, time.Minute, stdLogger)
	engine := fusion.NewEngine(provider, &stubIndex{}, 3, 3, 5, stdLogger)
	loc := locator.NewLocator(&stubEmbedder{}, map[string]string{}, 0.3, stdLogger)
	router := decision.NewRouter(provider, prompt.RefusalMessages(), stdLogger)
	generator := response.NewGenerator(provider, stdLogger)
	publisher := &capturingPublisher{}

	svc := NewChatService(sessions, limiter, router, engine, loc, generator, publisher, nopLogger{}, time.Minute)
	return svc, sessions, publisher
}

func TestSendTurnRecordsExchanges(t *testing.T) {
	svc, _, publisher := newTestChatService(t, "the answer", 100)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx)
	assert.NoError(t, err)

	for i := 0; i < 3; i++ {
		resp, err := svc.SendTurn(ctx, &dto.SendTurnRequest{
			SessionId: created.SessionId,
			Message:   "как проходит аттестация?",
		})
		assert.NoError(t, err)
		assert.Equal(t, "the answer", resp.Answer)
		assert.Equal(t, string(decision.KindDirectAnswer), resp.Decision)
	}

	history, err := svc.GetHistory(ctx, created.SessionId)
	assert.NoError(t, err)
	assert.Len(t, history, 6, "3 exchanges = 6 turns")
	assert.Equal(t, store.RoleUser, history[0].Role)
	assert.Equal(t, store.RoleAssistant, history[1].Role)

	stats, err := svc.GetStats(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 3, stats.Sessions[created.SessionId].MessageCount)

	assert.Len(t, publisher.messages, 3)
	assert.Equal(t, events.TypeTurnAnswered, publisher.messages[0].Type)
}

func TestSendTurnWindowCapsAtTenExchanges(t *testing.T) {
	svc, _, _ := newTestChatService(t, "ok", 100)
	ctx := context.Background()

	created, _ := svc.CreateSession(ctx)
	for i := 0; i < 11; i++ {
		_, err := svc.SendTurn(ctx, &dto.SendTurnRequest{
			SessionId: created.SessionId,
			Message:   "вопрос",
		})
		assert.NoError(t, err)
	}

	history, err := svc.GetHistory(ctx, created.SessionId)
	assert.NoError(t, err)
	assert.Len(t, history, 20, "window keeps at most 10 exchanges")

	stats, _ := svc.GetStats(ctx)
	assert.Equal(t, 11, stats.Sessions[created.SessionId].MessageCount)
}

func TestSendTurnRateLimited(t *testing.T) {
	svc, _, publisher := newTestChatService(t, "ok", 5)
	ctx := context.Background()

	created, _ := svc.CreateSession(ctx)
	for i := 0; i < 5; i++ {
		_, err := svc.SendTurn(ctx, &dto.SendTurnRequest{
			SessionId: created.SessionId,
			Message:   "вопрос",
		})
		assert.NoError(t, err)
	}

	_, err := svc.SendTurn(ctx, &dto.SendTurnRequest{
		SessionId: created.SessionId,
		Message:   "шестой вопрос",
	})
	var limited *dto.RateLimitedError
	assert.ErrorAs(t, err, &limited)
	assert.Greater(t, limited.RetryAfterSeconds, 0.0)

	// The denied turn must not have touched conversation memory
	history, _ := svc.GetHistory(ctx, created.SessionId)
	assert.Len(t, history, 10)

	last := publisher.messages[len(publisher.messages)-1]
	assert.Equal(t, events.TypeRateLimited, last.Type)
}

func TestSendTurnRefusal(t *testing.T) {
	svc, _, _ := newTestChatService(t, prompt.RefusalRU, 100)
	ctx := context.Background()

	created, _ := svc.CreateSession(ctx)
	resp, err := svc.SendTurn(ctx, &dto.SendTurnRequest{
		SessionId: created.SessionId,
		Message:   "какая погода в Астане?",
	})
	assert.NoError(t, err)
	assert.Equal(t, string(decision.KindRefuse), resp.Decision)
	assert.Equal(t, prompt.RefusalRU, resp.Answer)

	// Refused turns still land in memory so follow-ups see them
	history, _ := svc.GetHistory(ctx, created.SessionId)
	assert.Len(t, history, 2)
}

func TestSendTurnValidation(t *testing.T) {
	svc, _, _ := newTestChatService(t, "ok", 100)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *dto.SendTurnRequest
	}{
		{"malformed session id", &dto.SendTurnRequest{SessionId: "not-a-uuid", Message: "hi"}},
		{"empty message", &dto.SendTurnRequest{SessionId: "a2f1c8aa-9a1b-4c6e-8f3d-2b1a0c9d8e7f"}},
		{"bad mode", &dto.SendTurnRequest{SessionId: "a2f1c8aa-9a1b-4c6e-8f3d-2b1a0c9d8e7f", Message: "hi", Mode: "hybrid"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendTurn(ctx, tt.req)
			assert.Error(t, err)
		})
	}
}

func TestSendTurnOpensSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	svc, _, _ := newTestChatService(t, "the answer", 100)
	ctx := context.Background()

	created, _ := svc.CreateSession(ctx)
	_, err := svc.SendTurn(ctx, &dto.SendTurnRequest{
		SessionId: created.SessionId,
		Message:   "привет",
	})
	assert.NoError(t, err)

	spans := recorder.Ended()
	if !assert.Len(t, spans, 1) {
		return
	}
	assert.Equal(t, "chat.turn", spans[0].Name())

	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, created.SessionId, attrs["session.id"])
	assert.Equal(t, string(decision.KindDirectAnswer), attrs["chat.decision"])
}

func TestSendTurnEmptySessionStartsOne(t *testing.T) {
	svc, _, _ := newTestChatService(t, "ok", 100)
	ctx := context.Background()

	resp, err := svc.SendTurn(ctx, &dto.SendTurnRequest{Message: "привет"})
	assert.NoError(t, err)
	assert.NotEmpty(t, resp.SessionId)
	assert.Equal(t, 1, resp.MessageCount)

	history, err := svc.GetHistory(ctx, resp.SessionId)
	assert.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSendTurnUnknownSession(t *testing.T) {
	svc, _, _ := newTestChatService(t, "ok", 100)

	_, err := svc.SendTurn(context.Background(), &dto.SendTurnRequest{
		SessionId: "a2f1c8aa-9a1b-4c6e-8f3d-2b1a0c9d8e7f",
		Message:   "привет",
	})
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestDeleteSession(t *testing.T) {
	svc, _, _ := newTestChatService(t, "ok", 100)
	ctx := context.Background()

	created, _ := svc.CreateSession(ctx)
	assert.NoError(t, svc.DeleteSession(ctx, created.SessionId))
	assert.ErrorIs(t, svc.DeleteSession(ctx, created.SessionId), session.ErrNotFound)
}
