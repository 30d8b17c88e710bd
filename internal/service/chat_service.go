package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ai-regassist-be/internal/dto"
	"ai-regassist-be/internal/pkg/logger"
	"ai-regassist-be/pkg/events"
	"ai-regassist-be/pkg/rag/decision"
	"ai-regassist-be/pkg/rag/fusion"
	"ai-regassist-be/pkg/rag/locator"
	"ai-regassist-be/pkg/rag/prompt"
	"ai-regassist-be/pkg/rag/response"
	"ai-regassist-be/pkg/ratelimit"
	"ai-regassist-be/pkg/session"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// TurnState tracks a turn through the processing pipeline
type TurnState string

const (
	StateReceived  TurnState = "RECEIVED"
	StateDeciding  TurnState = "DECIDING"
	StateExecuting TurnState = "EXECUTING"
	StateAnswered  TurnState = "ANSWERED"
	StateErrored   TurnState = "ERRORED"
)

type IChatService interface {
	CreateSession(ctx context.Context) (*dto.CreateSessionResponse, error)
	SendTurn(ctx context.Context, req *dto.SendTurnRequest) (*dto.SendTurnResponse, error)
	GetHistory(ctx context.Context, sessionID string) ([]dto.SessionHistoryEntry, error)
	DeleteSession(ctx context.Context, sessionID string) error
	GetStats(ctx context.Context) (*dto.SessionStatsResponse, error)
}

type chatService struct {
	sessions        *session.Store
	limiter         *ratelimit.Limiter
	router          *decision.Router
	engine          *fusion.Engine
	locator         *locator.Locator
	generator       *response.Generator
	publisher       IPublisherService
	validate        *validator.Validate
	sysLogger       logger.ILogger
	providerTimeout time.Duration
}

func NewChatService(
	sessions *session.Store,
	limiter *ratelimit.Limiter,
	router *decision.Router,
	engine *fusion.Engine,
	loc *locator.Locator,
	generator *response.Generator,
	publisher IPublisherService,
	sysLogger logger.ILogger,
	providerTimeout time.Duration,
) IChatService {
	return &chatService{
		sessions:        sessions,
		limiter:         limiter,
		router:          router,
		engine:          engine,
		locator:         loc,
		generator:       generator,
		publisher:       publisher,
		validate:        validator.New(),
		sysLogger:       sysLogger,
		providerTimeout: providerTimeout,
	}
}

func (s *chatService) CreateSession(ctx context.Context) (*dto.CreateSessionResponse, error) {
	id := s.sessions.Create()
	return &dto.CreateSessionResponse{SessionId: id}, nil
}

// SendTurn runs one full conversation turn: admission, routing,
// execution, memory commit. The exchange is committed only after the
// answer exists, so failed turns leave the window untouched.
func (s *chatService) SendTurn(ctx context.Context, req *dto.SendTurnRequest) (*dto.SendTurnResponse, error) {
	started := time.Now()
	state := StateReceived

	ctx, span := otel.Tracer("chat").Start(ctx, "chat.turn")
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	// A turn without a session starts one
	if req.SessionId == "" {
		req.SessionId = s.sessions.Create()
	}
	span.SetAttributes(attribute.String("session.id", req.SessionId))

	// Admission check. Denied turns consume nothing: no memory write,
	// no window entry.
	if err := s.limiter.Admit(req.SessionId, time.Now()); err != nil {
		var limitErr *ratelimit.LimitExceededError
		if errors.As(err, &limitErr) {
			s.sysLogger.Warn("chat", "Turn rejected by rate limiter", map[string]interface{}{
				"session_id":  req.SessionId,
				"retry_after": limitErr.RetryAfter.Seconds(),
			})
			s.emit(events.NewRateLimited(req.SessionId, limitErr.RetryAfter.Seconds()))
			return nil, &dto.RateLimitedError{RetryAfterSeconds: limitErr.RetryAfter.Seconds()}
		}
		return nil, err
	}

	turns, err := s.sessions.History(req.SessionId)
	if err != nil {
		return nil, err
	}
	chatContext := prompt.FormatChatContext(turns)

	state = StateDeciding
	s.logState(req.SessionId, state)

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	routed, err := s.router.Decide(callCtx, req.Message, chatContext, s.locator.Summary())
	if err != nil {
		return nil, s.fail(req.SessionId, "routing", err)
	}

	state = StateExecuting
	s.logState(req.SessionId, state)
	span.SetAttributes(attribute.String("chat.decision", string(routed.Kind)))

	resp := &dto.SendTurnResponse{
		SessionId: req.SessionId,
		Decision:  string(routed.Kind),
	}

	switch routed.Kind {
	case decision.KindRetrieveDocument:
		err = s.executeRetrieve(callCtx, routed, resp)
	case decision.KindSearchKnowledgeBase:
		if req.Mode != "" {
			routed.Search.Mode = req.Mode
		}
		err = s.executeSearch(callCtx, req.Message, routed, chatContext, resp)
	case decision.KindRefuse:
		resp.Answer = routed.Answer
	case decision.KindDirectAnswer:
		resp.Answer = routed.Answer
		if resp.Answer == "" {
			resp.Answer, err = s.generator.Direct(callCtx, req.Message, turns)
		}
	}
	if err != nil {
		return nil, s.fail(req.SessionId, "execution", err)
	}

	// Memory commit happens last: the user turn and the answer land
	// together or not at all.
	if err := s.sessions.AppendExchange(req.SessionId, req.Message, resp.Answer); err != nil {
		return nil, s.fail(req.SessionId, "memory", err)
	}

	state = StateAnswered
	s.logState(req.SessionId, state)

	if info, ok := s.sessions.Stats().Sessions[req.SessionId]; ok {
		resp.MessageCount = info.MessageCount
	}
	limitStats := s.limiter.Stats(req.SessionId, time.Now())
	resp.RateLimit = &dto.RateLimitStatsDTO{
		RequestsInWindow:  limitStats.InWindow,
		RequestsRemaining: limitStats.Remaining,
		WindowResetSec:    limitStats.ResetIn.Seconds(),
	}

	resp.DurationMs = time.Since(started).Milliseconds()
	s.emit(events.NewTurnAnswered(req.SessionId, resp.Decision, resp.DurationMs))
	return resp, nil
}

func (s *chatService) executeRetrieve(ctx context.Context, routed *decision.Decision, resp *dto.SendTurnResponse) error {
	match, err := s.locator.Find(ctx, routed.Retrieve.DocumentQuery)
	if err != nil {
		var notFound *locator.NotFoundError
		if errors.As(err, &notFound) {
			resp.Answer = response.DocumentNotFoundMessage(notFound.Query, notFound.Known)
			return nil
		}
		return err
	}

	resp.Document = &dto.DocumentMatchDTO{
		Name:       match.Name,
		Path:       match.Path,
		SizeMB:     match.SizeMB,
		MatchScore: match.Score,
		MatchType:  match.Type,
	}
	resp.Answer = response.DocumentFoundMessage(match.Name, match.SizeMB)
	return nil
}

func (s *chatService) executeSearch(ctx context.Context, message string, routed *decision.Decision, chatContext string, resp *dto.SendTurnResponse) error {
	mode := routed.Search.Mode
	if mode == "" {
		mode = fusion.ModeGenerated
	}

	result, err := s.engine.Search(ctx, routed.Search.Query, mode, routed.Search.NumQueries, chatContext)
	if err != nil {
		return err
	}
	resp.QueriesUsed = result.QueriesUsed

	answer, err := s.generator.Synthesize(ctx, message, result.Documents, chatContext)
	if err != nil {
		return err
	}
	resp.Answer = answer
	return nil
}

func (s *chatService) GetHistory(ctx context.Context, sessionID string) ([]dto.SessionHistoryEntry, error) {
	turns, err := s.sessions.History(sessionID)
	if err != nil {
		return nil, err
	}

	entries := make([]dto.SessionHistoryEntry, 0, len(turns))
	for _, turn := range turns {
		entries = append(entries, dto.SessionHistoryEntry{
			Role:      turn.Role,
			Content:   turn.Content,
			Timestamp: turn.Timestamp,
		})
	}
	return entries, nil
}

func (s *chatService) DeleteSession(ctx context.Context, sessionID string) error {
	if !s.sessions.Delete(sessionID) {
		return session.ErrNotFound
	}
	return nil
}

func (s *chatService) GetStats(ctx context.Context) (*dto.SessionStatsResponse, error) {
	stats := s.sessions.Stats()

	resp := &dto.SessionStatsResponse{
		ActiveSessions: stats.ActiveSessions,
		Sessions:       make(map[string]dto.SessionStatsDetail, len(stats.Sessions)),
	}
	for id, info := range stats.Sessions {
		resp.Sessions[id] = dto.SessionStatsDetail{
			CreatedAt:      info.CreatedAt,
			LastAccessedAt: info.LastAccessedAt,
			MessageCount:   info.MessageCount,
		}
	}
	return resp, nil
}

// fail logs the errored state, emits the analytics event and passes
// the error through unchanged.
func (s *chatService) fail(sessionID, phase string, err error) error {
	s.logState(sessionID, StateErrored)
	s.sysLogger.Error("chat", "Turn failed", map[string]interface{}{
		"session_id": sessionID,
		"phase":      phase,
		"error":      err.Error(),
	})
	s.emit(events.NewTurnErrored(sessionID, phase))
	return err
}

func (s *chatService) logState(sessionID string, state TurnState) {
	s.sysLogger.Debug("chat", "Turn state changed", map[string]interface{}{
		"session_id": sessionID,
		"state":      string(state),
	})
}

// emit ships an analytics event to the internal bus. Analytics never
// blocks or fails a turn.
func (s *chatService) emit(event events.Event) {
	if s.publisher == nil {
		return
	}

	payload, err := json.Marshal(dto.AnalyticsEventMessage{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		s.sysLogger.Warn("chat", "Failed to marshal analytics event", map[string]interface{}{"error": err.Error()})
		return
	}

	if err := s.publisher.Publish(context.Background(), payload); err != nil {
		s.sysLogger.Warn("chat", "Failed to publish analytics event", map[string]interface{}{"error": err.Error()})
	}
}
