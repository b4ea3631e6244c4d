package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bnema/askdb/internal/domain"
	"github.com/bnema/askdb/internal/ports"
	"github.com/rs/zerolog"
)

type turnState string

const (
	stateAwaitUser    turnState = "await_user"
	stateModelTurn    turnState = "model_turn"
	stateToolDispatch turnState = "tool_dispatch"
	stateDone         turnState = "done"
)

// Session is one chat: a conversation plus the state machine that drives a
// user turn through model rounds and tool dispatch.
type Session struct {
	orchestrator *Orchestrator
	logger       zerolog.Logger

	mu           sync.Mutex
	conversation *domain.Conversation
	// straggler delivers the outcome of a tool that outlived its timeout.
	// Guarded by mu.
	straggler <-chan invokeOutcome
}

func (s *Session) ID() string {
	return s.conversation.SessionID
}

func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation.Messages()
}

// Send runs one user turn and returns the final answer. Only transport and
// validation failures at the model boundary abort the turn; tool failures are
// fed back to the model as error results.
func (s *Session) Send(ctx context.Context, text string) (Answer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Answer{}, domain.ErrEmptyInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o := s.orchestrator
	turn := &turnRun{session: s, state: stateAwaitUser}

	if !o.skipHealthCheck {
		if err := o.backend.Ping(ctx); err != nil {
			o.metrics.RecordTurn(string(domain.KindTransport), 0)
			s.logger.Warn().Err(err).Msg("backend health probe failed")
			return Answer{}, &domain.TurnError{
				Kind:    domain.KindTransport,
				Message: "backend is not available",
				Err:     err,
			}
		}
	}

	s.conversation.Append(domain.Message{Role: domain.RoleUser, Content: text}, o.clock.Now())
	turn.state = stateModelTurn

	answer, err := turn.run(ctx)
	s.persist(ctx)

	if err != nil {
		outcome := string(domain.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
		o.metrics.RecordTurn(outcome, answer.Rounds)
		return answer, err
	}
	o.metrics.RecordTurn("ok", answer.Rounds)
	return answer, nil
}

type turnRun struct {
	session *Session
	state   turnState
	rounds  int
	calls   int
	pending []domain.ToolCall
}

func (t *turnRun) run(ctx context.Context) (Answer, error) {
	s := t.session
	o := s.orchestrator

	for {
		switch t.state {
		case stateModelTurn:
			if t.rounds >= o.maxRounds {
				return t.stopAtRoundCap(), nil
			}
			t.rounds++

			reply, err := s.modelTurn(ctx)
			if err != nil {
				t.state = stateDone
				return Answer{Rounds: t.rounds, ToolCalls: t.calls}, err
			}

			if len(reply.ToolCalls) == 0 {
				s.conversation.Append(domain.Message{Role: domain.RoleAssistant, Content: reply.Content}, o.clock.Now())
				t.state = stateDone
				return Answer{Content: reply.Content, Rounds: t.rounds, ToolCalls: t.calls}, nil
			}

			s.conversation.Append(domain.Message{
				Role:      domain.RoleAssistant,
				Content:   reply.Content,
				ToolCalls: reply.ToolCalls,
			}, o.clock.Now())
			t.pending = reply.ToolCalls
			t.state = stateToolDispatch

		case stateToolDispatch:
			for _, call := range t.pending {
				result := s.dispatch(ctx, call)
				s.conversation.Append(result.Message(), o.clock.Now())
				t.calls++
			}
			t.pending = nil
			t.state = stateModelTurn

		default:
			return Answer{}, fmt.Errorf("turn in unexpected state %q", t.state)
		}
	}
}

// stopAtRoundCap ends a turn whose backend kept asking for tools.
func (t *turnRun) stopAtRoundCap() Answer {
	s := t.session
	o := s.orchestrator
	t.state = stateDone

	s.logger.Warn().
		Int("rounds", t.rounds).
		Int("tool_calls", t.calls).
		Msg("turn stopped at the tool round limit")

	content := ""
	if last, ok := s.conversation.LastAssistant(); ok {
		content = strings.TrimSpace(last.Content)
	}
	if content == "" {
		content = fmt.Sprintf("Stopped after %d tool rounds without a final answer.", o.maxRounds)
		s.conversation.Append(domain.Message{Role: domain.RoleAssistant, Content: content}, o.clock.Now())
	}
	return Answer{Content: content, Rounds: t.rounds, ToolCalls: t.calls}
}

// modelTurn sends the fresh system prompt plus the whole conversation. A
// transport failure is retried once; validation failures are not.
func (s *Session) modelTurn(ctx context.Context) (ports.ChatReply, error) {
	o := s.orchestrator
	request := ports.ChatRequest{
		System:   o.prompt.SystemPrompt(o.clock.Now(), o.registry),
		Messages: s.conversation.Messages(),
		Tools:    o.registry.Definitions(),
	}

	var lastErr error
	for attempt := 1; attempt <= maxModelAttempts; attempt++ {
		reply, err := s.chatOnce(ctx, request)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if domain.KindOf(err) != domain.KindTransport || ctx.Err() != nil || attempt == maxModelAttempts {
			break
		}
		s.logger.Warn().Err(err).Int("attempt", attempt).Msg("model turn failed, retrying once")
	}

	s.logger.Error().
		Err(lastErr).
		Str("kind", string(domain.KindOf(lastErr))).
		Msg("model turn failed")
	return ports.ChatReply{}, lastErr
}

func (s *Session) chatOnce(ctx context.Context, request ports.ChatRequest) (ports.ChatReply, error) {
	o := s.orchestrator
	callCtx, cancel := context.WithTimeout(ctx, o.backendTimeout)
	defer cancel()

	reply, err := o.backend.Chat(callCtx, request)
	if err == nil {
		return reply, nil
	}

	var turnErr *domain.TurnError
	if errors.As(err, &turnErr) {
		return ports.ChatReply{}, err
	}
	if kind := domain.KindOf(err); kind == domain.KindValidation {
		return ports.ChatReply{}, &domain.TurnError{Kind: kind, Message: "backend response failed validation", Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ports.ChatReply{}, &domain.TurnError{
			Kind:    domain.KindTransport,
			Message: fmt.Sprintf("model turn timed out after %s", o.backendTimeout),
			Err:     err,
		}
	}
	return ports.ChatReply{}, &domain.TurnError{Kind: domain.KindTransport, Message: "backend request failed", Err: err}
}

// dispatch runs one tool call and always returns a result; every failure is
// scoped to the call.
func (s *Session) dispatch(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	o := s.orchestrator
	started := time.Now()
	log := s.logger.With().Str("tool", call.Name).Str("call_id", call.ID).Logger()

	fail := func(kind domain.ErrorKind, err error) domain.ToolResult {
		o.metrics.RecordToolCall(call.Name, string(kind), time.Since(started))
		log.Warn().Err(err).Str("kind", string(kind)).Msg("tool call failed")
		return domain.ToolFailure(call, kind, err)
	}

	args, err := Normalize(call)
	if err != nil {
		return fail(domain.KindNormalization, err)
	}

	tool, args, err := o.registry.Validate(call.Name, args)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownTool) {
			return fail(domain.KindToolExecution, err)
		}
		return fail(domain.KindNormalization, err)
	}

	// Tools of one session never overlap, even past a timeout.
	if err := s.awaitStraggler(ctx, tool.Name, o.toolTimeout); err != nil {
		return fail(domain.KindToolExecution, err)
	}

	if tool.Write {
		backup, err := o.interceptor.BeforeWrite(ctx, tool.Name)
		if err != nil {
			return fail(domain.KindBackup, err)
		}
		log.Debug().Str("backup_id", backup.ID).Msg("write tool cleared by backup")
	}

	value, err := s.invoke(ctx, tool, args)
	if err != nil {
		return fail(domain.KindToolExecution, err)
	}

	o.metrics.RecordToolCall(call.Name, "ok", time.Since(started))
	return domain.ToolResult{ToolName: call.Name, CallID: call.ID, Result: value}
}

type invokeOutcome struct {
	value any
	err   error
}

// invoke bounds the tool by the tool timeout. A tool that ignores its context
// keeps running after the timeout fires and is recorded as the session's
// straggler.
func (s *Session) invoke(ctx context.Context, tool Tool, args map[string]any) (any, error) {
	timeout := s.orchestrator.toolTimeout
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan invokeOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invokeOutcome{err: fmt.Errorf("tool %s panicked: %v", tool.Name, r)}
			}
		}()
		value, err := tool.Invoke(callCtx, args)
		done <- invokeOutcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-callCtx.Done():
		s.straggler = done
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("tool %s timed out after %s", tool.Name, timeout)
		}
		return nil, callCtx.Err()
	}
}

// awaitStraggler waits up to timeout for a tool abandoned by an earlier call.
func (s *Session) awaitStraggler(ctx context.Context, next string, timeout time.Duration) error {
	if s.straggler == nil {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.straggler:
		s.straggler = nil
		return nil
	case <-timer.C:
		return fmt.Errorf("tool %s not started: an earlier timed-out tool is still running", next)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) persist(ctx context.Context) {
	o := s.orchestrator
	if o.repo == nil {
		return
	}
	if err := o.repo.Save(ctx, s.conversation); err != nil {
		s.logger.Warn().Err(err).Msg("could not save session transcript")
	}
}
