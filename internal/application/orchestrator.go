package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bnema/askdb/internal/domain"
	"github.com/bnema/askdb/internal/metrics"
	"github.com/bnema/askdb/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxRounds      = 8
	MinRounds             = 1
	MaxRounds             = 32
	DefaultToolTimeout    = 30 * time.Second
	DefaultBackendTimeout = 120 * time.Second
	maxModelAttempts      = 2
)

type Options struct {
	Backend     ports.Backend
	Registry    *Registry
	Interceptor *BackupInterceptor
	Prompt      PromptBuilder
	// Repository is optional. Without it sessions live only in memory.
	Repository     ports.ConversationRepository
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
	Clock          ports.Clock
	MaxRounds      int
	ToolTimeout    time.Duration
	BackendTimeout time.Duration
	// SkipHealthCheck disables the availability probe before each turn.
	SkipHealthCheck bool
}

type Answer struct {
	Content   string
	Rounds    int
	ToolCalls int
}

// Orchestrator owns the shared collaborators and hands out sessions. It is
// safe for concurrent use; each Session serializes its own turns. Open sessions
// stay in memory until CloseSession.
type Orchestrator struct {
	backend         ports.Backend
	registry        *Registry
	interceptor     *BackupInterceptor
	prompt          PromptBuilder
	repo            ports.ConversationRepository
	logger          zerolog.Logger
	metrics         *metrics.Metrics
	clock           ports.Clock
	maxRounds       int
	toolTimeout     time.Duration
	backendTimeout  time.Duration
	skipHealthCheck bool

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Backend == nil {
		return nil, errors.New("backend is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("tool registry is required")
	}

	prompt := opts.Prompt
	if prompt == nil {
		prompt = DefaultPrompt{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	toolTimeout := opts.ToolTimeout
	if toolTimeout <= 0 {
		toolTimeout = DefaultToolTimeout
	}
	backendTimeout := opts.BackendTimeout
	if backendTimeout <= 0 {
		backendTimeout = DefaultBackendTimeout
	}

	return &Orchestrator{
		backend:         opts.Backend,
		registry:        opts.Registry,
		interceptor:     opts.Interceptor,
		prompt:          prompt,
		repo:            opts.Repository,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		clock:           clock,
		maxRounds:       ClampRounds(opts.MaxRounds),
		toolTimeout:     toolTimeout,
		backendTimeout:  backendTimeout,
		skipHealthCheck: opts.SkipHealthCheck,
		sessions:        make(map[string]*Session),
	}, nil
}

func ClampRounds(rounds int) int {
	switch {
	case rounds == 0:
		return DefaultMaxRounds
	case rounds < MinRounds:
		return MinRounds
	case rounds > MaxRounds:
		return MaxRounds
	default:
		return rounds
	}
}

// Session opens the session with the given id, resuming its transcript when a
// repository is configured. An empty id starts a new session.
func (o *Orchestrator) Session(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if session, ok := o.sessions[id]; ok {
		return session, nil
	}

	conversation, err := o.loadConversation(ctx, id)
	if err != nil {
		return nil, err
	}

	session := &Session{
		orchestrator: o,
		conversation: conversation,
		logger:       o.logger.With().Str("session", id).Logger(),
	}
	o.sessions[id] = session
	return session, nil
}

// CloseSession drops the session from the orchestrator so its conversation
// can be collected. A later Session call with the same id resumes from the
// repository. Callers still holding the *Session may keep using it.
func (o *Orchestrator) CloseSession(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.sessions[id]; !ok {
		return false
	}
	delete(o.sessions, id)
	return true
}

func (o *Orchestrator) loadConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	if o.repo == nil {
		return domain.NewConversation(id, o.clock.Now()), nil
	}

	conversation, err := o.repo.GetBySessionID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.NewConversation(id, o.clock.Now()), nil
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return conversation, nil
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

func (o *Orchestrator) MaxRounds() int {
	return o.maxRounds
}
