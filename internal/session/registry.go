package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/stagelab/chatroom/internal/adapter/llm"
	"github.com/stagelab/chatroom/internal/config"
	"github.com/stagelab/chatroom/internal/domain"
	"github.com/stagelab/chatroom/internal/policy"
	"github.com/stagelab/chatroom/internal/scenario"
	"github.com/stagelab/chatroom/internal/sessionlog"
	"github.com/stagelab/chatroom/internal/stage"
	"github.com/stagelab/chatroom/internal/state"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Registry owns the set of live sessions. Sessions never share mutable
// state; terminating one never affects another.
type Registry struct {
	cfg         *config.Config
	exp         *config.Experiments
	pol         *policy.Engine
	broadcaster Broadcaster

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg *config.Config, exp *config.Experiments, pol *policy.Engine, b Broadcaster) *Registry {
	return &Registry{
		cfg:         cfg,
		exp:         exp,
		pol:         pol,
		broadcaster: b,
		sessions:    make(map[string]*Session),
	}
}

// Create allocates and starts a session for the given treatment group.
func (r *Registry) Create(treatmentGroup string) (*Session, error) {
	group, err := r.exp.Group(treatmentGroup)
	if err != nil {
		return nil, err
	}

	sessionID := "sess_" + uuid.New().String()[:8]

	logger, err := sessionlog.New(r.cfg.LogDir, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}

	agents := make([]domain.Agent, 0, len(r.exp.AgentNames))
	for _, name := range r.exp.AgentNames {
		agents = append(agents, domain.Agent{Name: name})
	}

	st := state.New(sessionID, agents, r.exp.HumanName, r.cfg.SessionDuration, group.Treatment)

	director, performer, moderator, err := r.buildClients()
	if err != nil {
		logger.Close()
		return nil, err
	}

	orch := stage.NewOrchestrator(director, performer, moderator, st, r.pol, logger, stage.Config{
		ContextWindow:   r.cfg.ContextWindowSize,
		MaxAttempts:     r.cfg.PerformerMaxAttempts,
		ChatroomContext: r.exp.ChatroomContext,
	})

	sess := newSession(sessionID, treatmentGroup, st, orch, buildScenario(group), logger, r.broadcaster, Config{
		TickInterval:      r.cfg.TickInterval,
		MessagesPerMinute: r.cfg.MessagesPerMinute,
		TypingDelay:       r.cfg.TypingDelay,
	}, r.remove)

	r.mu.Lock()
	r.sessions[sessionID] = sess
	r.mu.Unlock()

	sess.Start()
	return sess, nil
}

// buildClients constructs one generation client per pipeline role, all
// sharing a single per-session admission gate.
func (r *Registry) buildClients() (director, performer, moderator llm.Client, err error) {
	gate := llm.NewGate(r.cfg.LLMConcurrencyLimit)

	build := func(rc config.RoleLLM) (llm.Client, error) {
		c, err := llm.New(llm.ProviderConfig{
			Provider:    rc.Provider,
			BaseURL:     rc.BaseURL,
			APIKey:      rc.APIKey,
			Model:       rc.Model,
			Temperature: rc.Temperature,
			MaxTokens:   rc.MaxTokens,
		}, r.cfg.LLMTimeout)
		if err != nil {
			return nil, err
		}
		return llm.NewLimited(c, gate), nil
	}

	if director, err = build(r.cfg.Director); err != nil {
		return nil, nil, nil, fmt.Errorf("director client: %w", err)
	}
	if performer, err = build(r.cfg.Performer); err != nil {
		return nil, nil, nil, fmt.Errorf("performer client: %w", err)
	}
	if moderator, err = build(r.cfg.Moderator); err != nil {
		return nil, nil, nil, fmt.Errorf("moderator client: %w", err)
	}
	return director, performer, moderator, nil
}

func buildScenario(group config.Group) scenario.Scenario {
	switch group.Scenario {
	case "news_article":
		return &scenario.NewsArticle{
			Sender:    group.ArticleSender,
			Content:   group.ArticleContent,
			HoldTicks: group.ArticleHoldTicks,
		}
	default:
		return scenario.Base{}
	}
}

// Get returns the session with the given id.
func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return sess, nil
}

// Terminate stops the session with the given id. Idempotent: terminating an
// unknown or already-ended session is a no-op.
func (r *Registry) Terminate(sessionID, reason string) {
	r.mu.RLock()
	sess := r.sessions[sessionID]
	r.mu.RUnlock()
	if sess != nil {
		sess.Terminate(reason)
	}
}

// Shutdown terminates all live sessions.
func (r *Registry) Shutdown(reason string) {
	r.mu.RLock()
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.RUnlock()
	for _, s := range live {
		s.Terminate(reason)
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) remove(sessionID, _ string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}
