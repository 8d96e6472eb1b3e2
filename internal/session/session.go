// Package session runs simulation sessions: a per-session tick loop that
// gates pipeline turns, and a registry owning the set of live sessions.
package session

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/stagelab/chatroom/internal/domain"
	"github.com/stagelab/chatroom/internal/scenario"
	"github.com/stagelab/chatroom/internal/sessionlog"
	"github.com/stagelab/chatroom/internal/stage"
	"github.com/stagelab/chatroom/internal/state"
)

// Broadcaster relays outbound events to connected clients of a session.
type Broadcaster interface {
	BroadcastJSON(sessionID string, v any) error
}

// NoopBroadcaster drops all events. Used in tests and headless runs.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastJSON(string, any) error { return nil }

// turnRunner abstracts the stage pipeline so tests can script turns.
type turnRunner interface {
	ExecuteTurn(ctx context.Context) (*stage.TurnResult, error)
}

// Config holds per-session pacing parameters.
type Config struct {
	TickInterval      time.Duration
	MessagesPerMinute float64
	TypingDelay       time.Duration
	// Seed fixes the turn-probability RNG; zero seeds from the clock.
	Seed int64
}

// Session is one live simulation run. All turn work happens on the session's
// own goroutine; the exported mutation methods are safe to call from
// transport handlers at any time.
type Session struct {
	ID             string
	TreatmentGroup string

	st          *state.State
	runner      turnRunner
	scen        scenario.Scenario
	logger      *sessionlog.Logger
	broadcaster Broadcaster
	cfg         Config

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	endOnce sync.Once
	onEnd   func(id, reason string)

	rng   *rand.Rand
	rngMu sync.Mutex
}

func newSession(id, treatmentGroup string, st *state.State, runner turnRunner, scen scenario.Scenario, logger *sessionlog.Logger, b Broadcaster, cfg Config, onEnd func(id, reason string)) *Session {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if scen == nil {
		scen = scenario.Base{}
	}
	if b == nil {
		b = NoopBroadcaster{}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:             id,
		TreatmentGroup: treatmentGroup,
		st:             st,
		runner:         runner,
		scen:           scen,
		logger:         logger,
		broadcaster:    b,
		cfg:            cfg,
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
		onEnd:          onEnd,
		rng:            rand.New(rand.NewSource(seed)),
	}
}

// Start seeds the scenario and launches the tick loop.
func (s *Session) Start() {
	s.logger.SessionStart(s.TreatmentGroup, s.st.Agents())
	for _, m := range s.scen.Seed(s.st) {
		s.logger.Message(m)
		s.broadcastMessage(m)
	}
	go s.run()
	log.Printf("Session %s started (group %s)", s.ID, s.TreatmentGroup)
}

// State exposes the session's state for read paths (history replay).
func (s *Session) State() *state.State { return s.st }

// Done is closed once the tick loop has fully stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// run is the tick loop. A turn runs to Done or Skipped before the next tick
// is considered, so turns within a session are strictly sequential.
func (s *Session) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	// Per-tick success probability derived from the target rate.
	postProbability := s.cfg.MessagesPerMinute / 60.0 * s.cfg.TickInterval.Seconds()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.st.AdvanceTick()

			if s.st.Expired() {
				go s.Terminate("duration_expired")
				return
			}
			if !s.scen.AgentsActive(s.st) {
				continue
			}
			if s.roll() < postProbability {
				s.runTurn()
			}
		}
	}
}

func (s *Session) roll() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

// runTurn drives one pipeline turn to its terminal state. Every failure path
// skips the turn silently; the next tick makes a fresh decision.
func (s *Session) runTurn() {
	result, err := s.runner.ExecuteTurn(s.ctx)
	if err != nil {
		s.logger.Error("turn_skipped", err.Error())
		log.Printf("WARN: session %s turn skipped: %v", s.ID, err)
		return
	}

	if result.ActionType == domain.ActionLike {
		s.commitLike(result)
		return
	}
	s.commitMessage(result)
}

func (s *Session) commitLike(result *stage.TurnResult) {
	updated, err := s.st.ToggleLike(result.TargetMessageID, result.AgentName)
	if err != nil {
		s.logger.Error("like_action", err.Error())
		return
	}
	s.logger.Event("agent_like", map[string]any{
		"agent_name":  result.AgentName,
		"message_id":  result.TargetMessageID,
		"likes_count": updated.LikesCount(),
	})
	s.broadcast(domain.LikeEvent{
		Type:       domain.EventTypeMessageLike,
		MessageID:  updated.MessageID,
		LikesCount: updated.LikesCount(),
		LikedBy:    updated.LikedBy,
		User:       result.AgentName,
	})
}

func (s *Session) commitMessage(result *stage.TurnResult) {
	if result.Message == nil {
		return
	}

	// Typing delay for realism; cancellation during the wait drops the
	// turn before its commit, never after.
	if s.cfg.TypingDelay > 0 {
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.cfg.TypingDelay):
		}
	}

	committed := s.st.Append(result.Message)
	s.logger.Message(committed)
	s.broadcastMessage(committed)
}

// SubmitHumanMessage appends a message from the human participant. It never
// triggers an immediate turn; the Director sees it in the next tick's window.
func (s *Session) SubmitHumanMessage(content, replyTo string, mentions []string) (*domain.Message, error) {
	m := domain.NewMessage(s.st.HumanName(), content)
	if replyTo != "" {
		target, err := s.st.MessageByID(replyTo)
		if err != nil {
			return nil, err
		}
		m.ReplyTo = replyTo
		m.QuotedText = target.Content
	}
	if len(mentions) > 0 {
		m.Mentions = append([]string(nil), mentions...)
	}

	committed := s.st.Append(m)
	s.logger.Message(committed)
	s.broadcastMessage(committed)
	return committed, nil
}

// ToggleLike flips the user's like on a message and broadcasts the change.
func (s *Session) ToggleLike(messageID, user string) (*domain.Message, error) {
	updated, err := s.st.ToggleLike(messageID, user)
	if err != nil {
		return nil, err
	}
	s.logger.Event("like", map[string]any{
		"user":        user,
		"message_id":  messageID,
		"likes_count": updated.LikesCount(),
	})
	s.broadcast(domain.LikeEvent{
		Type:       domain.EventTypeMessageLike,
		MessageID:  updated.MessageID,
		LikesCount: updated.LikesCount(),
		LikedBy:    updated.LikedBy,
		User:       user,
	})
	return updated, nil
}

// Report marks a message reported and, when blockSender is set, blocks its
// sender from the reporting participant's view going forward.
func (s *Session) Report(messageID, user string, blockSender bool) (*domain.Message, map[string]time.Time, error) {
	updated, blocked, err := s.st.Report(messageID, blockSender)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Event("report", map[string]any{
		"user":         user,
		"message_id":   messageID,
		"block_sender": blockSender,
	})
	s.broadcast(domain.ReportEvent{
		Type:      domain.EventTypeReport,
		MessageID: updated.MessageID,
		Reported:  updated.Reported,
	})
	if blockSender {
		s.broadcast(domain.BlockUpdateEvent{
			Type:    domain.EventTypeBlockUpdate,
			Blocked: blocked,
		})
	}
	return updated, blocked, nil
}

// VisibleHistory returns the messages a (re)connecting client should replay.
func (s *Session) VisibleHistory() []*domain.Message {
	return s.st.VisibleHistory()
}

// Terminate stops the session. Idempotent; safe to call from any goroutine.
// In-flight turns are cancelled promptly and the commit step is atomic, so
// a cancelled turn never half-writes a message.
func (s *Session) Terminate(reason string) {
	s.endOnce.Do(func() {
		s.cancel()
		<-s.done
		s.logger.SessionEnd(reason)
		s.broadcast(domain.SessionEndEvent{Type: domain.EventTypeSessionEnd, Reason: reason})
		if err := s.logger.Close(); err != nil {
			log.Printf("WARN: session %s log close: %v", s.ID, err)
		}
		if s.onEnd != nil {
			s.onEnd(s.ID, reason)
		}
		log.Printf("Session %s stopped: %s", s.ID, reason)
	})
}

// broadcastMessage applies block filtering before delivery: a blocked
// sender's post-block messages are hidden from the participant's view, not
// deleted.
func (s *Session) broadcastMessage(m *domain.Message) {
	if !s.st.VisibleToHuman(m) {
		return
	}
	s.broadcast(domain.MessageEvent{Type: domain.EventTypeMessage, Message: m})
}

func (s *Session) broadcast(v any) {
	if err := s.broadcaster.BroadcastJSON(s.ID, v); err != nil {
		s.logger.Error("broadcast", err.Error())
	}
}
