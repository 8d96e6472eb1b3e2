package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagelab/chatroom/internal/domain"
	"github.com/stagelab/chatroom/internal/scenario"
	"github.com/stagelab/chatroom/internal/sessionlog"
	"github.com/stagelab/chatroom/internal/stage"
	"github.com/stagelab/chatroom/internal/state"
)

// fakeRunner scripts ExecuteTurn outcomes.
type fakeRunner struct {
	calls atomic.Int32
	fn    func() (*stage.TurnResult, error)
}

func (f *fakeRunner) ExecuteTurn(ctx context.Context) (*stage.TurnResult, error) {
	f.calls.Add(1)
	if f.fn == nil {
		return nil, errors.New("no turn scripted")
	}
	return f.fn()
}

// recordingBroadcaster keeps every broadcast event, decoded from JSON.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []map[string]any
}

func (r *recordingBroadcaster) BroadcastJSON(sessionID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	r.mu.Lock()
	r.events = append(r.events, decoded)
	r.mu.Unlock()
	return nil
}

func (r *recordingBroadcaster) ofType(eventType string) []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []map[string]any
	for _, e := range r.events {
		if e["type"] == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newTestState(duration time.Duration) *state.State {
	agents := []domain.Agent{{Name: "Alice"}, {Name: "Bob"}}
	return state.New("sess_test", agents, "user", duration, "be civil")
}

func newTestSession(st *state.State, runner turnRunner, scen scenario.Scenario, b Broadcaster, cfg Config, onEnd func(id, reason string)) *Session {
	return newSession("sess_test", "control", st, runner, scen, sessionlog.Discard(), b, cfg, onEnd)
}

func TestHumanMessageNeverTriggersImmediateTurn(t *testing.T) {
	st := newTestState(time.Hour)
	runner := &fakeRunner{}
	sess := newTestSession(st, runner, nil, nil, Config{
		TickInterval:      5 * time.Millisecond,
		MessagesPerMinute: 0, // zero post probability
		Seed:              1,
	}, nil)
	sess.Start()
	defer sess.Terminate("test_done")

	m, err := sess.SubmitHumanMessage("hello everyone", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "user", m.Sender)

	// Several ticks pass; the human message must not have forced a turn.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), runner.calls.Load())
	assert.Equal(t, 1, st.MessageCount())
}

func TestHumanReplySnapshotsQuotedText(t *testing.T) {
	st := newTestState(time.Hour)
	target := st.Append(domain.NewMessage("Alice", "original content"))
	sess := newTestSession(st, &fakeRunner{}, nil, nil, Config{TickInterval: time.Hour}, nil)
	sess.Start()
	defer sess.Terminate("test_done")

	m, err := sess.SubmitHumanMessage("replying", target.MessageID, nil)
	require.NoError(t, err)
	assert.Equal(t, target.MessageID, m.ReplyTo)
	assert.Equal(t, "original content", m.QuotedText)

	_, err = sess.SubmitHumanMessage("dangling", "msg_missing", nil)
	require.ErrorIs(t, err, state.ErrMessageNotFound)
}

func TestTurnCommitBroadcastsMessage(t *testing.T) {
	st := newTestState(time.Hour)
	runner := &fakeRunner{fn: func() (*stage.TurnResult, error) {
		return &stage.TurnResult{
			ActionType: domain.ActionMessage,
			AgentName:  "Alice",
			Message:    domain.NewMessage("Alice", "scripted turn"),
		}, nil
	}}
	b := &recordingBroadcaster{}
	sess := newTestSession(st, runner, nil, b, Config{
		TickInterval:      5 * time.Millisecond,
		MessagesPerMinute: 100000, // probability saturates at every tick
		Seed:              1,
	}, nil)
	sess.Start()
	defer sess.Terminate("test_done")

	require.Eventually(t, func() bool {
		return st.MessageCount() > 0
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(b.ofType("message")) > 0
	}, time.Second, 5*time.Millisecond)
}

func TestTurnErrorSkipsSilently(t *testing.T) {
	st := newTestState(time.Hour)
	runner := &fakeRunner{fn: func() (*stage.TurnResult, error) {
		return nil, errors.New("director parse failed")
	}}
	sess := newTestSession(st, runner, nil, nil, Config{
		TickInterval:      5 * time.Millisecond,
		MessagesPerMinute: 100000,
		Seed:              1,
	}, nil)
	sess.Start()
	defer sess.Terminate("test_done")

	require.Eventually(t, func() bool {
		return runner.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	// Failed turns leave no messages and do not end the session.
	assert.Equal(t, 0, st.MessageCount())
	select {
	case <-sess.Done():
		t.Fatalf("session ended after a skipped turn")
	default:
	}
}

func TestLikeTurnCommit(t *testing.T) {
	st := newTestState(time.Hour)
	target := st.Append(domain.NewMessage("user", "likeable"))
	runner := &fakeRunner{fn: func() (*stage.TurnResult, error) {
		return &stage.TurnResult{
			ActionType:      domain.ActionLike,
			AgentName:       "Bob",
			TargetMessageID: target.MessageID,
		}, nil
	}}
	b := &recordingBroadcaster{}
	sess := newTestSession(st, runner, nil, b, Config{
		TickInterval:      5 * time.Millisecond,
		MessagesPerMinute: 100000,
		Seed:              1,
	}, nil)
	sess.Start()
	defer sess.Terminate("test_done")

	require.Eventually(t, func() bool {
		return len(b.ofType("message_like")) > 0
	}, time.Second, 5*time.Millisecond)

	m, err := st.MessageByID(target.MessageID)
	require.NoError(t, err)
	assert.True(t, m.LikedByUser("Bob"))
}

func TestDurationExpiryTerminates(t *testing.T) {
	st := newTestState(0) // expired immediately
	var endReason atomic.Value
	sess := newTestSession(st, &fakeRunner{}, nil, nil, Config{
		TickInterval: 5 * time.Millisecond,
	}, func(id, reason string) {
		endReason.Store(reason)
	})
	sess.Start()

	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatalf("session did not end on expiry")
	}

	require.Eventually(t, func() bool {
		return endReason.Load() != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "duration_expired", endReason.Load())
}

func TestTerminateIdempotent(t *testing.T) {
	st := newTestState(time.Hour)
	var ends atomic.Int32
	sess := newTestSession(st, &fakeRunner{}, nil, nil, Config{
		TickInterval: 5 * time.Millisecond,
	}, func(id, reason string) {
		ends.Add(1)
	})
	sess.Start()

	sess.Terminate("user_exit")
	sess.Terminate("user_exit")
	assert.Equal(t, int32(1), ends.Load())
}

func TestScenarioSeedAndHold(t *testing.T) {
	st := newTestState(time.Hour)
	runner := &fakeRunner{fn: func() (*stage.TurnResult, error) {
		return &stage.TurnResult{
			ActionType: domain.ActionMessage,
			AgentName:  "Alice",
			Message:    domain.NewMessage("Alice", "too early"),
		}, nil
	}}
	b := &recordingBroadcaster{}
	scen := &scenario.NewsArticle{Content: "big news", HoldTicks: 1 << 30}
	sess := newTestSession(st, runner, scen, b, Config{
		TickInterval:      5 * time.Millisecond,
		MessagesPerMinute: 100000,
		Seed:              1,
	}, nil)
	sess.Start()
	defer sess.Terminate("test_done")

	// The article is seeded and broadcast immediately.
	require.Eventually(t, func() bool {
		return len(b.ofType("message")) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, st.MessageCount())

	// Agents stay held back, so no turns run.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), runner.calls.Load())
}

func TestBlockedSenderFilteredFromBroadcast(t *testing.T) {
	st := newTestState(time.Hour)
	offending := st.Append(domain.NewMessage("Bob", "rude remark"))

	turns := make(chan *stage.TurnResult, 1)
	runner := &fakeRunner{fn: func() (*stage.TurnResult, error) {
		select {
		case r := <-turns:
			return r, nil
		default:
			return nil, errors.New("nothing scripted")
		}
	}}
	b := &recordingBroadcaster{}
	sess := newTestSession(st, runner, nil, b, Config{
		TickInterval:      5 * time.Millisecond,
		MessagesPerMinute: 100000,
		Seed:              1,
	}, nil)
	sess.Start()
	defer sess.Terminate("test_done")

	_, blocked, err := sess.Report(offending.MessageID, "user", true)
	require.NoError(t, err)
	require.Contains(t, blocked, "Bob")
	require.Len(t, b.ofType("block_update"), 1)

	// A post-block message from Bob commits to the log but is never
	// delivered to the participant.
	turns <- &stage.TurnResult{
		ActionType: domain.ActionMessage,
		AgentName:  "Bob",
		Message:    domain.NewMessage("Bob", "still talking"),
	}
	require.Eventually(t, func() bool {
		return st.MessageCount() == 2
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, b.ofType("message"))
	assert.Len(t, sess.VisibleHistory(), 1)
}

func TestToggleLikeBroadcasts(t *testing.T) {
	st := newTestState(time.Hour)
	m := st.Append(domain.NewMessage("Alice", "hello"))
	b := &recordingBroadcaster{}
	sess := newTestSession(st, &fakeRunner{}, nil, b, Config{TickInterval: time.Hour}, nil)
	sess.Start()
	defer sess.Terminate("test_done")

	liked, err := sess.ToggleLike(m.MessageID, "user")
	require.NoError(t, err)
	assert.Equal(t, 1, liked.LikesCount())
	assert.Len(t, b.ofType("message_like"), 1)
}
