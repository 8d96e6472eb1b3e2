// Package sessionlog records every simulation event of a session to a JSONL
// file, one JSON object per line, for offline analysis of experiment runs.
package sessionlog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stagelab/chatroom/internal/domain"
)

// Logger appends events for one session. Safe for concurrent use.
type Logger struct {
	mu        sync.Mutex
	f         *os.File
	sessionID string
}

type entry struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Data      any       `json:"data"`
}

// New opens (creating if needed) the session's log file under dir.
func New(dir, sessionID string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	path := filepath.Join(dir, sessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}
	return &Logger{f: f, sessionID: sessionID}, nil
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *Logger {
	return &Logger{}
}

// Event appends one event line. Logging failures are reported to the process
// log but never propagate; telemetry must not break the simulation.
func (l *Logger) Event(eventType string, data any) {
	if l == nil || l.f == nil {
		return
	}
	b, err := json.Marshal(entry{Timestamp: time.Now(), EventType: eventType, Data: data})
	if err != nil {
		log.Printf("ERROR: failed to marshal session log event: %v", err)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(append(b, '\n')); err != nil {
		log.Printf("ERROR: failed to write session log event: %v", err)
	}
}

// SessionStart records session creation with its configuration snapshot.
func (l *Logger) SessionStart(treatmentGroup string, agents []domain.Agent) {
	names := make([]string, 0, len(agents))
	for _, a := range agents {
		names = append(names, a.Name)
	}
	l.Event("session_start", map[string]any{
		"session_id":      l.sessionID,
		"treatment_group": treatmentGroup,
		"agents":          names,
	})
}

// SessionEnd records session termination.
func (l *Logger) SessionEnd(reason string) {
	l.Event("session_end", map[string]any{
		"session_id": l.sessionID,
		"reason":     reason,
	})
}

// Message records a committed message.
func (l *Logger) Message(m *domain.Message) {
	l.Event("message", m)
}

// LLMCall records one generation call, prompt and response included.
func (l *Logger) LLMCall(role, agentName, prompt, response, errMsg string) {
	l.Event("llm_call", map[string]any{
		"role":       role,
		"agent_name": agentName,
		"prompt":     prompt,
		"response":   response,
		"error":      errMsg,
	})
}

// Error records a non-fatal error with its originating context.
func (l *Logger) Error(where, msg string) {
	l.Event("error", map[string]any{
		"context": where,
		"message": msg,
	})
}

// Close releases the underlying file.
func (l *Logger) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	return l.f.Close()
}
