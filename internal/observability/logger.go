package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan         EventType = "plan"
	EventTypeAction       EventType = "action"
	EventTypeActionResult EventType = "action_result"
	EventTypeEscalation   EventType = "escalation"
	EventTypeCatalog      EventType = "catalog"
	EventTypePolicyCheck  EventType = "policy_check"
	EventTypeHeartbeat    EventType = "heartbeat"
	EventTypeLLM          EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	PlanID    string    `json:"plan_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return &Logger{
		llmLogPath: filepath.Join("logs", "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event to stdout.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeLLM {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPlan(sessionID, planID string, actionCount int, services []string) {
	l.Log(Event{
		Type:      EventTypePlan,
		SessionID: sessionID,
		PlanID:    planID,
		Data: map[string]any{
			"actions":  actionCount,
			"services": services,
		},
	})
}

func (l *Logger) LogAction(sessionID, planID, actionID, service, tier string) {
	l.Log(Event{
		Type:      EventTypeAction,
		SessionID: sessionID,
		PlanID:    planID,
		Data: map[string]string{
			"action":  actionID,
			"service": service,
			"tier":    tier,
		},
	})
}

func (l *Logger) LogActionResult(sessionID, planID, actionID, status string, retries int, skipped bool) {
	l.Log(Event{
		Type:      EventTypeActionResult,
		SessionID: sessionID,
		PlanID:    planID,
		Data: map[string]any{
			"action":  actionID,
			"status":  status,
			"retries": retries,
			"skipped": skipped,
		},
	})
}

func (l *Logger) LogEscalation(sessionID, actionID, decision, reason string) {
	l.Log(Event{
		Type:      EventTypeEscalation,
		SessionID: sessionID,
		Data: map[string]string{
			"action":   actionID,
			"decision": decision,
			"reason":   reason,
		},
	})
}

func (l *Logger) LogCatalog(sessionID, service, tier string, actions int) {
	l.Log(Event{
		Type:      EventTypeCatalog,
		SessionID: sessionID,
		Data: map[string]any{
			"service": service,
			"tier":    tier,
			"actions": actions,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(sessionID, planID string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type:      EventTypeLLM,
		SessionID: sessionID,
		PlanID:    planID,
		Data: map[string]any{
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}
