// Package audit provides audit logging for the investigation orchestrator.
// It captures orchestration events (classification, panel dispatch, breaker
// transitions, synthesis) to a JSONL file for debugging, analysis, and
// reproducibility.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// EventType represents the type of audit event.
type EventType string

const (
	// EventTypeSessionStart marks the start of a new session.
	EventTypeSessionStart EventType = "session_start"
	// EventTypeTurnStart marks the start of one investigation turn.
	EventTypeTurnStart EventType = "turn_start"
	// EventTypeClassification logs the classifier verdict for a query.
	EventTypeClassification EventType = "classification"
	// EventTypePanelDispatched marks a panel task being handed to a worker.
	EventTypePanelDispatched EventType = "panel_dispatched"
	// EventTypePanelCompleted marks a panel reaching a terminal result.
	EventTypePanelCompleted EventType = "panel_completed"
	// EventTypeBreakerTransition logs a circuit breaker state change.
	EventTypeBreakerTransition EventType = "breaker_transition"
	// EventTypeCompaction logs a context window compaction pass.
	EventTypeCompaction EventType = "compaction"
	// EventTypeSynthesisComplete logs the final synthesis of a turn.
	EventTypeSynthesisComplete EventType = "synthesis_complete"
	// EventTypeTurnComplete marks the end of one investigation turn.
	EventTypeTurnComplete EventType = "turn_complete"
	// EventTypeError marks an error during processing.
	EventTypeError EventType = "error"
	// EventTypeSessionEnd marks the end of a session.
	EventTypeSessionEnd EventType = "session_end"
)

// Event represents a single audit log event.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// Type is the event type.
	Type EventType `json:"type"`
	// SessionID is the session identifier.
	SessionID string `json:"session_id"`
	// Panel is the panel that generated the event (if applicable).
	Panel string `json:"panel,omitempty"`
	// Data contains event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Logger writes audit events to a JSONL file.
type Logger struct {
	file      *os.File
	writer    *bufio.Writer
	mutex     sync.Mutex
	sessionID string
}

// NewLogger creates a new audit logger that writes to the specified file path.
// If the file exists, new events are appended.
func NewLogger(filePath, sessionID string) (*Logger, error) {
	// filePath is user-provided configuration for audit log location
	// #nosec G304 -- Audit log path is intentionally configurable by user
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &Logger{
		file:      file,
		writer:    bufio.NewWriter(file),
		sessionID: sessionID,
	}, nil
}

// write writes an event to the audit log.
func (l *Logger) write(event Event) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}

	if _, err := l.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	// Flush immediately for crash safety
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush audit log: %w", err)
	}

	return nil
}

// LogSessionStart logs the start of a new session.
func (l *Logger) LogSessionStart(model, telemetryURL string) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeSessionStart,
		SessionID: l.sessionID,
		Data: map[string]interface{}{
			"model":         model,
			"telemetry_url": telemetryURL,
		},
	})
}

// LogTurnStart logs the start of one investigation turn.
func (l *Logger) LogTurnStart(query string) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeTurnStart,
		SessionID: l.sessionID,
		Data: map[string]interface{}{
			"query": query,
		},
	})
}

// LogClassification logs the classifier verdict for a query.
func (l *Logger) LogClassification(mode, panel, rigor, rule string, confidence float64, degraded bool) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeClassification,
		SessionID: l.sessionID,
		Data: map[string]interface{}{
			"mode":       mode,
			"panel":      panel,
			"rigor":      rigor,
			"rule":       rule,
			"confidence": confidence,
			"degraded":   degraded,
		},
	})
}

// LogPanelDispatched logs a panel task being handed to a worker.
func (l *Logger) LogPanelDispatched(panel, taskID string, round int) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypePanelDispatched,
		SessionID: l.sessionID,
		Panel:     panel,
		Data: map[string]interface{}{
			"task_id": taskID,
			"round":   round,
		},
	})
}

// LogPanelCompleted logs a panel reaching a terminal result.
func (l *Logger) LogPanelCompleted(panel, taskID, status string, confidence float64, durationMs int64) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypePanelCompleted,
		SessionID: l.sessionID,
		Panel:     panel,
		Data: map[string]interface{}{
			"task_id":     taskID,
			"status":      status,
			"confidence":  confidence,
			"duration_ms": durationMs,
		},
	})
}

// LogBreakerTransition logs a circuit breaker state change.
func (l *Logger) LogBreakerTransition(dependency, from, to string) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeBreakerTransition,
		SessionID: l.sessionID,
		Data: map[string]interface{}{
			"dependency": dependency,
			"from":       from,
			"to":         to,
		},
	})
}

// LogCompaction logs a context window compaction pass.
func (l *Logger) LogCompaction(panel string, condensed, evicted, tokensBefore, tokensAfter int) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeCompaction,
		SessionID: l.sessionID,
		Panel:     panel,
		Data: map[string]interface{}{
			"condensed":     condensed,
			"evicted":       evicted,
			"tokens_before": tokensBefore,
			"tokens_after":  tokensAfter,
		},
	})
}

// LogSynthesisComplete logs the final synthesis of a turn.
func (l *Logger) LogSynthesisComplete(causes, conflicts, rounds int, partial bool) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeSynthesisComplete,
		SessionID: l.sessionID,
		Data: map[string]interface{}{
			"causes":    causes,
			"conflicts": conflicts,
			"rounds":    rounds,
			"partial":   partial,
		},
	})
}

// LogTurnComplete marks the end of one investigation turn.
func (l *Logger) LogTurnComplete(revision uint64, durationMs int64) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeTurnComplete,
		SessionID: l.sessionID,
		Data: map[string]interface{}{
			"revision":    revision,
			"duration_ms": durationMs,
		},
	})
}

// LogError logs an error during processing.
func (l *Logger) LogError(stage string, err error) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeError,
		SessionID: l.sessionID,
		Data: map[string]interface{}{
			"stage": stage,
			"error": err.Error(),
		},
	})
}

// LogSessionEnd logs the end of a session.
func (l *Logger) LogSessionEnd() error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeSessionEnd,
		SessionID: l.sessionID,
	})
}

// Close flushes and closes the audit log file.
func (l *Logger) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush audit log: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	return nil
}
