package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TurnEvent is one NDJSON conversation log line.
type TurnEvent struct {
	Timestamp string `json:"ts"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	EventType string `json:"event_type"`
	Content   string `json:"content"`
}

// TurnLogConfig controls NDJSON conversation logging.
type TurnLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// TurnLogger appends chat turns to per-session NDJSON files. Writes go
// through a bounded queue and a single writer goroutine; when the queue
// is full, events are dropped rather than blocking a turn.
type TurnLogger struct {
	cfg     TurnLogConfig
	queue   chan TurnEvent
	done    chan struct{}
	wg      sync.WaitGroup
	dropped int64
	mu      sync.Mutex
}

// NewTurnLogger creates the logger and starts its writer goroutine.
// Returns nil when logging is disabled.
func NewTurnLogger(cfg TurnLogConfig) (*TurnLogger, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}

	l := &TurnLogger{
		cfg:   cfg,
		queue: make(chan TurnEvent, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	l.wg.Add(1)
	go l.writeLoop()
	return l, nil
}

// Log enqueues an event. Never blocks; drops when the queue is full.
func (l *TurnLogger) Log(ev TurnEvent) {
	if l == nil {
		return
	}
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	select {
	case l.queue <- ev:
	default:
		l.mu.Lock()
		l.dropped++
		l.mu.Unlock()
	}
}

// Close drains the queue and stops the writer goroutine.
func (l *TurnLogger) Close() error {
	if l == nil {
		return nil
	}
	close(l.done)
	l.wg.Wait()
	l.mu.Lock()
	dropped := l.dropped
	l.mu.Unlock()
	if dropped > 0 {
		slog.Warn("Conversation log dropped events", "count", dropped)
	}
	return nil
}

func (l *TurnLogger) writeLoop() {
	defer l.wg.Done()
	for {
		select {
		case ev := <-l.queue:
			l.write(ev)
		case <-l.done:
			for {
				select {
				case ev := <-l.queue:
					l.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (l *TurnLogger) write(ev TurnEvent) {
	path := filepath.Join(l.cfg.Dir, sanitizeSessionID(ev.SessionID)+".ndjson")
	line, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("Failed to marshal conversation log event", "error", err)
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("Failed to open conversation log file", "path", path, "error", err)
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Debug("Failed to close conversation log file", "error", closeErr)
		}
	}()

	if _, err := f.Write(append(line, '\n')); err != nil {
		slog.Warn("Failed to write conversation log line", "path", path, "error", err)
	}
}

// sanitizeSessionID keeps session-derived file names safe: anything
// outside a conservative character set is replaced.
func sanitizeSessionID(id string) string {
	if id == "" {
		return "default"
	}
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
