package logging

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	ActionRedirect = "redirect"
	ActionPass     = "pass"
	ActionLimited  = "limited"
	ActionReject   = "reject"
)

// Decision is written as a single JSON object per request.
type Decision struct {
	Timestamp  time.Time `json:"ts"`
	RequestID  string    `json:"request_id"`
	ClientIP   string    `json:"client_ip"`
	Host       string    `json:"host"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Query      string    `json:"query,omitempty"`
	Action     string    `json:"action"`
	Rule       int       `json:"rule"`
	Match      string    `json:"match,omitempty"`
	Target     string    `json:"target,omitempty"`
	Location   string    `json:"location,omitempty"`
	StatusCode int       `json:"status_code"`
	DurationMS int64     `json:"duration_ms"`
	UpstreamMS int64     `json:"upstream_ms,omitempty"`
}

// DecisionLogger appends decisions as JSON lines. Writes are serialised so
// concurrent requests never interleave lines.
type DecisionLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func NewDecisionLogger(w io.Writer) *DecisionLogger {
	return &DecisionLogger{w: w}
}

func OpenDecisionLog(path string) (*DecisionLogger, func() error, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return NewDecisionLogger(file), file.Close, nil
}

func (l *DecisionLogger) Write(decision Decision) error {
	data, err := json.Marshal(decision)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.w.Write(data)
	return err
}
