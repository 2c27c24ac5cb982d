// Package journal is the append-only audit trail of every execution
// attempt: fills, rejections and failures alike. Entries are
// newline-delimited JSON so the file stays inspectable with standard tools
// after an incident.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"quantbot/internal/types"
)

// Entry is one immutable record of a decision and its outcome. Enough
// context to reconstruct why a trade did or did not happen; never
// credentials.
type Entry struct {
	TraceID   string       `json:"trace_id"`
	Timestamp time.Time    `json:"timestamp"`
	Mode      string       `json:"mode"` // "paper" | "live"
	Symbol    string       `json:"symbol"`
	Action    types.Action `json:"action"`
	// TargetWeight is the strategy's requested allocation, kept alongside
	// the outcome so the decision context survives in full.
	TargetWeight float64 `json:"target_weight,omitempty"`
	Status       string  `json:"status"` // filled | submitted | skipped | failed
	OrderID      string  `json:"order_id,omitempty"`
	Quantity     string  `json:"quantity,omitempty"`
	Price        string  `json:"price,omitempty"`
	Notional     string  `json:"notional,omitempty"`
	Reason       string  `json:"reason,omitempty"`
	ErrCode      int64   `json:"err_code,omitempty"`
	ErrMsg       string  `json:"err_msg,omitempty"`
}

// NewTraceID returns the correlation ID stamped on an entry and carried
// through log lines for the same attempt.
func NewTraceID() string {
	return uuid.NewString()
}

// Journal is a single-writer append-only JSONL file.
type Journal struct {
	path string
	file *os.File
	mu   sync.Mutex
}

func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trade journal: %w", err)
	}
	return &Journal{path: path, file: f}, nil
}

// Append writes one entry. Missing trace ID and timestamp are filled in.
func (j *Journal) Append(e Entry) error {
	if e.TraceID == "" {
		e.TraceID = NewTraceID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.file.Write(data); err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	if _, err := j.file.WriteString("\n"); err != nil {
		return fmt.Errorf("append journal newline: %w", err)
	}
	return nil
}

// LoadAll replays the full journal in write order.
func (j *Journal) LoadAll() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("seek journal: %w", err)
	}
	var entries []Entry
	scanner := bufio.NewScanner(j.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	// Restore append position.
	if _, err := j.file.Seek(0, 2); err != nil {
		return nil, fmt.Errorf("seek journal end: %w", err)
	}
	return entries, nil
}

// Tail returns the most recent n entries, oldest first.
func (j *Journal) Tail(n int) ([]Entry, error) {
	all, err := j.LoadAll()
	if err != nil {
		return nil, err
	}
	if n <= 0 || n >= len(all) {
		return all, nil
	}
	return all[len(all)-n:], nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
