package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cortexflow/wec/internal/logging"
)

var jsonLogLogger = logging.Global().WithComponent("eventlog")

// JSONLog persists events as a JSON array at a single file path, rewriting
// the whole file on every append. This is the reference durability policy
// from §6: durable, simple, and O(n²) in event count — acceptable at the
// scale a single workflow run produces.
type JSONLog struct {
	path string
	mu   sync.Mutex
	// events mirrors the on-disk array so Append doesn't need to re-read
	// the file it just wrote.
	events []Event
}

// OpenJSONLog opens (or creates) the event log file at path, loading any
// events already recorded there for resume.
func OpenJSONLog(path string) (*JSONLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}

	l := &JSONLog{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("read event log %s: %w", path, err)
	}

	if len(data) == 0 {
		return l, nil
	}

	if err := json.Unmarshal(data, &l.events); err != nil {
		return nil, fmt.Errorf("parse event log %s: %w", path, err)
	}

	return l, nil
}

// JSONLogPath builds the default path for a workflow file's event log:
// <dir>/<stem>.json.
func JSONLogPath(logDir, workflowPath string) string {
	base := filepath.Base(workflowPath)
	stem := base[:len(base)-len(filepath.Ext(base))]
	return filepath.Join(logDir, stem+".json")
}

func (l *JSONLog) Append(eventType EventType, stepID string, payload map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		StepID:    stepID,
		Payload:   payload,
	})

	data, err := json.MarshalIndent(l.events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal event log: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		jsonLogLogger.Error("write event log %s failed: %v", l.path, err)
		return fmt.Errorf("write event log: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		jsonLogLogger.Error("commit event log %s failed: %v", l.path, err)
		return fmt.Errorf("commit event log: %w", err)
	}

	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("reopen event log for fsync: %w", err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return fmt.Errorf("fsync event log: %w", err)
	}

	jsonLogLogger.Debug("appended %s for step %q", eventType, stepID)
	return nil
}

func (l *JSONLog) Events() ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out, nil
}

func (l *JSONLog) Close() error {
	return nil
}
