package eventlog

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go, CGO-free driver

	"github.com/cortexflow/wec/internal/logging"
)

var sqliteLogLogger = logging.Global().WithComponent("eventlog")

//go:embed migrations/001_events.sql
var eventsSchema string

// SQLiteLog is the alternate durable backend for the Event Log, selected via
// event_log.backend: sqlite in configuration. It appends with a single
// INSERT per event instead of the JSON backend's whole-file rewrite, trading
// the reference policy's O(n²) append cost for an extra runtime dependency.
type SQLiteLog struct {
	db *sql.DB
}

// OpenSQLiteLog opens (creating if needed) a SQLite-backed event log at
// path (see SQLiteLogPath for the default name derived from the workflow's
// stem).
func OpenSQLiteLog(path string) (*SQLiteLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite event log: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(eventsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite event log: %w", err)
	}

	sqliteLogLogger.Info("opened sqlite event log at %s", path)
	return &SQLiteLog{db: db}, nil
}

// SQLiteLogPath builds the default sqlite event log path for a workflow
// file's stem, mirroring JSONLogPath.
func SQLiteLogPath(logDir, workflowPath string) string {
	base := filepath.Base(workflowPath)
	stem := base[:len(base)-len(filepath.Ext(base))]
	return filepath.Join(logDir, stem+".db")
}

func (l *SQLiteLog) Append(eventType EventType, stepID string, payload map[string]interface{}) error {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = l.db.Exec(
		`INSERT INTO events (timestamp, event_type, step_id, payload) VALUES (?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), string(eventType), stepID, string(data),
	)
	if err != nil {
		sqliteLogLogger.Error("append event %s for step %q failed: %v", eventType, stepID, err)
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (l *SQLiteLog) Events() ([]Event, error) {
	rows, err := l.db.Query(`SELECT timestamp, event_type, step_id, payload FROM events ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ts, et, stepID, payloadJSON string
		)
		if err := rows.Scan(&ts, &et, &stepID, &payloadJSON); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp: %w", err)
		}

		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("unmarshal event payload: %w", err)
		}

		events = append(events, Event{
			Timestamp: t,
			EventType: EventType(et),
			StepID:    stepID,
			Payload:   payload,
		})
	}

	return events, rows.Err()
}

func (l *SQLiteLog) Close() error {
	return l.db.Close()
}
