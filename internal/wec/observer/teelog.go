package observer

import (
	"time"

	"github.com/cortexflow/wec/internal/wec/eventlog"
)

// TeeLog wraps an eventlog.Log, publishing every appended Event to a Hub in
// addition to the underlying durable write. The interpreter is unaware of
// the Hub; it only ever sees an eventlog.Log.
type TeeLog struct {
	eventlog.Log
	hub *Hub
}

// NewTeeLog returns a Log that behaves exactly like inner, except every
// successful Append is also broadcast to hub.
func NewTeeLog(inner eventlog.Log, hub *Hub) *TeeLog {
	return &TeeLog{Log: inner, hub: hub}
}

func (t *TeeLog) Append(eventType eventlog.EventType, stepID string, payload map[string]interface{}) error {
	if err := t.Log.Append(eventType, stepID, payload); err != nil {
		return err
	}
	t.hub.Publish(eventlog.Event{Timestamp: time.Now().UTC(), EventType: eventType, StepID: stepID, Payload: payload})
	return nil
}
