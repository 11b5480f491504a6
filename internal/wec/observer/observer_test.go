package observer

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/wec/internal/wec/eventlog"
)

func startHub(t *testing.T) (*Hub, int) {
	t.Helper()
	port := 18765 + (time.Now().Nanosecond() % 1000)
	hub := NewHub(Config{Port: port, HistorySize: 10})
	require.NoError(t, hub.Start())
	t.Cleanup(func() { hub.Stop() })
	time.Sleep(50 * time.Millisecond)
	return hub, port
}

func TestHub_PublishReachesClient(t *testing.T) {
	hub, port := startHub(t)

	url := "ws://127.0.0.1" + addr(port) + WebSocketEndpoint
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(eventlog.Event{EventType: eventlog.StepStart, StepID: "s1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got eventlog.Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "s1", got.StepID)
	assert.Equal(t, eventlog.StepStart, got.EventType)
}

func TestHub_ReplayHistory(t *testing.T) {
	hub, port := startHub(t)

	hub.Publish(eventlog.Event{EventType: eventlog.StateZero, StepID: ""})
	hub.Publish(eventlog.Event{EventType: eventlog.StepStart, StepID: "s1"})
	time.Sleep(20 * time.Millisecond)

	url := "ws://127.0.0.1" + addr(port) + WebSocketEndpoint
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var got eventlog.Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, eventlog.StateZero, got.EventType, "expected replay to start with STATE_ZERO")
}

func TestTeeLog_PublishesOnAppend(t *testing.T) {
	hub, port := startHub(t)

	url := "ws://127.0.0.1" + addr(port) + WebSocketEndpoint + "?replay=false"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	time.Sleep(20 * time.Millisecond)

	mem := &memLog{}
	tee := NewTeeLog(mem, hub)

	require.NoError(t, tee.Append(eventlog.StepSuccess, "s1", map[string]interface{}{"stdout": "hi"}))
	require.Len(t, mem.events, 1)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var got eventlog.Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "s1", got.StepID)
	assert.Equal(t, eventlog.StepSuccess, got.EventType)
}

type memLog struct {
	events []eventlog.Event
}

func (m *memLog) Append(eventType eventlog.EventType, stepID string, payload map[string]interface{}) error {
	m.events = append(m.events, eventlog.Event{EventType: eventType, StepID: stepID, Payload: payload})
	return nil
}

func (m *memLog) Events() ([]eventlog.Event, error) { return m.events, nil }
func (m *memLog) Close() error                      { return nil }

func addr(port int) string {
	return ":" + strconv.Itoa(port)
}
