package eventlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLog_AppendAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")

	log, err := OpenJSONLog(path)
	require.NoError(t, err)

	require.NoError(t, log.Append(StateZero, "", map[string]interface{}{"user_inputs": map[string]interface{}{"prompt": "hi"}}))
	require.NoError(t, log.Append(StepStart, "s1", nil))
	require.NoError(t, log.Append(StepSuccess, "s1", map[string]interface{}{"stdout": "hello", "exit_code": "0"}))

	reopened, err := OpenJSONLog(path)
	require.NoError(t, err)

	events, err := reopened.Events()
	require.NoError(t, err)
	require.Len(t, events, 3)

	stepID, ok := LastSuccessfulStep(events)
	require.True(t, ok)
	assert.Equal(t, "s1", stepID)
}

func TestLoopCounter(t *testing.T) {
	events := []Event{
		{EventType: LoopIteration, StepID: "L", Payload: map[string]interface{}{"counter": "1"}},
		{EventType: LoopIteration, StepID: "L", Payload: map[string]interface{}{"counter": "2"}},
		{EventType: LoopIteration, StepID: "other", Payload: map[string]interface{}{"counter": "9"}},
	}

	assert.Equal(t, 2, LoopCounter(events, "L"))
	assert.Equal(t, 0, LoopCounter(events, "never-entered"))
}

func TestLastSuccessfulStep_None(t *testing.T) {
	_, ok := LastSuccessfulStep(nil)
	assert.False(t, ok, "expected ok=false for empty event list")
}

func TestJSONLogPath(t *testing.T) {
	got := JSONLogPath("./.paws_logs", "/workflows/deploy.aol")
	want := filepath.Join(".paws_logs", "deploy.json")
	assert.Equal(t, want, got)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("carrier-pigeon", t.TempDir(), "wf.aol")
	assert.Error(t, err, "expected error for unknown backend")
}
