package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedAndLookup(t *testing.T) {
	s := New()
	s.Seed(map[string]interface{}{"prompt": "deploy the app"}, map[string]interface{}{"name": "Localhost"})

	v, ok := s.Lookup(ReservedUserInputs, "prompt")
	require.True(t, ok)
	assert.Equal(t, "deploy the app", v)

	_, ok = s.Lookup(ReservedUserInputs, "missing_key")
	assert.False(t, ok, "expected missing key lookup to fail")
	_, ok = s.Lookup("missing_id", "x")
	assert.False(t, ok, "expected missing id lookup to fail")
}

func TestSetAndGet(t *testing.T) {
	s := New()
	s.Set("s1", StepSuccessEntry("  hello  ", "", 0, map[string]interface{}{"raw": true}, false))

	v, ok := s.Lookup("s1", "stdout")
	require.True(t, ok)
	assert.Equal(t, "hello", v, "expected stripped stdout")

	entry, ok := s.Get("s1")
	require.True(t, ok, "expected entry to exist")
	assert.Equal(t, "0", entry["exit_code"])
	result, ok := entry["result"].(map[string]interface{})
	require.True(t, ok, "expected result entry to carry the raw result mapping")
	assert.Equal(t, true, result["raw"])
}

func TestSkippedEntry(t *testing.T) {
	s := New()
	s.Set("s1", SkippedEntry())

	entry, _ := s.Get("s1")
	skipped, _ := entry["skipped"].(bool)
	assert.True(t, skipped, "expected skipped entry to be true")
}

func TestLoopCounterEntry(t *testing.T) {
	entry := LoopCounterEntry(3)
	assert.Equal(t, "3", entry["counter"])
}

func TestStringify(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"hi", "hi"},
		{true, "true"},
		{42, "42"},
		{float64(3), "3"},
		{float64(3.5), "3.5"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Stringify(c.in), "Stringify(%#v)", c.in)
	}
}
