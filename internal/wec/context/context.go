// Package context implements the Context Store (C2): the in-memory mapping
// from step id to that step's observable outputs, consulted by the
// Expression Evaluator and grown as steps succeed or are skipped.
package context

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ReservedUserInputs and ReservedProvider are the two entries seeded before
// any step runs.
const (
	ReservedUserInputs = "user_inputs"
	ReservedProvider   = "provider"
)

// Store is a mapping from string id to a mapping from string key to value.
// It only grows: entries are never removed once written.
type Store struct {
	mu      sync.RWMutex
	entries map[string]map[string]interface{}
}

// New returns an empty Context Store.
func New() *Store {
	return &Store{entries: make(map[string]map[string]interface{})}
}

// Seed writes the reserved user_inputs and provider entries. Must be called
// once, before any step executes.
func (s *Store) Seed(userInputs, provider map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[ReservedUserInputs] = userInputs
	s.entries[ReservedProvider] = provider
}

// Set writes (or overwrites) the entry for id. Used for step-success,
// step-skipped, and loop-counter writes.
func (s *Store) Set(id string, entry map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = entry
}

// Get returns the entry for id, and whether it exists.
func (s *Store) Get(id string) (map[string]interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Lookup resolves a "{{id.key}}"-style reference: returns the string form of
// entries[id][key], stripped of surrounding whitespace, and whether both id
// and key were found.
func (s *Store) Lookup(id, key string) (string, bool) {
	entry, ok := s.Get(id)
	if !ok {
		return "", false
	}
	val, ok := entry[key]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(Stringify(val)), true
}

// Stringify renders a Context Store value as its string form, matching the
// interpolation contract: empty value becomes empty string.
func Stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// StepSuccessEntry builds the entry written to the store after a step
// succeeds, per §4.2: stdout/stderr stripped, exit_code as decimal string,
// the raw result mapping, and is_error.
func StepSuccessEntry(stdout, stderr string, exitCode int, result map[string]interface{}, isError bool) map[string]interface{} {
	return map[string]interface{}{
		"stdout":    strings.TrimSpace(stdout),
		"stderr":    strings.TrimSpace(stderr),
		"exit_code": strconv.Itoa(exitCode),
		"result":    result,
		"is_error":  isError,
	}
}

// SkippedEntry builds the entry written to the store after a step is
// skipped by its condition.
func SkippedEntry() map[string]interface{} {
	return map[string]interface{}{"skipped": true}
}

// LoopCounterEntry builds the entry written under a loop_begin step's id.
func LoopCounterEntry(counter int) map[string]interface{} {
	return map[string]interface{}{"counter": strconv.Itoa(counter)}
}
