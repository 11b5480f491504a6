// Package dispatcher implements the Tool Dispatcher (C5): resolves an
// extension name to a registered instance, invokes a named tool with
// interpolated arguments, and normalizes the response into a StepResult.
package dispatcher

import (
	"fmt"

	"github.com/cortexflow/wec/internal/logging"
	"github.com/cortexflow/wec/internal/wec/expr"
)

var log = logging.Global().WithComponent("dispatcher")

// ContentItem is one entry in a tool response's content list.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResponse is the shape every Extension.Invoke must return.
type ToolResponse struct {
	Content []ContentItem          `json:"content"`
	IsError bool                   `json:"isError"`
	Result  map[string]interface{} `json:"result,omitempty"`
}

// ToolDefinition is what Extension.Describe returns for each tool it
// exposes.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Extension is the two-operation contract every tool provider implements.
// The core treats extensions as black boxes; it never inspects their
// internals beyond this interface.
type Extension interface {
	Describe() []ToolDefinition
	Invoke(tool string, arguments map[string]interface{}) (ToolResponse, error)
}

// DefaultTool is used when a step does not specify step.tool.
const DefaultTool = "execute_command"

// Registry is a process-local mapping from extension name to instance.
// It must allow registration at startup; lookups return the instance or
// absence, mirroring the source's name -> source-locator contract with the
// locator resolved eagerly to a live instance at registration time.
type Registry struct {
	extensions map[string]Extension
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{extensions: make(map[string]Extension)}
}

// Register adds or replaces the extension under name.
func (r *Registry) Register(name string, ext Extension) {
	r.extensions[name] = ext
}

// Get returns the extension registered under name, and whether it exists.
func (r *Registry) Get(name string) (Extension, bool) {
	ext, ok := r.extensions[name]
	return ext, ok
}

// StepResult is the normalized outcome of a tool invocation, the shape
// written to the Context Store and the Event Log payload.
type StepResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Result   map[string]interface{}
	IsError  bool
}

// Dispatch resolves extensionName in the registry, interpolates every
// string-valued leaf of args through lookup, and invokes tool (defaulting
// to DefaultTool when empty). It never returns a Go error for an extension
// invocation failure — that is folded into the returned StepResult per
// §4.5; it returns an error only when the extension itself is unknown.
func Dispatch(registry *Registry, extensionName, tool string, args map[string]interface{}, lookup expr.Lookup) (StepResult, error) {
	ext, ok := registry.Get(extensionName)
	if !ok {
		log.Error("extension not found: %s", extensionName)
		return StepResult{}, fmt.Errorf("extension not found: %s", extensionName)
	}

	if tool == "" {
		tool = DefaultTool
	}

	interpolated := interpolateArgs(args, lookup)

	log.Debug("dispatching %s/%s", extensionName, tool)

	resp, err := safeInvoke(ext, tool, interpolated)
	if err != nil {
		log.Error("%s/%s invocation panicked: %v", extensionName, tool, err)
		return StepResult{
			Stdout:   "",
			Stderr:   err.Error(),
			ExitCode: 1,
			Result:   map[string]interface{}{"error": err.Error()},
			IsError:  true,
		}, nil
	}

	return normalize(resp), nil
}

// safeInvoke recovers from a panicking extension, treating it the same as
// a thrown exception in the source: is_error = true, stderr = message.
func safeInvoke(ext Extension, tool string, args map[string]interface{}) (resp ToolResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return ext.Invoke(tool, args)
}

// normalize builds a StepResult from a raw ToolResponse, matching
// parse_observation: result is the whole raw_output mapping (content,
// isError, and any extension-specific result fields), not just the
// extension's optional extra result field.
func normalize(resp ToolResponse) StepResult {
	var text string
	for i, c := range resp.Content {
		if i > 0 {
			text += "\n"
		}
		text += c.Text
	}

	result := StepResult{
		Result:  rawOutput(resp),
		IsError: resp.IsError,
	}

	if resp.IsError {
		result.Stderr = text
		result.ExitCode = 1
	} else {
		result.Stdout = text
		result.ExitCode = 0
	}

	return result
}

func rawOutput(resp ToolResponse) map[string]interface{} {
	content := make([]interface{}, len(resp.Content))
	for i, c := range resp.Content {
		content[i] = map[string]interface{}{"type": c.Type, "text": c.Text}
	}
	out := map[string]interface{}{
		"content": content,
		"isError": resp.IsError,
	}
	if resp.Result != nil {
		out["result"] = resp.Result
	}
	return out
}

func interpolateArgs(args map[string]interface{}, lookup expr.Lookup) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = interpolateValue(v, lookup)
	}
	return out
}

func interpolateValue(v interface{}, lookup expr.Lookup) interface{} {
	switch val := v.(type) {
	case string:
		return expr.Interpolate(val, lookup)
	case map[string]interface{}:
		return interpolateArgs(val, lookup)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = interpolateValue(item, lookup)
		}
		return out
	default:
		return v
	}
}
