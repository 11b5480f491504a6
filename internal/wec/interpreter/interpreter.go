// Package interpreter implements the Interpreter (C6): the driver that
// walks a workflow's step array with an instruction pointer, evaluates
// conditionals/loops/switches, calls the Expression Evaluator, Entitlements
// Checker, and Tool Dispatcher, applies failure policies, and writes every
// transition to the Event Log.
package interpreter

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	ctxstore "github.com/cortexflow/wec/internal/wec/context"
	"github.com/cortexflow/wec/internal/document"
	"github.com/cortexflow/wec/internal/logging"
	"github.com/cortexflow/wec/internal/wec/dispatcher"
	"github.com/cortexflow/wec/internal/wec/entitlements"
	"github.com/cortexflow/wec/internal/wec/eventlog"
	"github.com/cortexflow/wec/internal/wec/expr"
	"github.com/cortexflow/wec/internal/planner"
)

var log = logging.Global().WithComponent("interpreter")

// Interpreter drives execution of a single workflow document.
type Interpreter struct {
	wf       *document.Workflow
	registry *dispatcher.Registry
	log      eventlog.Log
	ctx      *ctxstore.Store

	loopCounters            map[string]int
	defaultRetry            int
	planner                 *planner.Client
	strictEmptyEntitlements bool
	runID                   string
}

// append records an event, stamping its payload with the run's run_id for
// multi-run log correlation. A nil payload becomes a fresh map; callers
// must not reuse a payload map after passing it here.
func (i *Interpreter) append(eventType eventlog.EventType, stepID string, payload map[string]interface{}) error {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["run_id"] = i.runID
	return i.log.Append(eventType, stepID, payload)
}

// Option configures an Interpreter at construction time.
type Option func(*Interpreter)

// WithDefaultMaxRetries sets the retry count used when a step's on_failure
// does not specify max_retries.
func WithDefaultMaxRetries(n int) Option {
	return func(i *Interpreter) {
		if n > 0 {
			i.defaultRetry = n
		}
	}
}

// WithPlanner wires a Planner client so self_heal failures also send their
// feedback payload upstream, in addition to recording it in the
// WORKFLOW_ABORTED event.
func WithPlanner(p *planner.Client) Option {
	return func(i *Interpreter) { i.planner = p }
}

// WithStrictEmptyEntitlements makes the Entitlements Checker deny, rather
// than permissively allow, a step whose workflow declares no entitlement
// rules at all.
func WithStrictEmptyEntitlements(strict bool) Option {
	return func(i *Interpreter) { i.strictEmptyEntitlements = strict }
}

// New constructs an Interpreter for wf, dispatching through registry and
// recording transitions to log.
func New(wf *document.Workflow, registry *dispatcher.Registry, log eventlog.Log, opts ...Option) *Interpreter {
	i := &Interpreter{
		wf:           wf,
		registry:     registry,
		log:          log,
		ctx:          ctxstore.New(),
		loopCounters: make(map[string]int),
		defaultRetry: document.DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// abortError carries a terminal failure reason and, for self_heal, the
// feedback payload that should ride along in the WORKFLOW_ABORTED event.
type abortError struct {
	reason string
	extra  map[string]interface{}
}

func (e *abortError) Error() string { return e.reason }

// Run executes the workflow from the beginning, or from the step after the
// last STEP_SUCCESS recorded in the Event Log when resuming. It returns nil
// on WORKFLOW_COMPLETE and a non-nil error on WORKFLOW_ABORTED, a fatal
// I/O error, or cancellation of ctx, which is checked at each step boundary
// and ends the run without a terminal event so it can be resumed.
func (i *Interpreter) Run(ctx context.Context) error {
	events, err := i.log.Events()
	if err != nil {
		return fmt.Errorf("read event log: %w", err)
	}

	userInputs := map[string]interface{}{
		"prompt":    i.wf.UserInputs.Prompt,
		"resources": i.wf.UserInputs.Resources,
	}
	provider := map[string]interface{}{
		"name":    i.wf.Provider.Name,
		"context": i.wf.Provider.Context,
	}
	i.ctx.Seed(userInputs, provider)

	ip := 0
	if len(events) > 0 {
		if existing, ok := events[0].Payload["run_id"].(string); ok && existing != "" {
			i.runID = existing
		} else {
			i.runID = uuid.NewString()
		}
		i.restoreLoopCounters(events)
		if stepID, ok := eventlog.LastSuccessfulStep(events); ok {
			ip = i.wf.IndexOf(stepID) + 1
		}
	} else {
		i.runID = uuid.NewString()
		if err := i.append(eventlog.StateZero, "", map[string]interface{}{"user_inputs": userInputs}); err != nil {
			return fmt.Errorf("append STATE_ZERO: %w", err)
		}
	}

	steps := i.wf.Steps
	for ip < len(steps) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled before step index %d: %w", ip, err)
		}
		step := steps[ip]

		switch {
		case step.LoopBegin != nil:
			ip = i.handleLoopBegin(step, ip)
		case step.LoopEnd != nil:
			ip = i.handleLoopEnd(step, ip)
		case step.Switch != nil:
			next, err := i.handleSwitch(step, ip)
			if err != nil {
				return err
			}
			ip = next
		default:
			if err := i.executeWithPolicy(ctx, step); err != nil {
				return i.abort(step.ID, err)
			}
			ip++
		}
	}

	if err := i.append(eventlog.WorkflowComplete, "", map[string]interface{}{}); err != nil {
		return fmt.Errorf("append WORKFLOW_COMPLETE: %w", err)
	}
	return nil
}

func (i *Interpreter) abort(stepID string, cause error) error {
	log.Error("workflow aborted at step %q: %v", stepID, cause)
	payload := map[string]interface{}{"reason": cause.Error()}
	if ae, ok := cause.(*abortError); ok && ae.extra != nil {
		payload["self_heal"] = ae.extra
	}
	if err := i.append(eventlog.WorkflowAborted, stepID, payload); err != nil {
		return fmt.Errorf("append WORKFLOW_ABORTED (original failure %q): %w", cause, err)
	}
	return cause
}

func (i *Interpreter) restoreLoopCounters(events []eventlog.Event) {
	for _, step := range i.wf.Steps {
		if step.LoopBegin == nil {
			continue
		}
		i.loopCounters[step.ID] = eventlog.LoopCounter(events, step.ID)
	}
}

func (i *Interpreter) lookup(id, key string) (string, bool) {
	return i.ctx.Lookup(id, key)
}

// execute runs the regular (non-control) step logic of §4.6 once. It
// returns failed=true when the step's outcome should go through the
// failure policy, and a non-nil error only for fatal Event Log I/O
// failures, which must propagate immediately.
func (i *Interpreter) execute(step document.Step) (failed bool, err error) {
	if step.Condition != "" {
		if !expr.Evaluate(step.Condition, i.lookup) {
			if err := i.append(eventlog.StepSkipped, step.ID, map[string]interface{}{"reason": "condition evaluated false"}); err != nil {
				return false, err
			}
			i.ctx.Set(step.ID, ctxstore.SkippedEntry())
			return false, nil
		}
	}

	if err := i.append(eventlog.StepStart, step.ID, map[string]interface{}{}); err != nil {
		return false, err
	}
	log.Debug("step %q started (extension=%q tool=%q)", step.ID, step.Extension, step.Tool)

	if step.Extension == "" {
		i.ctx.Set(step.ID, ctxstore.StepSuccessEntry("", "", 0, nil, false))
		if err := i.append(eventlog.StepSuccess, step.ID, map[string]interface{}{"stdout": "", "exit_code": 0}); err != nil {
			return false, err
		}
		return false, nil
	}

	if unresolved := i.unresolvedRefs(step.Inputs); len(unresolved) > 0 {
		if err := i.append(eventlog.StepFailure, step.ID, map[string]interface{}{"validation_errors": unresolved}); err != nil {
			return false, err
		}
		return true, nil
	}

	for _, path := range entitlements.ExtractPaths(step.Inputs) {
		decision := entitlements.Check(i.wf.Provider.Entitlements, step.Extension, step.Tool, path, i.strictEmptyEntitlements)
		if !decision.Allowed {
			reason := fmt.Sprintf("entitlement denied: %s", decision.Reason)
			if err := i.append(eventlog.StepFailure, step.ID, map[string]interface{}{"error": reason}); err != nil {
				return false, err
			}
			return true, nil
		}
	}

	result, dispatchErr := dispatcher.Dispatch(i.registry, step.Extension, step.Tool, step.Inputs, i.lookup)
	if dispatchErr != nil {
		if err := i.append(eventlog.StepFailure, step.ID, map[string]interface{}{"error": dispatchErr.Error()}); err != nil {
			return false, err
		}
		return true, nil
	}

	validationErrors := i.validateOutputs(step, result)

	if result.IsError || len(validationErrors) > 0 {
		payload := map[string]interface{}{
			"stdout":            result.Stdout,
			"stderr":            result.Stderr,
			"exit_code":         result.ExitCode,
			"validation_errors": validationErrors,
		}
		if result.IsError {
			payload["error"] = result.Stderr
		}
		if err := i.append(eventlog.StepFailure, step.ID, payload); err != nil {
			return false, err
		}
		return true, nil
	}

	i.ctx.Set(step.ID, ctxstore.StepSuccessEntry(result.Stdout, result.Stderr, result.ExitCode, result.Result, result.IsError))
	if err := i.append(eventlog.StepSuccess, step.ID, map[string]interface{}{
		"stdout":    strings.TrimSpace(result.Stdout),
		"exit_code": result.ExitCode,
	}); err != nil {
		return false, err
	}
	log.Debug("step %q succeeded", step.ID)
	return false, nil
}

// unresolvedRefs reports every "{{id.key}}" reference in step's inputs that
// cannot currently be resolved against the Context Store, matching
// validator.py's validate_outputs_exist. The reserved user_inputs/provider
// ids are always considered resolvable, since Run seeds them unconditionally
// before any step executes.
func (i *Interpreter) unresolvedRefs(inputs map[string]interface{}) []string {
	var unresolved []string
	for _, ref := range expr.References(inputs) {
		id, key, ok := splitRef(ref)
		if !ok {
			unresolved = append(unresolved, fmt.Sprintf("invalid reference format: '%s'", ref))
			continue
		}
		if id == ctxstore.ReservedUserInputs || id == ctxstore.ReservedProvider {
			continue
		}
		entry, ok := i.ctx.Get(id)
		if !ok {
			unresolved = append(unresolved, fmt.Sprintf("step '%s' not found in context for reference '%s'", id, ref))
			continue
		}
		if _, ok := entry[key]; !ok {
			unresolved = append(unresolved, fmt.Sprintf("output '%s' not found in step '%s' for reference '%s'", key, id, ref))
		}
	}
	return unresolved
}

func splitRef(ref string) (id, key string, ok bool) {
	idx := strings.Index(ref, ".")
	if idx < 0 {
		return "", "", false
	}
	return ref[:idx], ref[idx+1:], true
}

// validateOutputs checks declared file outputs against the actual
// filesystem, per §4.7 / the source's validate_step.
func (i *Interpreter) validateOutputs(step document.Step, result dispatcher.StepResult) []string {
	var errs []string
	for key, desc := range step.Outputs {
		if !isFileOutput(key, desc) {
			continue
		}
		path := extractFilePath(result, key)
		if path == "" {
			continue
		}
		info, statErr := os.Stat(path)
		switch {
		case statErr != nil:
			errs = append(errs, fmt.Sprintf("expected output file '%s' does not exist", path))
		case info.Size() == 0:
			errs = append(errs, fmt.Sprintf("output file '%s' is empty", path))
		}
	}
	return errs
}

var fileIndicators = []string{"file", "path", "output_file", "result_file", "image", "video", "audio", "pdf"}

func isFileOutput(key string, desc interface{}) bool {
	keyLower := strings.ToLower(key)
	for _, ind := range fileIndicators {
		if strings.Contains(keyLower, ind) {
			return true
		}
	}
	if descStr, ok := desc.(string); ok {
		descLower := strings.ToLower(descStr)
		for _, ind := range fileIndicators {
			if strings.Contains(descLower, ind) {
				return true
			}
		}
	}
	return false
}

func extractFilePath(result dispatcher.StepResult, key string) string {
	if extra, ok := result.Result["result"].(map[string]interface{}); ok {
		if v, ok := extra[key]; ok {
			if s, ok := v.(string); ok && (strings.Contains(s, "/") || strings.Contains(s, `\`)) {
				return s
			}
		}
	}

	stdout := strings.TrimSpace(result.Stdout)
	if stdout == "" {
		return ""
	}
	if !strings.Contains(stdout, "/") && !strings.Contains(stdout, `\`) {
		return ""
	}
	lines := strings.Split(stdout, "\n")
	candidate := strings.TrimSpace(lines[len(lines)-1])
	if candidate == "" || strings.HasPrefix(candidate, "#") {
		return ""
	}
	return candidate
}
