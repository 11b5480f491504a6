package interpreter

import "github.com/cortexflow/wec/internal/document"

const contextSummaryMaxLen = 100

// selfHealPayload builds the feedback packet recorded in the
// WORKFLOW_ABORTED event (and also sent to the Planner, when one is
// configured) when a step's on_failure strategy is self_heal.
func (i *Interpreter) selfHealPayload(step document.Step) map[string]interface{} {
	completed, lastOutputs := i.contextSummary()

	return map[string]interface{}{
		"type": "self_heal_request",
		"failed_step": map[string]interface{}{
			"id":          step.ID,
			"description": step.Description,
		},
		"context_summary": map[string]interface{}{
			"completed_steps": completed,
			"last_outputs":    lastOutputs,
		},
		"request": "Please analyze the failure and generate a corrected workflow plan.",
	}
}

// contextSummary mirrors _summarize_context: lists every workflow step id
// that has an entry in the Context Store (the reserved user_inputs and
// provider entries are not included) and, for each, its stdout truncated to
// 100 characters.
func (i *Interpreter) contextSummary() ([]string, map[string]string) {
	var completed []string
	outputs := make(map[string]string)

	for _, step := range i.wf.Steps {
		entry, ok := i.ctx.Get(step.ID)
		if !ok {
			continue
		}
		completed = append(completed, step.ID)

		stdout, _ := entry["stdout"].(string)
		if stdout == "" {
			continue
		}
		if runes := []rune(stdout); len(runes) > contextSummaryMaxLen {
			stdout = string(runes[:contextSummaryMaxLen]) + "..."
		}
		outputs[step.ID] = stdout
	}

	return completed, outputs
}
