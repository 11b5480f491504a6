package interpreter

import (
	"github.com/cortexflow/wec/internal/document"
	ctxstore "github.com/cortexflow/wec/internal/wec/context"
	"github.com/cortexflow/wec/internal/wec/eventlog"
	"github.com/cortexflow/wec/internal/wec/expr"
)

// handleLoopBegin implements §4.6's handle_loop_begin: increments the
// loop's counter, records it, and either continues into the loop body or
// jumps past the matching loop_end once max_iterations is exceeded.
func (i *Interpreter) handleLoopBegin(step document.Step, ip int) int {
	id := step.ID
	i.loopCounters[id]++
	counter := i.loopCounters[id]

	i.ctx.Set(id, ctxstore.LoopCounterEntry(counter))
	_ = i.append(eventlog.LoopIteration, id, map[string]interface{}{"counter": counter})

	maxIterations := step.LoopBegin.MaxIterations
	if maxIterations > 0 && counter > maxIterations {
		if endIdx := i.findLoopEnd(id, ip+1); endIdx >= 0 {
			return endIdx + 1
		}
		return len(i.wf.Steps)
	}

	return ip + 1
}

// handleLoopEnd implements handle_loop_end: on a true exit_when, falls
// through; otherwise jumps back to the matching loop_begin.
func (i *Interpreter) handleLoopEnd(step document.Step, ip int) int {
	if expr.Evaluate(step.LoopEnd.ExitWhen, i.lookup) {
		return ip + 1
	}
	if beginIdx := i.wf.IndexOf(step.LoopEnd.LoopID); beginIdx >= 0 {
		return beginIdx
	}
	return ip + 1
}

// handleSwitch implements handle_switch. Per the documented open question,
// the selection is recorded but does not cause a jump; subsequent steps
// still run in textual order.
func (i *Interpreter) handleSwitch(step document.Step, ip int) (int, error) {
	value := expr.Interpolate(step.Switch.Value, i.lookup)

	selected := step.Switch.Default
	matchedCase := ""
	for _, c := range step.Switch.Cases {
		if c.Match == value {
			selected = c.Steps
			matchedCase = c.Match
			break
		}
	}

	if err := i.append(eventlog.SwitchSelected, step.ID, map[string]interface{}{
		"value":   value,
		"match":   matchedCase,
		"enabled": selected,
	}); err != nil {
		return ip, err
	}

	return ip + 1, nil
}

func (i *Interpreter) findLoopEnd(loopID string, from int) int {
	for idx := from; idx < len(i.wf.Steps); idx++ {
		step := i.wf.Steps[idx]
		if step.LoopEnd != nil && step.LoopEnd.LoopID == loopID {
			return idx
		}
	}
	return -1
}
