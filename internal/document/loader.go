package document

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidationError aggregates the document errors found while loading or
// validating a workflow: missing file, wrong suffix, malformed YAML, schema
// violation, unresolved step reference, or malformed loop nesting. All are
// fatal to the Loader; none of them reach the Interpreter.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	return fmt.Sprintf("%d document errors: %s", len(e.Errors), strings.Join(e.Errors, "; "))
}

// Load reads a .aol file from disk, decodes it against the strict schema,
// and validates step-id uniqueness, loop structure, and step references.
func Load(path string) (*Workflow, error) {
	if filepath.Ext(path) != ".aol" {
		return nil, &ValidationError{Errors: []string{fmt.Sprintf("expected .aol file, got: %s", filepath.Ext(path))}}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ValidationError{Errors: []string{fmt.Sprintf("workflow file not found: %s", path)}}
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes and validates a workflow document from raw YAML bytes.
func Parse(data []byte) (*Workflow, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ValidationError{Errors: []string{"empty workflow document"}}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var wf Workflow
	if err := dec.Decode(&wf); err != nil {
		return nil, &ValidationError{Errors: []string{fmt.Sprintf("invalid workflow YAML: %v", err)}}
	}

	if errs := Validate(&wf); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return &wf, nil
}

// Validate checks the invariants of §3: unique step ids, well-formed loop
// nesting, and resolvable step references. It does not check extension
// registration — that is the Dispatcher's concern at dispatch time.
func Validate(wf *Workflow) []string {
	var errs []string

	stepIDs := make(map[string]bool, len(wf.Steps))
	for _, s := range wf.Steps {
		if s.ID == "" {
			errs = append(errs, "step with empty id")
			continue
		}
		if stepIDs[s.ID] {
			errs = append(errs, fmt.Sprintf("duplicate step id '%s'", s.ID))
		}
		stepIDs[s.ID] = true
	}

	errs = append(errs, validateStepReferences(wf.Steps, stepIDs)...)
	errs = append(errs, validateLoopStructure(wf.Steps)...)

	return errs
}

// validateStepReferences checks that loop_end, switch, and fallback_step
// references all name a step that exists in the workflow.
func validateStepReferences(steps []Step, stepIDs map[string]bool) []string {
	var errs []string

	for _, s := range steps {
		if s.LoopEnd != nil {
			if !stepIDs[s.LoopEnd.LoopID] {
				errs = append(errs, fmt.Sprintf("step '%s': loop_end references unknown loop_id '%s'", s.ID, s.LoopEnd.LoopID))
			}
		}

		if s.Switch != nil {
			for _, c := range s.Switch.Cases {
				for _, ref := range c.Steps {
					if !stepIDs[ref] {
						errs = append(errs, fmt.Sprintf("step '%s': switch case references unknown step '%s'", s.ID, ref))
					}
				}
			}
			for _, ref := range s.Switch.Default {
				if !stepIDs[ref] {
					errs = append(errs, fmt.Sprintf("step '%s': switch default references unknown step '%s'", s.ID, ref))
				}
			}
		}

		if s.OnFailure != nil && s.OnFailure.FallbackStep != "" {
			if !stepIDs[s.OnFailure.FallbackStep] {
				errs = append(errs, fmt.Sprintf("step '%s': fallback_step references unknown step '%s'", s.ID, s.OnFailure.FallbackStep))
			}
		}
	}

	return errs
}

// validateLoopStructure checks that loops are properly nested (LIFO, the
// innermost open loop closes first) and that every opened loop is closed.
func validateLoopStructure(steps []Step) []string {
	var errs []string

	type frame struct {
		loopID string
		index  int
	}
	var stack []frame
	begins := make(map[string]int)

	for idx, s := range steps {
		if s.LoopBegin != nil {
			stack = append(stack, frame{loopID: s.ID, index: idx})
			begins[s.ID] = idx
		}

		if s.LoopEnd != nil {
			loopID := s.LoopEnd.LoopID

			beginIdx, ok := begins[loopID]
			if !ok {
				errs = append(errs, fmt.Sprintf("step '%s': loop_end references '%s' but no loop_begin found", s.ID, loopID))
				continue
			}

			if beginIdx >= idx {
				errs = append(errs, fmt.Sprintf("step '%s': loop_end must come after loop_begin '%s'", s.ID, loopID))
				continue
			}

			if len(stack) > 0 {
				top := stack[len(stack)-1]
				if loopID != top.loopID {
					errs = append(errs, fmt.Sprintf("step '%s': expected loop_end for '%s', got '%s' (invalid nesting)", s.ID, top.loopID, loopID))
				} else {
					stack = stack[:len(stack)-1]
				}
			}
		}
	}

	for _, f := range stack {
		errs = append(errs, fmt.Sprintf("loop '%s' (step index %d) is never closed with loop_end", f.loopID, f.index))
	}

	return errs
}
