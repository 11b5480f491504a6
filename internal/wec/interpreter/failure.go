package interpreter

import (
	"context"
	"fmt"

	"github.com/cortexflow/wec/internal/document"
)

// executeWithPolicy runs step, and if it failed, applies its on_failure
// strategy (defaulting to abort). It returns nil on eventual success
// (including a successful retry or fallback), and a non-nil error only when
// the failure is terminal for the workflow.
func (i *Interpreter) executeWithPolicy(ctx context.Context, step document.Step) error {
	failed, err := i.execute(step)
	if err != nil {
		return err
	}
	if !failed {
		return nil
	}

	strategy := document.FailureAbort
	var policy *document.OnFailure
	if step.OnFailure != nil {
		policy = step.OnFailure
		if policy.Strategy != "" {
			strategy = policy.Strategy
		}
	}

	switch strategy {
	case document.FailureAbort:
		return fmt.Errorf("step '%s' failed", step.ID)

	case document.FailureSkip:
		log.Warn("step %q failed; skipping per on_failure policy", step.ID)
		return nil

	case document.FailureRetry:
		maxRetries := i.defaultRetry
		if policy != nil && policy.MaxRetries > 0 {
			maxRetries = policy.MaxRetries
		}
		for retry := 1; retry <= maxRetries; retry++ {
			log.Warn("step %q failed; retrying (retry %d/%d)", step.ID, retry, maxRetries)
			failed, err = i.execute(step)
			if err != nil {
				return err
			}
			if !failed {
				return nil
			}
		}
		return fmt.Errorf("step '%s' failed after %d retries", step.ID, maxRetries)

	case document.FailureFallback:
		fallbackStep, ok := i.wf.StepByID(policy.FallbackStep)
		if !ok {
			return fmt.Errorf("step '%s': fallback_step '%s' not found", step.ID, policy.FallbackStep)
		}
		fbFailed, fbErr := i.execute(fallbackStep)
		if fbErr != nil {
			return fbErr
		}
		if fbFailed {
			return fmt.Errorf("step '%s' failed and fallback step '%s' also failed", step.ID, fallbackStep.ID)
		}
		return nil

	case document.FailureSelfHeal:
		payload := i.selfHealPayload(step)
		if i.planner != nil {
			// Best-effort: a Planner unreachable for feedback does not
			// change the outcome, which is terminal either way.
			_, _ = i.planner.SubmitSelfHealFeedback(ctx, payload)
		}
		return &abortError{
			reason: fmt.Sprintf("step '%s' failed: self_heal requested, treated as terminal failure", step.ID),
			extra:  payload,
		}

	default:
		return fmt.Errorf("step '%s': unknown on_failure strategy %q", step.ID, strategy)
	}
}
