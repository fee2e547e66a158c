package engine

import (
	"context"
	"fmt"
	"log"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
	DefaultMaxResets   = 5
)

// Decision is an escalation verdict.
type Decision string

const (
	DecisionStop     Decision = "stop"
	DecisionContinue Decision = "continue"
	DecisionRetry    Decision = "retry"
)

// EscalationRequest carries one action's failure history to the decider.
type EscalationRequest struct {
	ActionID    string
	ServiceName string
	Attempts    int
	Errors      []string
}

// LastError returns the most recent failure message.
func (r EscalationRequest) LastError() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[len(r.Errors)-1]
}

// EscalationDecision is the decider's verdict: stop the plan, continue
// past the failed action, or retry it with a fresh attempt budget.
type EscalationDecision struct {
	Decision Decision
	Reason   string
}

// Escalator decides what happens after an action exhausts its attempts.
type Escalator interface {
	DecideEscalation(ctx context.Context, req EscalationRequest) (EscalationDecision, error)
}

// Retry wraps action execution with bounded, linearly backed-off
// attempts and an escalation step once they are exhausted. A "retry"
// verdict resets the attempt budget, but only MaxResets times per
// action, after that it is treated as a stop. A nil Escalator behaves
// like an unconditional "continue".
type Retry struct {
	MaxAttempts int
	Delay       time.Duration
	MaxResets   int
	Escalator   Escalator

	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetry(escalator Escalator) *Retry {
	return &Retry{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultRetryDelay,
		MaxResets:   DefaultMaxResets,
		Escalator:   escalator,
		sleep:       sleepCtx,
	}
}

// Do runs exec until it succeeds, fails unrecoverably, or escalation
// says to give up. The returned count is the total number of failed
// attempts across resets. Credential errors propagate immediately.
func (r *Retry) Do(ctx context.Context, actionID, service string, exec func(context.Context) (any, error)) (any, int, error) {
	attempts := 0
	failures := 0
	resets := 0
	var history []string

	for {
		result, err := exec(ctx)
		if err == nil {
			return result, failures, nil
		}
		if KindOf(err) == KindCredential {
			return nil, failures, err
		}

		attempts++
		failures++
		history = append(history, err.Error())
		log.Printf("Engine: action %s failed (attempt %d/%d): %v", actionID, attempts, r.MaxAttempts, err)

		if attempts < r.MaxAttempts {
			wait := time.Duration(attempts) * r.Delay
			log.Printf("Engine: retrying %s in %s", actionID, wait)
			if serr := r.sleep(ctx, wait); serr != nil {
				return nil, failures, execErrf(actionID, service, serr, "retry wait interrupted")
			}
			continue
		}

		if r.Escalator == nil {
			return nil, failures, fmt.Errorf("action %s failed after %d attempts: %w", actionID, failures, err)
		}

		decision, derr := r.Escalator.DecideEscalation(ctx, EscalationRequest{
			ActionID:    actionID,
			ServiceName: service,
			Attempts:    failures,
			Errors:      history,
		})
		if derr != nil {
			return nil, failures, &Error{
				Kind:        KindEscalationStop,
				ActionID:    actionID,
				ServiceName: service,
				Attempts:    failures,
				Message:     fmt.Sprintf("action %s: escalation failed after %d attempts", actionID, failures),
				Err:         derr,
			}
		}
		log.Printf("Engine: escalation for %s decided %q: %s", actionID, decision.Decision, decision.Reason)

		switch decision.Decision {
		case DecisionRetry:
			resets++
			if r.MaxResets > 0 && resets > r.MaxResets {
				return nil, failures, &Error{
					Kind:        KindEscalationStop,
					ActionID:    actionID,
					ServiceName: service,
					Attempts:    failures,
					Message:     fmt.Sprintf("action %s: retry reset limit (%d) reached", actionID, r.MaxResets),
					Err:         err,
				}
			}
			attempts = 0
		case DecisionStop:
			msg := decision.Reason
			if msg == "" {
				msg = fmt.Sprintf("stopped after %d attempts", failures)
			}
			return nil, failures, &Error{
				Kind:        KindEscalationStop,
				ActionID:    actionID,
				ServiceName: service,
				Attempts:    failures,
				Message:     fmt.Sprintf("action %s: %s", actionID, msg),
				Err:         err,
			}
		default:
			return nil, failures, fmt.Errorf("action %s failed after %d attempts: %w", actionID, failures, err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
