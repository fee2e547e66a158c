package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tdermendjiev/aiwe-client/internal/catalog"
)

// PolicyFunc lets governance veto an action before it executes. A nil
// func allows everything, a returned error aborts the run.
type PolicyFunc func(ctx context.Context, action Action, params map[string]any) error

// Runner executes a plan end to end: linearize, then for each action
// skip or resolve, execute with retries, and record the outcome. One
// Runner instance serves one session.
type Runner struct {
	Executor *Executor
	Retry    *Retry
	Policy   PolicyFunc
	Ledger   Ledger
}

// Run executes the plan against the resolved catalogs. The completed map
// is the session's prior completion ledger, it is updated in place as
// actions succeed so later actions in the same run see them.
//
// Failures that escalation decided to continue past are recorded in the
// returned results and do not stop the run. Fatal failures, such as plan
// defects, missing credentials, or an escalation stop, abort it, and the
// results accumulated so far are returned alongside the error.
func (r *Runner) Run(ctx context.Context, actions []Action, catalogs *catalog.Set, completed map[string]CompletedAction) ([]Result, error) {
	ordered, err := Linearize(actions)
	if err != nil {
		return nil, err
	}
	if completed == nil {
		completed = make(map[string]CompletedAction)
	}

	outputs := NewOutputStore()
	for id, rec := range completed {
		outputs.Set(id, rec.Result)
	}

	var results []Result
	for _, action := range ordered {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		if prior, done := completed[action.ID]; done && !action.AlwaysExecute {
			log.Printf("Engine: skipping %s, already completed at %s", action.ID, prior.CompletedAt.Format(time.RFC3339))
			outputs.Set(action.OutputKey, prior.Result)
			results = append(results, Result{
				Status:      StatusSuccess,
				ActionID:    action.ID,
				ServiceName: action.ServiceName,
				Result:      prior.Result,
				Skipped:     true,
			})
			continue
		}

		for _, dep := range action.DependsOn {
			if _, ok := completed[dep]; !ok {
				return results, &Error{
					Kind:        KindMissingDependency,
					ActionID:    action.ID,
					ServiceName: action.ServiceName,
					Message:     fmt.Sprintf("action %q depends on %q, which has no completion record", action.ID, dep),
				}
			}
		}

		entry, ok := catalogs.Lookup(action.ServiceName)
		if !ok {
			return results, &Error{
				Kind:        KindMissingCatalog,
				ActionID:    action.ID,
				ServiceName: action.ServiceName,
				Message:     fmt.Sprintf("action %q targets service %q, which has no resolved catalog", action.ID, action.ServiceName),
			}
		}

		params, err := ResolveParams(action.Parameters, outputs)
		if err != nil {
			return results, err
		}

		if r.Policy != nil {
			if perr := r.Policy(ctx, action, params); perr != nil {
				return results, &Error{
					Kind:        KindPolicyDenied,
					ActionID:    action.ID,
					ServiceName: action.ServiceName,
					Message:     fmt.Sprintf("action %q denied by policy", action.ID),
					Err:         perr,
				}
			}
		}

		log.Printf("Engine: executing %s on %s via %s", action.ID, action.ServiceName, entry.Tier)
		result, failures, err := r.Retry.Do(ctx, action.ID, action.ServiceName, func(ctx context.Context) (any, error) {
			return r.Executor.Execute(ctx, action.ID, action.ServiceName, params, entry)
		})
		if err != nil {
			if fatalKind(KindOf(err)) {
				return results, err
			}
			results = append(results, Result{
				Status:      StatusError,
				ActionID:    action.ID,
				ServiceName: action.ServiceName,
				Error:       err.Error(),
				Retries:     failures,
			})
			continue
		}

		outputs.Set(action.OutputKey, result)
		rec := CompletedAction{
			ActionID:    action.ID,
			ServiceName: action.ServiceName,
			Result:      result,
			CompletedAt: time.Now(),
		}
		completed[action.ID] = rec
		outputs.Set(action.ID, result)
		if r.Ledger != nil {
			if lerr := r.Ledger.RecordCompletion(rec); lerr != nil {
				log.Printf("Engine: warning: failed to record completion of %s: %v", action.ID, lerr)
			}
		}
		results = append(results, Result{
			Status:      StatusSuccess,
			ActionID:    action.ID,
			ServiceName: action.ServiceName,
			Result:      result,
			Retries:     failures,
		})
	}
	return results, nil
}
