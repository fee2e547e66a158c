package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/tdermendjiev/aiwe-client/internal/adapters"
	"github.com/tdermendjiev/aiwe-client/internal/catalog"
	"github.com/tdermendjiev/aiwe-client/internal/engine"
	"github.com/tdermendjiev/aiwe-client/internal/governance"
	"github.com/tdermendjiev/aiwe-client/internal/observability"
	"github.com/tdermendjiev/aiwe-client/internal/oracle"
)

// Brain defines the conversational entry point of the client.
type Brain interface {
	Think(ctx context.Context, sessionID string, input string) (string, error)
}

// Memory is what the assistant needs from session storage.
type Memory interface {
	EnsureSession(id string) (string, error)
	AddMessage(sessionID string, role string, content string) error
	GetHistory(sessionID string, limit int) ([]llms.MessageContent, error)
	CompletedActions(sessionID string) (map[string]engine.CompletedAction, error)
	RecordCompletion(sessionID string, rec engine.CompletedAction) error
}

// Assistant walks one instruction through the whole pipeline: identify
// the services involved, resolve their catalogs, have the oracle
// propose a plan, run it, and word the outcome for the user. It
// implements Brain.
type Assistant struct {
	Oracle   oracle.Oracle
	Source   *catalog.Source
	Memory   Memory
	Executor *engine.Executor
	Policy   governance.PolicyEngine
	Logger   *observability.Logger

	// Retry knobs, zero values fall back to the engine defaults.
	MaxAttempts int
	RetryDelay  time.Duration
	MaxResets   int

	HistoryLimit int
}

func NewAssistant(o oracle.Oracle, src *catalog.Source, mem Memory, exec *engine.Executor) *Assistant {
	return &Assistant{
		Oracle:       o,
		Source:       src,
		Memory:       mem,
		Executor:     exec,
		HistoryLimit: 5,
	}
}

func (a *Assistant) Think(ctx context.Context, sessionID string, input string) (string, error) {
	sid, err := a.Memory.EnsureSession(sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to open session: %v", err)
	}
	sessionID = sid

	observability.SetStatus(observability.StagePlanning, input)
	defer observability.SetStatus(observability.StageIdle, "")

	limit := a.HistoryLimit
	if limit <= 0 {
		limit = 5
	}
	history, err := a.Memory.GetHistory(sessionID, limit)
	if err != nil {
		log.Printf("Agent: failed to load history for %s: %v", sessionID, err)
	}
	completed, err := a.Memory.CompletedActions(sessionID)
	if err != nil {
		log.Printf("Agent: failed to load completion ledger for %s: %v", sessionID, err)
		completed = nil
	}

	sctx := oracle.SessionContext{
		SessionID: sessionID,
		History:   history,
		Completed: completedRefs(completed),
	}

	reply, err := a.respond(ctx, sessionID, input, sctx, completed)
	if err != nil {
		return "", err
	}

	a.Memory.AddMessage(sessionID, "human", input)
	a.Memory.AddMessage(sessionID, "ai", reply)
	return reply, nil
}

func (a *Assistant) respond(ctx context.Context, sessionID, input string, sctx oracle.SessionContext, completed map[string]engine.CompletedAction) (string, error) {
	ident, err := a.Oracle.IdentifyServices(ctx, input, sctx)
	if err != nil {
		return "", fmt.Errorf("service identification failed: %v", err)
	}
	if ident.Status != oracle.StatusComplete && ident.Question != "" {
		return ident.Question, nil
	}

	catalogs, err := a.Source.ResolveAll(ctx, ident.ServiceNames())
	if err != nil {
		var missing *catalog.NoIntegrationError
		if errors.As(err, &missing) {
			return fmt.Sprintf("I can't work with %q yet: no native manifest, registry entry, or local adapter provides it.", missing.Service), nil
		}
		return "", err
	}
	if a.Logger != nil {
		for _, svc := range catalogs.Services() {
			entry, _ := catalogs.Lookup(svc)
			a.Logger.LogCatalog(sessionID, svc, string(entry.Tier), len(entry.Catalog.Actions))
		}
	}

	proposal, err := a.Oracle.ProposePlan(ctx, input, catalogs, sctx)
	if err != nil {
		return "", fmt.Errorf("planning failed: %v", err)
	}
	if proposal.Status != oracle.StatusComplete && proposal.Question != "" {
		return proposal.Question, nil
	}
	if len(proposal.Actions) == 0 {
		// Nothing to execute, answer directly.
		return a.summarize(ctx, input, nil)
	}

	planID := uuid.NewString()
	if a.Logger != nil {
		a.Logger.LogPlan(sessionID, planID, len(proposal.Actions), catalogs.Services())
		for _, action := range proposal.Actions {
			tier := ""
			if entry, ok := catalogs.Lookup(action.ServiceName); ok {
				tier = string(entry.Tier)
			}
			a.Logger.LogAction(sessionID, planID, action.ID, action.ServiceName, tier)
		}
	}

	observability.SetStatus(observability.StageExecuting, input)
	runner := &engine.Runner{
		Executor: a.Executor,
		Retry:    a.newRetry(),
		Policy:   a.policyFunc(sessionID),
		Ledger:   sessionLedger{memory: a.Memory, sessionID: sessionID},
	}
	results, runErr := runner.Run(adapters.WithSession(ctx, sessionID), proposal.Actions, catalogs, completed)

	if a.Logger != nil {
		for _, res := range results {
			a.Logger.LogActionResult(sessionID, planID, res.ActionID, res.Status, res.Retries, res.Skipped)
		}
	}

	if runErr != nil {
		if a.Logger != nil && engine.KindOf(runErr) == engine.KindPolicyDenied {
			a.Logger.Log(observability.Event{
				Type:      observability.EventTypePolicyCheck,
				SessionID: sessionID,
				PlanID:    planID,
				Data:      map[string]string{"effect": "deny", "error": runErr.Error()},
			})
		}
		log.Printf("Agent: run aborted for %s: %v", sessionID, runErr)
		// The run's outcome is the reply, fatal aborts included.
		return runErr.Error(), nil
	}

	return a.summarize(ctx, input, results)
}

func (a *Assistant) summarize(ctx context.Context, input string, results []engine.Result) (string, error) {
	summary, err := a.Oracle.Summarize(ctx, input, results)
	if err != nil {
		log.Printf("Agent: summarization failed: %v", err)
		return fallbackSummary(results), nil
	}
	return summary, nil
}

func (a *Assistant) newRetry() *engine.Retry {
	r := engine.NewRetry(a.Oracle)
	if a.MaxAttempts > 0 {
		r.MaxAttempts = a.MaxAttempts
	}
	if a.RetryDelay > 0 {
		r.Delay = a.RetryDelay
	}
	if a.MaxResets > 0 {
		r.MaxResets = a.MaxResets
	}
	return r
}

func (a *Assistant) policyFunc(sessionID string) engine.PolicyFunc {
	if a.Policy == nil {
		return nil
	}
	return func(ctx context.Context, action engine.Action, params map[string]any) error {
		args, _ := json.Marshal(params)
		res, err := a.Policy.Evaluate(ctx, governance.Request{
			Service:   action.ServiceName,
			Action:    action.ID,
			Arguments: string(args),
			SessionID: sessionID,
		})
		if err != nil {
			return err
		}
		if res.Effect == governance.EffectDeny {
			return fmt.Errorf("%s", res.Reason)
		}
		return nil
	}
}

// sessionLedger binds one session id to the memory's completion table
// so the runner can record completions without knowing about sessions.
type sessionLedger struct {
	memory    Memory
	sessionID string
}

func (l sessionLedger) RecordCompletion(rec engine.CompletedAction) error {
	return l.memory.RecordCompletion(l.sessionID, rec)
}

func completedRefs(completed map[string]engine.CompletedAction) []oracle.CompletedRef {
	if len(completed) == 0 {
		return nil
	}
	refs := make([]oracle.CompletedRef, 0, len(completed))
	for _, rec := range completed {
		refs = append(refs, oracle.CompletedRef{
			ActionID:    rec.ActionID,
			ServiceName: rec.ServiceName,
			CompletedAt: rec.CompletedAt.UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ActionID < refs[j].ActionID })
	return refs
}

func fallbackSummary(results []engine.Result) string {
	if len(results) == 0 {
		return "Done. Nothing needed executing."
	}
	var b strings.Builder
	b.WriteString("Here's what happened:\n")
	for _, res := range results {
		switch {
		case res.Skipped:
			fmt.Fprintf(&b, "- %s: reused the earlier result\n", res.ActionID)
		case res.Status == engine.StatusSuccess:
			fmt.Fprintf(&b, "- %s: ok\n", res.ActionID)
		default:
			fmt.Fprintf(&b, "- %s: failed (%s)\n", res.ActionID, res.Error)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
