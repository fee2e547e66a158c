package agent

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/tdermendjiev/aiwe-client/internal/catalog"
	"github.com/tdermendjiev/aiwe-client/internal/engine"
	"github.com/tdermendjiev/aiwe-client/internal/governance"
	"github.com/tdermendjiev/aiwe-client/internal/oracle"
)

type fakeOracle struct {
	ident      oracle.ServiceIdentification
	identErr   error
	proposal   oracle.PlanProposal
	proposeErr error
	summary    string
	summaryErr error

	planCalls  int
	summarized []engine.Result
}

func (f *fakeOracle) IdentifyServices(ctx context.Context, instruction string, sctx oracle.SessionContext) (oracle.ServiceIdentification, error) {
	return f.ident, f.identErr
}

func (f *fakeOracle) ProposePlan(ctx context.Context, instruction string, catalogs *catalog.Set, sctx oracle.SessionContext) (oracle.PlanProposal, error) {
	f.planCalls++
	return f.proposal, f.proposeErr
}

func (f *fakeOracle) DecideEscalation(ctx context.Context, req engine.EscalationRequest) (engine.EscalationDecision, error) {
	return engine.EscalationDecision{Decision: engine.DecisionStop, Reason: "test"}, nil
}

func (f *fakeOracle) Summarize(ctx context.Context, instruction string, results []engine.Result) (string, error) {
	f.summarized = results
	return f.summary, f.summaryErr
}

type fakeMemory struct {
	messages  []string
	completed map[string]engine.CompletedAction
	recorded  []engine.CompletedAction
}

func (m *fakeMemory) EnsureSession(id string) (string, error) {
	if id == "" {
		id = "minted"
	}
	return id, nil
}

func (m *fakeMemory) AddMessage(sessionID, role, content string) error {
	m.messages = append(m.messages, role+": "+content)
	return nil
}

func (m *fakeMemory) GetHistory(sessionID string, limit int) ([]llms.MessageContent, error) {
	return nil, nil
}

func (m *fakeMemory) CompletedActions(sessionID string) (map[string]engine.CompletedAction, error) {
	return m.completed, nil
}

func (m *fakeMemory) RecordCompletion(sessionID string, rec engine.CompletedAction) error {
	if m.completed == nil {
		m.completed = make(map[string]engine.CompletedAction)
	}
	m.completed[rec.ActionID] = rec
	m.recorded = append(m.recorded, rec)
	return nil
}

type stubCatalogs map[string]*catalog.Catalog

func (s stubCatalogs) CatalogFor(service string) (*catalog.Catalog, bool) {
	c, ok := s[service]
	return c, ok
}

type stubInvoker struct {
	calls  int
	result any
	err    error
}

func (s *stubInvoker) Invoke(ctx context.Context, service, action string, params map[string]any) (any, error) {
	s.calls++
	return s.result, s.err
}

// failTransport keeps catalog lookups off the network so only the
// adapter tier can resolve.
type failTransport struct{}

func (failTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("no network in tests")
}

func calcCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Service:     "calc",
		Description: "Arithmetic",
		Actions: []catalog.ActionSpec{
			{Name: "add", Description: "Add two numbers"},
		},
	}
}

func newTestAssistant(o *fakeOracle, mem *fakeMemory, cats stubCatalogs, invoker *stubInvoker) *Assistant {
	client := &http.Client{Transport: failTransport{}}
	src := catalog.NewSource(client, "", cats)
	exec := engine.NewExecutor(client, "", nil, invoker)
	a := NewAssistant(o, src, mem, exec)
	a.RetryDelay = time.Millisecond
	return a
}

func TestThinkClarificationShortCircuits(t *testing.T) {
	o := &fakeOracle{ident: oracle.ServiceIdentification{
		Status:   oracle.StatusNeedsClarification,
		Question: "Which calendar do you mean?",
	}}
	mem := &fakeMemory{}
	a := newTestAssistant(o, mem, nil, nil)

	reply, err := a.Think(context.Background(), "s1", "check my calendar")
	if err != nil {
		t.Fatalf("Think failed: %v", err)
	}
	if reply != "Which calendar do you mean?" {
		t.Errorf("expected the clarification question back, got %q", reply)
	}
	if o.planCalls != 0 {
		t.Errorf("no plan should be proposed before clarification")
	}
	if len(mem.messages) != 2 || !strings.HasPrefix(mem.messages[0], "human:") || !strings.HasPrefix(mem.messages[1], "ai:") {
		t.Errorf("exchange not persisted: %v", mem.messages)
	}
}

func TestThinkNoIntegrationIsConversational(t *testing.T) {
	o := &fakeOracle{ident: oracle.ServiceIdentification{
		Status:   oracle.StatusComplete,
		Services: []oracle.ServiceRef{{ServiceName: "frobnicator"}},
	}}
	a := newTestAssistant(o, &fakeMemory{}, nil, nil)

	reply, err := a.Think(context.Background(), "s1", "frobnicate the thing")
	if err != nil {
		t.Fatalf("Think failed: %v", err)
	}
	if !strings.Contains(reply, "frobnicator") {
		t.Errorf("reply should name the unintegrated service, got %q", reply)
	}
}

func TestThinkRunsPlanEndToEnd(t *testing.T) {
	o := &fakeOracle{
		ident: oracle.ServiceIdentification{
			Status:   oracle.StatusComplete,
			Services: []oracle.ServiceRef{{ServiceName: "calc"}},
		},
		proposal: oracle.PlanProposal{
			Status: oracle.StatusComplete,
			Actions: []engine.Action{
				{ID: "add", ServiceName: "calc", Parameters: map[string]any{"a": 2, "b": 3}, OutputKey: "sum"},
			},
		},
		summary: "2 plus 3 is 5.",
	}
	mem := &fakeMemory{}
	invoker := &stubInvoker{result: map[string]any{"total": 5}}
	a := newTestAssistant(o, mem, stubCatalogs{"calc": calcCatalog()}, invoker)

	reply, err := a.Think(context.Background(), "", "add 2 and 3")
	if err != nil {
		t.Fatalf("Think failed: %v", err)
	}
	if reply != "2 plus 3 is 5." {
		t.Errorf("unexpected reply %q", reply)
	}
	if invoker.calls != 1 {
		t.Errorf("expected 1 adapter call, got %d", invoker.calls)
	}
	if len(mem.recorded) != 1 || mem.recorded[0].ActionID != "add" {
		t.Errorf("completion not recorded: %+v", mem.recorded)
	}
	if len(o.summarized) != 1 || o.summarized[0].Status != engine.StatusSuccess {
		t.Errorf("summarizer should see the run results: %+v", o.summarized)
	}
}

func TestThinkSkipsCompletedActions(t *testing.T) {
	o := &fakeOracle{
		ident: oracle.ServiceIdentification{
			Status:   oracle.StatusComplete,
			Services: []oracle.ServiceRef{{ServiceName: "calc"}},
		},
		proposal: oracle.PlanProposal{
			Status: oracle.StatusComplete,
			Actions: []engine.Action{
				{ID: "add", ServiceName: "calc", OutputKey: "sum"},
			},
		},
		summary: "Already done.",
	}
	mem := &fakeMemory{completed: map[string]engine.CompletedAction{
		"add": {ActionID: "add", ServiceName: "calc", Result: map[string]any{"total": 5}, CompletedAt: time.Now()},
	}}
	invoker := &stubInvoker{}
	a := newTestAssistant(o, mem, stubCatalogs{"calc": calcCatalog()}, invoker)

	if _, err := a.Think(context.Background(), "s1", "add 2 and 3"); err != nil {
		t.Fatalf("Think failed: %v", err)
	}
	if invoker.calls != 0 {
		t.Errorf("a completed action should not execute again, got %d calls", invoker.calls)
	}
	if len(o.summarized) != 1 || !o.summarized[0].Skipped {
		t.Errorf("summarizer should see the skip: %+v", o.summarized)
	}
}

func TestThinkFatalRunErrorBecomesReply(t *testing.T) {
	o := &fakeOracle{
		ident: oracle.ServiceIdentification{
			Status:   oracle.StatusComplete,
			Services: []oracle.ServiceRef{{ServiceName: "calc"}},
		},
		proposal: oracle.PlanProposal{
			Status: oracle.StatusComplete,
			Actions: []engine.Action{
				{ID: "ghostAction", ServiceName: "ghost"},
			},
		},
	}
	a := newTestAssistant(o, &fakeMemory{}, stubCatalogs{"calc": calcCatalog()}, &stubInvoker{})

	reply, err := a.Think(context.Background(), "s1", "do the ghost thing")
	if err != nil {
		t.Fatalf("fatal run errors should render as the reply, not fail Think: %v", err)
	}
	if !strings.Contains(reply, "ghost") || !strings.Contains(reply, "no resolved catalog") {
		t.Errorf("reply should describe the abort, got %q", reply)
	}
}

func TestThinkPolicyDenialBecomesReply(t *testing.T) {
	o := &fakeOracle{
		ident: oracle.ServiceIdentification{
			Status:   oracle.StatusComplete,
			Services: []oracle.ServiceRef{{ServiceName: "calc"}},
		},
		proposal: oracle.PlanProposal{
			Status: oracle.StatusComplete,
			Actions: []engine.Action{
				{ID: "add", ServiceName: "calc"},
			},
		},
	}
	invoker := &stubInvoker{result: "never"}
	a := newTestAssistant(o, &fakeMemory{}, stubCatalogs{"calc": calcCatalog()}, invoker)

	policy := governance.NewDefaultPolicyEngine()
	policy.DenyService("calc")
	a.Policy = policy

	reply, err := a.Think(context.Background(), "s1", "add numbers")
	if err != nil {
		t.Fatalf("Think failed: %v", err)
	}
	if !strings.Contains(reply, "denied by policy") {
		t.Errorf("expected a policy denial reply, got %q", reply)
	}
	if invoker.calls != 0 {
		t.Errorf("a denied action must not execute, got %d calls", invoker.calls)
	}
}

func TestThinkEmptyPlanStillAnswers(t *testing.T) {
	o := &fakeOracle{
		ident:    oracle.ServiceIdentification{Status: oracle.StatusComplete},
		proposal: oracle.PlanProposal{Status: oracle.StatusComplete},
		summary:  "Hello! Nothing to execute.",
	}
	a := newTestAssistant(o, &fakeMemory{}, nil, nil)

	reply, err := a.Think(context.Background(), "s1", "hi there")
	if err != nil {
		t.Fatalf("Think failed: %v", err)
	}
	if reply != "Hello! Nothing to execute." {
		t.Errorf("unexpected reply %q", reply)
	}
}

func TestThinkSummaryFallback(t *testing.T) {
	o := &fakeOracle{
		ident: oracle.ServiceIdentification{
			Status:   oracle.StatusComplete,
			Services: []oracle.ServiceRef{{ServiceName: "calc"}},
		},
		proposal: oracle.PlanProposal{
			Status: oracle.StatusComplete,
			Actions: []engine.Action{
				{ID: "add", ServiceName: "calc", OutputKey: "sum"},
			},
		},
		summaryErr: errors.New("model offline"),
	}
	invoker := &stubInvoker{result: 5}
	a := newTestAssistant(o, &fakeMemory{}, stubCatalogs{"calc": calcCatalog()}, invoker)

	reply, err := a.Think(context.Background(), "s1", "add numbers")
	if err != nil {
		t.Fatalf("Think failed: %v", err)
	}
	if !strings.Contains(reply, "add: ok") {
		t.Errorf("fallback summary should list the outcome, got %q", reply)
	}
}
