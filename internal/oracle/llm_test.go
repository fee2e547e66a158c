package oracle

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/tdermendjiev/aiwe-client/internal/catalog"
	"github.com/tdermendjiev/aiwe-client/internal/engine"
)

type fakeModel struct {
	resp     *llms.ContentResponse
	err      error
	lastMsgs []llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.lastMsgs = messages
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func toolCallResponse(name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				ToolCalls: []llms.ToolCall{
					{
						ID:           "call-1",
						Type:         "function",
						FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
					},
				},
			},
		},
	}
}

func contentResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}
}

func newTestClient(model llms.Model) *Client {
	return NewClient(model, NewPromptManager(""), nil)
}

func TestIdentifyServicesParsesToolCall(t *testing.T) {
	model := &fakeModel{resp: toolCallResponse("identify_services",
		`{"status": "complete", "services": [{"serviceName": "github.com"}, {"serviceName": "search"}]}`)}
	c := newTestClient(model)

	ident, err := c.IdentifyServices(context.Background(), "check my github issues", SessionContext{})
	if err != nil {
		t.Fatalf("IdentifyServices failed: %v", err)
	}
	if ident.Status != StatusComplete {
		t.Errorf("unexpected status %q", ident.Status)
	}
	names := ident.ServiceNames()
	if len(names) != 2 || names[0] != "github.com" || names[1] != "search" {
		t.Errorf("unexpected services %v", names)
	}
}

func TestIdentifyServicesClarification(t *testing.T) {
	model := &fakeModel{resp: toolCallResponse("identify_services",
		`{"status": "needsClarification", "question": "Which account do you mean?"}`)}
	c := newTestClient(model)

	ident, err := c.IdentifyServices(context.Background(), "check my stuff", SessionContext{})
	if err != nil {
		t.Fatalf("IdentifyServices failed: %v", err)
	}
	if ident.Status != StatusNeedsClarification || ident.Question == "" {
		t.Errorf("expected a clarification question, got %+v", ident)
	}
}

func TestProposePlanParsesActionsAndSendsCatalogs(t *testing.T) {
	model := &fakeModel{resp: toolCallResponse("propose_plan", `{
		"status": "complete",
		"actions": [
			{"id": "listInvoices", "serviceName": "acme", "parameters": {"period": "2024-01"}, "outputKey": "invoices"},
			{"id": "sendReminder", "serviceName": "acme", "parameters": {"invoiceId": "$outputs.invoices.items[0].id"}, "dependsOn": ["listInvoices"], "alwaysExecute": true}
		]
	}`)}
	c := newTestClient(model)

	set := catalog.NewSet()
	set.Add("acme", &catalog.Catalog{
		Service: "acme", Description: "Acme invoicing",
		Actions: []catalog.ActionSpec{{Name: "listInvoices", Description: "d"}, {Name: "sendReminder", Description: "d"}},
	}, catalog.TierManifest)

	prop, err := c.ProposePlan(context.Background(), "remind the first overdue customer", set, SessionContext{})
	if err != nil {
		t.Fatalf("ProposePlan failed: %v", err)
	}
	if prop.Status != StatusComplete || len(prop.Actions) != 2 {
		t.Fatalf("unexpected proposal %+v", prop)
	}
	second := prop.Actions[1]
	if !second.AlwaysExecute || len(second.DependsOn) != 1 || second.DependsOn[0] != "listInvoices" {
		t.Errorf("action fields lost in decode: %+v", second)
	}

	// The user message must carry the serialized catalogs.
	last := model.lastMsgs[len(model.lastMsgs)-1]
	text, _ := last.Parts[0].(llms.TextContent)
	if !strings.Contains(text.Text, "SERVICE CATALOGS") || !strings.Contains(text.Text, "Acme invoicing") {
		t.Errorf("catalogs missing from the planning prompt: %s", text.Text)
	}
}

func TestCallFallsBackToFencedContent(t *testing.T) {
	model := &fakeModel{resp: contentResponse("```json\n{\"status\": \"complete\", \"services\": [{\"serviceName\": \"search\"}]}\n```")}
	c := newTestClient(model)

	ident, err := c.IdentifyServices(context.Background(), "look something up", SessionContext{})
	if err != nil {
		t.Fatalf("content fallback failed: %v", err)
	}
	if len(ident.Services) != 1 || ident.Services[0].ServiceName != "search" {
		t.Errorf("unexpected services %v", ident.Services)
	}
}

func TestCallRejectsEmptyReply(t *testing.T) {
	model := &fakeModel{resp: contentResponse("")}
	c := newTestClient(model)

	_, err := c.IdentifyServices(context.Background(), "anything", SessionContext{})
	if err == nil {
		t.Fatal("an empty reply should be an error")
	}
}

func TestDecideEscalationMapsDecisions(t *testing.T) {
	cases := []struct {
		args string
		want engine.Decision
	}{
		{`{"decision": "stop", "reason": "auth failure"}`, engine.DecisionStop},
		{`{"decision": "continue", "reason": "not critical"}`, engine.DecisionContinue},
		{`{"decision": "retry", "reason": "looks transient"}`, engine.DecisionRetry},
		{`{"decision": "shrug", "reason": "no idea"}`, engine.DecisionContinue},
	}
	for _, tc := range cases {
		model := &fakeModel{resp: toolCallResponse("decide_escalation", tc.args)}
		c := newTestClient(model)
		dec, err := c.DecideEscalation(context.Background(), engine.EscalationRequest{
			ActionID: "fetch", ServiceName: "acme", Attempts: 3, Errors: []string{"boom"},
		})
		if err != nil {
			t.Fatalf("%s: DecideEscalation failed: %v", tc.args, err)
		}
		if dec.Decision != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.args, tc.want, dec.Decision)
		}
	}
}

func TestDecideEscalationSendsFailureHistory(t *testing.T) {
	model := &fakeModel{resp: toolCallResponse("decide_escalation", `{"decision": "stop"}`)}
	c := newTestClient(model)

	c.DecideEscalation(context.Background(), engine.EscalationRequest{
		ActionID: "fetch", ServiceName: "acme", Attempts: 3,
		Errors: []string{"timeout", "timeout", "401 unauthorized"},
	})
	last := model.lastMsgs[len(model.lastMsgs)-1]
	text, _ := last.Parts[0].(llms.TextContent)
	if !strings.Contains(text.Text, "401 unauthorized") || !strings.Contains(text.Text, `"attempts": 3`) {
		t.Errorf("escalation prompt missing failure history: %s", text.Text)
	}
}

func TestSummarize(t *testing.T) {
	model := &fakeModel{resp: toolCallResponse("summarize_results", `{"summary": "You have 7 unpaid invoices."}`)}
	c := newTestClient(model)

	summary, err := c.Summarize(context.Background(), "how many unpaid invoices?", []engine.Result{
		{Status: engine.StatusSuccess, ActionID: "listInvoices", ServiceName: "acme", Result: map[string]any{"total": 7}},
	})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary != "You have 7 unpaid invoices." {
		t.Errorf("unexpected summary %q", summary)
	}
}

func TestSummarizeRejectsEmptySummary(t *testing.T) {
	model := &fakeModel{resp: toolCallResponse("summarize_results", `{"summary": ""}`)}
	c := newTestClient(model)

	if _, err := c.Summarize(context.Background(), "anything", nil); err == nil {
		t.Error("an empty summary should be an error")
	}
}

func TestCallIncludesHistory(t *testing.T) {
	model := &fakeModel{resp: toolCallResponse("identify_services", `{"status": "complete"}`)}
	c := newTestClient(model)

	history := []llms.MessageContent{
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart("earlier question")}},
		{Role: llms.ChatMessageTypeAI, Parts: []llms.ContentPart{llms.TextPart("earlier answer")}},
	}
	c.IdentifyServices(context.Background(), "follow-up", SessionContext{History: history})

	// system + 2 history + user
	if len(model.lastMsgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(model.lastMsgs))
	}
	if model.lastMsgs[0].Role != llms.ChatMessageTypeSystem {
		t.Errorf("first message should be the system prompt")
	}
	if model.lastMsgs[1].Role != llms.ChatMessageTypeHuman || model.lastMsgs[2].Role != llms.ChatMessageTypeAI {
		t.Errorf("history not forwarded in order")
	}
}
