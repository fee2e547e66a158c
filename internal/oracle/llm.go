package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/tdermendjiev/aiwe-client/internal/catalog"
	"github.com/tdermendjiev/aiwe-client/internal/engine"
	"github.com/tdermendjiev/aiwe-client/internal/observability"
)

// Client implements Oracle on top of a langchaingo model. Every
// operation forces a single function whose arguments carry the
// structured reply; plain JSON content is accepted as a fallback for
// models that answer inline instead of calling the function.
type Client struct {
	Model   llms.Model
	Prompts *PromptManager
	Logger  *observability.Logger
}

func NewClient(model llms.Model, prompts *PromptManager, logger *observability.Logger) *Client {
	return &Client{Model: model, Prompts: prompts, Logger: logger}
}

func (c *Client) IdentifyServices(ctx context.Context, instruction string, sctx SessionContext) (ServiceIdentification, error) {
	tool := llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "identify_services",
			Description: "Report which services the instruction involves, or ask for clarification.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status": map[string]any{
						"type": "string",
						"enum": []string{StatusComplete, StatusNeedsClarification},
					},
					"services": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"serviceName": map[string]any{"type": "string"},
							},
							"required": []string{"serviceName"},
						},
					},
					"question": map[string]any{"type": "string"},
				},
				"required": []string{"status"},
			},
		},
	}

	var out ServiceIdentification
	user := "INSTRUCTION:\n" + instruction + completedBlock(sctx)
	if err := c.call(ctx, sctx, c.Prompts.Get(PromptIdentify), user, tool, &out); err != nil {
		return ServiceIdentification{}, err
	}
	return out, nil
}

func (c *Client) ProposePlan(ctx context.Context, instruction string, catalogs *catalog.Set, sctx SessionContext) (PlanProposal, error) {
	tool := llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "propose_plan",
			Description: "Submit the action plan for the instruction, or ask for clarification.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status": map[string]any{
						"type": "string",
						"enum": []string{StatusComplete, StatusNeedsClarification},
					},
					"actions": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"id":            map[string]any{"type": "string"},
								"serviceName":   map[string]any{"type": "string"},
								"parameters":    map[string]any{"type": "object"},
								"dependsOn":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
								"outputKey":     map[string]any{"type": "string"},
								"alwaysExecute": map[string]any{"type": "boolean"},
							},
							"required": []string{"id", "serviceName"},
						},
					},
					"question": map[string]any{"type": "string"},
				},
				"required": []string{"status"},
			},
		},
	}

	catalogsJSON, err := marshalCatalogs(catalogs)
	if err != nil {
		return PlanProposal{}, fmt.Errorf("failed to serialize catalogs: %v", err)
	}
	user := fmt.Sprintf("INSTRUCTION:\n%s\n\nSERVICE CATALOGS:\n%s%s", instruction, catalogsJSON, completedBlock(sctx))

	var out PlanProposal
	if err := c.call(ctx, sctx, c.Prompts.Get(PromptPlan), user, tool, &out); err != nil {
		return PlanProposal{}, err
	}
	return out, nil
}

func (c *Client) DecideEscalation(ctx context.Context, req engine.EscalationRequest) (engine.EscalationDecision, error) {
	tool := llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "decide_escalation",
			Description: "Decide whether the plan should stop, continue past the failed action, or retry it.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"decision": map[string]any{
						"type": "string",
						"enum": []string{string(engine.DecisionStop), string(engine.DecisionContinue), string(engine.DecisionRetry)},
					},
					"reason": map[string]any{"type": "string"},
				},
				"required": []string{"decision"},
			},
		},
	}

	payload, err := json.MarshalIndent(map[string]any{
		"actionId":    req.ActionID,
		"serviceName": req.ServiceName,
		"attempts":    req.Attempts,
		"errors":      req.Errors,
	}, "", "  ")
	if err != nil {
		return engine.EscalationDecision{}, err
	}

	var out struct {
		Decision string `json:"decision"`
		Reason   string `json:"reason"`
	}
	if err := c.call(ctx, SessionContext{}, c.Prompts.Get(PromptEscalation), string(payload), tool, &out); err != nil {
		return engine.EscalationDecision{}, err
	}
	if c.Logger != nil {
		c.Logger.LogEscalation("", req.ActionID, out.Decision, out.Reason)
	}

	switch d := engine.Decision(out.Decision); d {
	case engine.DecisionStop, engine.DecisionContinue, engine.DecisionRetry:
		return engine.EscalationDecision{Decision: d, Reason: out.Reason}, nil
	default:
		// An unknown verdict degrades to continue, so one confused reply
		// cannot wedge a plan.
		return engine.EscalationDecision{Decision: engine.DecisionContinue, Reason: out.Reason}, nil
	}
}

func (c *Client) Summarize(ctx context.Context, instruction string, results []engine.Result) (string, error) {
	tool := llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "summarize_results",
			Description: "Report the outcome of the executed plan to the user.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"summary": map[string]any{"type": "string"},
				},
				"required": []string{"summary"},
			},
		},
	}

	resultsJSON, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	user := fmt.Sprintf("INSTRUCTION:\n%s\n\nRESULTS:\n%s", instruction, resultsJSON)

	var out struct {
		Summary string `json:"summary"`
	}
	if err := c.call(ctx, SessionContext{}, c.Prompts.Get(PromptSummarize), user, tool, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Summary) == "" {
		return "", fmt.Errorf("oracle returned an empty summary")
	}
	return out.Summary, nil
}

// call sends system + history + user to the model with a single forced
// tool and decodes the reply into out.
func (c *Client) call(ctx context.Context, sctx SessionContext, system, user string, tool llms.Tool, out any) error {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		},
	}
	messages = append(messages, sctx.History...)
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(user)},
	})

	resp, err := c.Model.GenerateContent(ctx, messages, llms.WithTools([]llms.Tool{tool}))
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("oracle returned no choices")
	}
	choice := resp.Choices[0]

	if c.Logger != nil {
		var called []string
		for _, tc := range choice.ToolCalls {
			called = append(called, tc.FunctionCall.Name)
		}
		c.Logger.LogLLM(sctx.SessionID, "", user, choice.Content, called)
	}

	name := tool.Function.Name
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall.Name == name {
			if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), out); err != nil {
				return fmt.Errorf("failed to parse %s arguments: %v", name, err)
			}
			return nil
		}
	}
	if content := strings.TrimSpace(choice.Content); content != "" {
		if err := json.Unmarshal([]byte(stripFences(content)), out); err != nil {
			return fmt.Errorf("oracle replied with unparsable content: %v", err)
		}
		return nil
	}
	return fmt.Errorf("oracle provided neither a %s call nor a JSON reply", name)
}

func marshalCatalogs(set *catalog.Set) (string, error) {
	ordered := make([]*catalog.Catalog, 0, set.Len())
	for _, svc := range set.Services() {
		entry, _ := set.Lookup(svc)
		ordered = append(ordered, entry.Catalog)
	}
	data, err := json.MarshalIndent(ordered, "", "  ")
	return string(data), err
}

func completedBlock(sctx SessionContext) string {
	if len(sctx.Completed) == 0 {
		return ""
	}
	data, err := json.MarshalIndent(sctx.Completed, "", "  ")
	if err != nil {
		return ""
	}
	return "\n\nPREVIOUSLY COMPLETED ACTIONS:\n" + string(data)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
