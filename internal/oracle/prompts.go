package oracle

import (
	"log"
	"os"
	"path/filepath"
)

// Prompt names. Each can be overridden by a <name>.md file in the
// prompt directory; the built-in defaults apply otherwise.
const (
	PromptIdentify   = "identify"
	PromptPlan       = "plan"
	PromptEscalation = "escalation"
	PromptSummarize  = "summarize"
)

type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// Get returns the prompt for one oracle operation, preferring a file
// override when the directory carries one.
func (pm *PromptManager) Get(name string) string {
	if pm.Directory != "" {
		path := filepath.Join(pm.Directory, name+".md")
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data)
		}
		if !os.IsNotExist(err) {
			log.Printf("Oracle: failed to read prompt override %s: %v", path, err)
		}
	}
	return defaultPrompts[name]
}

var defaultPrompts = map[string]string{
	PromptIdentify: `You are the service identification stage of an automation client that
executes real actions against web services.

Given the user's instruction, name every service involved. Use the
service's domain when you know it (for example "linear.app"), otherwise
a short lowercase name. Locally available capabilities like "search",
"webpage", "browser", "workspace", "shell", and "scheduler" are also
valid services. If the instruction is ambiguous, or you cannot tell
which services it involves, ask instead of guessing.

Respond by calling identify_services with:
- status: "complete" when you are confident, "needsClarification" otherwise
- services: the involved services, e.g. [{"serviceName": "github.com"}]
- question: the clarifying question when status is "needsClarification"`,

	PromptPlan: `You are the planning stage of an automation client. You turn an
instruction into a plan of actions executed against the provided
service catalogs.

Rules:
- Use only actions declared in the catalogs. An action's "id" must be
  the declared action name and must be unique within the plan.
- Set "serviceName" to the owning catalog's service.
- Give "parameters" exactly the fields the action declares.
- When an action needs another action's result, store the producer's
  result under an "outputKey" and reference it as "$outputs.<key>" with
  an optional path, e.g. "$outputs.invoices.items[0].id". The consumer
  must list the producer in "dependsOn".
- Mark actions whose effect must happen on every run (sending, writing,
  deleting) with "alwaysExecute": true. Pure reads may be skipped when a
  prior run already completed them.
- Never create dependency cycles.

Respond by calling propose_plan with:
- status: "complete" with the actions, "needsClarification" with a question
- actions: [{"id", "serviceName", "parameters", "dependsOn", "outputKey", "alwaysExecute"}]
- question: the clarifying question when status is "needsClarification"`,

	PromptEscalation: `An action in a running plan has failed every attempt in its retry
budget. You decide what happens next. You receive the action, its
service, the attempt count, and every error message in order.

- "retry" when the failures look transient: timeouts, rate limits, 5xx.
- "continue" when the action is not essential to the rest of the plan.
- "stop" when continuing is pointless or risky: auth failures, requests
  that can never succeed, destructive half-finished state.

Respond by calling decide_escalation with the decision and a short reason.`,

	PromptSummarize: `You report the outcome of an executed action plan back to the user.
You receive the original instruction and the per-action results,
including failures and skipped actions.

Write a short, direct reply in natural language: what was done, what
came of it, and anything that failed. Quote concrete values from the
results when they answer the instruction. Do not mention internal
machinery like plans, retries, or catalogs unless something failed.

Respond by calling summarize_results with the summary.`,
}
