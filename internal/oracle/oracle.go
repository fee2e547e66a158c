package oracle

import (
	"context"

	"github.com/tmc/langchaingo/llms"

	"github.com/tdermendjiev/aiwe-client/internal/catalog"
	"github.com/tdermendjiev/aiwe-client/internal/engine"
)

// Statuses an identification or planning reply can carry.
const (
	StatusComplete           = "complete"
	StatusNeedsClarification = "needsClarification"
)

// ServiceIdentification is the reply to "which services does this
// instruction involve".
type ServiceIdentification struct {
	Status   string       `json:"status"`
	Services []ServiceRef `json:"services,omitempty"`
	Question string       `json:"question,omitempty"`
}

type ServiceRef struct {
	ServiceName string `json:"serviceName"`
}

// ServiceNames returns the identified service names in declared order.
func (s ServiceIdentification) ServiceNames() []string {
	names := make([]string, 0, len(s.Services))
	for _, ref := range s.Services {
		if ref.ServiceName != "" {
			names = append(names, ref.ServiceName)
		}
	}
	return names
}

// PlanProposal is the reply to "plan this instruction against these
// catalogs".
type PlanProposal struct {
	Status   string          `json:"status"`
	Actions  []engine.Action `json:"actions,omitempty"`
	Question string          `json:"question,omitempty"`
}

// CompletedRef is a compact pointer to a previously completed action,
// enough for the oracle to plan around work already done.
type CompletedRef struct {
	ActionID    string `json:"actionId"`
	ServiceName string `json:"serviceName"`
	CompletedAt string `json:"completedAt"`
}

// SessionContext is what the oracle sees of the session beyond the
// instruction itself.
type SessionContext struct {
	SessionID string
	History   []llms.MessageContent
	Completed []CompletedRef
}

// Oracle is the model-backed stage behind every judgement call the
// client makes: naming services, proposing plans, deciding what to do
// with exhausted retries, and wording the final reply. It doubles as
// the engine's escalation decider.
type Oracle interface {
	IdentifyServices(ctx context.Context, instruction string, sctx SessionContext) (ServiceIdentification, error)
	ProposePlan(ctx context.Context, instruction string, catalogs *catalog.Set, sctx SessionContext) (PlanProposal, error)
	DecideEscalation(ctx context.Context, req engine.EscalationRequest) (engine.EscalationDecision, error)
	Summarize(ctx context.Context, instruction string, results []engine.Result) (string, error)
}
