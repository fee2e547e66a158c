package engine

import "time"

// Action is one planned step targeting a named service. The identifier
// doubles as the catalog action name and must be unique within a plan.
type Action struct {
	ID            string         `json:"id"`
	ServiceName   string         `json:"serviceName"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	DependsOn     []string       `json:"dependsOn,omitempty"`
	OutputKey     string         `json:"outputKey,omitempty"`
	AlwaysExecute bool           `json:"alwaysExecute,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result records the outcome of one action in the run's ledger. Retries
// counts failed attempts, so a first-try success reports zero.
type Result struct {
	Status      string `json:"status"`
	ActionID    string `json:"actionId"`
	ServiceName string `json:"serviceName"`
	Result      any    `json:"result,omitempty"`
	Error       string `json:"error,omitempty"`
	Retries     int    `json:"retries"`
	Skipped     bool   `json:"skipped,omitempty"`
}

// CompletedAction is a durable record of a successfully executed action.
type CompletedAction struct {
	ActionID    string
	ServiceName string
	Result      any
	CompletedAt time.Time
}

// Ledger receives completion records as actions succeed. Implementations
// persist them per session so later runs can skip repeated work.
type Ledger interface {
	RecordCompletion(rec CompletedAction) error
}
