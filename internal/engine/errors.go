package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Kind discriminates engine failures. Retry and abort decisions are made
// on the kind, never on message text, so messages stay free to change.
type Kind string

const (
	// KindInvalidPlan covers plan defects found before execution starts:
	// empty plans and duplicate action identifiers.
	KindInvalidPlan Kind = "invalid_plan"
	// KindCycle means the dependency graph cannot be linearized.
	KindCycle Kind = "cycle"
	// KindUnresolvedReference means a parameter referenced an output that
	// does not exist or a path into it that does not resolve.
	KindUnresolvedReference Kind = "unresolved_reference"
	// KindActionNotFound means the catalog does not declare the action.
	KindActionNotFound Kind = "action_not_found"
	// KindCredential means required auth headers are not configured.
	KindCredential Kind = "credential"
	// KindExecution is any failure of the action call itself.
	KindExecution Kind = "execution"
	// KindMissingDependency means a dependency has no completion record.
	KindMissingDependency Kind = "missing_dependency"
	// KindMissingCatalog means the plan references a service that was
	// never resolved, a plan-construction defect.
	KindMissingCatalog Kind = "missing_catalog"
	// KindPolicyDenied means governance refused the action.
	KindPolicyDenied Kind = "policy_denied"
	// KindEscalationStop means the escalation decision was to abort.
	KindEscalationStop Kind = "escalation_stop"
)

// Error is the engine's error type. The kind is fixed where the failure
// originates and preserved through wrapping.
type Error struct {
	Kind           Kind
	ActionID       string
	ServiceName    string
	Attempts       int
	MissingHeaders []string
	Message        string
	Err            error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(string(e.Kind))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the kind from an error chain. Errors that did not
// originate in the engine report KindExecution.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindExecution
}

// fatal kinds abort the whole run instead of being recorded as a failed
// action. Credential errors are user-actionable and never retried, an
// escalation stop is an explicit instruction to halt.
func fatalKind(k Kind) bool {
	switch k {
	case KindCredential, KindEscalationStop, KindInvalidPlan, KindCycle,
		KindUnresolvedReference, KindMissingDependency, KindMissingCatalog, KindPolicyDenied:
		return true
	}
	return false
}

func execErrf(actionID, service string, err error, format string, args ...any) *Error {
	return &Error{
		Kind:        KindExecution,
		ActionID:    actionID,
		ServiceName: service,
		Message:     fmt.Sprintf(format, args...),
		Err:         err,
	}
}
