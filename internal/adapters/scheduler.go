package adapters

import (
	"context"
	"fmt"

	"github.com/tdermendjiev/aiwe-client/internal/catalog"
)

// InstructionStore persists scheduled instructions per session.
type InstructionStore interface {
	AddInstruction(sessionID, description string, intervalSeconds int) error
	ClearInstructions(sessionID string) error
}

// SchedulerAdapter lets plans schedule recurring instructions for the
// session they run in. The session id travels in the context.
type SchedulerAdapter struct {
	Store InstructionStore
}

func NewSchedulerAdapter(store InstructionStore) *SchedulerAdapter {
	return &SchedulerAdapter{Store: store}
}

func (s *SchedulerAdapter) Name() string {
	return "scheduler"
}

func (s *SchedulerAdapter) Catalog() *catalog.Catalog {
	return &catalog.Catalog{
		Service:     "scheduler",
		Description: "Schedule recurring instructions for this session, or clear them all.",
		Actions: []catalog.ActionSpec{
			{
				Name:        "scheduleInstruction",
				Description: "Run a natural-language instruction repeatedly at an interval",
				Parameters: map[string]catalog.ParamSpec{
					"description":     {Type: "string", Description: "What should be done on every run", Required: true},
					"intervalSeconds": {Type: "integer", Description: "The interval in seconds, minimum 60", Required: true},
				},
			},
			{
				Name:        "clearInstructions",
				Description: "Remove every scheduled instruction for this session",
			},
		},
	}
}

func (s *SchedulerAdapter) Execute(ctx context.Context, action string, params map[string]any) (any, error) {
	sessionID, ok := SessionFrom(ctx)
	if !ok {
		return nil, fmt.Errorf("missing session in context")
	}

	switch action {
	case "scheduleInstruction":
		description := stringParam(params, "description")
		interval := intParam(params, "intervalSeconds")
		if description == "" {
			return nil, fmt.Errorf("description is required")
		}
		if interval < 60 {
			return nil, fmt.Errorf("minimum interval is 60 seconds")
		}
		if err := s.Store.AddInstruction(sessionID, description, interval); err != nil {
			return nil, fmt.Errorf("failed to schedule instruction: %v", err)
		}
		return map[string]any{
			"message": fmt.Sprintf("Scheduled %q every %d seconds.", description, interval),
		}, nil

	case "clearInstructions":
		if err := s.Store.ClearInstructions(sessionID); err != nil {
			return nil, fmt.Errorf("failed to clear instructions: %v", err)
		}
		return map[string]any{"message": "Cleared all scheduled instructions."}, nil

	default:
		return nil, &UnknownActionError{Service: s.Name(), Action: action}
	}
}
