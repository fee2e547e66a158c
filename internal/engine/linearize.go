package engine

import "fmt"

const (
	unvisited = iota
	visiting
	done
)

// Linearize orders a plan so every action appears after all of its
// in-plan dependencies. Actions without an ordering constraint keep
// their submission order. Dependencies naming actions outside the plan
// do not constrain ordering, they are checked against the completion
// ledger at execution time instead.
func Linearize(actions []Action) ([]Action, error) {
	if len(actions) == 0 {
		return nil, &Error{Kind: KindInvalidPlan, Message: "plan contains no actions"}
	}
	byID := make(map[string]int, len(actions))
	for i, a := range actions {
		if a.ID == "" {
			return nil, &Error{Kind: KindInvalidPlan, Message: fmt.Sprintf("action at position %d has no id", i)}
		}
		if _, dup := byID[a.ID]; dup {
			return nil, &Error{Kind: KindInvalidPlan, ActionID: a.ID, Message: fmt.Sprintf("duplicate action id %q", a.ID)}
		}
		byID[a.ID] = i
	}

	state := make([]int, len(actions))
	ordered := make([]Action, 0, len(actions))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return &Error{
				Kind:     KindCycle,
				ActionID: actions[i].ID,
				Message:  fmt.Sprintf("circular dependency involving action %q", actions[i].ID),
			}
		}
		state[i] = visiting
		for _, dep := range actions[i].DependsOn {
			j, inPlan := byID[dep]
			if !inPlan {
				continue
			}
			if err := visit(j); err != nil {
				return err
			}
		}
		state[i] = done
		ordered = append(ordered, actions[i])
		return nil
	}

	for i := range actions {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
