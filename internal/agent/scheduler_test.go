package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tdermendjiev/aiwe-client/internal/store"
)

type fakeInstructions struct {
	due    []store.Instruction
	err    error
	marked []int
}

func (f *fakeInstructions) DueInstructions() ([]store.Instruction, error) {
	return f.due, f.err
}

func (f *fakeInstructions) MarkInstructionRun(id int) error {
	f.marked = append(f.marked, id)
	return nil
}

type fakeBrain struct {
	inputs []string
	reply  string
	err    error
}

func (b *fakeBrain) Think(ctx context.Context, sessionID string, input string) (string, error) {
	b.inputs = append(b.inputs, sessionID+"|"+input)
	return b.reply, b.err
}

type fakeMessenger struct {
	sent []string
}

func (m *fakeMessenger) Send(sessionID, text string) error {
	m.sent = append(m.sent, sessionID+"|"+text)
	return nil
}

func TestSchedulerRunsDueInstructions(t *testing.T) {
	src := &fakeInstructions{due: []store.Instruction{
		{ID: 7, SessionID: "s1", Description: "check for new invoices", IntervalSeconds: 3600},
	}}
	brain := &fakeBrain{reply: "2 new invoices arrived."}
	gw := &fakeMessenger{}

	s := NewScheduler(brain, src, gw)
	s.pollAndExecute(context.Background())

	if len(brain.inputs) != 1 {
		t.Fatalf("expected 1 brain call, got %d", len(brain.inputs))
	}
	if !strings.Contains(brain.inputs[0], "s1|[SYSTEM:") || !strings.Contains(brain.inputs[0], "check for new invoices") {
		t.Errorf("instruction not replayed through the brain: %q", brain.inputs[0])
	}
	if len(src.marked) != 1 || src.marked[0] != 7 {
		t.Errorf("instruction run not marked: %v", src.marked)
	}
	if len(gw.sent) != 1 || !strings.Contains(gw.sent[0], "2 new invoices arrived.") {
		t.Errorf("output not delivered: %v", gw.sent)
	}
}

func TestSchedulerKeepsFailedInstructionDue(t *testing.T) {
	src := &fakeInstructions{due: []store.Instruction{
		{ID: 3, SessionID: "s1", Description: "broken", IntervalSeconds: 60},
	}}
	brain := &fakeBrain{err: errors.New("model offline")}
	gw := &fakeMessenger{}

	s := NewScheduler(brain, src, gw)
	s.pollAndExecute(context.Background())

	if len(src.marked) != 0 {
		t.Errorf("a failed run must not advance last_run: %v", src.marked)
	}
	if len(gw.sent) != 0 {
		t.Errorf("nothing should be delivered on failure: %v", gw.sent)
	}
}

func TestSchedulerSurvivesStoreErrors(t *testing.T) {
	src := &fakeInstructions{err: errors.New("db locked")}
	brain := &fakeBrain{}

	s := NewScheduler(brain, src, &fakeMessenger{})
	s.pollAndExecute(context.Background())

	if len(brain.inputs) != 0 {
		t.Errorf("no instructions should run when polling fails")
	}
}
