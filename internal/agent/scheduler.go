package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tdermendjiev/aiwe-client/internal/store"
)

// Messenger delivers unsolicited messages to a session's owner.
type Messenger interface {
	Send(sessionID string, text string) error
}

// InstructionSource is what the scheduler needs from the store.
type InstructionSource interface {
	DueInstructions() ([]store.Instruction, error)
	MarkInstructionRun(id int) error
}

// Scheduler replays due standing instructions through the brain and
// pushes the output to the session's owner.
type Scheduler struct {
	Brain   Brain
	Store   InstructionSource
	Gateway Messenger

	Interval time.Duration
}

func NewScheduler(brain Brain, store InstructionSource, gateway Messenger) *Scheduler {
	return &Scheduler{
		Brain:    brain,
		Store:    store,
		Gateway:  gateway,
		Interval: 30 * time.Second,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("Scheduler: started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollAndExecute(ctx)
		}
	}
}

func (s *Scheduler) pollAndExecute(ctx context.Context) {
	due, err := s.Store.DueInstructions()
	if err != nil {
		log.Printf("Scheduler: failed to poll instructions: %v", err)
		return
	}

	for _, inst := range due {
		log.Printf("Scheduler: running instruction %d for session %s: %s", inst.ID, inst.SessionID, inst.Description)

		response, err := s.Brain.Think(ctx, inst.SessionID, fmt.Sprintf("[SYSTEM: This is the execution of a previously scheduled instruction: %q. Report the outcome for the user. Do NOT schedule it again.]", inst.Description))
		if err != nil {
			log.Printf("Scheduler: instruction %d failed: %v", inst.ID, err)
			continue
		}

		if err := s.Store.MarkInstructionRun(inst.ID); err != nil {
			log.Printf("Scheduler: failed to update last run for instruction %d: %v", inst.ID, err)
		}

		if s.Gateway != nil {
			s.Gateway.Send(inst.SessionID, "⏰ Scheduled instruction output:\n\n"+response)
		}
	}
}
