package store

import "time"

// Instruction is a standing order attached to a session: re-run the
// description whenever the interval has elapsed since the last run.
type Instruction struct {
	ID              int       `json:"id"`
	SessionID       string    `json:"sessionId"`
	Description     string    `json:"description"`
	IntervalSeconds int       `json:"intervalSeconds"`
	LastRun         time.Time `json:"lastRun"`
}
