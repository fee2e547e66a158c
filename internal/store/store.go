package store

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/tdermendjiev/aiwe-client/internal/engine"
)

// Store is the sqlite-backed session memory: conversation history, the
// per-session completion ledger, and scheduled instructions.
type Store struct {
	DB *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			role TEXT,
			content TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS completed_actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			action_id TEXT,
			service_name TEXT,
			result TEXT,
			completed_at TEXT,
			UNIQUE(session_id, action_id)
		);`,
		`CREATE TABLE IF NOT EXISTS instructions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			description TEXT,
			interval_seconds INTEGER,
			last_run DATETIME,
			status TEXT DEFAULT 'active'
		);`,
	}
	for _, q := range queries {
		_, err = db.Exec(q)
		if err != nil {
			return nil, err
		}
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// EnsureSession registers the session id, minting one when the caller
// has none yet, and returns the id to use from here on.
func (s *Store) EnsureSession(id string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.DB.Exec(`INSERT OR IGNORE INTO sessions (id) VALUES (?)`, id)
	return id, err
}

func (s *Store) AddMessage(sessionID string, role string, content string) error {
	query := `INSERT INTO messages (session_id, role, content) VALUES (?, ?, ?)`
	_, err := s.DB.Exec(query, sessionID, role, content)
	return err
}

func (s *Store) GetHistory(sessionID string, limit int) ([]llms.MessageContent, error) {
	query := `SELECT role, content FROM messages WHERE session_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := s.DB.Query(query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []llms.MessageContent
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, err
		}

		// Convert role string to llms.ChatMessageType
		var msgRole llms.ChatMessageType
		switch role {
		case "human":
			msgRole = llms.ChatMessageTypeHuman
		case "ai":
			msgRole = llms.ChatMessageTypeAI
		case "system":
			msgRole = llms.ChatMessageTypeSystem
		default:
			msgRole = llms.ChatMessageTypeHuman
		}

		history = append(history, llms.MessageContent{
			Role: msgRole,
			Parts: []llms.ContentPart{
				llms.TextPart(content),
			},
		})
	}

	// Reverse to get chronological order
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}

	return history, nil
}

// RecordCompletion upserts one completion record. Re-executing an
// action, such as an alwaysExecute step, overwrites the earlier record
// so the ledger always carries the latest result.
func (s *Store) RecordCompletion(sessionID string, rec engine.CompletedAction) error {
	data, err := json.Marshal(rec.Result)
	if err != nil {
		return err
	}
	query := `INSERT INTO completed_actions (session_id, action_id, service_name, result, completed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, action_id) DO UPDATE SET
			service_name = excluded.service_name,
			result = excluded.result,
			completed_at = excluded.completed_at`
	_, err = s.DB.Exec(query, sessionID, rec.ActionID, rec.ServiceName, string(data), rec.CompletedAt.UTC().Format(time.RFC3339))
	return err
}

// CompletedActions loads the session's completion ledger keyed by
// action id, the shape the runner consumes for skip decisions.
func (s *Store) CompletedActions(sessionID string) (map[string]engine.CompletedAction, error) {
	query := `SELECT action_id, service_name, result, completed_at FROM completed_actions WHERE session_id = ?`
	rows, err := s.DB.Query(query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	completed := make(map[string]engine.CompletedAction)
	for rows.Next() {
		var actionID, serviceName, resultJSON, completedAt string
		if err := rows.Scan(&actionID, &serviceName, &resultJSON, &completedAt); err != nil {
			return nil, err
		}

		var result any
		if resultJSON != "" {
			if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
				result = resultJSON
			}
		}
		ts, err := time.Parse(time.RFC3339, completedAt)
		if err != nil {
			ts = time.Time{}
		}

		completed[actionID] = engine.CompletedAction{
			ActionID:    actionID,
			ServiceName: serviceName,
			Result:      result,
			CompletedAt: ts,
		}
	}
	return completed, rows.Err()
}

func (s *Store) AddInstruction(sessionID string, description string, intervalSeconds int) error {
	query := `INSERT INTO instructions (session_id, description, interval_seconds, last_run) VALUES (?, ?, ?, datetime('now', '-365 days'))`
	_, err := s.DB.Exec(query, sessionID, description, intervalSeconds)
	return err
}

func (s *Store) ClearInstructions(sessionID string) error {
	query := `DELETE FROM instructions WHERE session_id = ?`
	_, err := s.DB.Exec(query, sessionID)
	return err
}

// DueInstructions returns every active instruction whose interval has
// elapsed since its last run.
func (s *Store) DueInstructions() ([]Instruction, error) {
	query := `
		SELECT id, session_id, description, interval_seconds, last_run
		FROM instructions
		WHERE status = 'active'
		AND (last_run IS NULL OR (julianday('now') - julianday(last_run)) * 86400 >= interval_seconds)`
	rows, err := s.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []Instruction
	for rows.Next() {
		var inst Instruction
		var lastRun string
		if err := rows.Scan(&inst.ID, &inst.SessionID, &inst.Description, &inst.IntervalSeconds, &lastRun); err != nil {
			return nil, err
		}
		if ts, err := time.Parse("2006-01-02 15:04:05", lastRun); err == nil {
			inst.LastRun = ts
		}
		due = append(due, inst)
	}
	return due, rows.Err()
}

func (s *Store) MarkInstructionRun(id int) error {
	query := `UPDATE instructions SET last_run = datetime('now') WHERE id = ?`
	_, err := s.DB.Exec(query, id)
	return err
}
