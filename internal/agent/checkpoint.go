package agent

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"datadesigner/internal/llm"
	"datadesigner/internal/logging"
)

// Checkpoint persists conversation history per session in SQLite, so
// history survives process restarts while phase stays per-request.
type Checkpoint struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenCheckpoint opens (or creates) the checkpoint database at path.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.AgentDebug("set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.AgentDebug("set journal_mode=WAL: %v", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS conversation_turns (
		session_id   TEXT NOT NULL,
		turn_number  INTEGER NOT NULL,
		message_json TEXT NOT NULL,
		created_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (session_id, turn_number)
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init checkpoint schema: %w", err)
	}

	logging.Agent("checkpoint store opened at %s", path)
	return &Checkpoint{db: db}, nil
}

// Close releases the database handle.
func (c *Checkpoint) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}

// LoadHistory returns the most recent messages for a session in
// chronological order, plus the turn number the next append should
// start at. A session with no history returns an empty slice.
func (c *Checkpoint) LoadHistory(sessionID string, limit int) ([]llm.Message, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := c.db.Query(
		`SELECT turn_number, message_json
		 FROM conversation_turns
		 WHERE session_id = ?
		 ORDER BY turn_number DESC
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var (
		messages []llm.Message
		nextTurn int
	)
	for rows.Next() {
		var turn int
		var raw string
		if err := rows.Scan(&turn, &raw); err != nil {
			continue
		}
		if turn >= nextTurn {
			nextTurn = turn + 1
		}
		var msg llm.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			logging.AgentWarn("skipping unreadable turn %d of session %s: %v", turn, sessionID, err)
			continue
		}
		// rows arrive newest-first; prepend to restore order
		messages = append([]llm.Message{msg}, messages...)
	}

	logging.AgentDebug("loaded %d checkpointed messages for session %s", len(messages), sessionID)
	return messages, nextTurn, nil
}

// AppendTurns records messages starting at the given turn number.
// INSERT OR IGNORE keeps re-appends after a partial failure idempotent.
func (c *Checkpoint) AppendTurns(sessionID string, startTurn int, messages []llm.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, msg := range messages {
		raw, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode turn %d: %w", startTurn+i, err)
		}
		_, err = c.db.Exec(
			`INSERT OR IGNORE INTO conversation_turns (session_id, turn_number, message_json)
			 VALUES (?, ?, ?)`,
			sessionID, startTurn+i, string(raw),
		)
		if err != nil {
			return fmt.Errorf("store turn %d: %w", startTurn+i, err)
		}
	}

	logging.AgentDebug("checkpointed %d messages for session %s from turn %d",
		len(messages), sessionID, startTurn)
	return nil
}

// ClearSession drops a session's checkpointed history.
func (c *Checkpoint) ClearSession(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(`DELETE FROM conversation_turns WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}
	return nil
}
