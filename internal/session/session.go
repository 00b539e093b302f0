// Package session persists one coordination run to disk so a finished
// or aborted run stays auditable.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/crewd/internal/message"
	"github.com/fyrsmithlabs/crewd/internal/recovery"
	"github.com/fyrsmithlabs/crewd/internal/store"
)

// HandoffReport is the shutdown validation summary of one run.
type HandoffReport struct {
	HandoffsOccurred  bool     `json:"handoffs_occurred"`
	WorkerExecuted    bool     `json:"worker_executed"`
	ManagerReviewed   bool     `json:"manager_reviewed"`
	MessagesExchanged bool     `json:"messages_exchanged"`
	Issues            []string `json:"issues,omitempty"`
}

// MessageRecord is the persisted form of one exchanged message. The
// payload body is dropped, type and routing are enough for audit.
type MessageRecord struct {
	ID            string       `json:"id"`
	From          store.Role   `json:"from"`
	To            store.Role   `json:"to"`
	Type          message.Type `json:"type"`
	Timestamp     time.Time    `json:"timestamp"`
	CorrelationID string       `json:"correlation_id,omitempty"`
}

// RecordMessages converts exchanged messages to their persisted form.
func RecordMessages(msgs []message.Message) []MessageRecord {
	out := make([]MessageRecord, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageRecord{
			ID:            m.ID,
			From:          m.From,
			To:            m.To,
			Type:          m.Type,
			Timestamp:     m.Timestamp,
			CorrelationID: m.CorrelationID,
		})
	}
	return out
}

// Session is one coordination run.
type Session struct {
	ID         string                `json:"id"`
	Request    string                `json:"request"`
	WorkDir    string                `json:"work_dir"`
	StartedAt  time.Time             `json:"started_at"`
	EndedAt    time.Time             `json:"ended_at,omitzero"`
	Iterations int                   `json:"iterations"`
	Phase      string                `json:"phase,omitempty"`
	Counts     store.Counts          `json:"counts"`
	Items      []store.WorkItem      `json:"items,omitempty"`
	Messages   []MessageRecord       `json:"messages,omitempty"`
	Errors     []recovery.AgentError `json:"errors,omitempty"`
	Report     *HandoffReport        `json:"report,omitempty"`
}

// Store persists sessions as one JSON file per run.
type Store struct {
	dir string
}

// NewStore builds a session store rooted at dir, created on demand.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Create starts a new session for a request.
func (s *Store) Create(request, workDir string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Request:   request,
		WorkDir:   workDir,
		StartedAt: time.Now().UTC(),
	}
}

// Save writes the session to disk, replacing any previous snapshot.
func (s *Store) Save(sess *Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session has no id")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	path := s.path(sess.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

// Load reads a persisted session by id.
func (s *Store) Load(id string) (*Session, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", id, err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &sess, nil
}

// List returns the ids of all persisted sessions.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) == ".json" {
			ids = append(ids, name[:len(name)-len(".json")])
		}
	}
	return ids, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
