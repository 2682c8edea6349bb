package engine

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stellarlinkco/rostrum/internal/agent"
)

// TranscriptEntry is one utterance in a session. Field names are part
// of the saved-session contract.
type TranscriptEntry struct {
	Speaker   string `json:"speaker"`
	Content   string `json:"content"`
	Type      string `json:"type"`
	Turn      int    `json:"turn"`
	Timestamp string `json:"timestamp"`
}

// DebaterRecord is the persisted per-debater block.
type DebaterRecord struct {
	Name        string             `json:"name"`
	Stance      string             `json:"stance"`
	DebateStyle string             `json:"debate_style"`
	Stats       agent.DebaterStats `json:"stats"`
}

// Session is the persisted session document, one JSON file per debate.
type Session struct {
	ID         string            `json:"id"`
	Topic      string            `json:"topic"`
	Rules      agent.Rules       `json:"rules"`
	Status     string            `json:"status"`
	Turns      int               `json:"turns"`
	MaxTurns   int               `json:"max_turns"`
	Timestamp  string            `json:"timestamp"`
	Transcript []TranscriptEntry `json:"transcript"`
	Results    *agent.Results    `json:"results"`
	Debaters   []DebaterRecord   `json:"debaters"`
}

// Store reads and writes session documents in a flat directory, one
// file per session named by the first 8 characters of the session ID.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

func sessionFilename(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return id + ".json"
}

// Save writes the session document and returns its path. The write
// goes through a temp file and rename so a crash mid-write never
// leaves a truncated session on disk.
func (s *Store) Save(sess *Session) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create debates dir: %w", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	path := filepath.Join(s.dir, sessionFilename(sess.ID))
	tmp, err := os.CreateTemp(s.dir, "session-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename session file: %w", err)
	}

	log.Printf("[engine] saved debate session to %s", path)
	return path, nil
}

// Load reads a session by ID or ID prefix.
func (s *Store) Load(id string) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("load session: empty id")
	}
	path := filepath.Join(s.dir, sessionFilename(id))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", id, err)
	}
	return &sess, nil
}

// List returns all stored sessions, newest first by timestamp.
// Unreadable files are skipped with a warning.
func (s *Store) List() ([]*Session, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read debates dir: %w", err)
	}

	var sessions []*Session
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			log.Printf("[engine] skipping session file %s: %v", entry.Name(), err)
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			log.Printf("[engine] skipping invalid session file %s: %v", entry.Name(), err)
			continue
		}
		sessions = append(sessions, &sess)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Timestamp > sessions[j].Timestamp
	})
	return sessions, nil
}
