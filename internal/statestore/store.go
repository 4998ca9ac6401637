// Package statestore persists per-container BackoffRecords across process
// restarts (§4.2). Commit writes to a temporary file in the state file's
// directory and atomically renames over the target, the same sequence the
// teacher's domain-secrets store uses for env files
// (domainsecrets/store.go: open .tmp, write, Sync, Close, os.Rename).
package statestore

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/bnema/zerowrap"

	"github.com/rcarmo/guerite/internal/domain"
)

// Store persists the backoff-record map at a single configured path.
type Store struct {
	path string
	log  zerowrap.Logger
	mu   sync.Mutex
}

// New creates a Store backed by the file at path.
func New(path string, log zerowrap.Logger) *Store {
	return &Store{path: path, log: log}
}

// record is the on-disk representation. Unknown fields are ignored on Load
// and are not written back by Commit; Extra is never populated.
type record struct {
	LastHealthRestartTS int64           `json:"last_health_restart_ts,omitempty"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
	BackoffUntilTS      int64           `json:"backoff_until_ts,omitempty"`
	LastActionTS        int64           `json:"last_action_ts,omitempty"`
	Extra               json.RawMessage `json:"-"`
}

// Load reads the persisted backoff-record map. A missing, corrupt, or
// unreadable file is treated as empty state and logged at warn level; the
// file is overwritten wholesale on the next Commit.
func (s *Store) Load() map[string]domain.BackoffRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]domain.BackoffRecord)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().
				Str(zerowrap.FieldLayer, "adapter").
				Err(err).
				Str("path", s.path).
				Msg("state store unreadable, starting from empty state")
		}
		return out
	}

	var raw map[string]record
	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.Warn().
			Str(zerowrap.FieldLayer, "adapter").
			Err(err).
			Str("path", s.path).
			Msg("state store corrupt, starting from empty state")
		return out
	}

	for name, r := range raw {
		out[name] = domain.BackoffRecord{
			LastHealthRestartTS: fromUnix(r.LastHealthRestartTS),
			ConsecutiveFailures: r.ConsecutiveFailures,
			BackoffUntilTS:      fromUnix(r.BackoffUntilTS),
			LastActionTS:        fromUnix(r.LastActionTS),
		}
	}
	return out
}

// Commit atomically persists the given backoff-record map, replacing
// whatever was previously on disk.
func (s *Store) Commit(records map[string]domain.BackoffRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := make(map[string]record, len(records))
	for name, r := range records {
		raw[name] = record{
			LastHealthRestartTS: toUnix(r.LastHealthRestartTS),
			ConsecutiveFailures: r.ConsecutiveFailures,
			BackoffUntilTS:      toUnix(r.BackoffUntilTS),
			LastActionTS:        toUnix(r.LastActionTS),
		}
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"

	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
