// Durable single-slot store for an in-flight RAID operation's state, so the
// panel can reconstruct its view after a restart, plus the last resolved
// access mode. Backed by a small BoltDB file.
package sessionstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/komero-io/komero/pkg/accessmode"
	"github.com/komero-io/komero/pkg/komtypes"
	"go.etcd.io/bbolt"
)

var (
	bucketPanel   = []byte("panel")
	keySession    = []byte("resync-operation") // single slot: one operation's state at a time
	keyAccessMode = []byte("access-mode")
)

type PersistedSession struct {
	Logs            []komtypes.LogEntry        `json:"logs"`
	ExecutionStatus komtypes.ExecutionStatus   `json:"executionStatus"`
	Progress        *komtypes.ProgressSnapshot `json:"progress,omitempty"`
	SavedAt         time.Time                  `json:"savedAt"`
}

type Store struct {
	db *bbolt.DB
}

func Open(dbLocation string) (*Store, error) {
	db, err := bbolt.Open(dbLocation, 0700, &bbolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("sessionstore: %w", err)
	}

	return &Store{db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession overwrites the slot. Called on every log/progress mutation
// while an operation is active, so it must stay cheap.
func (s *Store) SaveSession(session *PersistedSession) error {
	serialized, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketPanel)
		if err != nil {
			return err
		}

		return bucket.Put(keySession, serialized)
	})
}

// LoadSession returns nil when there is nothing to resume: no saved session,
// or one older than maxAge (a stale one is deleted on sight).
func (s *Store) LoadSession(maxAge time.Duration, now time.Time) (*PersistedSession, error) {
	var session *PersistedSession

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPanel)
		if bucket == nil {
			return nil
		}

		serialized := bucket.Get(keySession)
		if serialized == nil {
			return nil
		}

		loaded := &PersistedSession{}
		if err := json.Unmarshal(serialized, loaded); err != nil {
			return err
		}

		if now.Sub(loaded.SavedAt) > maxAge {
			return bucket.Delete(keySession)
		}

		session = loaded
		return nil
	}); err != nil {
		return nil, err
	}

	return session, nil
}

func (s *Store) ClearSession() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPanel)
		if bucket == nil {
			return nil
		}

		return bucket.Delete(keySession)
	})
}

// implements accessmode.ModeCache

func (s *Store) SaveMode(mode accessmode.Mode) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketPanel)
		if err != nil {
			return err
		}

		return bucket.Put(keyAccessMode, []byte(mode))
	})
}

func (s *Store) LoadMode() (accessmode.Mode, bool, error) {
	mode := accessmode.Mode("")

	if err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPanel)
		if bucket == nil {
			return nil
		}

		if value := bucket.Get(keyAccessMode); value != nil {
			mode = accessmode.Mode(value)
		}

		return nil
	}); err != nil {
		return "", false, err
	}

	if !mode.Valid() {
		return "", false, nil
	}

	return mode, true, nil
}

func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, "komero-panel.db"), nil
}
