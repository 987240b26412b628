// Package store persists session schema snapshots between conversation
// turns. The store is deliberately forgiving: loads never fail (a
// missing or corrupt snapshot yields a fresh empty one) and saves are
// best-effort with a local fallback, so a storage outage degrades the
// session rather than crashing the conversation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"regexp"

	"datadesigner/internal/logging"
	"datadesigner/internal/schema"
)

// ErrNotFound indicates no snapshot exists for a session key.
var ErrNotFound = errors.New("session snapshot not found")

// Backend reads and writes raw snapshot bytes under a session key.
type Backend interface {
	Name() string
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
}

// sessionIDPattern strips everything outside the safe key alphabet.
var sessionIDPattern = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeSessionID reduces a session id to [A-Za-z0-9_-]. An id that
// sanitizes to nothing becomes "default". Distinct raw ids can collide
// after sanitization ("user/1" and "user.1" both become "user1");
// callers that need isolation must supply ids that survive
// sanitization intact.
func SanitizeSessionID(id string) string {
	clean := sessionIDPattern.ReplaceAllString(id, "")
	if clean == "" {
		return "default"
	}
	return clean
}

// Store persists snapshots through a primary backend with a fallback
// used when primary writes fail.
type Store struct {
	primary  Backend
	fallback Backend
}

// New creates a session store. fallback may be nil.
func New(primary, fallback Backend) *Store {
	return &Store{primary: primary, fallback: fallback}
}

// key derives the storage key for a session id.
func key(sessionID string) string {
	return SanitizeSessionID(sessionID) + ".json"
}

// Load retrieves the snapshot for a session. It never fails: a missing
// key, an unreachable backend, or a corrupt payload all yield a fresh
// empty snapshot so the conversation can continue.
func (s *Store) Load(ctx context.Context, sessionID string) *schema.Snapshot {
	k := key(sessionID)
	logging.StoreDebug("loading snapshot: session=%q key=%s backend=%s", sessionID, k, s.primary.Name())

	data, err := s.primary.Read(ctx, k)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			logging.StoreDebug("no snapshot for %s, starting empty", k)
		} else {
			logging.StoreWarn("load failed for %s on %s: %v (starting empty)", k, s.primary.Name(), err)
		}
		return schema.EmptySnapshot()
	}

	var snap schema.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logging.StoreWarn("corrupt snapshot %s: %v (starting empty)", k, err)
		return schema.EmptySnapshot()
	}

	// Normalize nil collections so downstream marshaling always emits
	// all three keys
	if snap.Columns == nil {
		snap.Columns = []schema.ColumnRecord{}
	}
	if snap.ModelConfigs == nil {
		snap.ModelConfigs = []schema.ModelSpec{}
	}
	if snap.Constraints == nil {
		snap.Constraints = []schema.ConstraintSpec{}
	}

	logging.StoreDebug("loaded snapshot %s: %d columns, %d models, %d constraints",
		k, len(snap.Columns), len(snap.ModelConfigs), len(snap.Constraints))
	return &snap
}

// Save persists the snapshot for a session. Saves are best-effort: a
// primary failure falls back to the secondary backend, and a failure of
// both is logged and dropped so the conversation keeps its in-memory
// state for the rest of the turn.
func (s *Store) Save(ctx context.Context, sessionID string, snap *schema.Snapshot) {
	if snap == nil {
		snap = schema.EmptySnapshot()
	}
	k := key(sessionID)

	data, err := json.Marshal(snap)
	if err != nil {
		logging.StoreError("marshal snapshot %s: %v (dropped)", k, err)
		return
	}

	if err := s.primary.Write(ctx, k, data); err == nil {
		logging.StoreDebug("saved snapshot %s via %s (%d bytes)", k, s.primary.Name(), len(data))
		return
	} else {
		logging.StoreWarn("save failed for %s on %s: %v", k, s.primary.Name(), err)
	}

	if s.fallback == nil {
		logging.StoreError("no fallback backend, snapshot %s dropped", k)
		return
	}

	if err := s.fallback.Write(ctx, k, data); err != nil {
		logging.StoreError("fallback save failed for %s on %s: %v (dropped)", k, s.fallback.Name(), err)
		return
	}
	logging.Store("snapshot %s saved via fallback %s", k, s.fallback.Name())
}
