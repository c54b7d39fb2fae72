// Package kvstore is the example application state machine driven by
// committed raft log entries: a concurrency-safe string map with
// msgpack-encoded commands and a JSON snapshot format.
package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/qkvraft/raftcore/internal/logutil"
)

// CmdType distinguishes the two mutating operations a client may propose.
type CmdType uint8

const (
	// CmdSet sets Key to Value.
	CmdSet CmdType = iota + 1
	// CmdDel removes Key.
	CmdDel
)

// Cmd is the opaque payload carried in a raft.LogEntry's Data field
// for this state machine. It is msgpack-encoded on the wire.
type Cmd struct {
	Type  CmdType
	Key   string
	Value string
}

// Encode msgpack-encodes a Cmd for use as a log entry's Data.
func Encode(c Cmd) ([]byte, error) {
	return msgpack.Marshal(&c)
}

var errNoKey = errors.New("kvstore: no key provided for Get")

// Store is a concurrency-safe key/value map applied from the committed
// log. It is not itself durable; its contents can be captured with
// Snapshot and reloaded with Restore, and nothing in this module calls
// either on a schedule.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: make(map[string]string)}
}

// Apply decodes and applies one committed entry's payload. Called
// exactly once per committed index, in order, by the driver loop.
func (s *Store) Apply(data []byte) error {
	if len(data) == 0 {
		return nil // no-op entry appended on becoming leader
	}

	var cmd Cmd
	if err := msgpack.Unmarshal(data, &cmd); err != nil {
		return fmt.Errorf("kvstore: decode command: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Type {
	case CmdSet:
		s.data[cmd.Key] = cmd.Value
	case CmdDel:
		delete(s.data, cmd.Key)
	default:
		logutil.Panicf("kvstore: unexpected command type %d", cmd.Type)
	}
	return nil
}

// Get returns the current value for key.
func (s *Store) Get(key string) (string, error) {
	if key == "" {
		return "", errNoKey
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", fmt.Errorf("kvstore: key %q does not exist", key)
	}
	return v, nil
}

// Snapshot serializes the current map as JSON, suitable for use as a
// raft.Snapshot's Data payload.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.data)
}

// Restore replaces the map's contents from a snapshot payload produced
// by Snapshot.
func (s *Store) Restore(data []byte) error {
	m := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = m
	return nil
}
