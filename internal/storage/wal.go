// Package storage implements the on-disk Storage Adapter: a
// write-ahead log of hard state updates and log entries, msgpack
// encoded, plus the most recent snapshot. It is the only place in the
// module that performs durable writes on behalf of the raft core.
package storage

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/qkvraft/raftcore/internal/logutil"
)

// recordKind tags what a WAL record carries.
type recordKind uint8

const (
	recordHardState recordKind = iota + 1
	recordEntries
)

type walRecord struct {
	Kind    recordKind
	Hard    hardStateRecord `msgpack:",omitempty"`
	Entries []entryRecord   `msgpack:",omitempty"`
}

// hardStateRecord and entryRecord mirror raft.HardState/raft.LogEntry
// in a form msgpack can encode without importing the core package's
// field tags directly; kept deliberately small and stable on disk.
type hardStateRecord struct {
	Term   uint64
	Vote   uint64
	Commit uint64
}

type entryRecord struct {
	Index uint64
	Term  uint64
	Kind  uint8
	Data  []byte
}

// wal is an append-only record log with length-prefixed msgpack
// frames, replayed in full on open.
type wal struct {
	f *os.File
}

func openWAL(path string) (*wal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &wal{f: f}, nil
}

func (w *wal) append(rec walRecord) error {
	buf, err := msgpack.Marshal(&rec)
	if err != nil {
		return err
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(buf)))
	if _, err := w.f.Write(lenPrefix[:]); err != nil {
		return err
	}
	if _, err := w.f.Write(buf); err != nil {
		return err
	}
	return w.f.Sync()
}

// replay reads every record in the file from the start, in order.
func (w *wal) replay(fn func(walRecord) error) error {
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var lenPrefix [4]byte
	for {
		if _, err := io.ReadFull(w.f, lenPrefix[:]); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		n := binary.BigEndian.Uint32(lenPrefix[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(w.f, buf); err != nil {
			return err
		}
		var rec walRecord
		if err := msgpack.Unmarshal(buf, &rec); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if _, err := w.f.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	return nil
}

func (w *wal) close() error {
	if err := w.f.Sync(); err != nil {
		logutil.Warning("wal: sync on close failed: %v", err)
	}
	return w.f.Close()
}
