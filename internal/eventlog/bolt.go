package eventlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var eventsBucket = []byte("events")

const (
	boltFileMode    = 0600
	boltDirMode     = 0750
	boltOpenTimeout = time.Second
	boltKeyLen      = 16
)

// BoltStore appends events to a bbolt file.
//
// Keys are the big-endian event time in unix nanoseconds followed by the
// bucket sequence number, so a cursor walks events in time order and
// events within the same nanosecond keep insertion order. Values are JSON.
type BoltStore struct {
	db    *bolt.DB
	runID string
}

// OpenBoltStore opens or creates the bbolt file at path.
func OpenBoltStore(path, runID string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), boltDirMode); err != nil {
		return nil, fmt.Errorf("creating event log directory: %w", err)
	}

	db, err := bolt.Open(path, boltFileMode, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening event log %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(eventsBucket)
		return err
	})
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("creating events bucket: %w", err)
	}

	return &BoltStore{db: db, runID: runID}, nil
}

// InsertEvent appends e in its own transaction.
func (s *BoltStore) InsertEvent(_ context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}

	value, err := json.Marshal(newRecord(e, s.runID))
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(eventKey(e.Time, seq), value)
	})
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("inserting event for device %d: %w", e.DeviceID, err)
	}
	return nil
}

// Count returns the number of stored events.
func (s *BoltStore) Count(context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(eventsBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

// Recent returns up to limit events, newest first.
func (s *BoltStore) Recent(_ context.Context, limit int) ([]Event, error) {
	var events []Event
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(eventsBucket).Cursor()
		for k, v := c.Last(); k != nil && len(events) < limit; k, v = c.Prev() {
			var r record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decoding event %x: %w", k, err)
			}
			e, err := r.event()
			if err != nil {
				return err
			}
			events = append(events, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Close closes the bbolt file.
func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

func eventKey(t time.Time, seq uint64) []byte {
	key := make([]byte, boltKeyLen)
	binary.BigEndian.PutUint64(key[:8], uint64(t.UnixNano())) //nolint:gosec // pre-1970 times are not produced
	binary.BigEndian.PutUint64(key[8:], seq)
	return key
}
