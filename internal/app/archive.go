package app

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"CanSatGS/internal/model"
)

var telemetryBucket = []byte("telemetry")

// Archive stores decoded telemetry records in BoltDB keyed by arrival sequence.
type Archive struct {
	db *bbolt.DB
}

type archived struct {
	Time   time.Time    `json:"time"`
	Record model.Record `json:"record"`
}

// OpenArchive opens (or creates) the database at path.
func OpenArchive(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("[app] failed to create %s: %w", dir, err)
		}
	}
	db, err := bbolt.Open(path, 0o666, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("[app] failed to open BoltDB: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(telemetryBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("[app] failed to create bucket: %w", err)
	}
	return &Archive{db: db}, nil
}

// Put appends one record.
func (a *Archive) Put(at time.Time, rec model.Record) error {
	body, err := json.Marshal(archived{Time: at, Record: rec})
	if err != nil {
		return err
	}
	return a.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(telemetryBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, body)
	})
}

// Latest returns the newest stored record as JSON, or nil when empty.
func (a *Archive) Latest() (json.RawMessage, error) {
	recent, err := a.Recent(1)
	if err != nil || len(recent) == 0 {
		return nil, err
	}
	return recent[0], nil
}

// Recent returns up to n records, newest first.
func (a *Archive) Recent(n int) ([]json.RawMessage, error) {
	var out []json.RawMessage
	err := a.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(telemetryBucket).Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			out = append(out, append(json.RawMessage(nil), v...))
		}
		return nil
	})
	return out, err
}

// Count returns the number of stored records.
func (a *Archive) Count() (int, error) {
	var n int
	err := a.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(telemetryBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the database.
func (a *Archive) Close() error { return a.db.Close() }
