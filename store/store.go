// Package store persists calibration thresholds and sensitivities across
// restarts as 4-byte float blobs keyed by logical names.
package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Well-known setting keys.
const (
	KeyWanderThreshold = "wander_th"
	KeyJitterThreshold = "jitter_th"
	// Slave-local sensitivity keys.
	KeyWanderSens = "wander_sens"
	KeyJitterSens = "jitter_sens"
)

// LinkSensKeys returns the per-link sensitivity keys used on the master.
func LinkSensKeys(link int) (wander, jitter string) {
	return fmt.Sprintf("link%d_w_sens", link), fmt.Sprintf("link%d_j_sens", link)
}

var bucketName = []byte("presence")

// Store is a bbolt-backed settings store.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the settings database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create settings bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// PutFloat stores v under key as a little-endian float32 blob.
func (s *Store) PutFloat(key string, v float64) error {
	blob := make([]byte, 4)
	binary.LittleEndian.PutUint32(blob, math.Float32bits(float32(v)))
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), blob)
	})
}

// GetFloat loads key. The second return is false when the key is missing or
// malformed, in which case callers keep their built-in default.
func (s *Store) GetFloat(key string) (float64, bool) {
	var v float64
	found := false
	s.db.View(func(tx *bolt.Tx) error {
		blob := tx.Bucket(bucketName).Get([]byte(key))
		if len(blob) == 4 {
			v = float64(math.Float32frombits(binary.LittleEndian.Uint32(blob)))
			found = true
		}
		return nil
	})
	return v, found
}
