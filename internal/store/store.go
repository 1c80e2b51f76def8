// Package store persists chunk records in stream order, in a single-file
// embedded database, and serves paged and whole-stream queries over them.
package store

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var bucketChunks = []byte("chunks")

// Record is one persisted chunk's full set of statistical and anomaly
// descriptors, addressed by its dense, 1-based, insertion-order id.
type Record struct {
	ID        uint64
	Offset    int64
	Length    int
	Entropy   float64
	RFrac     float64
	GFrac     float64
	BFrac     float64
	AnomScore float64
	FluxType  int
}

// ChunkRow is the (offset, length, entropy, r, g, b) tuple returned by
// GetPage, matching the wire shape of the /data endpoint's "chunks" array.
type ChunkRow struct {
	Offset  int64
	Length  int
	Entropy float64
	R, G, B float64
}

// AnomRow is the (anom_score, flux_type) tuple returned alongside a
// ChunkRow, anom_score rounded to 2 decimal places on read.
type AnomRow struct {
	AnomScore float64
	FluxType  int
}

// Spectral is one (r, g, b) triple, as returned by GetAllSpectral.
type Spectral struct {
	R, G, B float64
}

// Store is an append-only, id-ordered log of Records, backed by a single
// bbolt file in a system temp directory. It is safe for concurrent reads;
// writers (InsertBulk, Reset) take an exclusive lock, so they run one at a
// time and never overlap a read.
type Store struct {
	mu   sync.RWMutex
	db   *bolt.DB
	path string
	next uint64 // next id to assign; protected by mu.
}

// Open creates a fresh bbolt-backed Store at a new temp file.
func Open() (*Store, error) {
	f, err := os.CreateTemp("", "sentinelnav-store-*.db")
	if err != nil {
		return nil, errors.Wrap(err, "store: create temp file")
	}
	path := f.Name()
	f.Close()

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		os.Remove(path)
		return nil, errors.Wrap(err, "store: open bbolt db")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketChunks)
		return err
	})
	if err != nil {
		db.Close()
		os.Remove(path)
		return nil, errors.Wrap(err, "store: create bucket")
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the backing db and deletes its temp file. The store must not
// be used after Close.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Close()
	if rmErr := os.Remove(s.path); err == nil {
		err = rmErr
	}
	return errors.Wrap(err, "store: close")
}

// InsertBulk atomically appends a batch of records, assigning dense ids in
// receive order.
func (s *Store) InsertBulk(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.next
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		for i := range records {
			s.next++
			records[i].ID = s.next
			key := idKey(s.next)
			val, err := encodeRecord(records[i])
			if err != nil {
				return err
			}
			if err := b.Put(key, val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// The transaction rolled back; so do the ids it assigned.
		s.next = start
	}
	return err
}

// GetPage returns the records with id in [pageNum*pageSize+1,
// (pageNum+1)*pageSize], in id order.
func (s *Store) GetPage(pageNum, pageSize int) ([]ChunkRow, []AnomRow, error) {
	if pageSize <= 0 {
		return nil, nil, errors.Errorf("store: page size must be positive, got %d", pageSize)
	}
	if pageNum < 0 {
		return nil, nil, errors.Errorf("store: page num must be non-negative, got %d", pageNum)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	lo := uint64(pageNum)*uint64(pageSize) + 1
	hi := lo + uint64(pageSize) - 1

	var chunks []ChunkRow
	var anoms []AnomRow
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketChunks).Cursor()
		loKey := idKey(lo)
		for k, v := c.Seek(loKey); k != nil; k, v = c.Next() {
			id := binary.BigEndian.Uint64(k)
			if id > hi {
				break
			}
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			chunks = append(chunks, ChunkRow{
				Offset: rec.Offset, Length: rec.Length, Entropy: rec.Entropy,
				R: rec.RFrac, G: rec.GFrac, B: rec.BFrac,
			})
			anoms = append(anoms, AnomRow{
				AnomScore: roundTo(rec.AnomScore, 2), FluxType: rec.FluxType,
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "store: get page")
	}
	return chunks, anoms, nil
}

// GetAllSpectral returns every record's (r, g, b) triple, in id order. This
// materializes the whole stream, as the BMP export needs the full sequence.
func (s *Store) GetAllSpectral() ([]Spectral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Spectral
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketChunks).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			out = append(out, Spectral{R: rec.RFrac, G: rec.GFrac, B: rec.BFrac})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "store: get all spectral")
	}
	return out, nil
}

// Total returns the number of records currently committed.
func (s *Store) Total() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.next), nil
}

// Reset drops all records, for a /load re-scan. The backing file and bucket
// are kept; only their contents are cleared.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketChunks); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketChunks)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "store: reset")
	}
	s.next = 0
	return nil
}

func idKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

func roundTo(x float64, places int) float64 {
	scale := 1.0
	for i := 0; i < places; i++ {
		scale *= 10
	}
	v := x * scale
	if v >= 0 {
		v += 0.5
	} else {
		v -= 0.5
	}
	return float64(int64(v)) / scale
}
