package store

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// recordSize is the fixed width of an encoded Record (its id is the bbolt
// key, not part of the value): offset, length, entropy, r, g, b, anom_score
// and flux_type, each as 8 bytes.
const recordSize = 8 * 8

func encodeRecord(r Record) ([]byte, error) {
	b := make([]byte, recordSize)
	binary.BigEndian.PutUint64(b[0:8], uint64(r.Offset))
	binary.BigEndian.PutUint64(b[8:16], uint64(int64(r.Length)))
	binary.BigEndian.PutUint64(b[16:24], math.Float64bits(r.Entropy))
	binary.BigEndian.PutUint64(b[24:32], math.Float64bits(r.RFrac))
	binary.BigEndian.PutUint64(b[32:40], math.Float64bits(r.GFrac))
	binary.BigEndian.PutUint64(b[40:48], math.Float64bits(r.BFrac))
	binary.BigEndian.PutUint64(b[48:56], math.Float64bits(r.AnomScore))
	binary.BigEndian.PutUint64(b[56:64], uint64(int64(r.FluxType)))
	return b, nil
}

func decodeRecord(b []byte) (Record, error) {
	if len(b) != recordSize {
		return Record{}, errors.Errorf("store: corrupt record, want %d bytes, got %d", recordSize, len(b))
	}
	return Record{
		Offset:    int64(binary.BigEndian.Uint64(b[0:8])),
		Length:    int(int64(binary.BigEndian.Uint64(b[8:16]))),
		Entropy:   math.Float64frombits(binary.BigEndian.Uint64(b[16:24])),
		RFrac:     math.Float64frombits(binary.BigEndian.Uint64(b[24:32])),
		GFrac:     math.Float64frombits(binary.BigEndian.Uint64(b[32:40])),
		BFrac:     math.Float64frombits(binary.BigEndian.Uint64(b[40:48])),
		AnomScore: math.Float64frombits(binary.BigEndian.Uint64(b[48:56])),
		FluxType:  int(int64(binary.BigEndian.Uint64(b[56:64]))),
	}, nil
}
