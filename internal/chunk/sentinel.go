package chunk

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

const sentinelSlabSize = 64 * 1024

// Sentinel cuts a file into chunks on a delimiter byte, never emitting a
// chunk longer than MaxSize. Its buffer is a private field: the Chunker is a
// capability value, not module state.
type Sentinel struct {
	Delimiter byte
	MaxSize   int

	r      io.Reader
	buf    []byte
	offset int64
	eof    bool
}

// NewSentinel returns a Chunker that cuts r on delimiter, with chunks capped
// at maxSize bytes.
func NewSentinel(r io.Reader, delimiter byte, maxSize int) (*Sentinel, error) {
	if maxSize <= 0 {
		return nil, errors.Errorf("chunk: max size must be positive, got %d", maxSize)
	}
	return &Sentinel{Delimiter: delimiter, MaxSize: maxSize, r: r}, nil
}

// Next implements Chunker.
func (s *Sentinel) Next() (Chunk, bool, error) {
	for {
		if cutLen, ok := s.cutLen(); ok {
			data := make([]byte, cutLen)
			copy(data, s.buf[:cutLen])
			c := Chunk{Offset: s.offset, Data: data}
			s.offset += int64(cutLen)
			s.buf = s.buf[cutLen:]
			return c, true, nil
		}
		if s.eof {
			return Chunk{}, false, nil
		}
		if err := s.fill(); err != nil {
			return Chunk{}, false, err
		}
	}
}

// cutLen reports the length of the next chunk to cut from s.buf, if one can
// be determined without reading more input. This is spec'd precisely:
//
//  1. delimiter found at index k: cut = min(k+1, MaxSize).
//  2. no delimiter, but len(buf) >= MaxSize: cut = MaxSize.
//  3. no delimiter, buf shorter than MaxSize, not yet at EOF: need more data.
//  4. no delimiter, buf shorter than MaxSize, at EOF: cut = len(buf) (the
//     final, possibly-short chunk).
func (s *Sentinel) cutLen() (int, bool) {
	if len(s.buf) == 0 {
		return 0, false
	}
	if idx := bytes.IndexByte(s.buf, s.Delimiter); idx != -1 {
		cut := idx + 1
		if cut > s.MaxSize {
			cut = s.MaxSize
		}
		return cut, true
	}
	if len(s.buf) >= s.MaxSize {
		return s.MaxSize, true
	}
	if s.eof {
		return len(s.buf), true
	}
	return 0, false
}

func (s *Sentinel) fill() error {
	slab := make([]byte, sentinelSlabSize)
	n, err := s.r.Read(slab)
	if n > 0 {
		s.buf = append(s.buf, slab[:n]...)
	}
	if err == io.EOF {
		s.eof = true
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "chunk: sentinel read")
	}
	return nil
}
