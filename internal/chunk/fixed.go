package chunk

import (
	"io"

	"github.com/pkg/errors"
)

// Fixed reads sequential, equal-size blocks from a file. The final block may
// be shorter, if the file's length is not a multiple of BlockSize.
type Fixed struct {
	BlockSize int

	r      io.Reader
	offset int64
	done   bool
}

// NewFixed returns a Chunker that reads BlockSize-byte blocks from r.
func NewFixed(r io.Reader, blockSize int) (*Fixed, error) {
	if blockSize <= 0 {
		return nil, errors.Errorf("chunk: block size must be positive, got %d", blockSize)
	}
	return &Fixed{BlockSize: blockSize, r: r}, nil
}

// Next implements Chunker.
func (f *Fixed) Next() (Chunk, bool, error) {
	if f.done {
		return Chunk{}, false, nil
	}

	buf := make([]byte, f.BlockSize)
	n, err := io.ReadFull(f.r, buf)
	switch err {
	case nil:
		// Full block; more may follow.
	case io.ErrUnexpectedEOF, io.EOF:
		f.done = true
		if n == 0 {
			return Chunk{}, false, nil
		}
	default:
		return Chunk{}, false, errors.Wrap(err, "chunk: fixed read")
	}

	c := Chunk{Offset: f.offset, Data: buf[:n]}
	f.offset += int64(n)
	return c, true, nil
}
