// Package chunk segments a file into a lazy sequence of (offset, bytes)
// pairs, in one of two modes: fixed-size blocks, or blocks cut on a
// delimiter sentinel byte.
package chunk

// Chunk is one contiguous, non-overlapping slice of the source file.
type Chunk struct {
	Offset int64
	Data   []byte
}

// Chunker produces chunks from a file, one at a time, in file order. A
// Chunker holds whatever private, stateful buffering its strategy needs; it
// is not safe for concurrent use, and is meant to be drained exactly once.
type Chunker interface {
	// Next returns the next chunk, or ok == false once the file is
	// exhausted. A non-nil error aborts iteration.
	Next() (c Chunk, ok bool, err error)
}

// Walk drains a Chunker, calling fn for each chunk in order. It stops and
// returns fn's error immediately if fn returns one.
func Walk(c Chunker, fn func(Chunk) error) error {
	for {
		chunk, ok, err := c.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(chunk); err != nil {
			return err
		}
	}
}
