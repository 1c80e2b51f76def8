package chunk

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, c Chunker) []Chunk {
	t.Helper()
	var out []Chunk
	err := Walk(c, func(ch Chunk) error {
		out = append(out, ch)
		return nil
	})
	require.NoError(t, err)
	return out
}

func reassemble(chunks []Chunk) []byte {
	var buf bytes.Buffer
	for _, c := range chunks {
		buf.Write(c.Data)
	}
	return buf.Bytes()
}

func TestFixedCoversFileExactly(t *testing.T) {
	data := make([]byte, 10*1024+37)
	_, err := rand.Read(data)
	require.NoError(t, err)

	f, err := NewFixed(bytes.NewReader(data), 1024)
	require.NoError(t, err)
	chunks := drain(t, f)

	assert.Equal(t, data, reassemble(chunks))
	for i, c := range chunks[:len(chunks)-1] {
		assert.Len(t, c.Data, 1024, "chunk %d", i)
	}
	assert.LessOrEqual(t, len(chunks[len(chunks)-1].Data), 1024)

	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].Offset+int64(len(chunks[i-1].Data)), chunks[i].Offset)
	}
}

func TestFixedAAAA(t *testing.T) {
	f, err := NewFixed(bytes.NewReader([]byte("AAAA")), 1024)
	require.NoError(t, err)
	chunks := drain(t, f)
	require.Len(t, chunks, 1)
	assert.Equal(t, int64(0), chunks[0].Offset)
	assert.Equal(t, []byte("AAAA"), chunks[0].Data)
}

func TestSentinelThreeDelimiters(t *testing.T) {
	s, err := NewSentinel(bytes.NewReader([]byte{0x0A, 0x0A, 0x0A}), 0x0A, 1024)
	require.NoError(t, err)
	chunks := drain(t, s)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, int64(i), c.Offset)
		assert.Len(t, c.Data, 1)
	}
}

func TestSentinelCoversFileExactlyAndRespectsMaxSize(t *testing.T) {
	var data []byte
	for i := 0; i < 5000; i++ {
		data = append(data, byte(i%251))
		if i%37 == 0 {
			data = append(data, 0x0A)
		}
	}
	const maxSize = 64

	s, err := NewSentinel(bytes.NewReader(data), 0x0A, maxSize)
	require.NoError(t, err)
	chunks := drain(t, s)

	assert.Equal(t, data, reassemble(chunks))
	for i, c := range chunks {
		require.LessOrEqual(t, len(c.Data), maxSize, "chunk %d", i)
		isFinal := i == len(chunks)-1
		if len(c.Data) < maxSize && !isFinal {
			assert.Equal(t, byte(0x0A), c.Data[len(c.Data)-1], "non-final short chunk %d must end on delimiter", i)
		}
	}
}

func TestSentinelNoDelimiterEmitsMaxSizeChunks(t *testing.T) {
	data := bytes.Repeat([]byte{0xFF}, 250)
	s, err := NewSentinel(bytes.NewReader(data), 0x00, 64)
	require.NoError(t, err)
	chunks := drain(t, s)
	assert.Equal(t, data, reassemble(chunks))
	for _, c := range chunks[:len(chunks)-1] {
		assert.Len(t, c.Data, 64)
	}
	assert.Equal(t, 250%64, len(chunks[len(chunks)-1].Data))
}

func TestSentinelEmptyFile(t *testing.T) {
	s, err := NewSentinel(bytes.NewReader(nil), 0x0A, 64)
	require.NoError(t, err)
	chunks := drain(t, s)
	assert.Empty(t, chunks)
}

func TestFixedRejectsNonPositiveBlockSize(t *testing.T) {
	_, err := NewFixed(bytes.NewReader(nil), 0)
	assert.Error(t, err)
}
