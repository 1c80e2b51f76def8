package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntropyEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Entropy(nil))
	assert.Equal(t, 0.0, Entropy([]byte{}))
}

func TestEntropySingleByte(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = 0x41
	}
	assert.Equal(t, 0.0, Entropy(data))
}

func TestEntropyUniform256(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	assert.InDelta(t, 8.0, Entropy(data), 1e-9)
}

func TestBandsPartitionExcludes0x7F(t *testing.T) {
	data := []byte{0x00, 0x1F, 0x20, 0x7E, 0x7F, 0x80, 0xFF}
	h := Histogram256(data)
	r, g, b := Bands(h)
	assert.EqualValues(t, 2, r)
	assert.EqualValues(t, 2, g)
	assert.EqualValues(t, 2, b)
	assert.Equal(t, uint64(len(data)), r+g+b+1) // +1 for the unclassified 0x7F
}

func TestPrintableRatio(t *testing.T) {
	assert.Equal(t, 0.0, PrintableRatio(nil))
	assert.InDelta(t, 1.0, PrintableRatio([]byte("hello\tworld\n")), 1e-9)
	assert.InDelta(t, 0.0, PrintableRatio([]byte{0x00, 0x01, 0x02}), 1e-9)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.235, Round(1.2345, 3))
	assert.Equal(t, 0.0, Round(0.0001, 3))
}
