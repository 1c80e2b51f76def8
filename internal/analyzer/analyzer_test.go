package analyzer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustedkoi/sentinelnav/internal/chunk"
	"github.com/rustedkoi/sentinelnav/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestScanAAAA(t *testing.T) {
	st := newTestStore(t)
	c, err := chunk.NewFixed(bytes.NewReader([]byte("AAAA")), 1024)
	require.NoError(t, err)

	total, err := Scan(context.Background(), c, st, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	chunks, anoms, err := st.GetPage(0, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, int64(0), chunks[0].Offset)
	assert.Equal(t, 4, chunks[0].Length)
	assert.Equal(t, 0.0, chunks[0].Entropy)
	assert.Equal(t, 0.0, chunks[0].R)
	assert.Equal(t, 1.0, chunks[0].G)
	assert.Equal(t, 0.0, chunks[0].B)
	assert.Equal(t, 0.0, anoms[0].AnomScore)
	assert.Equal(t, fluxNone, anoms[0].FluxType)
}

func TestScanTenKiBOfZeroes(t *testing.T) {
	st := newTestStore(t)
	data := make([]byte, 10*1024)
	c, err := chunk.NewFixed(bytes.NewReader(data), 1024)
	require.NoError(t, err)

	total, err := Scan(context.Background(), c, st, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, total)

	chunks, anoms, err := st.GetPage(0, 20)
	require.NoError(t, err)
	require.Len(t, chunks, 10)
	for i, c := range chunks {
		assert.Equal(t, 0.0, c.Entropy, "record %d", i)
		assert.Equal(t, 1.0, c.B, "record %d", i)
		assert.Equal(t, 0.0, anoms[i].AnomScore, "record %d", i)
		assert.Equal(t, fluxNone, anoms[i].FluxType, "record %d", i)
	}
}

func TestScanEntropySpikeFlagsFlux(t *testing.T) {
	st := newTestStore(t)

	random := make([]byte, 1024)
	for i := range random {
		random[i] = byte((i*2654435761 + 7) & 0xFF)
	}
	data := append(make([]byte, 1024), random...)

	c, err := chunk.NewFixed(bytes.NewReader(data), 1024)
	require.NoError(t, err)

	_, err = Scan(context.Background(), c, st, 5, nil)
	require.NoError(t, err)

	chunks, anoms, err := st.GetPage(0, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 0.0, chunks[0].Entropy)
	assert.Equal(t, fluxNone, anoms[0].FluxType)

	assert.Greater(t, chunks[1].Entropy, 6.0)
	if chunks[1].Entropy-chunks[0].Entropy > 1.5 {
		assert.Equal(t, fluxSpike, anoms[1].FluxType)
		assert.GreaterOrEqual(t, anoms[1].AnomScore, 0.8)
	}
}

func TestScanPreservesOrderUnderConcurrency(t *testing.T) {
	st := newTestStore(t)
	var data []byte
	for i := 0; i < 5000; i++ {
		data = append(data, byte(i%256))
	}
	c, err := chunk.NewFixed(bytes.NewReader(data), 64)
	require.NoError(t, err)

	total, err := Scan(context.Background(), c, st, 5, nil)
	require.NoError(t, err)

	chunks, _, err := st.GetPage(0, total+1)
	require.NoError(t, err)
	require.Len(t, chunks, total)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].Offset+int64(chunks[i-1].Length), chunks[i].Offset, "chunk %d out of order", i)
	}
}

func TestDetectorFluxNoneWhenNoRuleFires(t *testing.T) {
	d := newAnomalyDetector(3)
	for i := 0; i < 3; i++ {
		score, flux := d.step(4.0)
		assert.Equal(t, fluxNone, flux)
		assert.Equal(t, 0.0, score)
	}
}

func TestDetectorSpikeRule(t *testing.T) {
	d := newAnomalyDetector(1)
	d.step(1.0)
	score, flux := d.step(7.0) // delta=6>1.5, entropy=7>6.0
	assert.Equal(t, fluxSpike, flux)
	assert.GreaterOrEqual(t, score, 0.8)
}

func TestDetectorDropRule(t *testing.T) {
	d := newAnomalyDetector(1)
	d.step(7.0)
	score, flux := d.step(1.0) // delta=-6<-1.5, entropy=1<3.0
	assert.Equal(t, fluxDrop, flux)
	assert.GreaterOrEqual(t, score, 0.8)
}

func TestDetectorSustainedHighRule(t *testing.T) {
	d := newAnomalyDetector(1)
	d.step(7.96)
	score, flux := d.step(7.96)
	assert.Equal(t, fluxSustained, flux)
	assert.GreaterOrEqual(t, score, 0.5)
}
