package bmpimg

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeEmpty(t *testing.T) {
	assert.Empty(t, Encode(nil))
	assert.Empty(t, Encode([]RGB{}))
}

func TestEncodeHeaderShape(t *testing.T) {
	pixels := []RGB{{1, 0, 0}, {0, 1, 0}}
	out := Encode(pixels)

	assert.Equal(t, "BM", string(out[0:2]))

	width := 2 // ceil(sqrt(2))
	height := 1 // ceil(2/2)
	assert.GreaterOrEqual(t, width*height, len(pixels))

	gotWidth := int32(binary.LittleEndian.Uint32(out[18:22]))
	gotHeight := int32(binary.LittleEndian.Uint32(out[22:26]))
	assert.EqualValues(t, width, gotWidth)
	assert.Less(t, gotHeight, int32(0), "height field must be negative (top-down)")
	assert.EqualValues(t, -height, gotHeight)

	bpp := binary.LittleEndian.Uint16(out[28:30])
	assert.EqualValues(t, 24, bpp)

	rowStride := ((width*3 + 3) / 4) * 4
	pixelArrayLen := len(out) - 54
	assert.Equal(t, rowStride*height, pixelArrayLen)
}

func TestQuantizeClampsToByteRange(t *testing.T) {
	assert.EqualValues(t, 255, quantize(1.0))
	assert.EqualValues(t, 0, quantize(0.0))
	assert.EqualValues(t, 255, quantize(2.0))
}
