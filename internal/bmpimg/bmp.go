// Package bmpimg renders an ordered sequence of RGB triples into a 24-bit,
// top-down, uncompressed BMP byte stream. It is an encoder only: no BMP is
// ever decoded by this module.
package bmpimg

import (
	"encoding/binary"
	"math"
)

// RGB is one pixel, each component normalized to [0, 1].
type RGB struct {
	R, G, B float64
}

const (
	fileHeaderSize = 14
	dibHeaderSize  = 40
	pixelOffset    = fileHeaderSize + dibHeaderSize
	dpi            = 2835 // 72 dpi, expressed in pixels-per-meter.
)

// Encode lays pixels out as a square-ish image, width = ceil(sqrt(n)),
// height = ceil(n/width), and returns the encoded BMP bytes. Pixels beyond
// index len(pixels)-1 (to fill out the last row) are rendered black.
// An empty input yields an empty byte string.
func Encode(pixels []RGB) []byte {
	n := len(pixels)
	if n == 0 {
		return nil
	}

	width := int(math.Ceil(math.Sqrt(float64(n))))
	height := int(math.Ceil(float64(n) / float64(width)))
	rowSize := (width*3 + 3) &^ 3
	pixelArraySize := rowSize * height
	fileSize := pixelOffset + pixelArraySize

	out := make([]byte, 0, fileSize)
	out = append(out, fileHeader(fileSize)...)
	out = append(out, dibHeader(width, height, pixelArraySize)...)
	out = append(out, pixelArray(pixels, width, height, rowSize)...)
	return out
}

func fileHeader(fileSize int) []byte {
	b := make([]byte, fileHeaderSize)
	b[0], b[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(b[2:6], uint32(fileSize))
	// b[6:10] is two reserved uint16 fields, left zero.
	binary.LittleEndian.PutUint32(b[10:14], uint32(pixelOffset))
	return b
}

func dibHeader(width, height, pixelArraySize int) []byte {
	b := make([]byte, dibHeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(dibHeaderSize))
	binary.LittleEndian.PutUint32(b[4:8], uint32(width))
	binary.LittleEndian.PutUint32(b[8:12], uint32(int32(-height))) // negative: top-down rows.
	binary.LittleEndian.PutUint16(b[12:14], 1)                     // planes
	binary.LittleEndian.PutUint16(b[14:16], 24)                    // bits per pixel
	// b[16:20] compression = 0 (none).
	binary.LittleEndian.PutUint32(b[20:24], uint32(pixelArraySize))
	binary.LittleEndian.PutUint32(b[24:28], uint32(dpi))
	binary.LittleEndian.PutUint32(b[28:32], uint32(dpi))
	// b[32:40] color-palette fields, left zero.
	return b
}

func pixelArray(pixels []RGB, width, height, rowSize int) []byte {
	n := len(pixels)
	out := make([]byte, rowSize*height)
	for y := 0; y < height; y++ {
		row := out[y*rowSize : y*rowSize+rowSize]
		for x := 0; x < width; x++ {
			idx := y*width + x
			if idx >= n {
				break // Remainder of row (and its padding) stays black/zero.
			}
			p := pixels[idx]
			row[x*3+0] = quantize(p.B)
			row[x*3+1] = quantize(p.G)
			row[x*3+2] = quantize(p.R)
		}
	}
	return out
}

func quantize(x float64) byte {
	v := int(x * 255)
	if v > 255 {
		v = 255
	}
	if v < 0 {
		v = 0
	}
	return byte(v)
}
