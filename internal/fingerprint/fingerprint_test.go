package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyAndTooSmall(t *testing.T) {
	assert.Equal(t, labelEmpty, Identify(nil))
	assert.Equal(t, labelTooSmall, Identify([]byte{0x01, 0x02, 0x03}))
	// Boundary: length < 4 wins regardless of content, even magic-looking bytes.
	assert.Equal(t, labelTooSmall, Identify([]byte{0x4D, 0x5A, 0x00}))
}

func TestMagicBytes(t *testing.T) {
	pe := append([]byte{0x4D, 0x5A, 0x90, 0x00}, make([]byte, 1020)...)
	assert.Equal(t, labelPE, Identify(pe))

	elf64 := []byte{0x7F, 0x45, 0x4C, 0x46, 0x02, 0x00, 0x00, 0x00}
	assert.Equal(t, labelELF64, Identify(elf64))

	elf32 := []byte{0x7F, 0x45, 0x4C, 0x46, 0x01, 0x00, 0x00, 0x00}
	assert.Equal(t, labelELF32, Identify(elf32))

	macho := []byte{0xCA, 0xFE, 0xBA, 0xBE, 0x00, 0x00, 0x00, 0x02}
	assert.Equal(t, labelMachO, Identify(macho))

	pdf := []byte("%PDF-1.4 rest of doc")
	assert.Equal(t, labelPDF, Identify(pdf))

	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	assert.Equal(t, labelPNG, Identify(png))

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	assert.Equal(t, labelJPEG, Identify(jpeg))
}

func TestEntropyBands(t *testing.T) {
	zeroes := make([]byte, 64)
	assert.Equal(t, labelNullPadding, Identify(zeroes))
}

func TestASCIIText(t *testing.T) {
	text := []byte("the quick brown fox jumps over the lazy dog, again and again\n")
	assert.Equal(t, labelASCIIText, Identify(text))
}
