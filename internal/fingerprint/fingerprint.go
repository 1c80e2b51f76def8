// Package fingerprint classifies a byte slice into a small, fixed set of
// format/architecture labels. It is a pure function of its input: magic
// bytes first, then entropy and frequency heuristics.
package fingerprint

import (
	"bytes"

	"github.com/rustedkoi/sentinelnav/internal/stats"
)

// The fixed label set, in the order spec'd rules may produce them.
const (
	labelEmpty       = "Empty Region"
	labelTooSmall    = "Too small to analyze"
	labelPE          = "Windows PE Header (x86/64)"
	labelELF64       = "Linux ELF Header (64-bit)"
	labelELF32       = "Linux ELF Header (32-bit)"
	labelMachO       = "Mac Mach-O Header"
	labelPDF         = "PDF Document Header"
	labelPNG         = "PNG Image Header"
	labelJPEG        = "JPEG Image Header"
	labelNullPadding = "Null Padding / Zero Space"
	labelLowEntropy  = "Low Entropy (Sparse Data)"
	labelHighEntropy = "High Entropy (Crypto/Compressed)"
	labelASCIIText   = "ASCII Text / Source Code"
	labelUnknownHD   = "Unknown High Density Data"
	labelUnknownBin  = "Unknown Binary Data"
)

var (
	magicPE     = []byte{0x4D, 0x5A}
	magicELF    = []byte{0x7F, 0x45, 0x4C, 0x46}
	magicMachO1 = []byte{0xCA, 0xFE, 0xBA, 0xBE}
	magicMachO2 = []byte{0xFE, 0xED, 0xFA, 0xCE}
	magicPDF    = []byte{0x25, 0x50, 0x44, 0x46}
	magicPNG    = []byte{0x89, 0x50, 0x4E, 0x47}
	magicJPEG   = []byte{0xFF, 0xD8, 0xFF}
)

// arch is one candidate code-architecture score, evaluated in declaration
// order so that ties break x86 -> x64 -> ARM64.
type arch struct {
	label string
	score float64
}

// Identify classifies data into one of the fixed labels, per the ordered
// rules: magic bytes, then coarse entropy bands, then printable ratio, then
// frequency-based code-architecture scoring.
func Identify(data []byte) string {
	if len(data) == 0 {
		return labelEmpty
	}
	if len(data) < 4 {
		return labelTooSmall
	}

	switch {
	case bytes.HasPrefix(data, magicPE):
		return labelPE
	case bytes.HasPrefix(data, magicELF):
		if data[4] == 0x02 {
			return labelELF64
		}
		return labelELF32
	case bytes.HasPrefix(data, magicMachO1), bytes.HasPrefix(data, magicMachO2):
		return labelMachO
	case bytes.HasPrefix(data, magicPDF):
		return labelPDF
	case bytes.HasPrefix(data, magicPNG):
		return labelPNG
	case bytes.HasPrefix(data, magicJPEG):
		return labelJPEG
	}

	h := stats.Entropy(data)
	switch {
	case h < 1.0:
		return labelNullPadding
	case h < 3.0:
		return labelLowEntropy
	case h > 7.9:
		return labelHighEntropy
	}

	if stats.PrintableRatio(data) > 0.90 {
		return labelASCIIText
	}

	return frequencyScore(data, h)
}

// frequencyScore implements spec.md's §4.2 rule 6: score three candidate
// architectures against the byte histogram and report the winner, or an
// "Unknown" label when no candidate clears the 0.05 threshold.
func frequencyScore(data []byte, h float64) string {
	length := len(data)
	hist := stats.Histogram256(data)
	freq := func(b byte) float64 { return float64(hist[b]) / float64(length) }

	scoreX86 := 5*freq(0xC3) + 3*freq(0x90) + 2*freq(0x55) + freq(0x89)
	scoreX64 := scoreX86 + 3*freq(0x48)

	scoreARM64 := 0.0
	if length > 8 {
		nulls := 0
		for i := 3; i < length; i += 4 {
			if data[i] == 0 {
				nulls++
			}
		}
		scoreARM64 = (float64(nulls) / (float64(length) / 4)) * 2.5
	}

	candidates := []arch{
		{"x86 (32-bit)", scoreX86},
		{"x86_64 (64-bit)", scoreX64},
		{"ARM64", scoreARM64},
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score > best.score {
			best = c
		}
	}

	if best.score < 0.05 {
		if h > 6.0 {
			return labelUnknownHD
		}
		return labelUnknownBin
	}
	return best.label + " Code (Probable)"
}
