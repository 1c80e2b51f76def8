package analyzer

import "github.com/rustedkoi/sentinelnav/internal/stats"

const (
	fluxNone      = 0
	fluxSpike     = 1
	fluxDrop      = 2
	fluxSustained = 3
)

// anomalyDetector is serial, stateful, and sees the ordered entropy stream
// exactly once. It holds a FIFO of the last `entropies` (trimmed to
// 2*window) and the previous record's entropy.
type anomalyDetector struct {
	window  int
	hist    []float64
	prevEnt float64
}

func newAnomalyDetector(window int) *anomalyDetector {
	return &anomalyDetector{window: window}
}

// step annotates one entropy value in stream order, per spec.md §4.5, and
// returns its (anom_score, flux_type).
func (d *anomalyDetector) step(entropy float64) (float64, int) {
	base := 0.0
	if len(d.hist) >= d.window {
		avg := mean(d.hist)
		diff := entropy - avg
		if diff < 0 {
			diff = -diff
		}
		base = diff / 2.0
		if base > 1.0 {
			base = 1.0
		}
	}

	delta := entropy - d.prevEnt
	var (
		score    float64
		fluxType int
	)
	switch {
	case delta > 1.5 && entropy > 6.0:
		fluxType, score = fluxSpike, base+0.8
	case delta < -1.5 && entropy < 3.0:
		fluxType, score = fluxDrop, base+0.8
	case entropy > 7.95:
		fluxType, score = fluxSustained, base+0.5
	default:
		fluxType, score = fluxNone, base
	}

	d.prevEnt = entropy
	d.hist = append(d.hist, entropy)
	if len(d.hist) > d.window*2 {
		d.hist = d.hist[1:]
	}

	return score, fluxType
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// roundScore matches store.Store's read-time rounding, exposed here so
// tests can assert against the same 2-decimal precision the /data endpoint
// reports.
func roundScore(x float64) float64 {
	return stats.Round(x, 2)
}
