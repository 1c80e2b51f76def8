// Package analyzer fans a chunk sequence out to a pool of pure worker
// functions and collects their results back into positional order, where a
// stateful anomaly detector annotates each one in turn.
//
// The fan-out/ordered-collect shape is adapted from the Manager/Worker
// channel pattern in lib/rac's concurrent reader: workers pull requests off
// a shared channel and push tagged results to a shared response channel; a
// single collector goroutine holds out-of-order results in a map keyed by
// sequence number until it can emit them in order.
package analyzer

import (
	"context"
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rustedkoi/sentinelnav/internal/chunk"
	"github.com/rustedkoi/sentinelnav/internal/stats"
	"github.com/rustedkoi/sentinelnav/internal/store"
)

// batchSize is the number of records buffered before a bulk insert, and the
// interval at which progress is reported.
const batchSize = 2000

// workerResult is the pure, captureless computation a worker performs on one
// chunk: it takes only (offset, bytes) and returns a descriptor tuple, so it
// would be safe to run in a separate address space.
type workerResult struct {
	seq     int
	offset  int64
	length  int
	entropy float64
	r, g, b float64
	err     error
}

// computeChunk is the worker function proper: pure, no captured environment.
func computeChunk(seq int, offset int64, data []byte) workerResult {
	length := len(data)
	if length == 0 {
		return workerResult{seq: seq, offset: offset}
	}
	h := stats.Histogram256(data)
	rCount, gCount, bCount := stats.Bands(h)
	ent := stats.Entropy(data)
	return workerResult{
		seq: seq, offset: offset, length: length,
		entropy: stats.Round(ent, 3),
		r:       stats.Round(float64(rCount)/float64(length), 3),
		g:       stats.Round(float64(gCount)/float64(length), 3),
		b:       stats.Round(float64(bCount)/float64(length), 3),
	}
}

// WorkerCount returns the pool size spec'd for the analyzer: one fewer than
// the number of logical CPUs, floored at 1.
func WorkerCount() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// Progress is called periodically during Scan to report how many chunks
// have been processed so far.
type Progress func(processed int)

// Scan reads chunks from c, computes their statistical descriptors across a
// worker pool, runs the anomaly detector over the ordered results, and
// flushes batches of Records to st. It returns the total number of chunks
// processed. ctx cancellation aborts the scan cleanly; st is left with
// whatever batches were already flushed, never a partially written batch.
func Scan(ctx context.Context, c chunk.Chunker, st *store.Store, window int, onProgress Progress) (int, error) {
	if window <= 0 {
		return 0, errors.Errorf("analyzer: window must be positive, got %d", window)
	}

	reqc := make(chan workerRequest)
	resc := make(chan workerResult)

	numWorkers := WorkerCount()
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			runWorker(reqc, resc)
		}()
	}

	dispatchErrc := make(chan error, 1)
	go func() {
		defer close(reqc)
		dispatchErrc <- dispatch(ctx, c, reqc)
	}()

	go func() {
		wg.Wait()
		close(resc)
	}()

	detector := newAnomalyDetector(window)
	collector := newCollector(resc)

	total := 0
	batch := make([]store.Record, 0, batchSize)
	for {
		res, ok, err := collector.next()
		if err != nil {
			return total, errors.Wrap(err, "analyzer: worker failure")
		}
		if !ok {
			break
		}
		if res.err != nil {
			return total, errors.Wrap(res.err, "analyzer: worker failure")
		}

		anomScore, fluxType := detector.step(res.entropy)
		batch = append(batch, store.Record{
			Offset: res.offset, Length: res.length, Entropy: res.entropy,
			RFrac: res.r, GFrac: res.g, BFrac: res.b,
			AnomScore: anomScore, FluxType: fluxType,
		})
		total++

		if len(batch) >= batchSize {
			if err := st.InsertBulk(batch); err != nil {
				return total, errors.Wrap(err, "analyzer: flush batch")
			}
			batch = batch[:0]
			if onProgress != nil {
				onProgress(total)
			}
		}

		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}
	}

	if err := <-dispatchErrc; err != nil {
		return total, errors.Wrap(err, "analyzer: chunk read")
	}

	if len(batch) > 0 {
		if err := st.InsertBulk(batch); err != nil {
			return total, errors.Wrap(err, "analyzer: final flush")
		}
	}
	return total, nil
}

// workerRequest is the unit of dispatch sent to a worker: a sequence number
// (to let the collector reassemble results in order) plus the raw chunk.
type workerRequest struct {
	seq    int
	offset int64
	data   []byte
}

func runWorker(reqc <-chan workerRequest, resc chan<- workerResult) {
	for req := range reqc {
		resc <- computeChunk(req.seq, req.offset, req.data)
	}
}

func dispatch(ctx context.Context, c chunk.Chunker, reqc chan<- workerRequest) error {
	seq := 0
	return chunk.Walk(c, func(ch chunk.Chunk) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case reqc <- workerRequest{seq: seq, offset: ch.Offset, data: ch.Data}:
			seq++
			return nil
		}
	})
}

// collector reassembles out-of-order worker results into sequence order,
// mirroring lib/rac's concReader.completedWorks map.
type collector struct {
	resc    <-chan workerResult
	pending map[int]workerResult
	nextSeq int
	closed  bool
}

func newCollector(resc <-chan workerResult) *collector {
	return &collector{resc: resc, pending: map[int]workerResult{}}
}

func (col *collector) next() (workerResult, bool, error) {
	for {
		if res, ok := col.pending[col.nextSeq]; ok {
			delete(col.pending, col.nextSeq)
			col.nextSeq++
			return res, true, nil
		}
		if col.closed {
			return workerResult{}, false, nil
		}
		res, ok := <-col.resc
		if !ok {
			col.closed = true
			continue
		}
		col.pending[res.seq] = res
	}
}

// ScanFile opens path and runs Scan over the given Chunker factory, logging
// progress the way spec.md's §6 "Progress output" requires.
func ScanFile(ctx context.Context, path string, newChunker func(f *os.File) (chunk.Chunker, error), st *store.Store, window int, log *logrus.Logger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "analyzer: open file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "analyzer: stat file")
	}

	c, err := newChunker(f)
	if err != nil {
		return 0, errors.Wrap(err, "analyzer: build chunker")
	}

	workers := WorkerCount()
	log.WithFields(logrus.Fields{
		"component":  "analyzer",
		"size_bytes": info.Size(),
		"workers":    workers,
	}).Info("scanning file")

	total, err := Scan(ctx, c, st, window, func(processed int) {
		log.WithFields(logrus.Fields{"component": "analyzer", "processed": processed}).Info("processed blocks")
	})
	if err != nil {
		return total, err
	}

	log.WithFields(logrus.Fields{"component": "analyzer", "total": total}).Info("scan complete")
	return total, nil
}
