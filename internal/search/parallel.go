package search

import (
	"runtime"
	"sync"

	"github.com/inodb/genomatch/internal/vcf"
)

// WorkItem holds a parsed record ready for scoring.
type WorkItem struct {
	Seq     int
	Variant *vcf.Variant
}

// WorkResult holds the scores of a single record: for each uploaded sample
// (by header index), the non-zero scores of stored samples.
type WorkResult struct {
	Seq    int
	Known  bool
	Scores []map[string]float64
	Err    error
}

// scoreFunc scores one record.
type scoreFunc func(v *vcf.Variant) (known bool, scores []map[string]float64, err error)

// parallelScore scores work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use orderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
func parallelScore(items <-chan WorkItem, workers int, score scoreFunc) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				known, scores, err := score(item.Variant)
				results <- WorkResult{
					Seq:    item.Seq,
					Known:  known,
					Scores: scores,
					Err:    err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// orderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func orderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
